package event

import "time"

const (
	// BillsTopic delivers bill lifecycle events.
	BillsTopic = "bills.lifecycle"

	// EventBillCreated identifies a bill created alongside a new order.
	EventBillCreated = "bill.created"
	// EventBillUpdated identifies a bill recomputed after an order merge.
	EventBillUpdated = "bill.updated"
)

// BillEvent is published on BillsTopic whenever a bill is created or updated.
type BillEvent struct {
	EventType  string       `json:"event_type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Bill       BillSnapshot `json:"bill"`
}
