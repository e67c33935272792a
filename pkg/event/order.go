package event

import "time"

const (
	// OrdersTopic delivers order lifecycle events to every connected client.
	OrdersTopic = "orders.lifecycle"
	// ItemsAddedTopic carries the merge deltas so UIs can announce
	// "N new items" instead of silently re-rendering the whole order.
	ItemsAddedTopic = "orders.items.added"

	// EventOrderCreated identifies a freshly created order snapshot.
	EventOrderCreated = "order.created"
	// EventOrderUpdated identifies any mutation of an existing order
	// (merge, status change). The payload is always the full snapshot.
	EventOrderUpdated = "order.updated"
	// EventOrderItemsAdded identifies a merge delta notification.
	EventOrderItemsAdded = "order.items.added"
)

// OrderEvent is published on OrdersTopic whenever an order is created or
// mutated.
type OrderEvent struct {
	EventType  string        `json:"event_type"`
	OccurredAt time.Time     `json:"occurred_at"`
	Order      OrderSnapshot `json:"order"`
}

// ItemsAddedEvent is published alongside the orderUpdated event of a merge.
// It never mutates order or bill collections on the subscriber side; it only
// feeds the notification center.
type ItemsAddedEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	OrderID    string    `json:"order_id"`
	TableKey   string    `json:"table_key"`
	Items      []Item    `json:"items"`
}
