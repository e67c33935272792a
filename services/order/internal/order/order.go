package order

import (
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"

	"github.com/dinesync/dinesync/pkg/enums/orderstatus"
	"github.com/dinesync/dinesync/pkg/event"
)

// Order is the durable aggregate for a table's dining session. At most one
// open (non-terminal) order exists per table key: a second submission for the
// same table merges into it instead of creating a sibling. Orders are never
// deleted, they only reach a terminal status.
type Order struct {
	ID               uuid.UUID           `json:"id" bson:"_id"`
	TableKey         string              `json:"table_key" bson:"table_key"`
	Items            []event.Item        `json:"items" bson:"items"`
	Status           string              `json:"status" bson:"status"`
	Notes            string              `json:"notes,omitempty" bson:"notes,omitempty"`
	Bill             event.BillTotals    `json:"bill_details" bson:"bill_details"`
	Customer         *event.CustomerInfo `json:"customer,omitempty" bson:"customer,omitempty"`
	WaiterRef        *uuid.UUID          `json:"waiter_ref,omitempty" bson:"waiter_ref,omitempty"`
	SubmissionTokens []string            `json:"-" bson:"submission_tokens,omitempty"`
	CreatedAt        time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at" bson:"updated_at"`
}

func (o *Order) GetID() uuid.UUID {
	return o.ID
}

func (o *Order) ResourceType() string {
	return "order"
}

func (o *Order) SetID(id uuid.UUID) {
	o.ID = id
}

func NewOrder() *Order {
	return &Order{
		ID:     apt.GenerateNewID(),
		Status: orderstatus.Statuses.Preparing.Code(),
	}
}

func (o *Order) EnsureID() {
	if o.ID == uuid.Nil {
		o.ID = apt.GenerateNewID()
	}
}

func (o *Order) BeforeCreate() {
	o.EnsureID()
	o.CreatedAt = time.Now()
	o.UpdatedAt = time.Now()
}

func (o *Order) BeforeUpdate() {
	o.UpdatedAt = time.Now()
}

// Open reports whether the order still blocks its table. A table whose
// orders are all terminal is free to start a fresh order.
func (o *Order) Open() bool {
	return !orderstatus.IsTerminal(o.Status)
}

// AdvanceTo moves the order forward in the pipeline. Transitions are
// monotonic: regressions and unknown statuses are rejected with a validation
// error instead of being accepted as-is.
func (o *Order) AdvanceTo(status string) error {
	if orderstatus.ByName(status) == nil {
		return fmt.Errorf("unknown status %q", status)
	}
	if !orderstatus.CanAdvance(o.Status, status) {
		return fmt.Errorf("cannot move order from %q to %q", o.Status, status)
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}

// MergeItems folds a newly submitted item set into the order. Lines sharing
// a product reference add their quantities, new references append at the end.
// Billing totals are recomputed from the merged set.
func (o *Order) MergeItems(delta []event.Item) {
	for _, in := range delta {
		merged := false
		for i := range o.Items {
			if o.Items[i].ProductRef == in.ProductRef {
				o.Items[i].Quantity += in.Quantity
				merged = true
				break
			}
		}
		if !merged {
			o.Items = append(o.Items, in)
		}
	}
	o.RecomputeBill()
	o.UpdatedAt = time.Now()
}

// RecomputeBill refreshes the derived totals from the current item set.
func (o *Order) RecomputeBill() {
	o.Bill = event.ComputeBillTotals(o.Items)
}

// HasSubmissionToken reports whether a client submission token was already
// applied to this order.
func (o *Order) HasSubmissionToken(token string) bool {
	if token == "" {
		return false
	}
	for _, t := range o.SubmissionTokens {
		if t == token {
			return true
		}
	}
	return false
}

// RecordSubmissionToken remembers an applied client token so a duplicate
// submission replays the stored outcome instead of re-applying items.
func (o *Order) RecordSubmissionToken(token string) {
	if token == "" {
		return
	}
	o.SubmissionTokens = append(o.SubmissionTokens, token)
}

// Snapshot renders the order in its wire shape.
func (o *Order) Snapshot() event.OrderSnapshot {
	snap := event.OrderSnapshot{
		ID:        o.ID.String(),
		TableKey:  o.TableKey,
		Items:     append([]event.Item(nil), o.Items...),
		Status:    o.Status,
		Notes:     o.Notes,
		Bill:      o.Bill,
		Customer:  o.Customer,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if o.WaiterRef != nil {
		snap.WaiterRef = o.WaiterRef.String()
	}
	return snap
}
