package order

import (
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"

	"github.com/dinesync/dinesync/pkg/event"
)

// Bill is the invoice record tied 1:1 to an order via OrderRef. A merge
// updates the existing bill instead of producing a second one; the repo
// enforces this by upserting on order_ref.
type Bill struct {
	ID        uuid.UUID        `json:"id" bson:"_id"`
	OrderRef  uuid.UUID        `json:"order_ref" bson:"order_ref"`
	TableKey  string           `json:"table_key" bson:"table_key"`
	Totals    event.BillTotals `json:"bill_details" bson:"bill_details"`
	CreatedAt time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" bson:"updated_at"`
}

func (b *Bill) GetID() uuid.UUID {
	return b.ID
}

func (b *Bill) ResourceType() string {
	return "bill"
}

func (b *Bill) SetID(id uuid.UUID) {
	b.ID = id
}

// NewBillForOrder derives the invoice for an order, copying the order's
// already-computed totals so both views always agree.
func NewBillForOrder(o *Order) *Bill {
	return &Bill{
		ID:       apt.GenerateNewID(),
		OrderRef: o.ID,
		TableKey: o.TableKey,
		Totals:   o.Bill,
	}
}

func (b *Bill) EnsureID() {
	if b.ID == uuid.Nil {
		b.ID = apt.GenerateNewID()
	}
}

func (b *Bill) BeforeCreate() {
	b.EnsureID()
	b.CreatedAt = time.Now()
	b.UpdatedAt = time.Now()
}

func (b *Bill) BeforeUpdate() {
	b.UpdatedAt = time.Now()
}

// Snapshot renders the bill in its wire shape.
func (b *Bill) Snapshot() event.BillSnapshot {
	snap := event.BillSnapshot{
		ID:        b.ID.String(),
		TableKey:  b.TableKey,
		Totals:    b.Totals,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	if b.OrderRef != uuid.Nil {
		snap.OrderRef = b.OrderRef.String()
	}
	return snap
}
