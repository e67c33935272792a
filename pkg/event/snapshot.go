package event

import "time"

// Shared wire shapes for order and bill snapshots. Events always carry the
// complete snapshot, never a delta, so subscribers can apply them in any
// delivery order with a replace-or-insert rule.

// Item is a snapshotted order line. The same shape is used by carts, orders,
// bills and realtime events: price and name are frozen at the moment the line
// is created so later menu edits never change an already placed order.
type Item struct {
	ProductRef string  `json:"product_ref" bson:"product_ref"`
	Name       string  `json:"name" bson:"name"`
	Image      string  `json:"image,omitempty" bson:"image,omitempty"`
	UnitPrice  float64 `json:"unit_price" bson:"unit_price"`
	Quantity   int     `json:"quantity" bson:"quantity"`
}

// BillTotals holds the derived billing amounts for a set of items.
type BillTotals struct {
	Subtotal   float64 `json:"subtotal" bson:"subtotal"`
	CGST       float64 `json:"cgst" bson:"cgst"`
	SGST       float64 `json:"sgst" bson:"sgst"`
	GrandTotal float64 `json:"grand_total" bson:"grand_total"`
}

// halfTaxRate is the CGST (and equally SGST) fraction of the subtotal,
// a fixed 5% combined rate split in two.
const halfTaxRate = 0.025

// ComputeBillTotals is the single source of billing math. Every place that
// renders or persists a total must go through it so the live order view and
// the printed bill can never diverge. Amounts are exact floating sums,
// rounding is presentation-only.
func ComputeBillTotals(items []Item) BillTotals {
	var subtotal float64
	for _, it := range items {
		subtotal += it.UnitPrice * float64(it.Quantity)
	}
	cgst := subtotal * halfTaxRate
	sgst := subtotal * halfTaxRate
	return BillTotals{
		Subtotal:   subtotal,
		CGST:       cgst,
		SGST:       sgst,
		GrandTotal: subtotal + cgst + sgst,
	}
}

// CustomerInfo is the optional customer/delivery metadata attached to
// takeaway and delivery orders.
type CustomerInfo struct {
	Name    string `json:"name,omitempty" bson:"name,omitempty"`
	Phone   string `json:"phone,omitempty" bson:"phone,omitempty"`
	Address string `json:"address,omitempty" bson:"address,omitempty"`
}

// OrderSnapshot is the complete order state as published on the wire.
type OrderSnapshot struct {
	ID        string        `json:"id"`
	TableKey  string        `json:"table_key"`
	Items     []Item        `json:"items"`
	Status    string        `json:"status"`
	Notes     string        `json:"notes,omitempty"`
	Bill      BillTotals    `json:"bill_details"`
	Customer  *CustomerInfo `json:"customer,omitempty"`
	WaiterRef string        `json:"waiter_ref,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BillSnapshot is the invoice view derived 1:1 from an order.
type BillSnapshot struct {
	ID        string     `json:"id"`
	OrderRef  string     `json:"order_ref,omitempty"`
	TableKey  string     `json:"table_key"`
	Totals    BillTotals `json:"bill_details"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DedupeKey identifies the logical invoice: bills sharing an order reference
// are the same invoice, a bill without one stands on its own identity.
func (b BillSnapshot) DedupeKey() string {
	if b.OrderRef != "" {
		return b.OrderRef
	}
	return b.ID
}
