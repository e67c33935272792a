package order

import (
	"context"

	"github.com/google/uuid"
)

type OrderRepo interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, limit int) ([]*Order, error)
	ListByTable(ctx context.Context, tableKey string) ([]*Order, error)
	// FindOpenByTable returns the single non-terminal order for a table key,
	// or nil when the table is free.
	FindOpenByTable(ctx context.Context, tableKey string) (*Order, error)
	// FindBySubmissionToken returns the table's order that recorded the given
	// client token, regardless of status, or nil. A replay must be detected
	// even after the original order reached a terminal status.
	FindBySubmissionToken(ctx context.Context, tableKey, token string) (*Order, error)
	Save(ctx context.Context, order *Order) error
}

type BillRepo interface {
	GetByOrderRef(ctx context.Context, orderRef uuid.UUID) (*Bill, error)
	// Upsert creates the bill or updates the existing record sharing the
	// same order reference; two bills never coexist for one order.
	Upsert(ctx context.Context, bill *Bill) error
	List(ctx context.Context, limit int) ([]*Bill, error)
}
