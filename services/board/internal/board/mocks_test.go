package board

import (
	"context"
	"errors"

	"github.com/dinesync/dinesync/pkg/event"
)

// MockOrderService is a mock order authority with function-field overrides.
type MockOrderService struct {
	ListOrdersFunc    func(ctx context.Context) ([]event.OrderSnapshot, error)
	ListBillsFunc     func(ctx context.Context) ([]event.BillSnapshot, error)
	SubmitOrderFunc   func(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	AdvanceStatusFunc func(ctx context.Context, orderID, status string) (*event.OrderSnapshot, error)

	SubmitCalls []SubmitRequest
}

func (m *MockOrderService) ListOrders(ctx context.Context) ([]event.OrderSnapshot, error) {
	if m.ListOrdersFunc != nil {
		return m.ListOrdersFunc(ctx)
	}
	return nil, errors.New("not configured")
}

func (m *MockOrderService) ListBills(ctx context.Context) ([]event.BillSnapshot, error) {
	if m.ListBillsFunc != nil {
		return m.ListBillsFunc(ctx)
	}
	return nil, errors.New("not configured")
}

func (m *MockOrderService) SubmitOrder(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	m.SubmitCalls = append(m.SubmitCalls, req)
	if m.SubmitOrderFunc != nil {
		return m.SubmitOrderFunc(ctx, req)
	}
	return nil, errors.New("not configured")
}

func (m *MockOrderService) AdvanceStatus(ctx context.Context, orderID, status string) (*event.OrderSnapshot, error) {
	if m.AdvanceStatusFunc != nil {
		return m.AdvanceStatusFunc(ctx, orderID, status)
	}
	return nil, errors.New("not configured")
}

func orderSnap(id, tableKey, status string) event.OrderSnapshot {
	return event.OrderSnapshot{
		ID:       id,
		TableKey: tableKey,
		Status:   status,
	}
}

func billSnap(id, orderRef, tableKey string) event.BillSnapshot {
	return event.BillSnapshot{
		ID:       id,
		OrderRef: orderRef,
		TableKey: tableKey,
	}
}
