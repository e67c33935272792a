package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/appetiteclub/apt"

	"github.com/dinesync/dinesync/pkg/event"
)

// SubmitRequest is the payload the board forwards to the order service. The
// client token makes retries of the same submission idempotent server-side.
type SubmitRequest struct {
	TableKey    string              `json:"table_key"`
	Items       []event.Item        `json:"items"`
	Notes       string              `json:"notes,omitempty"`
	Customer    *event.CustomerInfo `json:"customer,omitempty"`
	ClientToken string              `json:"client_token,omitempty"`
}

// SubmitResult carries the authoritative outcome back from the order service.
type SubmitResult struct {
	Outcome string              `json:"outcome"`
	Order   event.OrderSnapshot `json:"order"`
}

// OrderService is the board's view of the order authority.
type OrderService interface {
	ListOrders(ctx context.Context) ([]event.OrderSnapshot, error)
	ListBills(ctx context.Context) ([]event.BillSnapshot, error)
	SubmitOrder(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	AdvanceStatus(ctx context.Context, orderID, status string) (*event.OrderSnapshot, error)
}

// OrderDataAccess centralizes decoding of order service responses.
type OrderDataAccess struct {
	client *apt.ServiceClient
}

func NewOrderDataAccess(client *apt.ServiceClient) *OrderDataAccess {
	return &OrderDataAccess{client: client}
}

func (da *OrderDataAccess) ListOrders(ctx context.Context) ([]event.OrderSnapshot, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("order client not configured")
	}

	resp, err := da.client.List(ctx, "orders")
	if err != nil {
		return nil, err
	}

	var orders []event.OrderSnapshot
	if err := decodeSuccessResponse(resp, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (da *OrderDataAccess) ListBills(ctx context.Context) ([]event.BillSnapshot, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("order client not configured")
	}

	resp, err := da.client.Request(ctx, "GET", "/bills", nil)
	if err != nil {
		return nil, err
	}

	var bills []event.BillSnapshot
	if err := decodeSuccessResponse(resp, &bills); err != nil {
		return nil, err
	}
	return bills, nil
}

func (da *OrderDataAccess) SubmitOrder(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("order client not configured")
	}

	resp, err := da.client.Request(ctx, "POST", "/orders", req)
	if err != nil {
		return nil, err
	}

	var result SubmitResult
	if err := decodeSuccessResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (da *OrderDataAccess) AdvanceStatus(ctx context.Context, orderID, status string) (*event.OrderSnapshot, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("order client not configured")
	}
	if orderID == "" {
		return nil, fmt.Errorf("missing order id")
	}

	path := fmt.Sprintf("/orders/%s/status", orderID)
	body := map[string]string{"status": status}
	resp, err := da.client.Request(ctx, "PUT", path, body)
	if err != nil {
		return nil, err
	}

	var order event.OrderSnapshot
	if err := decodeSuccessResponse(resp, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func decodeSuccessResponse(resp *apt.SuccessResponse, dest interface{}) error {
	if resp == nil {
		return errors.New("nil success response")
	}

	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, dest)
}
