package board

import (
	"context"
	"errors"
	"testing"

	"github.com/dinesync/dinesync/pkg/event"
	"github.com/dinesync/dinesync/services/board/internal/cache"
)

func newTestSubmitter(t *testing.T, svc OrderService) (*Submitter, *Cart, *Session, *Registry) {
	t.Helper()
	store := cache.NewMemory()
	session := NewSession(store, nil)
	cart := NewCart(store, nil)
	registry := NewRegistry(store, nil, nil, nil)
	return NewSubmitter(svc, cart, session, registry, nil), cart, session, registry
}

func TestSubmitterValidation(t *testing.T) {
	svc := &MockOrderService{}
	sub, cart, session, _ := newTestSubmitter(t, svc)
	ctx := context.Background()

	// No table selected.
	if _, err := sub.Submit(ctx, "", nil); !errors.Is(err, ErrTableUnresolved) {
		t.Errorf("expected ErrTableUnresolved, got %v", err)
	}

	// Table selected but cart empty.
	session.SetTable(ctx, "7")
	cart.Use(ctx, "7")
	if _, err := sub.Submit(ctx, "", nil); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got %v", err)
	}

	// Validation failures never reach the network.
	if len(svc.SubmitCalls) != 0 {
		t.Errorf("network calls = %d, want 0", len(svc.SubmitCalls))
	}
}

func TestSubmitterConfirmed(t *testing.T) {
	confirmed := orderSnap("o1", "7", "preparing")
	svc := &MockOrderService{
		SubmitOrderFunc: func(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
			return &SubmitResult{Outcome: "created", Order: confirmed}, nil
		},
	}
	sub, cart, session, registry := newTestSubmitter(t, svc)
	ctx := context.Background()

	session.SetTable(ctx, "7")
	cart.Use(ctx, "7")
	cart.AddItem(ctx, event.Item{ProductRef: "paneer-tikka", UnitPrice: 180, Quantity: 2})

	result, err := sub.Submit(ctx, "no onions", nil)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if result.State != SubmissionConfirmed {
		t.Errorf("state = %q, want confirmed", result.State)
	}
	if result.Outcome != "created" {
		t.Errorf("outcome = %q, want created", result.Outcome)
	}
	if result.Token == "" {
		t.Error("expected a client token")
	}

	// The request carried the cart lines and the token.
	if len(svc.SubmitCalls) != 1 {
		t.Fatalf("network calls = %d, want 1", len(svc.SubmitCalls))
	}
	call := svc.SubmitCalls[0]
	if call.ClientToken != result.Token {
		t.Errorf("request token = %q, want %q", call.ClientToken, result.Token)
	}
	if call.Notes != "no onions" {
		t.Errorf("request notes = %q", call.Notes)
	}
	if len(call.Items) != 1 {
		t.Errorf("request items = %d, want 1", len(call.Items))
	}

	// Authoritative order landed locally, cart is done.
	if _, ok := registry.Get("o1"); !ok {
		t.Error("expected confirmed order in registry")
	}
	if !cart.Empty() {
		t.Error("expected cart cleared after confirmation")
	}

	// State stays queryable by token.
	status, ok := sub.Status(result.Token)
	if !ok || status.State != SubmissionConfirmed {
		t.Errorf("Status() = %+v, ok=%v", status, ok)
	}
}

func TestSubmitterFailed(t *testing.T) {
	svc := &MockOrderService{
		SubmitOrderFunc: func(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
			return nil, errors.New("connection refused")
		},
	}
	sub, cart, session, _ := newTestSubmitter(t, svc)
	ctx := context.Background()

	session.SetTable(ctx, "7")
	cart.Use(ctx, "7")
	cart.AddItem(ctx, event.Item{ProductRef: "paneer-tikka", UnitPrice: 180, Quantity: 2})

	result, err := sub.Submit(ctx, "", nil)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if result.State != SubmissionFailed {
		t.Errorf("state = %q, want failed", result.State)
	}
	if result.Error == "" {
		t.Error("expected error message on failed submission")
	}

	// Items survive a failed attempt.
	if cart.Empty() {
		t.Error("expected cart intact after failure")
	}
}

func TestSubmitterRetryReusesToken(t *testing.T) {
	attempts := 0
	svc := &MockOrderService{
		SubmitOrderFunc: func(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
			attempts++
			if attempts == 1 {
				return nil, errors.New("timeout")
			}
			return &SubmitResult{Outcome: "created", Order: orderSnap("o1", "7", "preparing")}, nil
		},
	}
	sub, cart, session, _ := newTestSubmitter(t, svc)
	ctx := context.Background()

	session.SetTable(ctx, "7")
	cart.Use(ctx, "7")
	cart.AddItem(ctx, event.Item{ProductRef: "paneer-tikka", UnitPrice: 180, Quantity: 2})

	first, _ := sub.Submit(ctx, "", nil)
	if first.State != SubmissionFailed {
		t.Fatalf("first state = %q, want failed", first.State)
	}

	retried, err := sub.Retry(ctx, first.Token)
	if err != nil {
		t.Fatalf("Retry() error: %v", err)
	}
	if retried.State != SubmissionConfirmed {
		t.Errorf("retried state = %q, want confirmed", retried.State)
	}

	// Same idempotency token on both wire requests.
	if svc.SubmitCalls[0].ClientToken != svc.SubmitCalls[1].ClientToken {
		t.Errorf("retry token %q != original %q", svc.SubmitCalls[1].ClientToken, svc.SubmitCalls[0].ClientToken)
	}
}

func TestSubmitterRetryKeepsNotesAndCustomer(t *testing.T) {
	attempts := 0
	svc := &MockOrderService{
		SubmitOrderFunc: func(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
			attempts++
			if attempts == 1 {
				return nil, errors.New("timeout")
			}
			return &SubmitResult{Outcome: "created", Order: orderSnap("o1", "7", "preparing")}, nil
		},
	}
	sub, cart, session, _ := newTestSubmitter(t, svc)
	ctx := context.Background()

	session.SetTable(ctx, "7")
	cart.Use(ctx, "7")
	cart.AddItem(ctx, event.Item{ProductRef: "paneer-tikka", UnitPrice: 180, Quantity: 2})

	customer := &event.CustomerInfo{Name: "Priya", Phone: "9876543210"}
	first, _ := sub.Submit(ctx, "less spicy", customer)
	if first.State != SubmissionFailed {
		t.Fatalf("first state = %q, want failed", first.State)
	}

	retried, err := sub.Retry(ctx, first.Token)
	if err != nil {
		t.Fatalf("Retry() error: %v", err)
	}
	if retried.State != SubmissionConfirmed {
		t.Errorf("retried state = %q, want confirmed", retried.State)
	}

	// The re-sent request carries what the user supplied the first time.
	resent := svc.SubmitCalls[1]
	if resent.Notes != "less spicy" {
		t.Errorf("retry notes = %q, want original notes", resent.Notes)
	}
	if resent.Customer == nil || resent.Customer.Name != "Priya" {
		t.Errorf("retry customer = %+v, want original customer", resent.Customer)
	}
}

func TestSubmitterRetryOfConfirmedIsNoop(t *testing.T) {
	svc := &MockOrderService{
		SubmitOrderFunc: func(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
			return &SubmitResult{Outcome: "created", Order: orderSnap("o1", "7", "preparing")}, nil
		},
	}
	sub, cart, session, _ := newTestSubmitter(t, svc)
	ctx := context.Background()

	session.SetTable(ctx, "7")
	cart.Use(ctx, "7")
	cart.AddItem(ctx, event.Item{ProductRef: "paneer-tikka", UnitPrice: 180, Quantity: 2})

	first, _ := sub.Submit(ctx, "", nil)

	retried, err := sub.Retry(ctx, first.Token)
	if err != nil {
		t.Fatalf("Retry() error: %v", err)
	}
	if retried.State != SubmissionConfirmed {
		t.Errorf("state = %q, want confirmed", retried.State)
	}
	if len(svc.SubmitCalls) != 1 {
		t.Errorf("network calls = %d, want 1", len(svc.SubmitCalls))
	}
}

func TestSubmitterRetryUnknownToken(t *testing.T) {
	sub, _, _, _ := newTestSubmitter(t, &MockOrderService{})

	if _, err := sub.Retry(context.Background(), "ghost"); err == nil {
		t.Error("expected error for unknown token")
	}
}
