package board

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/appetiteclub/apt"

	"github.com/dinesync/dinesync/pkg/event"
)

// Submission states. A submission that never reached the network stays out
// of this tracker entirely: validation failures are reported inline.
const (
	SubmissionPending   = "pending"
	SubmissionConfirmed = "confirmed"
	SubmissionFailed    = "failed"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrTableUnresolved = errors.New("no table selected")
)

// Submission tracks one checkout attempt end to end. The token doubles as
// the idempotency key: retrying a failed submission reuses it, so the order
// service can detect a request whose response was lost.
type Submission struct {
	Token     string               `json:"token"`
	TableKey  string               `json:"table_key"`
	State     string               `json:"state"`
	Notes     string               `json:"notes,omitempty"`
	Customer  *event.CustomerInfo  `json:"customer,omitempty"`
	Outcome   string               `json:"outcome,omitempty"`
	Error     string               `json:"error,omitempty"`
	Order     *event.OrderSnapshot `json:"order,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Submitter is the only path from cart to order service. It validates before
// touching the network, keeps a tri-state record per attempt, and on
// confirmation applies the authoritative order locally and clears the cart.
type Submitter struct {
	svc      OrderService
	cart     *Cart
	session  *Session
	registry *Registry
	logger   apt.Logger

	mu          sync.RWMutex
	submissions map[string]*Submission
}

func NewSubmitter(svc OrderService, cart *Cart, session *Session, registry *Registry, logger apt.Logger) *Submitter {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Submitter{
		svc:         svc,
		cart:        cart,
		session:     session,
		registry:    registry,
		logger:      logger,
		submissions: make(map[string]*Submission),
	}
}

// Submit sends the active cart to the order service. Notes and customer info
// ride along unchanged. The returned submission is a copy; poll Status with
// its token for later updates.
func (s *Submitter) Submit(ctx context.Context, notes string, customer *event.CustomerInfo) (Submission, error) {
	tableKey := s.session.TableKey()
	if tableKey == "" {
		return Submission{}, ErrTableUnresolved
	}
	if s.cart.Empty() {
		return Submission{}, ErrEmptyCart
	}

	token := apt.GenerateNewID().String()
	return s.submit(ctx, token, tableKey, notes, customer)
}

// Retry re-sends a failed submission under its original token. The cart must
// still hold the items: a confirmed submission cannot be retried.
func (s *Submitter) Retry(ctx context.Context, token string) (Submission, error) {
	s.mu.RLock()
	prev, ok := s.submissions[token]
	s.mu.RUnlock()

	if !ok {
		return Submission{}, errors.New("unknown submission token")
	}
	if prev.State != SubmissionFailed {
		return *prev, nil
	}
	if s.cart.Empty() {
		return Submission{}, ErrEmptyCart
	}

	// Re-send with everything the user supplied the first time.
	return s.submit(ctx, token, prev.TableKey, prev.Notes, prev.Customer)
}

func (s *Submitter) submit(ctx context.Context, token, tableKey, notes string, customer *event.CustomerInfo) (Submission, error) {
	now := time.Now()
	sub := &Submission{
		Token:     token,
		TableKey:  tableKey,
		State:     SubmissionPending,
		Notes:     notes,
		Customer:  customer,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.submissions[token] = sub
	s.mu.Unlock()

	req := SubmitRequest{
		TableKey:    tableKey,
		Items:       s.cart.Lines(),
		Notes:       notes,
		Customer:    customer,
		ClientToken: token,
	}

	result, err := s.svc.SubmitOrder(ctx, req)
	if err != nil {
		s.logger.Error("submission failed", "error", err, "token", token, "table_key", tableKey)
		s.mu.Lock()
		sub.State = SubmissionFailed
		sub.Error = err.Error()
		sub.UpdatedAt = time.Now()
		copied := *sub
		s.mu.Unlock()
		return copied, nil
	}

	// The response order is authoritative: it replaces any local copy by
	// identity, then the cart is done.
	s.registry.ApplyUpdated(ctx, result.Order)
	if err := s.cart.Clear(ctx); err != nil {
		s.logger.Error("cannot clear cart after submission", "error", err, "table_key", tableKey)
	}

	s.mu.Lock()
	sub.State = SubmissionConfirmed
	sub.Outcome = result.Outcome
	sub.Order = &result.Order
	sub.UpdatedAt = time.Now()
	copied := *sub
	s.mu.Unlock()

	s.logger.Info("submission confirmed", "token", token, "outcome", result.Outcome, "order_id", result.Order.ID)
	return copied, nil
}

// Status returns the tracked state for a submission token.
func (s *Submitter) Status(token string) (Submission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[token]
	if !ok {
		return Submission{}, false
	}
	return *sub, true
}
