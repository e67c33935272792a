package board

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"

	"github.com/dinesync/dinesync/pkg/enums/orderstatus"
	"github.com/dinesync/dinesync/pkg/event"
	"github.com/dinesync/dinesync/services/board/internal/cache"
)

const keyOrders = "orders"

// Registry maintains the board's local mirror of orders, newest first. The
// order service owns the truth; the registry only ever applies full snapshots
// it receives from it, so applying the same event twice, or an update before
// its create, converges to the same state.
type Registry struct {
	mu     sync.RWMutex
	orders []event.OrderSnapshot

	store  cache.Store
	svc    OrderService
	stream events.StreamConsumer
	logger apt.Logger
}

func NewRegistry(store cache.Store, svc OrderService, stream events.StreamConsumer, logger apt.Logger) *Registry {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Registry{
		store:  store,
		svc:    svc,
		stream: stream,
		logger: logger,
	}
}

// Warm rebuilds the mirror on startup: hydrate from the durable cache for an
// instant render, then reconcile against the order service, falling back to
// event replay when the service is unreachable.
func (r *Registry) Warm(ctx context.Context) {
	var cached []event.OrderSnapshot
	if ok, err := r.store.Get(ctx, keyOrders, &cached); err != nil {
		r.logger.Error("cannot hydrate orders from cache", "error", err)
	} else if ok {
		r.mu.Lock()
		r.orders = cached
		r.mu.Unlock()
		r.logger.Info("orders hydrated from cache", "count", len(cached))
	}

	if r.svc != nil {
		fresh, err := r.svc.ListOrders(ctx)
		if err == nil {
			r.mu.Lock()
			r.orders = fresh
			r.mu.Unlock()
			r.persist(ctx)
			r.logger.Info("orders reconciled from order service", "count", len(fresh))
			return
		}
		r.logger.Info("order service refetch failed, trying stream replay", "error", err)
	}

	if r.stream != nil {
		r.warmFromStream(ctx)
	}
}

// warmFromStream replays retained order events to rebuild the mirror when
// both the cache and the authoritative refetch came up empty-handed.
func (r *Registry) warmFromStream(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Info("stream replay panic recovered", "panic", rec)
		}
	}()

	messages, err := r.stream.Fetch(ctx, 10000)
	if err != nil {
		r.logger.Error("stream replay failed", "error", err)
		return
	}

	for _, msg := range messages {
		var evt event.OrderEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			continue
		}
		r.apply(evt.Order)
	}

	r.persist(ctx)
	r.logger.Info("orders rebuilt from stream replay", "count", r.Count())
}

// ApplyCreated records a newly created order. Replays of an already-known
// order are ignored.
func (r *Registry) ApplyCreated(ctx context.Context, snap event.OrderSnapshot) {
	if r.apply(snap) {
		r.persist(ctx)
	}
}

// ApplyUpdated replaces the stored snapshot wholesale. An update for an order
// the registry never saw is inserted, which covers a missed create.
func (r *Registry) ApplyUpdated(ctx context.Context, snap event.OrderSnapshot) {
	r.mu.Lock()
	replaced := false
	for i := range r.orders {
		if r.orders[i].ID == snap.ID {
			r.orders[i] = snap
			replaced = true
			break
		}
	}
	if !replaced {
		r.orders = append([]event.OrderSnapshot{snap}, r.orders...)
	}
	r.mu.Unlock()

	r.persist(ctx)
}

// apply inserts snap at the front if its ID is unknown. Reports whether the
// registry changed.
func (r *Registry) apply(snap event.OrderSnapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.orders {
		if r.orders[i].ID == snap.ID {
			return false
		}
	}
	r.orders = append([]event.OrderSnapshot{snap}, r.orders...)
	return true
}

func (r *Registry) Orders() []event.OrderSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]event.OrderSnapshot(nil), r.orders...)
}

func (r *Registry) Get(id string) (event.OrderSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.orders {
		if r.orders[i].ID == id {
			return r.orders[i], true
		}
	}
	return event.OrderSnapshot{}, false
}

// OpenForTable returns the table's current non-terminal order, if any.
func (r *Registry) OpenForTable(tableKey string) (event.OrderSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.orders {
		if r.orders[i].TableKey == tableKey && !orderstatus.IsTerminal(r.orders[i].Status) {
			return r.orders[i], true
		}
	}
	return event.OrderSnapshot{}, false
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

func (r *Registry) persist(ctx context.Context) {
	r.mu.RLock()
	snapshot := append([]event.OrderSnapshot(nil), r.orders...)
	r.mu.RUnlock()

	if err := r.store.Set(ctx, keyOrders, snapshot); err != nil {
		r.logger.Error("cannot persist orders", "error", err)
	}
}
