package board

import (
	"context"
	"sync"

	"github.com/appetiteclub/apt"

	"github.com/dinesync/dinesync/pkg/event"
	"github.com/dinesync/dinesync/services/board/internal/cache"
)

const keyBills = "cachedBills"

// Ledger mirrors the bills the board has seen. Bill events arrive at least
// once and a bill can be re-emitted after every order mutation, so the ledger
// keys entries by order reference and only ever keeps the latest per order.
type Ledger struct {
	mu    sync.RWMutex
	bills []event.BillSnapshot

	store  cache.Store
	svc    OrderService
	logger apt.Logger
}

func NewLedger(store cache.Store, svc OrderService, logger apt.Logger) *Ledger {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Ledger{
		store:  store,
		svc:    svc,
		logger: logger,
	}
}

// Warm hydrates the ledger from the durable cache for an instant render, then
// reconciles against the order service when it is reachable. Stored entries
// from older versions may carry duplicates, so the loaded set is deduped on
// the way in.
func (l *Ledger) Warm(ctx context.Context) {
	var cached []event.BillSnapshot
	if ok, err := l.store.Get(ctx, keyBills, &cached); err != nil {
		l.logger.Error("cannot hydrate bills from cache", "error", err)
	} else if ok {
		l.mu.Lock()
		l.bills = Dedupe(cached)
		l.mu.Unlock()
		l.logger.Info("bills hydrated from cache", "count", len(cached))
	}

	if l.svc == nil {
		return
	}
	fresh, err := l.svc.ListBills(ctx)
	if err != nil {
		l.logger.Info("bill refetch failed, keeping cached view", "error", err)
		return
	}
	l.Reconcile(ctx, fresh)
	l.logger.Info("bills reconciled from order service", "count", len(fresh))
}

// Apply records a bill snapshot, replacing any previous entry for the same
// order. Unknown bills are inserted at the front.
func (l *Ledger) Apply(ctx context.Context, snap event.BillSnapshot) {
	key := snap.DedupeKey()

	l.mu.Lock()
	replaced := false
	for i := range l.bills {
		if l.bills[i].DedupeKey() == key {
			l.bills[i] = snap
			replaced = true
			break
		}
	}
	if !replaced {
		l.bills = append([]event.BillSnapshot{snap}, l.bills...)
	}
	snapshot := append([]event.BillSnapshot(nil), l.bills...)
	l.mu.Unlock()

	if err := l.store.Set(ctx, keyBills, snapshot); err != nil {
		l.logger.Error("cannot persist bills", "error", err)
	}
}

// Reconcile replaces the ledger with an authoritative bill list.
func (l *Ledger) Reconcile(ctx context.Context, bills []event.BillSnapshot) {
	deduped := Dedupe(bills)

	l.mu.Lock()
	l.bills = deduped
	l.mu.Unlock()

	if err := l.store.Set(ctx, keyBills, deduped); err != nil {
		l.logger.Error("cannot persist bills", "error", err)
	}
}

// Bills returns the deduped projection. Read paths never see duplicates even
// if a future code path lets one into the stored slice.
func (l *Ledger) Bills() []event.BillSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Dedupe(l.bills)
}

func (l *Ledger) Count() int {
	return len(l.Bills())
}

// Dedupe keeps the first occurrence per order reference, preserving order.
// Running it on already-deduped input is a no-op.
func Dedupe(bills []event.BillSnapshot) []event.BillSnapshot {
	seen := make(map[string]bool, len(bills))
	out := make([]event.BillSnapshot, 0, len(bills))
	for _, b := range bills {
		key := b.DedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
	}
	return out
}
