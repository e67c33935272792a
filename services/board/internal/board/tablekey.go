package board

import (
	"context"
	"sync"

	"github.com/appetiteclub/apt"

	"github.com/dinesync/dinesync/pkg"
	"github.com/dinesync/dinesync/services/board/internal/cache"
)

// Durable cache keys owned by the session.
const (
	keyLastTable  = "last_table"
	flagKeyPrefix = "flag_"
)

// LinkParams are the recognized entry-link parameters. Mode wins over the
// table parameter so a takeaway link with a stale table attached still lands
// on the takeaway identity.
type LinkParams struct {
	Mode  string
	Table string
	Order string
	From  string
}

// Resolution is the outcome of resolving link parameters against the session.
// An unresolved table key stays empty: the caller prompts instead of guessing.
type Resolution struct {
	TableKey   string `json:"table_key"`
	Resolved   bool   `json:"resolved"`
	MergeOrder string `json:"merge_order,omitempty"`
	Source     string `json:"source,omitempty"`
}

// Session tracks which table identity the board is currently acting as and
// persists it across restarts. Onboarding-style one-shot flags live here too.
type Session struct {
	store  cache.Store
	logger apt.Logger

	mu       sync.RWMutex
	tableKey string
}

func NewSession(store cache.Store, logger apt.Logger) *Session {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Session{
		store:  store,
		logger: logger,
	}
}

// Warm restores the last active table identity from the durable cache.
func (s *Session) Warm(ctx context.Context) {
	var last string
	ok, err := s.store.Get(ctx, keyLastTable, &last)
	if err != nil {
		s.logger.Error("cannot restore last table", "error", err)
		return
	}
	if ok && last != "" {
		s.mu.Lock()
		s.tableKey = last
		s.mu.Unlock()
		s.logger.Info("restored table identity", "table_key", last)
	}
}

// Resolve turns entry-link parameters into a table identity. Precedence:
// explicit mode, then a numeric table parameter, then the remembered last
// table. Anything else is unresolved.
func (s *Session) Resolve(ctx context.Context, params LinkParams) Resolution {
	res := Resolution{
		MergeOrder: params.Order,
		Source:     params.From,
	}

	switch params.Mode {
	case "takeaway":
		res.TableKey = pkg.Takeaway
		res.Resolved = true
		return res
	case "delivery":
		res.TableKey = pkg.Delivery
		res.Resolved = true
		return res
	}

	if key := pkg.NormalizeTableKey(params.Table); key != "" {
		res.TableKey = key
		res.Resolved = true
		return res
	}

	var last string
	if ok, err := s.store.Get(ctx, keyLastTable, &last); err == nil && ok && last != "" {
		res.TableKey = last
		res.Resolved = true
		res.Source = "remembered"
		return res
	}

	return res
}

// SetTable makes key the active identity and persists it. The previous
// table's cart stays durably stored under its own key, so switching back
// later restores it untouched.
func (s *Session) SetTable(ctx context.Context, key string) error {
	s.mu.Lock()
	s.tableKey = key
	s.mu.Unlock()

	if err := s.store.Set(ctx, keyLastTable, key); err != nil {
		s.logger.Error("cannot persist last table", "error", err, "table_key", key)
		return err
	}
	return nil
}

func (s *Session) TableKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tableKey
}

// Flag reads a one-shot boolean flag (onboarding seen, promo seen).
func (s *Session) Flag(ctx context.Context, name string) bool {
	var v bool
	ok, err := s.store.Get(ctx, flagKeyPrefix+name, &v)
	if err != nil {
		s.logger.Error("cannot read session flag", "error", err, "flag", name)
		return false
	}
	return ok && v
}

func (s *Session) SetFlag(ctx context.Context, name string, v bool) error {
	return s.store.Set(ctx, flagKeyPrefix+name, v)
}
