package board

import (
	"context"
	"sync"

	"github.com/appetiteclub/apt"

	"github.com/dinesync/dinesync/pkg/event"
	"github.com/dinesync/dinesync/services/board/internal/cache"
)

const cartKeyPrefix = "cart_"

// Cart holds the pending, not-yet-submitted items for the active table.
// Every mutation is written through to the durable cache before returning, so
// a restart mid-session loses nothing. Each table key owns its own durable
// record; switching tables swaps the view, it never merges carts.
type Cart struct {
	store  cache.Store
	logger apt.Logger

	mu       sync.Mutex
	tableKey string
	lines    []event.Item
}

func NewCart(store cache.Store, logger apt.Logger) *Cart {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Cart{
		store:  store,
		logger: logger,
	}
}

// Use points the cart at a table key and loads its stored lines. A miss or a
// corrupt record starts the table with an empty cart.
func (c *Cart) Use(ctx context.Context, tableKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tableKey = tableKey
	c.lines = nil

	if tableKey == "" {
		return
	}

	var lines []event.Item
	ok, err := c.store.Get(ctx, cartKeyPrefix+tableKey, &lines)
	if err != nil {
		c.logger.Error("cannot load cart", "error", err, "table_key", tableKey)
		return
	}
	if ok {
		c.lines = lines
	}
}

func (c *Cart) TableKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tableKey
}

// AddItem appends an item, folding it into an existing line when the product
// reference matches.
func (c *Cart) AddItem(ctx context.Context, item event.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := false
	for i := range c.lines {
		if c.lines[i].ProductRef == item.ProductRef {
			c.lines[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		c.lines = append(c.lines, item)
	}

	return c.persistLocked(ctx)
}

// UpdateQuantity sets a line's quantity; anything below 1 removes the line.
func (c *Cart) UpdateQuantity(ctx context.Context, productRef string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].ProductRef != productRef {
			continue
		}
		if quantity < 1 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		} else {
			c.lines[i].Quantity = quantity
		}
		return c.persistLocked(ctx)
	}
	return nil
}

func (c *Cart) RemoveItem(ctx context.Context, productRef string) error {
	return c.UpdateQuantity(ctx, productRef, 0)
}

// Clear empties the cart and removes its durable record.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
	if c.tableKey == "" {
		return nil
	}
	return c.store.Delete(ctx, cartKeyPrefix+c.tableKey)
}

func (c *Cart) Lines() []event.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Item(nil), c.lines...)
}

func (c *Cart) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// Totals renders the running bill preview with the same formula the order
// service applies, so the preview matches the eventual bill.
func (c *Cart) Totals() event.BillTotals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return event.ComputeBillTotals(c.lines)
}

func (c *Cart) persistLocked(ctx context.Context) error {
	if c.tableKey == "" {
		return nil
	}
	if err := c.store.Set(ctx, cartKeyPrefix+c.tableKey, c.lines); err != nil {
		c.logger.Error("cannot persist cart", "error", err, "table_key", c.tableKey)
		return err
	}
	return nil
}
