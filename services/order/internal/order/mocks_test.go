package order

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dinesync/dinesync/pkg/enums/orderstatus"
)

// MockPublisher is a mock implementation of events.Publisher for testing
type MockPublisher struct {
	mu          sync.Mutex
	PublishFunc func(ctx context.Context, topic string, msg []byte) error
	Published   []PublishedMessage
}

type PublishedMessage struct {
	Topic   string
	Payload []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, PublishedMessage{Topic: topic, Payload: msg})
	return nil
}

func (m *MockPublisher) TopicCount(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, p := range m.Published {
		if p.Topic == topic {
			count++
		}
	}
	return count
}

// MockOrderRepo is an in-memory OrderRepo for testing
type MockOrderRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*Order

	CreateFunc                func(ctx context.Context, order *Order) error
	GetFunc                   func(ctx context.Context, id uuid.UUID) (*Order, error)
	SaveFunc                  func(ctx context.Context, order *Order) error
	FindOpenByTableFunc       func(ctx context.Context, tableKey string) (*Order, error)
	FindBySubmissionTokenFunc func(ctx context.Context, tableKey, token string) (*Order, error)
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{
		orders: make(map[uuid.UUID]*Order),
	}
}

func (m *MockOrderRepo) Create(ctx context.Context, o *Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

func (m *MockOrderRepo) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return o, nil
}

func (m *MockOrderRepo) List(ctx context.Context, limit int) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*Order
	for _, o := range m.orders {
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockOrderRepo) ListByTable(ctx context.Context, tableKey string) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*Order
	for _, o := range m.orders {
		if o.TableKey == tableKey {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *MockOrderRepo) FindOpenByTable(ctx context.Context, tableKey string) (*Order, error) {
	if m.FindOpenByTableFunc != nil {
		return m.FindOpenByTableFunc(ctx, tableKey)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.TableKey == tableKey && !orderstatus.IsTerminal(o.Status) {
			return o, nil
		}
	}
	return nil, nil
}

func (m *MockOrderRepo) FindBySubmissionToken(ctx context.Context, tableKey, token string) (*Order, error) {
	if m.FindBySubmissionTokenFunc != nil {
		return m.FindBySubmissionTokenFunc(ctx, tableKey, token)
	}
	if token == "" {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.TableKey == tableKey && o.HasSubmissionToken(token) {
			return o, nil
		}
	}
	return nil, nil
}

func (m *MockOrderRepo) Save(ctx context.Context, o *Order) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

func (m *MockOrderRepo) OpenCountForTable(tableKey string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, o := range m.orders {
		if o.TableKey == tableKey && !orderstatus.IsTerminal(o.Status) {
			count++
		}
	}
	return count
}

// MockBillRepo is an in-memory BillRepo keyed by order reference
type MockBillRepo struct {
	mu    sync.RWMutex
	bills map[uuid.UUID]*Bill

	UpsertFunc func(ctx context.Context, bill *Bill) error
}

func NewMockBillRepo() *MockBillRepo {
	return &MockBillRepo{
		bills: make(map[uuid.UUID]*Bill),
	}
}

func (m *MockBillRepo) GetByOrderRef(ctx context.Context, orderRef uuid.UUID) (*Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bills[orderRef]
	if !ok {
		return nil, nil
	}
	return b, nil
}

func (m *MockBillRepo) Upsert(ctx context.Context, b *Bill) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, b)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.bills[b.OrderRef]; ok {
		existing.Totals = b.Totals
		existing.TableKey = b.TableKey
		existing.UpdatedAt = b.UpdatedAt
		return nil
	}
	m.bills[b.OrderRef] = b
	return nil
}

func (m *MockBillRepo) List(ctx context.Context, limit int) ([]*Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*Bill
	for _, b := range m.bills {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockBillRepo) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bills)
}
