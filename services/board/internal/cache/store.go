package cache

import (
	"context"
	"encoding/json"
	"sync"
)

// Store is the durable key-value cache behind the board's local state. Values
// are JSON documents. Get reports a miss instead of an error when the key is
// absent or the stored value no longer decodes, so callers can always fall
// back to a cold start.
type Store interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Store. It backs tests and serves as the fallback
// when no Redis address is configured.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{
		values: make(map[string][]byte),
	}
}

func (m *Memory) Get(ctx context.Context, key string, out any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.values[key]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		// A corrupt entry is worthless; drop it and report a miss.
		m.mu.Lock()
		delete(m.values, key)
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (m *Memory) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = raw
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Corrupt plants a non-JSON value under key. Test helper for exercising the
// decode-failure path.
func (m *Memory) Corrupt(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = []byte("{corrupt")
}
