package board

import (
	"context"
	"sync"

	"github.com/appetiteclub/apt"
)

// StreamEvent is a typed payload on its way to connected SSE clients.
type StreamEvent struct {
	Name string
	Data []byte
}

// Broadcaster fans events out to SSE subscribers. Slow subscribers get
// events dropped rather than stalling the rest; a dropped event is fine
// because every payload is a full snapshot and the client reconciles on
// reconnect anyway.
type Broadcaster struct {
	logger apt.Logger

	mu          sync.RWMutex
	subscribers map[string]chan StreamEvent
}

func NewBroadcaster(logger apt.Logger) *Broadcaster {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Broadcaster{
		logger:      logger,
		subscribers: make(map[string]chan StreamEvent),
	}
}

func (b *Broadcaster) Subscribe(subscriberID string) <-chan StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan StreamEvent, 100)
	b.subscribers[subscriberID] = ch

	b.logger.Info("new SSE subscriber", "subscriber_id", subscriberID, "total_subscribers", len(b.subscribers))
	return ch
}

func (b *Broadcaster) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[subscriberID]; ok {
		close(ch)
		delete(b.subscribers, subscriberID)
		b.logger.Info("SSE subscriber disconnected", "subscriber_id", subscriberID, "total_subscribers", len(b.subscribers))
	}
}

func (b *Broadcaster) Broadcast(evt StreamEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subscriberID, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			// Channel full, subscriber too slow - skip this event
			b.logger.Info("subscriber channel full, dropping event", "subscriber_id", subscriberID, "event", evt.Name)
		}
	}
}

func (b *Broadcaster) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
	return nil
}
