package pkg

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt/events"
	"github.com/nats-io/nats.go"
)

// connectOptions keep the channel alive for the process lifetime: the client
// reconnects forever on drop and replays subscriptions on the new connection.
// Handlers must therefore be idempotent; no delivery ordering is assumed.
func connectOptions() []nats.Option {
	return []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, connectOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	return p.conn.Publish(topic, msg)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

type NATSSubscriber struct {
	conn *nats.Conn
}

func NewNATSSubscriber(url string) (*NATSSubscriber, error) {
	conn, err := nats.Connect(url, connectOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSubscriber{conn: conn}, nil
}

func (s *NATSSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	_, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		// Handler errors are the handler's concern to log: this channel
		// never redelivers, missed state converges via refetch.
		_ = handler(ctx, msg.Data)
	})
	return err
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
