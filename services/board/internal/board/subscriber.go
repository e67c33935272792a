package board

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"

	"github.com/dinesync/dinesync/pkg/event"
)

// SSE event names carried on the wire to connected clients.
const (
	StreamOrderCreated = "order-created"
	StreamOrderUpdated = "order-updated"
	StreamBillUpdated  = "bill-updated"
	StreamItemsAdded   = "items-added"
)

// EventSubscriber is the single ingress for authoritative events. Everything
// the bus delivers funnels through here into the registry, ledger and
// notifications, then out to SSE clients. Malformed payloads are logged and
// dropped; returning an error would only trigger a redelivery of the same
// broken bytes.
type EventSubscriber struct {
	subscriber    events.Subscriber
	registry      *Registry
	ledger        *Ledger
	notifications *Notifications
	broadcaster   *Broadcaster
	logger        apt.Logger
}

func NewEventSubscriber(
	subscriber events.Subscriber,
	registry *Registry,
	ledger *Ledger,
	notifications *Notifications,
	broadcaster *Broadcaster,
	logger apt.Logger,
) *EventSubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &EventSubscriber{
		subscriber:    subscriber,
		registry:      registry,
		ledger:        ledger,
		notifications: notifications,
		broadcaster:   broadcaster,
		logger:        logger,
	}
}

func (s *EventSubscriber) Start(ctx context.Context) error {
	topics := map[string]events.HandlerFunc{
		event.OrdersTopic:     s.HandleOrderEvent,
		event.BillsTopic:      s.HandleBillEvent,
		event.ItemsAddedTopic: s.HandleItemsAdded,
	}

	for topic, handler := range topics {
		if err := s.subscriber.Subscribe(ctx, topic, handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		s.logger.Info("subscribed to topic", "topic", topic)
	}
	return nil
}

func (s *EventSubscriber) HandleOrderEvent(ctx context.Context, msg []byte) error {
	var evt event.OrderEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Errorf("dropping malformed order event: %v", err)
		return nil
	}

	switch evt.EventType {
	case event.EventOrderCreated:
		s.registry.ApplyCreated(ctx, evt.Order)
		s.broadcast(StreamOrderCreated, evt.Order)
	case event.EventOrderUpdated:
		s.registry.ApplyUpdated(ctx, evt.Order)
		s.broadcast(StreamOrderUpdated, evt.Order)
	default:
		s.logger.Infof("unknown order event type: %s", evt.EventType)
	}
	return nil
}

func (s *EventSubscriber) HandleBillEvent(ctx context.Context, msg []byte) error {
	var evt event.BillEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Errorf("dropping malformed bill event: %v", err)
		return nil
	}

	switch evt.EventType {
	case event.EventBillCreated, event.EventBillUpdated:
		s.ledger.Apply(ctx, evt.Bill)
		s.broadcast(StreamBillUpdated, evt.Bill)
	default:
		s.logger.Infof("unknown bill event type: %s", evt.EventType)
	}
	return nil
}

func (s *EventSubscriber) HandleItemsAdded(ctx context.Context, msg []byte) error {
	var evt event.ItemsAddedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Errorf("dropping malformed items added event: %v", err)
		return nil
	}

	notice := s.notifications.Push(evt)
	s.broadcast(StreamItemsAdded, notice)
	return nil
}

func (s *EventSubscriber) broadcast(name string, payload any) {
	if s.broadcaster == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Errorf("cannot marshal stream event %s: %v", name, err)
		return
	}
	s.broadcaster.Broadcast(StreamEvent{Name: name, Data: data})
}
