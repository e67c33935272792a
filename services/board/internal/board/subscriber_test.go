package board

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dinesync/dinesync/pkg/event"
	"github.com/dinesync/dinesync/services/board/internal/cache"
)

func newTestSubscriber(t *testing.T) (*EventSubscriber, *Registry, *Ledger, *Notifications, *Broadcaster) {
	t.Helper()
	registry := NewRegistry(cache.NewMemory(), nil, nil, nil)
	ledger := NewLedger(cache.NewMemory(), nil, nil)
	notifications := NewNotifications()
	broadcaster := NewBroadcaster(nil)
	sub := NewEventSubscriber(nil, registry, ledger, notifications, broadcaster, nil)
	return sub, registry, ledger, notifications, broadcaster
}

func marshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestSubscriberHandleOrderCreated(t *testing.T) {
	sub, registry, _, _, _ := newTestSubscriber(t)

	evt := event.OrderEvent{
		EventType: event.EventOrderCreated,
		Order:     orderSnap("o1", "7", "preparing"),
	}

	if err := sub.HandleOrderEvent(context.Background(), marshal(t, evt)); err != nil {
		t.Fatalf("HandleOrderEvent() error: %v", err)
	}

	if _, ok := registry.Get("o1"); !ok {
		t.Error("expected order in registry")
	}
}

func TestSubscriberHandleOrderUpdated(t *testing.T) {
	sub, registry, _, _, _ := newTestSubscriber(t)
	ctx := context.Background()

	created := event.OrderEvent{EventType: event.EventOrderCreated, Order: orderSnap("o1", "7", "preparing")}
	updated := event.OrderEvent{EventType: event.EventOrderUpdated, Order: orderSnap("o1", "7", "cooking")}

	sub.HandleOrderEvent(ctx, marshal(t, created))
	sub.HandleOrderEvent(ctx, marshal(t, updated))

	got, _ := registry.Get("o1")
	if got.Status != "cooking" {
		t.Errorf("status = %q, want cooking", got.Status)
	}
}

// Out-of-order delivery: an update arriving before its create still lands.
func TestSubscriberUpdateBeforeCreate(t *testing.T) {
	sub, registry, _, _, _ := newTestSubscriber(t)
	ctx := context.Background()

	updated := event.OrderEvent{EventType: event.EventOrderUpdated, Order: orderSnap("o1", "7", "cooking")}
	created := event.OrderEvent{EventType: event.EventOrderCreated, Order: orderSnap("o1", "7", "preparing")}

	sub.HandleOrderEvent(ctx, marshal(t, updated))
	sub.HandleOrderEvent(ctx, marshal(t, created))

	if registry.Count() != 1 {
		t.Fatalf("orders = %d, want 1", registry.Count())
	}
	// The late create must not clobber the newer snapshot.
	got, _ := registry.Get("o1")
	if got.Status != "cooking" {
		t.Errorf("status = %q, want cooking", got.Status)
	}
}

func TestSubscriberDuplicateDelivery(t *testing.T) {
	sub, registry, ledger, _, _ := newTestSubscriber(t)
	ctx := context.Background()

	orderEvt := marshal(t, event.OrderEvent{EventType: event.EventOrderCreated, Order: orderSnap("o1", "7", "preparing")})
	billEvt := marshal(t, event.BillEvent{EventType: event.EventBillCreated, Bill: billSnap("b1", "o1", "7")})

	for i := 0; i < 3; i++ {
		sub.HandleOrderEvent(ctx, orderEvt)
		sub.HandleBillEvent(ctx, billEvt)
	}

	if registry.Count() != 1 {
		t.Errorf("orders = %d, want 1", registry.Count())
	}
	if ledger.Count() != 1 {
		t.Errorf("bills = %d, want 1", ledger.Count())
	}
}

func TestSubscriberMalformedPayloadsDropped(t *testing.T) {
	sub, registry, ledger, notifications, _ := newTestSubscriber(t)
	ctx := context.Background()

	garbage := []byte("{not json")

	// Malformed payloads must not error: an error would trigger redelivery
	// of the same broken bytes.
	if err := sub.HandleOrderEvent(ctx, garbage); err != nil {
		t.Errorf("HandleOrderEvent() error: %v", err)
	}
	if err := sub.HandleBillEvent(ctx, garbage); err != nil {
		t.Errorf("HandleBillEvent() error: %v", err)
	}
	if err := sub.HandleItemsAdded(ctx, garbage); err != nil {
		t.Errorf("HandleItemsAdded() error: %v", err)
	}

	if registry.Count() != 0 || ledger.Count() != 0 || len(notifications.List()) != 0 {
		t.Error("expected no state change from malformed payloads")
	}
}

func TestSubscriberItemsAddedCreatesNotice(t *testing.T) {
	sub, _, _, notifications, broadcaster := newTestSubscriber(t)

	ch := broadcaster.Subscribe("test")
	defer broadcaster.Unsubscribe("test")

	evt := itemsAdded("o1", "7")
	if err := sub.HandleItemsAdded(context.Background(), marshal(t, evt)); err != nil {
		t.Fatalf("HandleItemsAdded() error: %v", err)
	}

	if len(notifications.List()) != 1 {
		t.Fatalf("notices = %d, want 1", len(notifications.List()))
	}

	select {
	case streamEvt := <-ch:
		if streamEvt.Name != StreamItemsAdded {
			t.Errorf("stream event = %q, want %q", streamEvt.Name, StreamItemsAdded)
		}
		var notice Notice
		if err := json.Unmarshal(streamEvt.Data, &notice); err != nil {
			t.Fatalf("decode stream payload: %v", err)
		}
		if notice.OrderID != "o1" {
			t.Errorf("notice order = %q, want o1", notice.OrderID)
		}
	default:
		t.Fatal("expected broadcast stream event")
	}
}

func TestSubscriberBroadcastsOrderEvents(t *testing.T) {
	sub, _, _, _, broadcaster := newTestSubscriber(t)

	ch := broadcaster.Subscribe("test")
	defer broadcaster.Unsubscribe("test")

	evt := event.OrderEvent{EventType: event.EventOrderCreated, Order: orderSnap("o1", "7", "preparing")}
	sub.HandleOrderEvent(context.Background(), marshal(t, evt))

	select {
	case streamEvt := <-ch:
		if streamEvt.Name != StreamOrderCreated {
			t.Errorf("stream event = %q, want %q", streamEvt.Name, StreamOrderCreated)
		}
	default:
		t.Fatal("expected broadcast stream event")
	}
}
