package notify

import (
	"context"
	"errors"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/ports"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakePublisher struct {
	errs []error
	keys []string
	msgs []Message
}

func (f *fakePublisher) PublishJSON(_ context.Context, key string, v any) error {
	f.keys = append(f.keys, key)
	f.msgs = append(f.msgs, v.(Message))
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func newTestNotifier(pub EventPublisher) *EventNotifier {
	n := NewEventNotifier(pub)
	n.backoff = time.Millisecond
	return n
}

var ana = domain.Contact{Name: "Ana", Email: "ana@example.com"}

func TestNotifyPublishesEvent(t *testing.T) {
	pub := &fakePublisher{}
	n := newTestNotifier(pub)

	err := n.Notify(context.Background(), ana, ports.EventReadyForPickup, map[string]any{"pickup_code": "ABC234"})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(pub.keys) != 1 || pub.keys[0] != ports.EventReadyForPickup {
		t.Fatalf("routing keys = %v", pub.keys)
	}
	msg := pub.msgs[0]
	if msg.To.Email != ana.Email || msg.Payload["pickup_code"] != "ABC234" || msg.SentAt.IsZero() {
		t.Fatalf("message = %+v", msg)
	}
}

func TestNotifyRetriesTransientErrors(t *testing.T) {
	pub := &fakePublisher{errs: []error{amqp.ErrClosed, &amqp.Error{Code: 320, Recover: true}}}
	n := newTestNotifier(pub)

	if err := n.Notify(context.Background(), ana, ports.EventExpired, nil); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(pub.keys) != 3 {
		t.Fatalf("publish attempts = %d, want 3", len(pub.keys))
	}
}

func TestNotifyGivesUp(t *testing.T) {
	permanent := &amqp.Error{Code: 403, Reason: "ACCESS_REFUSED"}
	pub := &fakePublisher{errs: []error{permanent}}
	n := newTestNotifier(pub)

	err := n.Notify(context.Background(), ana, ports.EventPickedUp, nil)
	if !errors.Is(err, permanent) {
		t.Fatalf("err = %v, want permanent error", err)
	}
	if len(pub.keys) != 1 {
		t.Fatalf("publish attempts = %d, want 1", len(pub.keys))
	}

	pub = &fakePublisher{errs: []error{amqp.ErrClosed, amqp.ErrClosed, amqp.ErrClosed, amqp.ErrClosed}}
	n = newTestNotifier(pub)
	if err := n.Notify(context.Background(), ana, ports.EventPickedUp, nil); !errors.Is(err, amqp.ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if len(pub.keys) != 3 {
		t.Fatalf("publish attempts = %d, want 3", len(pub.keys))
	}
}

func TestNotifyHonoursCancelledContext(t *testing.T) {
	pub := &fakePublisher{}
	n := newTestNotifier(pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := n.Notify(ctx, ana, ports.EventCancelled, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(pub.keys) != 0 {
		t.Fatalf("published despite cancelled context")
	}
}
