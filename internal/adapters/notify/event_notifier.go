package notify

import (
	"context"
	"errors"
	"fmt"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/ports"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventPublisher is the transport used by EventNotifier; *Publisher satisfies it.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Message is the body published for every notification. The event name is
// also the routing key.
type Message struct {
	Event   string         `json:"event"`
	To      Recipient      `json:"to"`
	Payload map[string]any `json:"payload"`
	SentAt  time.Time      `json:"sent_at"`
}

// EventNotifier hands notifications to a message broker for delivery by a
// downstream notification service.
type EventNotifier struct {
	pub      EventPublisher
	attempts int
	backoff  time.Duration
}

var _ ports.Notifier = (*EventNotifier)(nil)

func NewEventNotifier(pub EventPublisher) *EventNotifier {
	return &EventNotifier{pub: pub, attempts: 3, backoff: 100 * time.Millisecond}
}

func (n *EventNotifier) Notify(ctx context.Context, to domain.Contact, event string, payload map[string]any) error {
	msg := Message{
		Event:   event,
		To:      Recipient{Name: to.Name, Email: to.Email, Phone: to.Phone},
		Payload: payload,
		SentAt:  time.Now().UTC(),
	}

	if err := n.publishWithRetry(ctx, event, msg); err != nil {
		return fmt.Errorf("notify %s: %w", event, err)
	}
	return nil
}

// publishWithRetry retries transient broker failures using exponential
// backoff while respecting context cancellation.
func (n *EventNotifier) publishWithRetry(ctx context.Context, key string, msg Message) error {
	backoff := n.backoff
	var lastErr error

	for attempt := 1; attempt <= n.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := n.pub.PublishJSON(ctx, key, msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) || attempt == n.attempts {
			return lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	return lastErr
}

func retryable(err error) bool {
	if errors.Is(err, amqp.ErrClosed) {
		return true
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return amqpErr.Recover
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
