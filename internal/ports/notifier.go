package ports

import (
	"context"
	"locker-reservation-service/internal/domain"
)

// Notification events emitted by the lifecycle.
const (
	EventReadyForPickup = "parcel.ready_for_pickup"
	EventPickedUp       = "parcel.picked_up"
	EventExpired        = "parcel.expired"
	EventCancelled      = "parcel.cancelled"
)

// Port: outbound notification to a parcel contact.
type Notifier interface {
	Notify(ctx context.Context, to domain.Contact, event string, payload map[string]any) error
}
