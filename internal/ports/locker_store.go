package ports

import (
	"context"
	"locker-reservation-service/internal/domain"
	"time"
)

// Read access to slots, parcels and reservations. Missing rows surface as
// errors wrapping domain.ErrNotFound.
type LockerReader interface {
	GetLocation(ctx context.Context, locationID string) (*domain.Location, error)
	ListLocations(ctx context.Context) ([]*domain.Location, error)
	GetSlot(ctx context.Context, slotID string) (*domain.Slot, error)
	GetParcel(ctx context.Context, parcelID string) (*domain.Parcel, error)
	GetReservation(ctx context.Context, reservationID string) (*domain.Reservation, error)

	// Return the ACTIVE or DELIVERED reservation of a parcel, or nil.
	FindOpenReservationForParcel(ctx context.Context, parcelID string) (*domain.Reservation, error)
	// Return the DELIVERED reservation at a location holding code, or nil.
	FindDeliveredByCode(ctx context.Context, locationID, code string) (*domain.Reservation, error)
	// Report whether any reservation currently holds code.
	PickupCodeInUse(ctx context.Context, code string) (bool, error)

	// List AVAILABLE slots of one size at a location, in a stable order.
	ListSlotCandidates(ctx context.Context, locationID string, size domain.Size, limit int) ([]*domain.Slot, error)
	// Count AVAILABLE slots per size at a location.
	CountAvailable(ctx context.Context, locationID string) (map[domain.Size]int, error)
	// List open reservations whose current deadline is at or before now.
	ListStaleReservations(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error)
}

// Port: transactional persistence for the reservation core.
type LockerStore interface {
	LockerReader
	// Run fn in one transaction; it commits only when fn returns nil.
	InTx(ctx context.Context, fn func(tx LockerTx) error) error
}

// Mutations available inside a transaction. Every update is guarded on the
// expected current state and returns an error wrapping domain.ErrConflict when
// the guard does not match.
type LockerTx interface {
	LockerReader

	InsertLocation(ctx context.Context, l *domain.Location) error
	InsertSlot(ctx context.Context, s *domain.Slot) error
	InsertParcel(ctx context.Context, p *domain.Parcel) error
	InsertReservation(ctx context.Context, r *domain.Reservation) error

	// AVAILABLE -> RESERVED, tagging the slot with reservationID.
	ClaimSlot(ctx context.Context, slotID, reservationID string, now time.Time) error
	// RESERVED -> OCCUPIED for the holding reservation.
	OccupySlot(ctx context.Context, slotID, reservationID string, now time.Time) error
	// RESERVED/OCCUPIED -> AVAILABLE for the holding reservation.
	ReleaseSlot(ctx context.Context, slotID, reservationID string, now time.Time) error
	// Unheld status change, e.g. AVAILABLE <-> MAINTENANCE.
	SetSlotStatus(ctx context.Context, slotID string, from, to domain.SlotStatus, now time.Time) error

	UpdateParcelStatus(ctx context.Context, parcelID string, from, to domain.ParcelStatus, now time.Time) error
	// Persist r when the stored status still equals expected.
	UpdateReservation(ctx context.Context, r *domain.Reservation, expected domain.ReservationStatus) error
}
