package domain

import (
	"fmt"
	"time"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationDelivered ReservationStatus = "DELIVERED"
	ReservationPickedUp  ReservationStatus = "PICKED_UP"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// Open statuses hold a slot; everything else is terminal.
func (s ReservationStatus) Open() bool {
	return s == ReservationActive || s == ReservationDelivered
}

// ParcelStatus is the parcel status that accompanies an open reservation status.
func (s ReservationStatus) ParcelStatus() ParcelStatus {
	switch s {
	case ReservationActive:
		return ParcelReserved
	case ReservationDelivered:
		return ParcelInLocker
	case ReservationPickedUp:
		return ParcelPickedUp
	case ReservationExpired:
		return ParcelExpired
	default:
		return ParcelCancelled
	}
}

// A time-bounded claim binding one parcel to one slot.
//
// Deadlines are exclusive: an action is allowed while now is strictly before
// the deadline. PickupCode is set only while the reservation is DELIVERED.
// Transition methods validate and mutate in memory; persisting the result is
// the caller's job and must be guarded on the previous status.
type Reservation struct {
	ReservationID       string
	ParcelID            string
	SlotID              string
	LocationID          string
	Status              ReservationStatus
	ReservedAt          time.Time
	ReservationDeadline time.Time
	DeliveredAt         *time.Time
	PickupDeadline      *time.Time
	PickupCode          string
	PickedUpAt          *time.Time
	ClosedAt            *time.Time
	Version             int64
}

func NewReservation(id, parcelID, slotID, locationID string, now time.Time, window time.Duration) *Reservation {
	return &Reservation{
		ReservationID:       id,
		ParcelID:            parcelID,
		SlotID:              slotID,
		LocationID:          locationID,
		Status:              ReservationActive,
		ReservedAt:          now,
		ReservationDeadline: now.Add(window),
	}
}

// Stale reports whether the deadline of the current stage has lapsed.
func (r *Reservation) Stale(now time.Time) bool {
	switch r.Status {
	case ReservationActive:
		return !now.Before(r.ReservationDeadline)
	case ReservationDelivered:
		return r.PickupDeadline != nil && !now.Before(*r.PickupDeadline)
	default:
		return false
	}
}

// Deliver confirms drop-off: ACTIVE -> DELIVERED.
func (r *Reservation) Deliver(now time.Time, code string, pickupWindow time.Duration) error {
	switch r.Status {
	case ReservationActive:
	case ReservationDelivered:
		return ErrAlreadyDelivered
	default:
		return fmt.Errorf("deliver %s reservation: %w", r.Status, ErrAlreadyTerminal)
	}

	if !now.Before(r.ReservationDeadline) {
		return ErrReservationExpired
	}

	if code == "" {
		return fmt.Errorf("deliver: empty pickup code: %w", ErrInvalidArgument)
	}

	deadline := now.Add(pickupWindow)
	r.Status = ReservationDelivered
	r.DeliveredAt = &now
	r.PickupDeadline = &deadline
	r.PickupCode = code
	return nil
}

// PickUp redeems the parcel: DELIVERED -> PICKED_UP.
func (r *Reservation) PickUp(now time.Time) error {
	switch r.Status {
	case ReservationDelivered:
	case ReservationPickedUp:
		return ErrAlreadyPickedUp
	case ReservationExpired:
		return ErrCodeExpired
	case ReservationActive:
		return fmt.Errorf("pick up undelivered reservation: %w", ErrConflict)
	default:
		return fmt.Errorf("pick up %s reservation: %w", r.Status, ErrAlreadyTerminal)
	}

	if r.Stale(now) {
		return ErrCodeExpired
	}

	r.Status = ReservationPickedUp
	r.PickedUpAt = &now
	r.ClosedAt = &now
	r.PickupCode = ""
	return nil
}

// Cancel releases an open reservation on request.
func (r *Reservation) Cancel(now time.Time) error {
	if !r.Status.Open() {
		return fmt.Errorf("cancel %s reservation: %w", r.Status, ErrAlreadyTerminal)
	}

	r.Status = ReservationCancelled
	r.ClosedAt = &now
	r.PickupCode = ""
	return nil
}

// Expire reclaims a reservation whose current deadline has lapsed.
func (r *Reservation) Expire(now time.Time) error {
	if !r.Status.Open() {
		return fmt.Errorf("expire %s reservation: %w", r.Status, ErrAlreadyTerminal)
	}
	if !r.Stale(now) {
		return fmt.Errorf("expire reservation before its deadline: %w", ErrConflict)
	}

	r.Status = ReservationExpired
	r.ClosedAt = &now
	r.PickupCode = ""
	return nil
}
