package services

import (
	"context"
	"errors"
	"fmt"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/platform/obs"
	"locker-reservation-service/internal/ports"
	"log"
	"strings"
	"time"
)

// Drop-off transactions retried when a freshly generated pickup code loses
// the race for the unique index.
const dropOffAttempts = 3

var errReservationMoved = fmt.Errorf("reservation changed concurrently: %w", domain.ErrConflict)

type PickupInput struct {
	LocationID string
	Code       string
	// Recipient email or phone number.
	Contact string
}

// Lifecycle drives reservations through drop-off, pickup, cancel and expiry.
// Every transition is persisted with an update guarded on the status it was
// computed from.
type Lifecycle struct {
	store   ports.LockerStore
	clock   ports.Clock
	guard   ports.PickupGuard
	policy  Policy
	catalog *Catalog
	codes   *CodeGenerator
	side    sideChannels
}

// transition captures what a committed transaction did, for the side channels.
type transition struct {
	before    domain.Reservation
	after     *domain.Reservation
	recipient domain.Contact
	tracking  string
	at        time.Time
}

// ConfirmDropOff marks the parcel as placed in its slot and issues the pickup
// code. At or past the reservation deadline the reservation is expired instead
// and ErrReservationExpired is returned.
func (l *Lifecycle) ConfirmDropOff(ctx context.Context, reservationID string) (_ *domain.Reservation, err error) {
	defer obs.Time(ctx, "lifecycle.ConfirmDropOff")(&err)
	defer l.side.metrics.ObserveLatency("drop_off", time.Now())

	var (
		tr      transition
		outcome error
	)
	for attempt := 1; ; attempt++ {
		outcome = nil
		err = l.store.InTx(ctx, func(tx ports.LockerTx) error {
			r, parcel, err := l.load(ctx, tx, reservationID)
			if err != nil {
				return err
			}

			now := l.clock.Now()
			tr = transition{before: *r, after: r, recipient: parcel.Recipient, tracking: parcel.TrackingNumber, at: now}

			if r.Status == domain.ReservationActive && r.Stale(now) {
				if err := l.expire(ctx, tx, r, now); err != nil {
					return err
				}
				outcome = domain.ErrReservationExpired
				return nil
			}

			code, err := l.codes.Generate(ctx, tx)
			if err != nil {
				return err
			}
			if err := r.Deliver(now, code, l.policy.PickupWindow); err != nil {
				return err
			}

			if err := l.updateReservation(ctx, tx, r, domain.ReservationActive); err != nil {
				return err
			}
			if err := tx.OccupySlot(ctx, r.SlotID, r.ReservationID, now); err != nil {
				return err
			}
			return tx.UpdateParcelStatus(ctx, r.ParcelID, domain.ParcelReserved, domain.ParcelInLocker, now)
		})
		if errors.Is(err, domain.ErrDuplicate) && attempt < dropOffAttempts {
			log.Printf("req_id=%s pickup code collision, retrying reservation_id=%s attempt=%d",
				obs.RequestID(ctx), reservationID, attempt)
			continue
		}
		break
	}
	if err != nil {
		l.side.metrics.IncTransition("drop_off", "error")
		return nil, fmt.Errorf("confirm drop-off %s: %w", reservationID, err)
	}

	if outcome != nil {
		l.afterExpire(ctx, tr)
		l.side.metrics.IncTransition("drop_off", "expired")
		return nil, fmt.Errorf("confirm drop-off %s: %w", reservationID, outcome)
	}

	r := tr.after
	l.side.metrics.IncTransition("drop_off", "ok")
	l.side.audit(ctx, "reservation.delivered", &tr.before, r, tr.at)
	l.side.notify(ctx, tr.recipient, ports.EventReadyForPickup, map[string]any{
		"reservation_id":  r.ReservationID,
		"tracking_number": tr.tracking,
		"location_id":     r.LocationID,
		"pickup_code":     r.PickupCode,
		"pickup_deadline": r.PickupDeadline.Format(time.RFC3339),
	})

	return r, nil
}

// Pickup redeems a code at a location for the contact on record. Unknown or
// malformed codes fail with ErrInvalidCode, a contact mismatch with
// ErrRecipientMismatch, and a lapsed pickup window reclaims the slot inline
// and fails with ErrCodeExpired.
func (l *Lifecycle) Pickup(ctx context.Context, in PickupInput) (_ *domain.Reservation, err error) {
	defer obs.Time(ctx, "lifecycle.Pickup")(&err)
	defer l.side.metrics.ObserveLatency("pickup", time.Now())

	locationID := strings.TrimSpace(in.LocationID)
	contact := strings.TrimSpace(in.Contact)
	code := Normalize(in.Code)
	key := guardKey(locationID, contact)

	if !l.allowPickup(ctx, key) {
		l.side.metrics.IncPickupFailure("too_many_attempts")
		return nil, domain.ErrTooManyAttempts
	}

	if !ValidateFormat(code) {
		l.pickupFailed(ctx, key, "malformed_code")
		return nil, domain.ErrInvalidCode
	}

	var (
		tr      transition
		outcome error
	)
	err = l.store.InTx(ctx, func(tx ports.LockerTx) error {
		r, err := tx.FindDeliveredByCode(ctx, locationID, code)
		if err != nil {
			return err
		}
		if r == nil {
			return domain.ErrInvalidCode
		}

		parcel, err := tx.GetParcel(ctx, r.ParcelID)
		if err != nil {
			return err
		}
		if !parcel.Recipient.Matches(contact) {
			return domain.ErrRecipientMismatch
		}

		now := l.clock.Now()
		tr = transition{before: *r, after: r, recipient: parcel.Recipient, tracking: parcel.TrackingNumber, at: now}

		if r.Stale(now) {
			err := l.expire(ctx, tx, r, now)
			if errors.Is(err, errReservationMoved) {
				return l.pickupConflict(ctx, tx, r.ReservationID)
			}
			if err != nil {
				return err
			}
			outcome = domain.ErrCodeExpired
			return nil
		}

		if err := r.PickUp(now); err != nil {
			return err
		}
		err = l.updateReservation(ctx, tx, r, domain.ReservationDelivered)
		if errors.Is(err, errReservationMoved) {
			return l.pickupConflict(ctx, tx, r.ReservationID)
		}
		if err != nil {
			return err
		}
		if err := l.catalog.Release(ctx, tx, r.SlotID, r.ReservationID, now); err != nil {
			return err
		}
		return tx.UpdateParcelStatus(ctx, r.ParcelID, domain.ParcelInLocker, domain.ParcelPickedUp, now)
	})
	switch {
	case errors.Is(err, domain.ErrInvalidCode):
		l.pickupFailed(ctx, key, "invalid_code")
		return nil, err
	case errors.Is(err, domain.ErrRecipientMismatch):
		l.pickupFailed(ctx, key, "recipient_mismatch")
		return nil, err
	case err != nil:
		l.side.metrics.IncTransition("pickup", "error")
		return nil, fmt.Errorf("pickup: %w", err)
	}

	if outcome != nil {
		l.afterExpire(ctx, tr)
		l.side.metrics.IncPickupFailure("code_expired")
		return nil, fmt.Errorf("pickup %s: %w", tr.after.ReservationID, outcome)
	}

	l.resetGuard(ctx, key)

	r := tr.after
	l.side.metrics.IncTransition("pickup", "ok")
	l.side.audit(ctx, "reservation.picked_up", &tr.before, r, tr.at)
	l.side.notify(ctx, tr.recipient, ports.EventPickedUp, map[string]any{
		"reservation_id":  r.ReservationID,
		"tracking_number": tr.tracking,
		"location_id":     r.LocationID,
		"picked_up_at":    tr.at.Format(time.RFC3339),
	})

	return r, nil
}

// Cancel closes an ACTIVE or DELIVERED reservation, frees its slot and
// cancels the parcel.
func (l *Lifecycle) Cancel(ctx context.Context, reservationID string) (_ *domain.Reservation, err error) {
	defer obs.Time(ctx, "lifecycle.Cancel")(&err)

	var tr transition
	err = l.store.InTx(ctx, func(tx ports.LockerTx) error {
		r, parcel, err := l.load(ctx, tx, reservationID)
		if err != nil {
			return err
		}

		now := l.clock.Now()
		tr = transition{before: *r, after: r, recipient: parcel.Recipient, tracking: parcel.TrackingNumber, at: now}

		prev := r.Status
		if err := r.Cancel(now); err != nil {
			return err
		}
		return l.close(ctx, tx, r, prev, now)
	})
	if err != nil {
		l.side.metrics.IncTransition("cancel", "error")
		return nil, fmt.Errorf("cancel %s: %w", reservationID, err)
	}

	r := tr.after
	l.side.metrics.IncTransition("cancel", "ok")
	l.side.audit(ctx, "reservation.cancelled", &tr.before, r, tr.at)
	l.side.notify(ctx, tr.recipient, ports.EventCancelled, map[string]any{
		"reservation_id":  r.ReservationID,
		"tracking_number": tr.tracking,
		"location_id":     r.LocationID,
	})

	return r, nil
}

// Reclaim expires a stale reservation. Terminal, not-yet-stale or concurrently
// transitioned reservations are left alone and reported as not reclaimed.
func (l *Lifecycle) Reclaim(ctx context.Context, reservationID string) (bool, error) {
	var (
		tr        transition
		reclaimed bool
	)
	err := l.store.InTx(ctx, func(tx ports.LockerTx) error {
		reclaimed = false

		r, parcel, err := l.load(ctx, tx, reservationID)
		if err != nil {
			return err
		}

		now := l.clock.Now()
		if !r.Status.Open() || !r.Stale(now) {
			return nil
		}

		tr = transition{before: *r, after: r, recipient: parcel.Recipient, tracking: parcel.TrackingNumber, at: now}
		if err := l.expire(ctx, tx, r, now); err != nil {
			return err
		}
		reclaimed = true
		return nil
	})
	if errors.Is(err, errReservationMoved) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reclaim %s: %w", reservationID, err)
	}

	if reclaimed {
		l.side.metrics.IncReclaimed(string(tr.before.Status))
		l.afterExpire(ctx, tr)
	}
	return reclaimed, nil
}

// Status returns a snapshot of the reservation without its pickup code.
func (l *Lifecycle) Status(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	r, err := l.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("reservation status: %w", err)
	}

	out := redacted(r)
	return &out, nil
}

func (l *Lifecycle) load(ctx context.Context, tx ports.LockerTx, reservationID string) (*domain.Reservation, *domain.Parcel, error) {
	r, err := tx.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, nil, err
	}
	parcel, err := tx.GetParcel(ctx, r.ParcelID)
	if err != nil {
		return nil, nil, err
	}
	return r, parcel, nil
}

// expire moves a stale open reservation to EXPIRED and frees its slot.
func (l *Lifecycle) expire(ctx context.Context, tx ports.LockerTx, r *domain.Reservation, now time.Time) error {
	prev := r.Status
	if err := r.Expire(now); err != nil {
		return err
	}
	return l.close(ctx, tx, r, prev, now)
}

// close persists a terminal transition from prev: reservation, slot, parcel.
func (l *Lifecycle) close(ctx context.Context, tx ports.LockerTx, r *domain.Reservation, prev domain.ReservationStatus, now time.Time) error {
	if err := l.updateReservation(ctx, tx, r, prev); err != nil {
		return err
	}
	if err := l.catalog.Release(ctx, tx, r.SlotID, r.ReservationID, now); err != nil {
		return err
	}
	return tx.UpdateParcelStatus(ctx, r.ParcelID, prev.ParcelStatus(), r.Status.ParcelStatus(), now)
}

func (l *Lifecycle) updateReservation(ctx context.Context, tx ports.LockerTx, r *domain.Reservation, expected domain.ReservationStatus) error {
	err := tx.UpdateReservation(ctx, r, expected)
	if errors.Is(err, domain.ErrConflict) && !errors.Is(err, domain.ErrDuplicate) {
		return fmt.Errorf("%w: %w", errReservationMoved, err)
	}
	return err
}

// pickupConflict explains a lost pickup race by the state the winner left.
func (l *Lifecycle) pickupConflict(ctx context.Context, tx ports.LockerTx, reservationID string) error {
	r, err := tx.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	switch r.Status {
	case domain.ReservationPickedUp:
		return domain.ErrAlreadyPickedUp
	case domain.ReservationExpired:
		return domain.ErrCodeExpired
	default:
		return domain.ErrAlreadyTerminal
	}
}

func (l *Lifecycle) afterExpire(ctx context.Context, tr transition) {
	r := tr.after
	log.Printf("req_id=%s reservation expired reservation_id=%s from=%s slot_id=%s",
		obs.RequestID(ctx), r.ReservationID, tr.before.Status, r.SlotID)

	l.side.audit(ctx, "reservation.expired", &tr.before, r, tr.at)
	l.side.notify(ctx, tr.recipient, ports.EventExpired, map[string]any{
		"reservation_id":  r.ReservationID,
		"tracking_number": tr.tracking,
		"location_id":     r.LocationID,
		"previous_status": string(tr.before.Status),
	})
}

func guardKey(locationID, contact string) string {
	return locationID + ":" + strings.ToLower(contact)
}

// allowPickup consults the attempt guard. Guard errors fail open.
func (l *Lifecycle) allowPickup(ctx context.Context, key string) bool {
	if l.guard == nil {
		return true
	}

	ok, err := l.guard.Allow(ctx, key)
	if err != nil {
		log.Printf("req_id=%s pickup guard unavailable err=%v", obs.RequestID(ctx), err)
		return true
	}
	return ok
}

func (l *Lifecycle) pickupFailed(ctx context.Context, key, reason string) {
	l.side.metrics.IncPickupFailure(reason)
	if l.guard == nil {
		return
	}
	if err := l.guard.RecordFailure(ctx, key); err != nil {
		log.Printf("req_id=%s pickup guard record failed err=%v", obs.RequestID(ctx), err)
	}
}

func (l *Lifecycle) resetGuard(ctx context.Context, key string) {
	if l.guard == nil {
		return
	}
	if err := l.guard.Reset(ctx, key); err != nil {
		log.Printf("req_id=%s pickup guard reset failed err=%v", obs.RequestID(ctx), err)
	}
}
