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

	"github.com/google/uuid"
)

type ReserveInput struct {
	ParcelID   string
	LocationID string
	// Zero selects the default reservation window.
	WindowMinutes int
}

// Allocation is the outcome of a successful reserve.
type Allocation struct {
	Reservation *domain.Reservation
	Slot        *domain.Slot
}

// Allocator binds a pending parcel to a free slot.
type Allocator struct {
	store   ports.LockerStore
	clock   ports.Clock
	policy  Policy
	catalog *Catalog
	side    sideChannels
}

// Reserve claims a slot for the parcel and opens an ACTIVE reservation, all in
// one transaction. The parcel moves PENDING -> RESERVED through a guarded
// update, so concurrent reserves of one parcel cannot both succeed.
func (a *Allocator) Reserve(ctx context.Context, in ReserveInput) (_ *Allocation, err error) {
	defer obs.Time(ctx, "allocator.Reserve")(&err)
	defer a.side.metrics.ObserveLatency("reserve", time.Now())
	defer func() { a.side.metrics.IncReservation(reserveResult(err)) }()

	window, err := a.window(in.WindowMinutes)
	if err != nil {
		return nil, fmt.Errorf("reserve: %w", err)
	}
	parcelID := strings.TrimSpace(in.ParcelID)
	locationID := strings.TrimSpace(in.LocationID)
	if parcelID == "" || locationID == "" {
		return nil, fmt.Errorf("reserve: parcel and location are required: %w", domain.ErrInvalidArgument)
	}

	var out *Allocation
	err = a.store.InTx(ctx, func(tx ports.LockerTx) error {
		parcel, err := tx.GetParcel(ctx, parcelID)
		if err != nil {
			return err
		}

		open, err := tx.FindOpenReservationForParcel(ctx, parcelID)
		if err != nil {
			return err
		}
		if open != nil {
			return domain.ErrParcelAlreadyReserved
		}
		if parcel.Status.Terminal() {
			return fmt.Errorf("parcel %s is %s: %w", parcelID, parcel.Status, domain.ErrParcelNotReservable)
		}

		if _, err := tx.GetLocation(ctx, locationID); err != nil {
			return err
		}

		now := a.clock.Now()
		err = tx.UpdateParcelStatus(ctx, parcelID, domain.ParcelPending, domain.ParcelReserved, now)
		if errors.Is(err, domain.ErrConflict) {
			return domain.ErrParcelAlreadyReserved
		}
		if err != nil {
			return err
		}

		reservationID := uuid.NewString()
		slot, err := a.catalog.Claim(ctx, tx, locationID, parcel.Size, reservationID, now)
		if err != nil {
			return err
		}

		r := domain.NewReservation(reservationID, parcelID, slot.SlotID, slot.LocationID, now, window)
		err = tx.InsertReservation(ctx, r)
		if errors.Is(err, domain.ErrDuplicate) {
			return domain.ErrParcelAlreadyReserved
		}
		if err != nil {
			return err
		}

		out = &Allocation{Reservation: r, Slot: slot}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reserve parcel %s: %w", parcelID, err)
	}

	log.Printf("req_id=%s reserved reservation_id=%s parcel_id=%s slot_id=%s deadline=%s",
		obs.RequestID(ctx), out.Reservation.ReservationID, parcelID, out.Slot.SlotID,
		out.Reservation.ReservationDeadline.Format(time.RFC3339))
	a.side.audit(ctx, "reservation.created", nil, out.Reservation, out.Reservation.ReservedAt)

	return out, nil
}

// window resolves the requested reservation window in minutes.
func (a *Allocator) window(minutes int) (time.Duration, error) {
	if minutes == 0 {
		return a.policy.DefaultReservationWindow, nil
	}

	// Bound the minutes before converting; a huge value would overflow Duration.
	if minutes < 0 || int64(minutes) > int64(a.policy.MaxReservationWindow/time.Minute) {
		return 0, fmt.Errorf("window %dm outside 1..%s: %w",
			minutes, a.policy.MaxReservationWindow, domain.ErrInvalidArgument)
	}
	return time.Duration(minutes) * time.Minute, nil
}

func reserveResult(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, domain.ErrNoCapacity):
		return "no_capacity"
	case errors.Is(err, domain.ErrParcelAlreadyReserved):
		return "already_reserved"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrConflict):
		return "rejected"
	default:
		return "error"
	}
}
