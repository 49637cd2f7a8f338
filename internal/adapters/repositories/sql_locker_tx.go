package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/ports"
	"time"
)

type sqlLockerTx struct {
	queries
}

var _ ports.LockerTx = (*sqlLockerTx)(nil)

func (t *sqlLockerTx) InsertLocation(ctx context.Context, l *domain.Location) error {
	_, err := t.q.ExecContext(ctx, t.d.rebind(`
	INSERT INTO locations (location_id, name, address, lon, lat)
	VALUES (?, ?, ?, ?, ?);
	`), l.LocationID, l.Name, l.Address, l.Coords.Lon, l.Coords.Lat)
	return writeErr("insert location "+l.LocationID, err)
}

func (t *sqlLockerTx) InsertSlot(ctx context.Context, s *domain.Slot) error {
	_, err := t.q.ExecContext(ctx, t.d.rebind(`
	INSERT INTO slots (`+slotColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`),
		s.SlotID, s.LocationID, s.LockerID, s.Number, string(s.Size),
		s.Dimensions.WidthMM, s.Dimensions.HeightMM, s.Dimensions.DepthMM,
		string(s.Status), nullString(s.CurrentReservationID),
		s.Version, s.UpdatedAt.UnixNano(),
	)
	return writeErr("insert slot "+s.SlotID, err)
}

func (t *sqlLockerTx) InsertParcel(ctx context.Context, p *domain.Parcel) error {
	_, err := t.q.ExecContext(ctx, t.d.rebind(`
	INSERT INTO parcels (`+parcelColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`),
		p.ParcelID, p.TrackingNumber,
		p.Sender.Name, p.Sender.Email, p.Sender.Phone,
		p.Recipient.Name, p.Recipient.Email, p.Recipient.Phone,
		string(p.Size), string(p.Status), p.CreatedAt.UnixNano(), p.UpdatedAt.UnixNano(),
	)
	return writeErr("insert parcel "+p.ParcelID, err)
}

func (t *sqlLockerTx) InsertReservation(ctx context.Context, r *domain.Reservation) error {
	_, err := t.q.ExecContext(ctx, t.d.rebind(`
	INSERT INTO reservations (`+reservationColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`),
		r.ReservationID, r.ParcelID, r.SlotID, r.LocationID, string(r.Status),
		r.ReservedAt.UnixNano(), r.ReservationDeadline.UnixNano(),
		nullNanos(r.DeliveredAt), nullNanos(r.PickupDeadline),
		nullString(r.PickupCode), nullNanos(r.PickedUpAt), nullNanos(r.ClosedAt),
		r.Version,
	)
	return writeErr("insert reservation "+r.ReservationID, err)
}

func (t *sqlLockerTx) ClaimSlot(ctx context.Context, slotID, reservationID string, now time.Time) error {
	res, err := t.q.ExecContext(ctx, t.d.rebind(`
	UPDATE slots
	SET status = ?, current_reservation_id = ?, version = version + 1, updated_at_ns = ?
	WHERE slot_id = ?
		AND status = ?;
	`), string(domain.SlotReserved), reservationID, now.UnixNano(), slotID, string(domain.SlotAvailable))
	return guarded(res, err, "claim slot "+slotID)
}

func (t *sqlLockerTx) OccupySlot(ctx context.Context, slotID, reservationID string, now time.Time) error {
	res, err := t.q.ExecContext(ctx, t.d.rebind(`
	UPDATE slots
	SET status = ?, version = version + 1, updated_at_ns = ?
	WHERE slot_id = ?
		AND status = ?
		AND current_reservation_id = ?;
	`), string(domain.SlotOccupied), now.UnixNano(), slotID, string(domain.SlotReserved), reservationID)
	return guarded(res, err, "occupy slot "+slotID)
}

func (t *sqlLockerTx) ReleaseSlot(ctx context.Context, slotID, reservationID string, now time.Time) error {
	res, err := t.q.ExecContext(ctx, t.d.rebind(`
	UPDATE slots
	SET status = ?, current_reservation_id = NULL, version = version + 1, updated_at_ns = ?
	WHERE slot_id = ?
		AND current_reservation_id = ?
		AND status IN (?, ?);
	`), string(domain.SlotAvailable), now.UnixNano(), slotID, reservationID,
		string(domain.SlotReserved), string(domain.SlotOccupied))
	return guarded(res, err, "release slot "+slotID)
}

func (t *sqlLockerTx) SetSlotStatus(ctx context.Context, slotID string, from, to domain.SlotStatus, now time.Time) error {
	res, err := t.q.ExecContext(ctx, t.d.rebind(`
	UPDATE slots
	SET status = ?, version = version + 1, updated_at_ns = ?
	WHERE slot_id = ?
		AND status = ?
		AND current_reservation_id IS NULL;
	`), string(to), now.UnixNano(), slotID, string(from))
	return guarded(res, err, fmt.Sprintf("set slot %s %s -> %s", slotID, from, to))
}

func (t *sqlLockerTx) UpdateParcelStatus(
	ctx context.Context,
	parcelID string,
	from, to domain.ParcelStatus,
	now time.Time,
) error {
	res, err := t.q.ExecContext(ctx, t.d.rebind(`
	UPDATE parcels
	SET status = ?, updated_at_ns = ?
	WHERE parcel_id = ?
		AND status = ?;
	`), string(to), now.UnixNano(), parcelID, string(from))
	return guarded(res, err, fmt.Sprintf("update parcel %s %s -> %s", parcelID, from, to))
}

// UpdateReservation writes every mutable column of r and bumps its version.
func (t *sqlLockerTx) UpdateReservation(
	ctx context.Context,
	r *domain.Reservation,
	expected domain.ReservationStatus,
) error {
	res, err := t.q.ExecContext(ctx, t.d.rebind(`
	UPDATE reservations
	SET status = ?,
		delivered_at_ns = ?,
		pickup_deadline_ns = ?,
		pickup_code = ?,
		picked_up_at_ns = ?,
		closed_at_ns = ?,
		version = version + 1
	WHERE reservation_id = ?
		AND status = ?;
	`),
		string(r.Status), nullNanos(r.DeliveredAt), nullNanos(r.PickupDeadline),
		nullString(r.PickupCode), nullNanos(r.PickedUpAt), nullNanos(r.ClosedAt),
		r.ReservationID, string(expected),
	)
	if err := guarded(res, err, fmt.Sprintf("update reservation %s %s -> %s", r.ReservationID, expected, r.Status)); err != nil {
		return err
	}

	r.Version++
	return nil
}

// guarded turns a zero-row update into domain.ErrConflict.
func guarded(res sql.Result, err error, op string) error {
	if err != nil {
		return writeErr(op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}

	return nil
}

func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}
