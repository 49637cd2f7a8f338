package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/platform/obs"
	"time"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements ports.LockerReader on top of a querier.
type queries struct {
	q querier
	d Dialect
}

func (s *queries) GetLocation(ctx context.Context, locationID string) (*domain.Location, error) {
	var l domain.Location
	err := s.q.QueryRowContext(ctx, s.d.rebind(`
	SELECT location_id, name, address, lon, lat
	FROM locations
	WHERE location_id = ?;
	`), locationID).Scan(&l.LocationID, &l.Name, &l.Address, &l.Coords.Lon, &l.Coords.Lat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get location %q: %w", locationID, domain.ErrLocationNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get location %q: %w", locationID, err)
	}
	return &l, nil
}

func (s *queries) ListLocations(ctx context.Context) ([]*domain.Location, error) {
	rows, err := s.q.QueryContext(ctx, `
	SELECT location_id, name, address, lon, lat
	FROM locations
	ORDER BY location_id;
	`)
	if err != nil {
		return nil, fmt.Errorf("list locations: query locations table: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Location, 0, 16)
	for rows.Next() {
		var l domain.Location
		if err := rows.Scan(&l.LocationID, &l.Name, &l.Address, &l.Coords.Lon, &l.Coords.Lat); err != nil {
			return nil, fmt.Errorf("list locations: scan row: %w", err)
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list locations: row iteration: %w", err)
	}

	return out, nil
}

func (s *queries) GetSlot(ctx context.Context, slotID string) (*domain.Slot, error) {
	row := s.q.QueryRowContext(ctx, s.d.rebind(`SELECT `+slotColumns+` FROM slots WHERE slot_id = ?;`), slotID)
	slot, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get slot %q: %w", slotID, domain.ErrSlotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get slot %q: %w", slotID, err)
	}
	return slot, nil
}

func (s *queries) GetParcel(ctx context.Context, parcelID string) (*domain.Parcel, error) {
	row := s.q.QueryRowContext(ctx, s.d.rebind(`SELECT `+parcelColumns+` FROM parcels WHERE parcel_id = ?;`), parcelID)
	p, err := scanParcel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get parcel %q: %w", parcelID, domain.ErrParcelNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get parcel %q: %w", parcelID, err)
	}
	return p, nil
}

func (s *queries) GetReservation(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	row := s.q.QueryRowContext(ctx, s.d.rebind(`
	SELECT `+reservationColumns+`
	FROM reservations
	WHERE reservation_id = ?;
	`), reservationID)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get reservation %q: %w", reservationID, domain.ErrReservationNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %q: %w", reservationID, err)
	}
	return r, nil
}

func (s *queries) FindOpenReservationForParcel(ctx context.Context, parcelID string) (*domain.Reservation, error) {
	row := s.q.QueryRowContext(ctx, s.d.rebind(`
	SELECT `+reservationColumns+`
	FROM reservations
	WHERE parcel_id = ?
		AND status IN (?, ?);
	`), parcelID, string(domain.ReservationActive), string(domain.ReservationDelivered))
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open reservation for parcel %q: %w", parcelID, err)
	}
	return r, nil
}

func (s *queries) FindDeliveredByCode(ctx context.Context, locationID, code string) (*domain.Reservation, error) {
	row := s.q.QueryRowContext(ctx, s.d.rebind(`
	SELECT `+reservationColumns+`
	FROM reservations
	WHERE location_id = ?
		AND pickup_code = ?
		AND status = ?;
	`), locationID, code, string(domain.ReservationDelivered))
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find delivered reservation by code: %w", err)
	}
	return r, nil
}

func (s *queries) PickupCodeInUse(ctx context.Context, code string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, s.d.rebind(`
	SELECT COUNT(*) FROM reservations WHERE pickup_code = ?;
	`), code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check pickup code: %w", err)
	}
	return n > 0, nil
}

func (s *queries) ListSlotCandidates(
	ctx context.Context,
	locationID string,
	size domain.Size,
	limit int,
) (_ []*domain.Slot, err error) {
	defer obs.Time(ctx, "slots.ListCandidates")(&err)

	if limit <= 0 {
		limit = 1
	}

	q := s.d.withLock(`
	SELECT ` + slotColumns + `
	FROM slots
	WHERE location_id = ?
		AND size = ?
		AND status = ?
	ORDER BY locker_id, slot_number
	LIMIT ?`)

	rows, err := s.q.QueryContext(ctx, s.d.rebind(q), locationID, string(size), string(domain.SlotAvailable), limit)
	if err != nil {
		return nil, fmt.Errorf("list slot candidates: query slots table: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Slot, 0, limit)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("list slot candidates: scan row: %w", err)
		}
		out = append(out, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list slot candidates: row iteration: %w", err)
	}

	return out, nil
}

func (s *queries) CountAvailable(ctx context.Context, locationID string) (map[domain.Size]int, error) {
	rows, err := s.q.QueryContext(ctx, s.d.rebind(`
	SELECT size, COUNT(*)
	FROM slots
	WHERE location_id = ?
		AND status = ?
	GROUP BY size;
	`), locationID, string(domain.SlotAvailable))
	if err != nil {
		return nil, fmt.Errorf("count available slots: query slots table: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Size]int, len(domain.Sizes))
	for rows.Next() {
		var size string
		var n int
		if err := rows.Scan(&size, &n); err != nil {
			return nil, fmt.Errorf("count available slots: scan row: %w", err)
		}
		out[domain.Size(size)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count available slots: row iteration: %w", err)
	}

	return out, nil
}

func (s *queries) ListStaleReservations(
	ctx context.Context,
	now time.Time,
	limit int,
) (_ []*domain.Reservation, err error) {
	defer obs.Time(ctx, "reservations.ListStale")(&err)

	if limit <= 0 {
		limit = 100
	}
	nowNs := now.UnixNano()

	rows, err := s.q.QueryContext(ctx, s.d.rebind(`
	SELECT `+reservationColumns+`
	FROM reservations
	WHERE (status = ? AND reservation_deadline_ns <= ?)
		OR (status = ? AND pickup_deadline_ns <= ?)
	ORDER BY reserved_at_ns, reservation_id
	LIMIT ?;
	`), string(domain.ReservationActive), nowNs, string(domain.ReservationDelivered), nowNs, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale reservations: query reservations table: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Reservation, 0, limit)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("list stale reservations: scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stale reservations: row iteration: %w", err)
	}

	return out, nil
}
