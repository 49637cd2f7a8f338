package repositories

import (
	"database/sql"
	"locker-reservation-service/internal/domain"
	"time"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const slotColumns = `
	slot_id, location_id, locker_id, slot_number, size,
	width_mm, height_mm, depth_mm, status, current_reservation_id,
	version, updated_at_ns`

const parcelColumns = `
	parcel_id, tracking_number,
	sender_name, sender_email, sender_phone,
	recipient_name, recipient_email, recipient_phone,
	size, status, created_at_ns, updated_at_ns`

const reservationColumns = `
	reservation_id, parcel_id, slot_id, location_id, status,
	reserved_at_ns, reservation_deadline_ns, delivered_at_ns, pickup_deadline_ns,
	pickup_code, picked_up_at_ns, closed_at_ns, version`

func scanSlot(row rowScanner) (*domain.Slot, error) {
	var (
		s         domain.Slot
		size      string
		status    string
		holder    sql.NullString
		updatedNs int64
	)
	err := row.Scan(
		&s.SlotID, &s.LocationID, &s.LockerID, &s.Number, &size,
		&s.Dimensions.WidthMM, &s.Dimensions.HeightMM, &s.Dimensions.DepthMM, &status, &holder,
		&s.Version, &updatedNs,
	)
	if err != nil {
		return nil, err
	}

	s.Size = domain.Size(size)
	s.Status = domain.SlotStatus(status)
	s.CurrentReservationID = holder.String
	s.UpdatedAt = fromNanos(updatedNs)
	return &s, nil
}

func scanParcel(row rowScanner) (*domain.Parcel, error) {
	var (
		p                    domain.Parcel
		size, status         string
		createdNs, updatedNs int64
	)
	err := row.Scan(
		&p.ParcelID, &p.TrackingNumber,
		&p.Sender.Name, &p.Sender.Email, &p.Sender.Phone,
		&p.Recipient.Name, &p.Recipient.Email, &p.Recipient.Phone,
		&size, &status, &createdNs, &updatedNs,
	)
	if err != nil {
		return nil, err
	}

	p.Size = domain.Size(size)
	p.Status = domain.ParcelStatus(status)
	p.CreatedAt = fromNanos(createdNs)
	p.UpdatedAt = fromNanos(updatedNs)
	return &p, nil
}

func scanReservation(row rowScanner) (*domain.Reservation, error) {
	var (
		r                       domain.Reservation
		status                  string
		reservedNs, deadlineNs  int64
		deliveredNs, pickupByNs sql.NullInt64
		pickedUpNs, closedNs    sql.NullInt64
		code                    sql.NullString
	)
	err := row.Scan(
		&r.ReservationID, &r.ParcelID, &r.SlotID, &r.LocationID, &status,
		&reservedNs, &deadlineNs, &deliveredNs, &pickupByNs,
		&code, &pickedUpNs, &closedNs, &r.Version,
	)
	if err != nil {
		return nil, err
	}

	r.Status = domain.ReservationStatus(status)
	r.ReservedAt = fromNanos(reservedNs)
	r.ReservationDeadline = fromNanos(deadlineNs)
	r.DeliveredAt = timePtr(deliveredNs)
	r.PickupDeadline = timePtr(pickupByNs)
	r.PickupCode = code.String
	r.PickedUpAt = timePtr(pickedUpNs)
	r.ClosedAt = timePtr(closedNs)
	return &r, nil
}

func fromNanos(ns int64) time.Time { return time.Unix(0, ns).UTC() }

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
