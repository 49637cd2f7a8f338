package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Initialize the locker schema. The DDL is shared by Postgres and SQLite;
// instants are stored as Unix nanoseconds.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createLocationsQuery := `
	CREATE TABLE IF NOT EXISTS locations (
		location_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		lon DOUBLE PRECISION NOT NULL DEFAULT 0,
		lat DOUBLE PRECISION NOT NULL DEFAULT 0
	);
	`

	createSlotsQuery := `
	CREATE TABLE IF NOT EXISTS slots (
		slot_id TEXT PRIMARY KEY,
		location_id TEXT NOT NULL REFERENCES locations(location_id),
		locker_id TEXT NOT NULL,
		slot_number INTEGER NOT NULL,
		size TEXT NOT NULL,
		width_mm INTEGER NOT NULL DEFAULT 0,
		height_mm INTEGER NOT NULL DEFAULT 0,
		depth_mm INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		current_reservation_id TEXT,
		version BIGINT NOT NULL DEFAULT 0,
		updated_at_ns BIGINT NOT NULL DEFAULT 0,
		UNIQUE (location_id, locker_id, slot_number)
	);
	`

	createParcelsQuery := `
	CREATE TABLE IF NOT EXISTS parcels (
		parcel_id TEXT PRIMARY KEY,
		tracking_number TEXT NOT NULL UNIQUE,
		sender_name TEXT NOT NULL DEFAULT '',
		sender_email TEXT NOT NULL DEFAULT '',
		sender_phone TEXT NOT NULL DEFAULT '',
		recipient_name TEXT NOT NULL DEFAULT '',
		recipient_email TEXT NOT NULL DEFAULT '',
		recipient_phone TEXT NOT NULL DEFAULT '',
		size TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at_ns BIGINT NOT NULL,
		updated_at_ns BIGINT NOT NULL
	);
	`

	// A pickup code exists exactly while the reservation is DELIVERED.
	createReservationsQuery := `
	CREATE TABLE IF NOT EXISTS reservations (
		reservation_id TEXT PRIMARY KEY,
		parcel_id TEXT NOT NULL REFERENCES parcels(parcel_id),
		slot_id TEXT NOT NULL REFERENCES slots(slot_id),
		location_id TEXT NOT NULL,
		status TEXT NOT NULL,
		reserved_at_ns BIGINT NOT NULL,
		reservation_deadline_ns BIGINT NOT NULL,
		delivered_at_ns BIGINT,
		pickup_deadline_ns BIGINT,
		pickup_code TEXT,
		picked_up_at_ns BIGINT,
		closed_at_ns BIGINT,
		version BIGINT NOT NULL DEFAULT 0,
		CHECK ((status = 'DELIVERED') = (pickup_code IS NOT NULL))
	);
	`

	statements := []string{
		createLocationsQuery,
		createSlotsQuery,
		createParcelsQuery,
		createReservationsQuery,
		`CREATE TABLE IF NOT EXISTS geocode_cache (
			address TEXT PRIMARY KEY,
			lon DOUBLE PRECISION NOT NULL,
			lat DOUBLE PRECISION NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_slots_location_size_status ON slots(location_id, size, status);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_reservations_open_parcel
		ON reservations(parcel_id) WHERE status IN ('ACTIVE', 'DELIVERED');`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_reservations_open_slot
		ON reservations(slot_id) WHERE status IN ('ACTIVE', 'DELIVERED');`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_reservations_pickup_code ON reservations(pickup_code);`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_reservation_deadline
		ON reservations(status, reservation_deadline_ns);`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_pickup_deadline
		ON reservations(status, pickup_deadline_ns);`,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
