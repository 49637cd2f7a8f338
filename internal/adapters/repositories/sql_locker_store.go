package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"locker-reservation-service/internal/ports"
)

// SQL-backed implementation of the LockerStore port. One implementation
// serves Postgres (pgx) and SQLite (modernc); the dialect handles the rest.
type SQLLockerStore struct {
	queries
	DB *sql.DB
}

var _ ports.LockerStore = (*SQLLockerStore)(nil)

func NewSQLLockerStore(db *sql.DB, d Dialect) *SQLLockerStore {
	return &SQLLockerStore{queries: queries{q: db, d: d}, DB: db}
}

func (s *SQLLockerStore) Dialect() Dialect { return s.d }

// InTx runs fn in a single transaction. Under SQLite the pool holds one
// connection, so fn must use tx exclusively.
func (s *SQLLockerStore) InTx(ctx context.Context, fn func(tx ports.LockerTx) error) error {
	if s.DB == nil {
		return errors.New("sql locker store: DB is nil")
	}

	sqlTx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("locker store: begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&sqlLockerTx{queries: queries{q: sqlTx, d: s.d}}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("locker store: commit tx: %w", err)
	}

	return nil
}
