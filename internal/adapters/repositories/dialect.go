package repositories

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect captures the SQL differences between Postgres and SQLite.
// Queries are written with '?' placeholders and rebound per dialect.
type Dialect struct {
	name       string
	numbered   bool
	lockClause string
}

var (
	// Candidate slots are locked with SKIP LOCKED so concurrent claimers
	// spread across slots instead of queueing on the same row.
	Postgres = Dialect{name: "postgres", numbered: true, lockClause: "FOR UPDATE SKIP LOCKED"}
	// SQLite serializes writers; no row locking clause exists.
	SQLite = Dialect{name: "sqlite"}
)

func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unknown database driver %q", driver)
	}
}

func (d Dialect) Name() string { return d.name }

// rebind rewrites '?' placeholders to $1..$n for numbered dialects.
func (d Dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}

	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) withLock(q string) string {
	if d.lockClause == "" {
		return q
	}
	return q + " " + d.lockClause
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch code := liteErr.Code(); {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case code&0xff == sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}

	return false
}
