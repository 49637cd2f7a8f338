package ports

import (
	"context"
	"time"
)

// An audit event about one entity. Before and After are snapshots and may be nil.
type AuditEntry struct {
	EntityType string
	EntityID   string
	Action     string
	Before     any
	After      any
	At         time.Time
}

// Port: fire-and-forget audit trail. Implementations must not block on slow sinks
// for longer than the caller's context allows.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry) error
}
