package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"locker-reservation-service/internal/platform/obs"
	"locker-reservation-service/internal/ports"
	"log"
	"time"
)

// Record is the JSON shape of one audit line.
type Record struct {
	RequestID  string    `json:"req_id,omitempty"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	Before     any       `json:"before,omitempty"`
	After      any       `json:"after,omitempty"`
	At         time.Time `json:"at"`
}

func toRecord(ctx context.Context, e ports.AuditEntry) Record {
	return Record{
		RequestID:  obs.RequestID(ctx),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		Before:     e.Before,
		After:      e.After,
		At:         e.At,
	}
}

// LogAuditor writes one JSON line per entry through a standard logger.
type LogAuditor struct {
	logger *log.Logger
}

var _ ports.AuditLogger = (*LogAuditor)(nil)

// NewLogAuditor logs to w, or to the process log when w is nil.
func NewLogAuditor(w io.Writer) *LogAuditor {
	if w == nil {
		return &LogAuditor{logger: log.Default()}
	}
	return &LogAuditor{logger: log.New(w, "", 0)}
}

func (a *LogAuditor) Record(ctx context.Context, e ports.AuditEntry) error {
	b, err := json.Marshal(toRecord(ctx, e))
	if err != nil {
		return fmt.Errorf("audit %s: encode: %w", e.Action, err)
	}

	a.logger.Printf("audit %s", b)
	return nil
}
