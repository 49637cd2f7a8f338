package audit

import (
	"context"
	"errors"
	"fmt"
	"locker-reservation-service/internal/ports"
)

type publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// PublishingAuditor forwards entries to a broker under "audit.<action>".
type PublishingAuditor struct {
	pub publisher
}

func NewPublishingAuditor(pub publisher) *PublishingAuditor {
	return &PublishingAuditor{pub: pub}
}

func (a *PublishingAuditor) Record(ctx context.Context, e ports.AuditEntry) error {
	if err := a.pub.PublishJSON(ctx, "audit."+e.Action, toRecord(ctx, e)); err != nil {
		return fmt.Errorf("audit %s: publish: %w", e.Action, err)
	}
	return nil
}

// Multi records to every auditor and joins their errors.
type Multi []ports.AuditLogger

func (m Multi) Record(ctx context.Context, e ports.AuditEntry) error {
	var errs []error
	for _, a := range m {
		if err := a.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
