package services

import (
	"context"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/platform/clock"
	"locker-reservation-service/internal/platform/obs"
	"locker-reservation-service/internal/ports"
	"log"
	"time"
)

// Deps are the collaborators of the reservation core. Store is required;
// a nil Clock means the wall clock, and nil side channels are skipped.
type Deps struct {
	Store    ports.LockerStore
	Clock    ports.Clock
	Auditor  ports.AuditLogger
	Notifier ports.Notifier
	Guard    ports.PickupGuard
	Metrics  *obs.Metrics
}

// Policy holds the tunable rules of allocation and expiry.
type Policy struct {
	AllowLargerSlots   bool
	NearbyFallback     bool
	NearbyRadiusMeters float64

	DefaultReservationWindow time.Duration
	MaxReservationWindow     time.Duration
	PickupWindow             time.Duration

	ReclaimBatchSize int
	CodeAttempts     int
}

func DefaultPolicy() Policy {
	return Policy{
		NearbyRadiusMeters:       2000,
		DefaultReservationWindow: 30 * time.Minute,
		MaxReservationWindow:     4 * time.Hour,
		PickupWindow:             72 * time.Hour,
		ReclaimBatchSize:         100,
		CodeAttempts:             10,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.NearbyRadiusMeters <= 0 {
		p.NearbyRadiusMeters = d.NearbyRadiusMeters
	}
	if p.DefaultReservationWindow <= 0 {
		p.DefaultReservationWindow = d.DefaultReservationWindow
	}
	if p.MaxReservationWindow <= 0 {
		p.MaxReservationWindow = d.MaxReservationWindow
	}
	if p.PickupWindow <= 0 {
		p.PickupWindow = d.PickupWindow
	}
	if p.ReclaimBatchSize <= 0 {
		p.ReclaimBatchSize = d.ReclaimBatchSize
	}
	if p.CodeAttempts <= 0 {
		p.CodeAttempts = d.CodeAttempts
	}
	return p
}

// Locker bundles the reservation core components over one set of Deps.
type Locker struct {
	Catalog   *Catalog
	Codes     *CodeGenerator
	Registry  *Registry
	Allocator *Allocator
	Lifecycle *Lifecycle
	Reclaimer *Reclaimer
}

func New(deps Deps, policy Policy) *Locker {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	policy = policy.withDefaults()

	sc := sideChannels{auditor: deps.Auditor, notifier: deps.Notifier, metrics: deps.Metrics}
	catalog := NewCatalog(deps.Store, deps.Clock, policy)
	codes := NewCodeGenerator(policy.CodeAttempts)
	lifecycle := &Lifecycle{
		store:   deps.Store,
		clock:   deps.Clock,
		guard:   deps.Guard,
		policy:  policy,
		catalog: catalog,
		codes:   codes,
		side:    sc,
	}

	return &Locker{
		Catalog:   catalog,
		Codes:     codes,
		Registry:  &Registry{store: deps.Store, clock: deps.Clock},
		Allocator: &Allocator{store: deps.Store, clock: deps.Clock, policy: policy, catalog: catalog, side: sc},
		Lifecycle: lifecycle,
		Reclaimer: NewReclaimer(deps.Store, deps.Clock, lifecycle, policy.ReclaimBatchSize, deps.Metrics),
	}
}

// sideChannels emits audit records and notifications after a transition has
// committed. Failures are logged and never surface to the caller.
type sideChannels struct {
	auditor  ports.AuditLogger
	notifier ports.Notifier
	metrics  *obs.Metrics
}

func (s sideChannels) audit(ctx context.Context, action string, before, after *domain.Reservation, at time.Time) {
	if s.auditor == nil || after == nil {
		return
	}

	entry := ports.AuditEntry{
		EntityType: "reservation",
		EntityID:   after.ReservationID,
		Action:     action,
		After:      redacted(after),
		At:         at,
	}
	if before != nil {
		entry.Before = redacted(before)
	}

	if err := s.auditor.Record(ctx, entry); err != nil {
		log.Printf("req_id=%s audit failed action=%s reservation_id=%s err=%v",
			obs.RequestID(ctx), action, after.ReservationID, err)
	}
}

func (s sideChannels) notify(ctx context.Context, to domain.Contact, event string, payload map[string]any) {
	if s.notifier == nil {
		return
	}

	if err := s.notifier.Notify(ctx, to, event, payload); err != nil {
		log.Printf("req_id=%s notify failed event=%s reservation_id=%v err=%v",
			obs.RequestID(ctx), event, payload["reservation_id"], err)
	}
}

// redacted returns a copy of r without its pickup code.
func redacted(r *domain.Reservation) domain.Reservation {
	c := *r
	c.PickupCode = ""
	return c
}
