package services

import (
	"context"
	"errors"
	"fmt"
	"locker-reservation-service/internal/adapters/repositories"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/platform/clock"
	"locker-reservation-service/internal/platform/db"
	"locker-reservation-service/internal/ports"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	locker   *Locker
	store    *repositories.SQLLockerStore
	clock    *clock.Manual
	auditor  *recordingAuditor
	notifier *recordingNotifier
}

func newHarness(t *testing.T, policy Policy, opts ...func(*Deps)) *harness {
	t.Helper()

	sqlDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "lockers.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repositories.InitSchema(context.Background(), sqlDB); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	h := &harness{
		store:    repositories.NewSQLLockerStore(sqlDB, repositories.SQLite),
		clock:    clock.NewManual(start),
		auditor:  &recordingAuditor{},
		notifier: &recordingNotifier{},
	}

	deps := Deps{Store: h.store, Clock: h.clock, Auditor: h.auditor, Notifier: h.notifier}
	for _, o := range opts {
		o(&deps)
	}
	h.locker = New(deps, policy)
	return h
}

// addLocation inserts a location with one slot per size given.
func (h *harness) addLocation(t *testing.T, id string, coords domain.Coordinates, sizes ...domain.Size) {
	t.Helper()
	ctx := context.Background()

	err := h.store.InTx(ctx, func(tx ports.LockerTx) error {
		if err := tx.InsertLocation(ctx, &domain.Location{LocationID: id, Name: id, Coords: coords}); err != nil {
			return err
		}
		for i, size := range sizes {
			slot := &domain.Slot{
				SlotID:     fmt.Sprintf("%s-A-%02d", id, i+1),
				LocationID: id,
				LockerID:   "A",
				Number:     i + 1,
				Size:       size,
				Status:     domain.SlotAvailable,
				UpdatedAt:  start,
			}
			if err := tx.InsertSlot(ctx, slot); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("add location %s: %v", id, err)
	}
}

var recipient = domain.Contact{Name: "Ana Ruiz", Email: "ana@example.com", Phone: "+1 (602) 555-0101"}

func (h *harness) addParcel(t *testing.T, size domain.Size) *domain.Parcel {
	t.Helper()

	p, err := h.locker.Registry.RegisterParcel(context.Background(), RegisterParcelInput{
		Sender:    domain.Contact{Name: "Shop", Email: "shop@example.com"},
		Recipient: recipient,
		Size:      size,
	})
	if err != nil {
		t.Fatalf("register parcel: %v", err)
	}
	return p
}

func (h *harness) reserve(t *testing.T, parcelID, locationID string) *Allocation {
	t.Helper()

	a, err := h.locker.Allocator.Reserve(context.Background(), ReserveInput{ParcelID: parcelID, LocationID: locationID})
	if err != nil {
		t.Fatalf("reserve %s at %s: %v", parcelID, locationID, err)
	}
	return a
}

func (h *harness) deliver(t *testing.T, reservationID string) *domain.Reservation {
	t.Helper()

	r, err := h.locker.Lifecycle.ConfirmDropOff(context.Background(), reservationID)
	if err != nil {
		t.Fatalf("confirm drop-off %s: %v", reservationID, err)
	}
	return r
}

func (h *harness) slotStatus(t *testing.T, slotID string) domain.SlotStatus {
	t.Helper()
	s, err := h.store.GetSlot(context.Background(), slotID)
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	return s.Status
}

func (h *harness) parcelStatus(t *testing.T, parcelID string) domain.ParcelStatus {
	t.Helper()
	p, err := h.store.GetParcel(context.Background(), parcelID)
	if err != nil {
		t.Fatalf("get parcel: %v", err)
	}
	return p.Status
}

func (h *harness) reservation(t *testing.T, id string) *domain.Reservation {
	t.Helper()
	r, err := h.store.GetReservation(context.Background(), id)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	return r
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []ports.AuditEntry
}

func (a *recordingAuditor) Record(_ context.Context, e ports.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *recordingAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type sentNotification struct {
	to      domain.Contact
	event   string
	payload map[string]any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, to domain.Contact, event string, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{to: to, event: event, payload: payload})
	return n.err
}

func (n *recordingNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.event)
	}
	return out
}

// memGuard is an in-memory PickupGuard allowing max failures per key.
type memGuard struct {
	mu       sync.Mutex
	max      int
	failures map[string]int
	err      error
}

func newMemGuard(max int) *memGuard {
	return &memGuard{max: max, failures: map[string]int{}}
}

func (g *memGuard) Allow(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	return g.failures[key] < g.max, nil
}

func (g *memGuard) RecordFailure(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[key]++
	return nil
}

func (g *memGuard) Reset(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.failures, key)
	return nil
}

var errBoom = errors.New("boom")
