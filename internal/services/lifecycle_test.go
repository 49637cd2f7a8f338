package services

import (
	"context"
	"errors"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/ports"
	"slices"
	"testing"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

func setupDelivered(t *testing.T, h *harness) (*Allocation, *domain.Reservation) {
	t.Helper()
	h.addLocation(t, "L1", domain.Coordinates{}, domain.SizeSmall)
	a := h.reserve(t, h.addParcel(t, domain.SizeSmall).ParcelID, "L1")
	h.clock.Advance(5 * time.Minute)
	return a, h.deliver(t, a.Reservation.ReservationID)
}

func TestRoundTrip(t *testing.T) {
	h := newHarness(t, Policy{PickupWindow: 48 * time.Hour})
	a, delivered := setupDelivered(t, h)

	if !ValidateFormat(delivered.PickupCode) {
		t.Fatalf("issued code %q has invalid format", delivered.PickupCode)
	}
	if got := h.slotStatus(t, a.Slot.SlotID); got != domain.SlotOccupied {
		t.Fatalf("slot after drop-off = %s, want OCCUPIED", got)
	}
	if got := h.parcelStatus(t, a.Reservation.ParcelID); got != domain.ParcelInLocker {
		t.Fatalf("parcel after drop-off = %s, want IN_LOCKER", got)
	}
	if want := start.Add(5*time.Minute + 48*time.Hour); !delivered.PickupDeadline.Equal(want) {
		t.Fatalf("pickup deadline = %v, want %v", delivered.PickupDeadline, want)
	}

	h.clock.Advance(time.Hour)
	picked, err := h.locker.Lifecycle.Pickup(context.Background(), PickupInput{
		LocationID: "L1",
		Code:       " " + delivered.PickupCode + " ",
		Contact:    "ANA@example.com",
	})
	if err != nil {
		t.Fatalf("pickup: %v", err)
	}

	if picked.Status != domain.ReservationPickedUp || picked.PickedUpAt == nil || picked.PickupCode != "" {
		t.Fatalf("picked reservation = %+v", picked)
	}
	if got := h.slotStatus(t, a.Slot.SlotID); got != domain.SlotAvailable {
		t.Fatalf("slot after pickup = %s, want AVAILABLE", got)
	}
	if got := h.parcelStatus(t, a.Reservation.ParcelID); got != domain.ParcelPickedUp {
		t.Fatalf("parcel after pickup = %s, want PICKED_UP", got)
	}

	wantEvents := []string{ports.EventReadyForPickup, ports.EventPickedUp}
	if got := h.notifier.events(); !slices.Equal(got, wantEvents) {
		t.Fatalf("events = %v, want %v", got, wantEvents)
	}
	if code := h.notifier.sent[0].payload["pickup_code"]; code != delivered.PickupCode {
		t.Fatalf("ready notification code = %v, want %s", code, delivered.PickupCode)
	}
	wantAudit := []string{"reservation.created", "reservation.delivered", "reservation.picked_up"}
	if got := h.auditor.actions(); !slices.Equal(got, wantAudit) {
		t.Fatalf("audit = %v, want %v", got, wantAudit)
	}
	for _, e := range h.auditor.entries {
		if r, ok := e.After.(domain.Reservation); !ok || r.PickupCode != "" {
			t.Fatalf("audit entry %s leaks pickup code: %#v", e.Action, e.After)
		}
	}
}

func TestDropOffDeadlineIsExclusive(t *testing.T) {
	tests := []struct {
		name    string
		after   time.Duration
		wantErr error
	}{
		{name: "just before deadline", after: 30*time.Minute - time.Nanosecond},
		{name: "at deadline", after: 30 * time.Minute, wantErr: domain.ErrReservationExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Policy{DefaultReservationWindow: 30 * time.Minute})
			h.addLocation(t, "L1", domain.Coordinates{}, domain.SizeSmall)
			a := h.reserve(t, h.addParcel(t, domain.SizeSmall).ParcelID, "L1")

			h.clock.Advance(tt.after)
			_, err := h.locker.Lifecycle.ConfirmDropOff(context.Background(), a.Reservation.ReservationID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ConfirmDropOff err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				return
			}

			r := h.reservation(t, a.Reservation.ReservationID)
			if r.Status != domain.ReservationExpired || r.PickupCode != "" {
				t.Fatalf("late drop-off left reservation %+v", r)
			}
			if got := h.slotStatus(t, a.Slot.SlotID); got != domain.SlotAvailable {
				t.Fatalf("slot = %s, want AVAILABLE", got)
			}
			if got := h.parcelStatus(t, r.ParcelID); got != domain.ParcelExpired {
				t.Fatalf("parcel = %s, want EXPIRED", got)
			}
		})
	}
}

func TestDropOffTwice(t *testing.T) {
	h := newHarness(t, Policy{})
	a, _ := setupDelivered(t, h)

	_, err := h.locker.Lifecycle.ConfirmDropOff(context.Background(), a.Reservation.ReservationID)
	if !errors.Is(err, domain.ErrAlreadyDelivered) {
		t.Fatalf("second drop-off err = %v, want ErrAlreadyDelivered", err)
	}
}

func TestPickupWrongCode(t *testing.T) {
	h := newHarness(t, Policy{})
	a, delivered := setupDelivered(t, h)

	wrong := "ZZZZZZ"
	if wrong == delivered.PickupCode {
		wrong = "YYYYYY"
	}

	for _, code := range []string{wrong, "12", "O0O0O0"} {
		_, err := h.locker.Lifecycle.Pickup(context.Background(), PickupInput{LocationID: "L1", Code: code, Contact: recipient.Email})
		if !errors.Is(err, domain.ErrInvalidCode) {
			t.Fatalf("pickup with %q err = %v, want ErrInvalidCode", code, err)
		}
	}

	if r := h.reservation(t, a.Reservation.ReservationID); r.Status != domain.ReservationDelivered {
		t.Fatalf("reservation = %s, want DELIVERED", r.Status)
	}
	if got := h.slotStatus(t, a.Slot.SlotID); got != domain.SlotOccupied {
		t.Fatalf("slot = %s, want OCCUPIED", got)
	}
}

func TestPickupRecipientMismatch(t *testing.T) {
	h := newHarness(t, Policy{})
	a, delivered := setupDelivered(t, h)

	_, err := h.locker.Lifecycle.Pickup(context.Background(), PickupInput{
		LocationID: "L1", Code: delivered.PickupCode, Contact: "mallory@example.com",
	})
	if !errors.Is(err, domain.ErrRecipientMismatch) {
		t.Fatalf("err = %v, want ErrRecipientMismatch", err)
	}

	// Phone numbers match on digits only.
	_, err = h.locker.Lifecycle.Pickup(context.Background(), PickupInput{
		LocationID: "L1", Code: delivered.PickupCode, Contact: "602-555-0101",
	})
	if !errors.Is(err, domain.ErrRecipientMismatch) {
		t.Fatalf("partial phone err = %v, want ErrRecipientMismatch", err)
	}
	if _, err := h.locker.Lifecycle.Pickup(context.Background(), PickupInput{
		LocationID: "L1", Code: delivered.PickupCode, Contact: "+1 602 555 0101",
	}); err != nil {
		t.Fatalf("pickup by phone: %v", err)
	}
	if got := h.slotStatus(t, a.Slot.SlotID); got != domain.SlotAvailable {
		t.Fatalf("slot = %s, want AVAILABLE", got)
	}
}

func TestPickupWrongLocation(t *testing.T) {
	h := newHarness(t, Policy{})
	_, delivered := setupDelivered(t, h)
	h.addLocation(t, "L2", domain.Coordinates{}, domain.SizeSmall)

	_, err := h.locker.Lifecycle.Pickup(context.Background(), PickupInput{
		LocationID: "L2", Code: delivered.PickupCode, Contact: recipient.Email,
	})
	if !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("err = %v, want ErrInvalidCode", err)
	}
}

func TestPickupAfterDeadlineReclaimsInline(t *testing.T) {
	h := newHarness(t, Policy{PickupWindow: 24 * time.Hour})
	a, delivered := setupDelivered(t, h)

	h.clock.Advance(24 * time.Hour)
	_, err := h.locker.Lifecycle.Pickup(context.Background(), PickupInput{
		LocationID: "L1", Code: delivered.PickupCode, Contact: recipient.Email,
	})
	if !errors.Is(err, domain.ErrCodeExpired) {
		t.Fatalf("err = %v, want ErrCodeExpired", err)
	}

	r := h.reservation(t, a.Reservation.ReservationID)
	if r.Status != domain.ReservationExpired {
		t.Fatalf("reservation = %s, want EXPIRED", r.Status)
	}
	if got := h.slotStatus(t, a.Slot.SlotID); got != domain.SlotAvailable {
		t.Fatalf("slot = %s, want AVAILABLE", got)
	}
	if got := h.notifier.events(); got[len(got)-1] != ports.EventExpired {
		t.Fatalf("events = %v, want trailing %s", got, ports.EventExpired)
	}

	// The code is gone once the reservation is closed.
	_, err = h.locker.Lifecycle.Pickup(context.Background(), PickupInput{
		LocationID: "L1", Code: delivered.PickupCode, Contact: recipient.Email,
	})
	if !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("retry err = %v, want ErrInvalidCode", err)
	}
}

func TestConcurrentPickupSingleWinner(t *testing.T) {
	h := newHarness(t, Policy{})
	a, delivered := setupDelivered(t, h)

	var (
		won  = atomic.NewInt32(0)
		lost = atomic.NewInt32(0)
		g    errgroup.Group
	)
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			_, err := h.locker.Lifecycle.Pickup(context.Background(), PickupInput{
				LocationID: "L1", Code: delivered.PickupCode, Contact: recipient.Email,
			})
			switch {
			case err == nil:
				won.Inc()
			case errors.Is(err, domain.ErrAlreadyPickedUp), errors.Is(err, domain.ErrInvalidCode):
				lost.Inc()
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected pickup error: %v", err)
	}

	if won.Load() != 1 || lost.Load() != 4 {
		t.Fatalf("won=%d lost=%d, want 1 and 4", won.Load(), lost.Load())
	}
	if got := h.slotStatus(t, a.Slot.SlotID); got != domain.SlotAvailable {
		t.Fatalf("slot = %s, want AVAILABLE", got)
	}
}

func TestCancelBeforeDropOff(t *testing.T) {
	h := newHarness(t, Policy{})
	h.addLocation(t, "L1", domain.Coordinates{}, domain.SizeSmall)
	a := h.reserve(t, h.addParcel(t, domain.SizeSmall).ParcelID, "L1")

	r, err := h.locker.Lifecycle.Cancel(context.Background(), a.Reservation.ReservationID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if r.Status != domain.ReservationCancelled || r.PickupCode != "" || r.DeliveredAt != nil {
		t.Fatalf("cancelled reservation = %+v", r)
	}
	if got := h.slotStatus(t, a.Slot.SlotID); got != domain.SlotAvailable {
		t.Fatalf("slot = %s, want AVAILABLE", got)
	}
	if got := h.parcelStatus(t, r.ParcelID); got != domain.ParcelCancelled {
		t.Fatalf("parcel = %s, want CANCELLED", got)
	}
	if inUse, _ := h.store.PickupCodeInUse(context.Background(), ""); inUse {
		t.Fatalf("empty pickup code stored")
	}

	_, err = h.locker.Lifecycle.Cancel(context.Background(), a.Reservation.ReservationID)
	if !errors.Is(err, domain.ErrAlreadyTerminal) {
		t.Fatalf("second cancel err = %v, want ErrAlreadyTerminal", err)
	}
}

func TestCancelDelivered(t *testing.T) {
	h := newHarness(t, Policy{})
	a, delivered := setupDelivered(t, h)

	if _, err := h.locker.Lifecycle.Cancel(context.Background(), a.Reservation.ReservationID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := h.slotStatus(t, a.Slot.SlotID); got != domain.SlotAvailable {
		t.Fatalf("slot = %s, want AVAILABLE", got)
	}
	if inUse, _ := h.store.PickupCodeInUse(context.Background(), delivered.PickupCode); inUse {
		t.Fatalf("pickup code still stored after cancel")
	}
}

func TestUnknownReservation(t *testing.T) {
	h := newHarness(t, Policy{})

	if _, err := h.locker.Lifecycle.ConfirmDropOff(context.Background(), "nope"); !errors.Is(err, domain.ErrReservationNotFound) {
		t.Errorf("ConfirmDropOff err = %v", err)
	}
	if _, err := h.locker.Lifecycle.Cancel(context.Background(), "nope"); !errors.Is(err, domain.ErrReservationNotFound) {
		t.Errorf("Cancel err = %v", err)
	}
	if _, err := h.locker.Lifecycle.Status(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Status err = %v", err)
	}
}

func TestNotificationFailureKeepsTransition(t *testing.T) {
	h := newHarness(t, Policy{})
	h.notifier.err = errBoom
	a, delivered := setupDelivered(t, h)

	if delivered.Status != domain.ReservationDelivered {
		t.Fatalf("status = %s, want DELIVERED", delivered.Status)
	}
	if r := h.reservation(t, a.Reservation.ReservationID); r.Status != domain.ReservationDelivered {
		t.Fatalf("stored status = %s, want DELIVERED", r.Status)
	}
}

func TestStatusHidesCode(t *testing.T) {
	h := newHarness(t, Policy{})
	a, _ := setupDelivered(t, h)

	r, err := h.locker.Lifecycle.Status(context.Background(), a.Reservation.ReservationID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if r.Status != domain.ReservationDelivered || r.PickupCode != "" {
		t.Fatalf("status = %+v", r)
	}
}

func TestPickupGuard(t *testing.T) {
	guard := newMemGuard(2)
	h := newHarness(t, Policy{}, func(d *Deps) { d.Guard = guard })
	_, delivered := setupDelivered(t, h)

	in := PickupInput{LocationID: "L1", Code: "ZZZZZZ", Contact: recipient.Email}
	if delivered.PickupCode == in.Code {
		in.Code = "YYYYYY"
	}
	for i := 0; i < 2; i++ {
		if _, err := h.locker.Lifecycle.Pickup(context.Background(), in); !errors.Is(err, domain.ErrInvalidCode) {
			t.Fatalf("attempt %d err = %v, want ErrInvalidCode", i+1, err)
		}
	}

	in.Code = delivered.PickupCode
	if _, err := h.locker.Lifecycle.Pickup(context.Background(), in); !errors.Is(err, domain.ErrTooManyAttempts) {
		t.Fatalf("blocked attempt err = %v, want ErrTooManyAttempts", err)
	}

	// Another contact is tracked separately.
	other := in
	other.Contact = recipient.Phone
	if _, err := h.locker.Lifecycle.Pickup(context.Background(), other); err != nil {
		t.Fatalf("pickup by phone: %v", err)
	}
	if n := guard.failures[guardKey("L1", recipient.Phone)]; n != 0 {
		t.Fatalf("failures after success = %d", n)
	}
}

func TestPickupGuardFailsOpen(t *testing.T) {
	guard := newMemGuard(1)
	guard.err = errBoom
	h := newHarness(t, Policy{}, func(d *Deps) { d.Guard = guard })
	_, delivered := setupDelivered(t, h)

	if _, err := h.locker.Lifecycle.Pickup(context.Background(), PickupInput{
		LocationID: "L1", Code: delivered.PickupCode, Contact: recipient.Email,
	}); err != nil {
		t.Fatalf("pickup with broken guard: %v", err)
	}
}
