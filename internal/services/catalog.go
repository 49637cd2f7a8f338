package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/ports"
	"slices"
	"time"
)

const (
	// Candidates fetched per listing.
	claimCandidates = 8
	// Listings per size before giving up on it.
	claimRounds = 3
)

// Catalog is the slot inventory: lookup, claim and release of slots.
type Catalog struct {
	store  ports.LockerStore
	clock  ports.Clock
	policy Policy
}

func NewCatalog(store ports.LockerStore, clk ports.Clock, policy Policy) *Catalog {
	return &Catalog{store: store, clock: clk, policy: policy.withDefaults()}
}

// FindAvailableSlot returns the slot a reservation at locationID would get
// right now, without claiming it.
func (c *Catalog) FindAvailableSlot(ctx context.Context, locationID string, size domain.Size) (*domain.Slot, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("find available slot: size %q: %w", size, domain.ErrInvalidArgument)
	}

	for _, loc := range c.searchOrder(ctx, c.store, locationID) {
		for _, s := range size.Fitting(c.policy.AllowLargerSlots) {
			slots, err := c.store.ListSlotCandidates(ctx, loc, s, 1)
			if err != nil {
				return nil, fmt.Errorf("find available slot: %w", err)
			}
			if len(slots) > 0 {
				return slots[0], nil
			}
		}
	}

	if _, err := c.store.GetLocation(ctx, locationID); err != nil {
		return nil, fmt.Errorf("find available slot: %w", err)
	}
	return nil, domain.ErrNoCapacity
}

// Claim reserves one slot for reservationID inside tx: exact size at the
// requested location first, then larger sizes and nearby locations when the
// policy allows them.
func (c *Catalog) Claim(
	ctx context.Context,
	tx ports.LockerTx,
	locationID string,
	size domain.Size,
	reservationID string,
	now time.Time,
) (*domain.Slot, error) {
	for _, loc := range c.searchOrder(ctx, tx, locationID) {
		for _, s := range size.Fitting(c.policy.AllowLargerSlots) {
			slot, err := c.claimAt(ctx, tx, loc, s, reservationID, now)
			if errors.Is(err, domain.ErrNoCapacity) {
				continue
			}
			if err != nil {
				return nil, err
			}
			return slot, nil
		}
	}

	return nil, domain.ErrNoCapacity
}

// claimAt compare-and-swaps candidates from AVAILABLE to RESERVED in order.
// A lost swap moves on to the next candidate; an exhausted list is re-read a
// bounded number of times.
func (c *Catalog) claimAt(
	ctx context.Context,
	tx ports.LockerTx,
	locationID string,
	size domain.Size,
	reservationID string,
	now time.Time,
) (*domain.Slot, error) {
	for round := 0; round < claimRounds; round++ {
		candidates, err := tx.ListSlotCandidates(ctx, locationID, size, claimCandidates)
		if err != nil {
			return nil, fmt.Errorf("claim slot: %w", err)
		}
		if len(candidates) == 0 {
			return nil, domain.ErrNoCapacity
		}

		for _, slot := range candidates {
			err := c.MarkReserved(ctx, tx, slot.SlotID, reservationID, now)
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			if err != nil {
				return nil, err
			}

			slot.Status = domain.SlotReserved
			slot.CurrentReservationID = reservationID
			slot.Version++
			slot.UpdatedAt = now
			return slot, nil
		}
	}

	return nil, domain.ErrNoCapacity
}

// MarkReserved moves a slot AVAILABLE -> RESERVED. It fails with
// domain.ErrConflict when the slot is no longer available.
func (c *Catalog) MarkReserved(ctx context.Context, tx ports.LockerTx, slotID, reservationID string, now time.Time) error {
	if err := tx.ClaimSlot(ctx, slotID, reservationID, now); err != nil {
		return fmt.Errorf("mark reserved: %w", err)
	}
	return nil
}

// Release returns a slot held by reservationID to AVAILABLE.
func (c *Catalog) Release(ctx context.Context, tx ports.LockerTx, slotID, reservationID string, now time.Time) error {
	if err := tx.ReleaseSlot(ctx, slotID, reservationID, now); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// SetMaintenance toggles a free slot between AVAILABLE and MAINTENANCE.
// Slots held by a reservation cannot be taken out of service.
func (c *Catalog) SetMaintenance(ctx context.Context, slotID string, enabled bool) (*domain.Slot, error) {
	from, to := domain.SlotAvailable, domain.SlotMaintenance
	if !enabled {
		from, to = to, from
	}

	var out *domain.Slot
	err := c.store.InTx(ctx, func(tx ports.LockerTx) error {
		slot, err := tx.GetSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.Status == to {
			out = slot
			return nil
		}
		if slot.Held() {
			return fmt.Errorf("slot %s is held by reservation %s: %w",
				slotID, slot.CurrentReservationID, domain.ErrConflict)
		}
		if slot.Status != from {
			return fmt.Errorf("slot %s is %s: %w", slotID, slot.Status, domain.ErrConflict)
		}

		now := c.clock.Now()
		if err := tx.SetSlotStatus(ctx, slotID, from, to, now); err != nil {
			return err
		}

		slot.Status = to
		slot.Version++
		slot.UpdatedAt = now
		out = slot
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set maintenance: %w", err)
	}

	return out, nil
}

// Availability counts AVAILABLE slots per size at a location. Every size is
// present in the result.
func (c *Catalog) Availability(ctx context.Context, locationID string) (map[domain.Size]int, error) {
	if _, err := c.store.GetLocation(ctx, locationID); err != nil {
		return nil, fmt.Errorf("availability: %w", err)
	}

	counts, err := c.store.CountAvailable(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("availability: %w", err)
	}

	out := make(map[domain.Size]int, len(domain.Sizes))
	for _, s := range domain.Sizes {
		out[s] = counts[s]
	}
	return out, nil
}

// searchOrder lists the requested location followed, when nearby fallback is
// enabled, by other locations within the radius, nearest first.
func (c *Catalog) searchOrder(ctx context.Context, r ports.LockerReader, locationID string) []string {
	order := []string{locationID}
	if !c.policy.NearbyFallback {
		return order
	}

	origin, err := r.GetLocation(ctx, locationID)
	if err != nil {
		return order
	}
	all, err := r.ListLocations(ctx)
	if err != nil {
		return order
	}

	type nearby struct {
		id     string
		meters float64
	}
	near := make([]nearby, 0, len(all))
	for _, l := range all {
		if l.LocationID == locationID {
			continue
		}
		d := origin.Coords.DistanceMeters(l.Coords)
		if d <= c.policy.NearbyRadiusMeters {
			near = append(near, nearby{id: l.LocationID, meters: d})
		}
	}

	// Tie-breaker keeps the order deterministic for equidistant locations.
	slices.SortFunc(near, func(a, b nearby) int {
		if n := cmp.Compare(a.meters, b.meters); n != 0 {
			return n
		}
		return cmp.Compare(a.id, b.id)
	})

	for _, n := range near {
		order = append(order, n.id)
	}
	return order
}
