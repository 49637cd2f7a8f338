package services

import (
	"context"
	"errors"
	"fmt"
	"locker-reservation-service/internal/platform/obs"
	"locker-reservation-service/internal/ports"
	"log"
	"time"

	"go.uber.org/atomic"
)

// Upper bound on batches per sweep, so a sweep always terminates even while
// new reservations keep going stale.
const maxReclaimRounds = 10

// Reclaimer expires reservations whose deadline lapsed and returns their
// slots to the catalog. Sweeps may overlap; each reservation is reclaimed in
// its own guarded transaction, so a second sweep finds nothing left to do.
type Reclaimer struct {
	store     ports.LockerReader
	clock     ports.Clock
	lifecycle *Lifecycle
	batchSize int
	metrics   *obs.Metrics

	inFlight *atomic.Int32
	lastRun  *atomic.Time
}

func NewReclaimer(store ports.LockerReader, clk ports.Clock, lifecycle *Lifecycle, batchSize int, metrics *obs.Metrics) *Reclaimer {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Reclaimer{
		store:     store,
		clock:     clk,
		lifecycle: lifecycle,
		batchSize: batchSize,
		metrics:   metrics,
		inFlight:  atomic.NewInt32(0),
		lastRun:   atomic.NewTime(time.Time{}),
	}
}

// ReclaimExpired runs one sweep and returns how many reservations it expired.
// Errors on individual reservations do not stop the sweep; they are joined
// into the returned error.
func (r *Reclaimer) ReclaimExpired(ctx context.Context) (_ int, err error) {
	defer obs.Time(ctx, "reclaimer.ReclaimExpired")(&err)

	r.inFlight.Inc()
	defer r.inFlight.Dec()

	var (
		total int
		errs  []error
	)
	seen := make(map[string]struct{})

	for round := 0; round < maxReclaimRounds; round++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		stale, err := r.store.ListStaleReservations(ctx, r.clock.Now(), r.batchSize)
		if err != nil {
			errs = append(errs, fmt.Errorf("reclaim expired: %w", err))
			break
		}

		fresh := 0
		for _, res := range stale {
			if _, ok := seen[res.ReservationID]; ok {
				continue
			}
			seen[res.ReservationID] = struct{}{}
			fresh++

			ok, err := r.lifecycle.Reclaim(ctx, res.ReservationID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if ok {
				total++
			}
		}

		if fresh == 0 || len(stale) < r.batchSize {
			break
		}
	}

	r.metrics.IncSweep()
	r.lastRun.Store(r.clock.Now())
	if total > 0 {
		log.Printf("req_id=%s reclaim sweep reclaimed=%d", obs.RequestID(ctx), total)
	}

	return total, errors.Join(errs...)
}

// Run sweeps once per tick until ctx is done or ticks is closed. A tick that
// arrives while another sweep is running is skipped.
func (r *Reclaimer) Run(ctx context.Context, ticks <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			if r.inFlight.Load() > 0 {
				log.Printf("reclaim tick skipped: sweep in flight")
				continue
			}
			if _, err := r.ReclaimExpired(ctx); err != nil && ctx.Err() == nil {
				log.Printf("reclaim sweep failed err=%v", err)
			}
		}
	}
}

// LastRun reports when the most recent sweep finished; zero if none has.
func (r *Reclaimer) LastRun() time.Time { return r.lastRun.Load() }
