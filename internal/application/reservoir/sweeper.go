package reservoir

import (
	"context"
	"time"

	"github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// Sweeper periodically expires WAITING passengers past their expiry time and
// keeps the durable passenger store consistent with the in-memory
// reservoirs. On its first pass it also expires orphaned WAITING records
// left behind by a previous process.
type Sweeper struct {
	reservoirs []passenger.Reservoir
	repo       passenger.Repository
	clock      shared.Clock

	interval time.Duration
	storeTTL time.Duration

	orphansSwept bool
}

// NewSweeper creates a sweeper over the given reservoirs. storeTTL bounds
// how long EXPIRED/ALIGHTED rows stay in the store before garbage
// collection.
func NewSweeper(reservoirs []passenger.Reservoir, repo passenger.Repository, interval, storeTTL time.Duration, clock shared.Clock) *Sweeper {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Sweeper{
		reservoirs: reservoirs,
		repo:       repo,
		clock:      clock,
		interval:   interval,
		storeTTL:   storeTTL,
	}
}

// Run loops until the context is cancelled
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// SweepOnce performs one expiration pass: reservoir sweep, store mirroring,
// orphan recovery and store garbage collection. A passenger id owned by more
// than one reservoir is a corrupted invariant and returns a FatalError.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	logger := logging.LoggerFromContext(ctx)
	now := s.clock.Now()

	totalExpired := 0
	seen := make(map[string]bool)
	for _, res := range s.reservoirs {
		for _, p := range res.ExpirePass(now) {
			if seen[p.ID] {
				return shared.NewFatalError("passenger " + p.ID + " present in more than one reservoir")
			}
			seen[p.ID] = true
			totalExpired++
			if s.repo != nil {
				if err := s.repo.Mark(ctx, p.ID, passenger.StatusExpired, now); err != nil {
					logger.Log("WARN", "failed to mark expired passenger in store", map[string]interface{}{
						"passenger_id": p.ID, "error": err.Error(),
					})
				}
			}
		}
	}

	if !s.orphansSwept {
		if err := s.sweepOrphans(ctx, now); err != nil {
			return err
		}
		s.orphansSwept = true
	}

	if s.repo != nil && s.storeTTL > 0 {
		deleted, err := s.repo.DeleteExpired(ctx, now.Add(-s.storeTTL))
		if err != nil {
			logger.Log("WARN", "passenger store GC failed", map[string]interface{}{"error": err.Error()})
		} else if deleted > 0 {
			logger.Log("DEBUG", "passenger store GC", map[string]interface{}{"deleted": deleted})
		}
	}

	if totalExpired > 0 {
		logger.Log("INFO", "expiration sweep", map[string]interface{}{"expired": totalExpired})
	}
	return nil
}

// sweepOrphans marks WAITING store records that no reservoir owns. These are
// leftovers from a previous process whose in-memory state is gone.
func (s *Sweeper) sweepOrphans(ctx context.Context, now time.Time) error {
	if s.repo == nil {
		return nil
	}
	logger := logging.LoggerFromContext(ctx)

	waiting, err := s.repo.ListWaiting(ctx)
	if err != nil {
		logger.Log("WARN", "orphan scan failed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	orphans := 0
	for _, p := range waiting {
		owners := 0
		for _, res := range s.reservoirs {
			if res.Contains(p.ID) {
				owners++
			}
		}
		if owners > 1 {
			return shared.NewFatalError("passenger " + p.ID + " present in more than one reservoir")
		}
		if owners == 1 {
			continue
		}
		orphans++
		if err := s.repo.Mark(ctx, p.ID, passenger.StatusExpired, now); err != nil {
			logger.Log("WARN", "failed to expire orphaned passenger", map[string]interface{}{
				"passenger_id": p.ID, "error": err.Error(),
			})
		}
	}
	if orphans > 0 {
		logger.Log("INFO", "expired orphaned WAITING records", map[string]interface{}{"count": orphans})
	}
	return nil
}
