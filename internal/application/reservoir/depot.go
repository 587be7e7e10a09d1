package reservoir

import (
	"fmt"
	"sync"
	"time"

	"github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// ExpireReasonTimeout and ExpireReasonOverflow label why a passenger was
// force-expired.
const (
	ExpireReasonTimeout  = "timeout"
	ExpireReasonOverflow = "overflow"
)

type queueKey struct {
	depotID string
	routeID string
}

// depotQueue is one FIFO of WAITING passengers for a (depot, route) pair.
// Mutation happens under the per-queue mutex only.
type depotQueue struct {
	mu         sync.Mutex
	passengers []*passenger.Passenger
	capacity   int

	spawned  int64
	pickedUp int64
	expired  int64
}

// DepotReservoir holds outbound passengers queueing at depots, FIFO per
// (depot_id, route_id). Queues are created on first insert and never deleted
// while the process lives.
type DepotReservoir struct {
	mu     sync.RWMutex
	queues map[queueKey]*depotQueue

	idxMu sync.Mutex
	index map[string]queueKey

	capacityFor func(depotID string) int
	events      Events
	logger      logging.OperationLogger
	clock       shared.Clock

	stats Stats
}

var _ passenger.Reservoir = (*DepotReservoir)(nil)

// NewDepotReservoir creates an empty depot reservoir. capacityFor resolves
// the per-queue cap from the depot record; a nil resolver or non-positive
// cap disables overflow eviction.
func NewDepotReservoir(capacityFor func(depotID string) int, events Events, logger logging.OperationLogger, clock shared.Clock) *DepotReservoir {
	if events == nil {
		events = NoopEvents{}
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &DepotReservoir{
		queues:      make(map[queueKey]*depotQueue),
		index:       make(map[string]queueKey),
		capacityFor: capacityFor,
		events:      events,
		logger:      logger,
		clock:       clock,
	}
}

func (r *DepotReservoir) queueFor(key queueKey) *depotQueue {
	r.mu.RLock()
	q, ok := r.queues[key]
	r.mu.RUnlock()
	if ok {
		return q
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok = r.queues[key]; ok {
		return q
	}
	capacity := 0
	if r.capacityFor != nil {
		capacity = r.capacityFor(key.depotID)
	}
	q = &depotQueue{capacity: capacity}
	r.queues[key] = q
	return q
}

// Spawn appends a DEPOT-kind passenger to its queue. Duplicate ids are an
// idempotent no-op; a full queue force-expires its oldest passenger with an
// overflow reason.
func (r *DepotReservoir) Spawn(p *passenger.Passenger) error {
	if p.Kind != passenger.KindDepot {
		return shared.NewValidationError("kind", "depot reservoir accepts DEPOT passengers only")
	}
	if p.DepotID == "" {
		return shared.NewValidationError("depot_id", "cannot be empty")
	}
	if p.Status != passenger.StatusWaiting {
		return shared.NewStateError(fmt.Sprintf("cannot spawn passenger %s in status %s", p.ID, p.Status))
	}

	r.idxMu.Lock()
	if _, dup := r.index[p.ID]; dup {
		r.idxMu.Unlock()
		if r.logger != nil {
			r.logger.Log("WARN", "duplicate spawn ignored", map[string]interface{}{"passenger_id": p.ID})
		}
		return nil
	}
	key := queueKey{depotID: p.DepotID, routeID: p.RouteID}
	r.index[p.ID] = key
	r.idxMu.Unlock()

	q := r.queueFor(key)

	var evicted *passenger.Passenger
	q.mu.Lock()
	if q.capacity > 0 && len(q.passengers) >= q.capacity {
		evicted = q.passengers[0]
		q.passengers = q.passengers[1:]
		_ = evicted.Expire()
		q.expired++
	}
	q.passengers = append(q.passengers, p)
	q.spawned++
	q.mu.Unlock()

	r.stats.Spawned.Add(1)
	r.stats.Waiting.Add(1)

	if evicted != nil {
		r.dropFromIndex(evicted.ID)
		r.stats.Expired.Add(1)
		r.stats.Waiting.Add(-1)
		r.events.PassengerExpired(passenger.ExpiredEvent{
			PassengerID: evicted.ID,
			RouteID:     evicted.RouteID,
			Reason:      ExpireReasonOverflow,
			ExpiredAt:   r.clock.Now(),
		})
	}
	return nil
}

// Query returns up to MaxCount passengers from the head of the FIFO whose
// spawn point lies within MaxDistanceMeters of the vehicle. Order is
// preserved; nothing is removed.
func (r *DepotReservoir) Query(q passenger.PickupQuery) ([]*passenger.Passenger, error) {
	if q.DepotID == "" {
		return nil, shared.NewValidationError("depot_id", "cannot be empty")
	}
	key := queueKey{depotID: q.DepotID, routeID: q.RouteID}

	r.mu.RLock()
	queue, ok := r.queues[key]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	queue.mu.Lock()
	defer queue.mu.Unlock()

	maxCount := q.MaxCount
	if maxCount <= 0 {
		maxCount = len(queue.passengers)
	}

	var out []*passenger.Passenger
	for _, p := range queue.passengers {
		if len(out) >= maxCount {
			break
		}
		if q.MaxDistanceMeters > 0 && shared.HaversineMeters(p.Origin, q.VehiclePosition) > q.MaxDistanceMeters {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// MarkPickedUp removes the passenger from its queue, transitions it to
// ONBOARD and emits passenger:boarded.
func (r *DepotReservoir) MarkPickedUp(passengerID, vehicleID string) (*passenger.Passenger, error) {
	r.idxMu.Lock()
	key, ok := r.index[passengerID]
	r.idxMu.Unlock()
	if !ok {
		return nil, shared.NewNotFoundError("passenger", passengerID)
	}

	r.mu.RLock()
	queue := r.queues[key]
	r.mu.RUnlock()

	queue.mu.Lock()
	var found *passenger.Passenger
	for i, p := range queue.passengers {
		if p.ID == passengerID {
			if err := p.Board(vehicleID); err != nil {
				queue.mu.Unlock()
				return nil, err
			}
			found = p
			queue.passengers = append(queue.passengers[:i], queue.passengers[i+1:]...)
			queue.pickedUp++
			break
		}
	}
	queue.mu.Unlock()

	if found == nil {
		return nil, shared.NewNotFoundError("passenger", passengerID)
	}

	r.dropFromIndex(passengerID)
	r.stats.PickedUp.Add(1)
	r.stats.Waiting.Add(-1)
	r.events.PassengerBoarded(passenger.BoardedEvent{
		PassengerID: found.ID,
		VehicleID:   vehicleID,
		RouteID:     found.RouteID,
		BoardedAt:   r.clock.Now(),
	})
	return found, nil
}

// ExpirePass sweeps every queue and removes WAITING passengers past expiry
func (r *DepotReservoir) ExpirePass(now time.Time) []*passenger.Passenger {
	r.mu.RLock()
	queues := make([]*depotQueue, 0, len(r.queues))
	for _, q := range r.queues {
		queues = append(queues, q)
	}
	r.mu.RUnlock()

	var expired []*passenger.Passenger
	for _, q := range queues {
		q.mu.Lock()
		kept := q.passengers[:0]
		for _, p := range q.passengers {
			if p.ExpiredAt(now) {
				_ = p.Expire()
				q.expired++
				expired = append(expired, p)
			} else {
				kept = append(kept, p)
			}
		}
		q.passengers = kept
		q.mu.Unlock()
	}

	for _, p := range expired {
		r.dropFromIndex(p.ID)
		r.stats.Expired.Add(1)
		r.stats.Waiting.Add(-1)
		r.events.PassengerExpired(passenger.ExpiredEvent{
			PassengerID: p.ID,
			RouteID:     p.RouteID,
			Reason:      ExpireReasonTimeout,
			ExpiredAt:   now,
		})
	}
	return expired
}

// Contains reports whether the passenger is currently queued
func (r *DepotReservoir) Contains(passengerID string) bool {
	r.idxMu.Lock()
	defer r.idxMu.Unlock()
	_, ok := r.index[passengerID]
	return ok
}

// QueueLength returns the FIFO length for one (depot, route) pair
func (r *DepotReservoir) QueueLength(depotID, routeID string) int {
	r.mu.RLock()
	queue, ok := r.queues[queueKey{depotID: depotID, routeID: routeID}]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	queue.mu.Lock()
	defer queue.mu.Unlock()
	return len(queue.passengers)
}

// Stats returns a snapshot of the global counters
func (r *DepotReservoir) Stats() StatsSnapshot {
	return r.stats.Snapshot()
}

func (r *DepotReservoir) dropFromIndex(passengerID string) {
	r.idxMu.Lock()
	delete(r.index, passengerID)
	r.idxMu.Unlock()
}
