package reservoir

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// DefaultGridCellSizeDegrees is roughly 1.1 km of latitude per cell
const DefaultGridCellSizeDegrees = 0.01

// cellLists holds the per-direction passenger lists of one grid cell.
// A direction is immutable once spawned, so a passenger never moves between
// the two lists.
type cellLists struct {
	inbound  []*passenger.Passenger
	outbound []*passenger.Passenger
}

func (c *cellLists) listFor(d geo.Direction) *[]*passenger.Passenger {
	if d == geo.DirectionInbound {
		return &c.inbound
	}
	return &c.outbound
}

func (c *cellLists) empty() bool {
	return len(c.inbound) == 0 && len(c.outbound) == 0
}

// routeGrid is the per-route cell map; mutation under the per-route mutex
type routeGrid struct {
	mu    sync.Mutex
	cells map[shared.Cell]*cellLists
}

type routeRef struct {
	routeID   string
	cell      shared.Cell
	direction geo.Direction
}

// RouteReservoir holds ROUTE-kind passengers spawned along route paths,
// grid-indexed per route and per direction for proximity queries.
type RouteReservoir struct {
	mu     sync.RWMutex
	routes map[string]*routeGrid

	idxMu sync.Mutex
	index map[string]routeRef

	cellSize float64
	events   Events
	logger   logging.OperationLogger
	clock    shared.Clock

	stats Stats
}

var _ passenger.Reservoir = (*RouteReservoir)(nil)

// NewRouteReservoir creates an empty route reservoir. A non-positive cell
// size selects the default.
func NewRouteReservoir(cellSizeDegrees float64, events Events, logger logging.OperationLogger, clock shared.Clock) *RouteReservoir {
	if cellSizeDegrees <= 0 {
		cellSizeDegrees = DefaultGridCellSizeDegrees
	}
	if events == nil {
		events = NoopEvents{}
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &RouteReservoir{
		routes:   make(map[string]*routeGrid),
		index:    make(map[string]routeRef),
		cellSize: cellSizeDegrees,
		events:   events,
		logger:   logger,
		clock:    clock,
	}
}

func (r *RouteReservoir) gridFor(routeID string) *routeGrid {
	r.mu.RLock()
	g, ok := r.routes[routeID]
	r.mu.RUnlock()
	if ok {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok = r.routes[routeID]; ok {
		return g
	}
	g = &routeGrid{cells: make(map[shared.Cell]*cellLists)}
	r.routes[routeID] = g
	return g
}

// Spawn places a ROUTE-kind passenger into its grid cell. Duplicate ids are
// an idempotent no-op.
func (r *RouteReservoir) Spawn(p *passenger.Passenger) error {
	if p.Kind != passenger.KindRoute {
		return shared.NewValidationError("kind", "route reservoir accepts ROUTE passengers only")
	}
	if p.Status != passenger.StatusWaiting {
		return shared.NewStateError(fmt.Sprintf("cannot spawn passenger %s in status %s", p.ID, p.Status))
	}

	cell := shared.CellOf(p.Origin, r.cellSize)

	r.idxMu.Lock()
	if _, dup := r.index[p.ID]; dup {
		r.idxMu.Unlock()
		if r.logger != nil {
			r.logger.Log("WARN", "duplicate spawn ignored", map[string]interface{}{"passenger_id": p.ID})
		}
		return nil
	}
	r.index[p.ID] = routeRef{routeID: p.RouteID, cell: cell, direction: p.Direction}
	r.idxMu.Unlock()

	g := r.gridFor(p.RouteID)
	g.mu.Lock()
	lists, ok := g.cells[cell]
	if !ok {
		lists = &cellLists{}
		g.cells[cell] = lists
	}
	slot := lists.listFor(p.Direction)
	*slot = append(*slot, p)
	g.mu.Unlock()

	r.stats.Spawned.Add(1)
	r.stats.Waiting.Add(1)
	return nil
}

// Query enumerates the cells intersecting the search circle, filters by
// direction and distance, and returns the MaxCount nearest candidates.
// Ties break by higher priority, then earlier spawn time.
func (r *RouteReservoir) Query(q passenger.PickupQuery) ([]*passenger.Passenger, error) {
	direction := geo.Direction(q.Direction)
	if !direction.Valid() {
		return nil, shared.NewValidationError("direction", "must be OUTBOUND or INBOUND")
	}

	r.mu.RLock()
	g, ok := r.routes[q.RouteID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	type candidate struct {
		p    *passenger.Passenger
		dist float64
	}

	var candidates []candidate
	g.mu.Lock()
	for _, cell := range shared.CellsWithinRadius(q.VehiclePosition, q.MaxDistanceMeters, r.cellSize) {
		lists, ok := g.cells[cell]
		if !ok {
			continue
		}
		for _, p := range *lists.listFor(direction) {
			d := shared.HaversineMeters(p.Origin, q.VehiclePosition)
			if d <= q.MaxDistanceMeters {
				candidates = append(candidates, candidate{p: p, dist: d})
			}
		}
	}
	g.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		if candidates[i].p.Priority != candidates[j].p.Priority {
			return candidates[i].p.Priority > candidates[j].p.Priority
		}
		return candidates[i].p.SpawnTime.Before(candidates[j].p.SpawnTime)
	})

	maxCount := q.MaxCount
	if maxCount <= 0 || maxCount > len(candidates) {
		maxCount = len(candidates)
	}
	out := make([]*passenger.Passenger, 0, maxCount)
	for _, c := range candidates[:maxCount] {
		out = append(out, c.p)
	}
	return out, nil
}

// MarkPickedUp removes the passenger from its cell, transitions it to
// ONBOARD and emits passenger:boarded.
func (r *RouteReservoir) MarkPickedUp(passengerID, vehicleID string) (*passenger.Passenger, error) {
	r.idxMu.Lock()
	ref, ok := r.index[passengerID]
	r.idxMu.Unlock()
	if !ok {
		return nil, shared.NewNotFoundError("passenger", passengerID)
	}

	r.mu.RLock()
	g := r.routes[ref.routeID]
	r.mu.RUnlock()

	g.mu.Lock()
	var found *passenger.Passenger
	if lists, ok := g.cells[ref.cell]; ok {
		slot := lists.listFor(ref.direction)
		for i, p := range *slot {
			if p.ID == passengerID {
				if err := p.Board(vehicleID); err != nil {
					g.mu.Unlock()
					return nil, err
				}
				found = p
				*slot = append((*slot)[:i], (*slot)[i+1:]...)
				break
			}
		}
		if lists.empty() {
			delete(g.cells, ref.cell)
		}
	}
	g.mu.Unlock()

	if found == nil {
		return nil, shared.NewNotFoundError("passenger", passengerID)
	}

	r.idxMu.Lock()
	delete(r.index, passengerID)
	r.idxMu.Unlock()

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

// ExpirePass sweeps every route grid and removes WAITING passengers past
// expiry. Emptied cells are elided.
func (r *RouteReservoir) ExpirePass(now time.Time) []*passenger.Passenger {
	r.mu.RLock()
	grids := make([]*routeGrid, 0, len(r.routes))
	for _, g := range r.routes {
		grids = append(grids, g)
	}
	r.mu.RUnlock()

	var expired []*passenger.Passenger
	for _, g := range grids {
		g.mu.Lock()
		for cell, lists := range g.cells {
			lists.inbound = sweepList(lists.inbound, now, &expired)
			lists.outbound = sweepList(lists.outbound, now, &expired)
			if lists.empty() {
				delete(g.cells, cell)
			}
		}
		g.mu.Unlock()
	}

	for _, p := range expired {
		r.idxMu.Lock()
		delete(r.index, p.ID)
		r.idxMu.Unlock()

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

func sweepList(list []*passenger.Passenger, now time.Time, expired *[]*passenger.Passenger) []*passenger.Passenger {
	kept := list[:0]
	for _, p := range list {
		if p.ExpiredAt(now) {
			_ = p.Expire()
			*expired = append(*expired, p)
		} else {
			kept = append(kept, p)
		}
	}
	return kept
}

// Contains reports whether the passenger is currently indexed
func (r *RouteReservoir) Contains(passengerID string) bool {
	r.idxMu.Lock()
	defer r.idxMu.Unlock()
	_, ok := r.index[passengerID]
	return ok
}

// Stats returns a snapshot of the global counters
func (r *RouteReservoir) Stats() StatsSnapshot {
	return r.stats.Snapshot()
}
