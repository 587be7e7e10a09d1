package conductor

import (
	"context"
	"time"

	"github.com/andrescamacho/commuter-go/internal/application/geocache"
	"github.com/andrescamacho/commuter-go/internal/application/location"
	"github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/application/ports"
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
	"github.com/andrescamacho/commuter-go/internal/domain/vehicle"
	"github.com/andrescamacho/commuter-go/pkg/utils"
)

// Phase is the per-vehicle boarding cycle state
type Phase string

const (
	PhaseCruising      Phase = "CRUISING"
	PhaseStopRequested Phase = "STOP_REQUESTED"
	PhaseBoarding      Phase = "BOARDING"
	PhaseReadyToDepart Phase = "READY_TO_DEPART"
)

// Hub event types produced by the conductor
const (
	EventRequestStop = "conductor:request:stop"
	EventReadyDepart = "conductor:ready:depart"
)

// StopRequestEvent asks the driver layer to halt the vehicle for boarding
type StopRequestEvent struct {
	VehicleID  string `json:"vehicle_id"`
	Waiting    int    `json:"waiting"`
	Alighting  int    `json:"alighting"`
	DepotID    string `json:"depot_id,omitempty"`
	RequestsAt string `json:"requests_at,omitempty"`
}

// DepartEvent tells the driver layer boarding is complete
type DepartEvent struct {
	VehicleID string `json:"vehicle_id"`
	Boarded   int    `json:"boarded"`
	Alighted  int    `json:"alighted"`
	Onboard   int    `json:"onboard"`
}

// Driver is the correlated request path to the driver layer. Both calls block
// until the driver acknowledges or the configured response timeout elapses.
type Driver interface {
	RequestStop(ctx context.Context, ev StopRequestEvent) error
	RequestDepart(ctx context.Context, ev DepartEvent) error
}

// Events receives passenger alighting notifications
type Events interface {
	PassengerAlighted(ev passenger.AlightedEvent)
}

// NoopEvents discards all notifications
type NoopEvents struct{}

func (NoopEvents) PassengerAlighted(passenger.AlightedEvent) {}

// Conductor runs the boarding cycle for one vehicle. It is single-goroutine:
// all phase transitions happen inside Step, so the only shared state is the
// vehicle itself (which carries its own lock) and the reservoirs.
type Conductor struct {
	veh      *vehicle.Vehicle
	cache    *geocache.Cache
	loc      *location.Service
	depotRes passenger.Reservoir
	routeRes passenger.Reservoir
	repo     passenger.Repository
	driver   Driver
	events   Events
	cfg      ports.ConfigView
	clock    shared.Clock

	phase   Phase
	onboard map[string]*passenger.Passenger

	// per-stop accounting; reset when a new stop begins
	stopStartedAt time.Time
	stopBoarded   int
	stopAlighted  int
	stopDepotID   string
}

// New creates a conductor in the CRUISING phase
func New(
	veh *vehicle.Vehicle,
	cache *geocache.Cache,
	loc *location.Service,
	depotRes, routeRes passenger.Reservoir,
	repo passenger.Repository,
	driver Driver,
	events Events,
	cfg ports.ConfigView,
	clock shared.Clock,
) *Conductor {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if events == nil {
		events = NoopEvents{}
	}
	return &Conductor{
		veh:      veh,
		cache:    cache,
		loc:      loc,
		depotRes: depotRes,
		routeRes: routeRes,
		repo:     repo,
		driver:   driver,
		events:   events,
		cfg:      cfg,
		clock:    clock,
		phase:    PhaseCruising,
		onboard:  make(map[string]*passenger.Passenger),
	}
}

// Phase returns the current boarding cycle phase
func (c *Conductor) Phase() Phase { return c.phase }

// OnboardCount returns how many passengers the conductor tracks aboard
func (c *Conductor) OnboardCount() int { return len(c.onboard) }

// Run steps the boarding cycle at the monitoring interval until cancelled
func (c *Conductor) Run(ctx context.Context) error {
	interval := c.cfg.Duration("conductor.monitoring_interval_seconds", 2*time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Step(ctx)
		}
	}
}

// Step advances the boarding cycle by one monitoring tick. A vehicle without
// telemetry yet is left alone.
func (c *Conductor) Step(ctx context.Context) {
	pos, at := c.veh.Position()
	if at.IsZero() {
		return
	}

	switch c.phase {
	case PhaseCruising:
		// Stop decisions need a position no older than one broadcast
		// interval; a boarding already in progress runs to completion.
		maxAge := c.cfg.Duration("driver.waypoints.broadcast_interval_seconds", 5*time.Second)
		if c.clock.Now().Sub(at) > maxAge {
			logging.LoggerFromContext(ctx).Log("DEBUG", "position too stale for a stop decision", map[string]interface{}{
				"vehicle_id": c.veh.ID(), "age": c.clock.Now().Sub(at).String(),
			})
			return
		}
		c.stepCruising(ctx, pos)
	case PhaseBoarding:
		c.stepBoarding(ctx, pos)
	case PhaseReadyToDepart:
		c.stepDepart(ctx)
	}
}

// stepCruising decides whether to stop: passengers wait within pickup range
// (or ahead on the route), or somebody aboard wants to alight here.
func (c *Conductor) stepCruising(ctx context.Context, pos shared.Coordinate) {
	logger := logging.LoggerFromContext(ctx)

	alighting := len(c.alighters(pos))
	depotID, atDepot := c.loc.DepotAt(pos)

	waiting := 0
	if c.veh.RemainingCapacity() > 0 {
		waiting = c.countWaiting(ctx, pos, depotID, atDepot)
	}
	if waiting == 0 && alighting == 0 {
		return
	}

	c.phase = PhaseStopRequested
	err := c.driver.RequestStop(ctx, StopRequestEvent{
		VehicleID: c.veh.ID(),
		Waiting:   waiting,
		Alighting: alighting,
		DepotID:   depotID,
	})
	if err != nil {
		// Driver did not acknowledge; abort the stop and retry on a
		// later tick.
		logger.Log("WARN", "driver did not acknowledge stop request", map[string]interface{}{
			"vehicle_id": c.veh.ID(), "error": err.Error(),
		})
		c.phase = PhaseCruising
		return
	}

	c.veh.SetEngine(vehicle.EngineOff)
	c.phase = PhaseBoarding
	c.stopStartedAt = c.clock.Now()
	c.stopBoarded = 0
	c.stopAlighted = 0
	c.stopDepotID = ""
	if atDepot {
		c.stopDepotID = depotID
	}

	c.stepBoarding(ctx, pos)
}

// stepBoarding boards and alights passengers, then departs once the stop
// duration elapses or capacity is exhausted with nobody left to alight.
func (c *Conductor) stepBoarding(ctx context.Context, pos shared.Coordinate) {
	c.stopAlighted += c.alight(ctx, pos)
	c.stopBoarded += c.board(ctx, pos)

	deadline := c.stopStartedAt.Add(c.stopDuration())
	full := c.veh.RemainingCapacity() == 0 && len(c.alighters(pos)) == 0
	if full || !c.clock.Now().Before(deadline) {
		c.phase = PhaseReadyToDepart
		c.stepDepart(ctx)
	}
}

// stepDepart asks the driver to resume. An unacknowledged depart stays in
// READY_TO_DEPART and retries on the next tick.
func (c *Conductor) stepDepart(ctx context.Context) {
	err := c.driver.RequestDepart(ctx, DepartEvent{
		VehicleID: c.veh.ID(),
		Boarded:   c.stopBoarded,
		Alighted:  c.stopAlighted,
		Onboard:   c.veh.OnboardCount(),
	})
	if err != nil {
		logging.LoggerFromContext(ctx).Log("WARN", "driver did not acknowledge depart", map[string]interface{}{
			"vehicle_id": c.veh.ID(), "error": err.Error(),
		})
		return
	}
	c.veh.SetEngine(vehicle.EngineOn)
	c.phase = PhaseCruising
}

// countWaiting sizes the pickup opportunity at the current position plus a
// short scan ahead along the route.
func (c *Conductor) countWaiting(ctx context.Context, pos shared.Coordinate, depotID string, atDepot bool) int {
	candidates := c.query(ctx, pos, depotID, atDepot, 0)
	seen := make(map[string]struct{}, len(candidates))
	for _, p := range candidates {
		seen[p.ID] = struct{}{}
	}

	// Scan upcoming waypoints so the stop request goes out before the
	// vehicle passes the passengers.
	if route, ok := c.cache.Snapshot().RouteByID[c.veh.RouteID()]; ok {
		idx, _ := route.NearestVertex(pos)
		scan := c.cfg.Int("conductor.route_scan_waypoints", 5)
		for _, wp := range route.WaypointsAhead(idx, scan, c.veh.Direction()) {
			for _, p := range c.query(ctx, wp, "", false, 0) {
				seen[p.ID] = struct{}{}
			}
		}
	}
	return len(seen)
}

// query asks the owning reservoir for candidates near a position. maxCount
// zero means no cap.
func (c *Conductor) query(ctx context.Context, pos shared.Coordinate, depotID string, atDepot bool, maxCount int) []*passenger.Passenger {
	q := passenger.PickupQuery{
		RouteID:           c.veh.RouteID(),
		Direction:         string(c.veh.Direction()),
		VehiclePosition:   pos,
		MaxDistanceMeters: c.cfg.Float("conductor.pickup_radius_meters", 100),
		MaxCount:          maxCount,
	}

	res := c.routeRes
	if atDepot {
		q.DepotID = depotID
		res = c.depotRes
	}

	out, err := res.Query(q)
	if err != nil {
		logging.LoggerFromContext(ctx).Log("WARN", "reservoir query failed", map[string]interface{}{
			"vehicle_id": c.veh.ID(), "error": err.Error(),
		})
		return nil
	}
	return out
}

// board moves candidates from the reservoir onto the vehicle. The vehicle
// seat is taken first so a concurrent boarder can never push the onboard set
// past capacity; a failed reservoir handoff releases the seat.
func (c *Conductor) board(ctx context.Context, pos shared.Coordinate) int {
	logger := logging.LoggerFromContext(ctx)

	remaining := c.veh.RemainingCapacity()
	if remaining <= 0 {
		return 0
	}

	depotID, atDepot := c.loc.DepotAt(pos)
	candidates := c.query(ctx, pos, depotID, atDepot, remaining)

	res := c.routeRes
	if atDepot {
		res = c.depotRes
	}

	boarded := 0
	for _, cand := range candidates {
		if err := c.veh.TryBoard(cand.ID); err != nil {
			break
		}
		p, err := res.MarkPickedUp(cand.ID, c.veh.ID())
		if err != nil {
			_ = c.veh.Disembark(cand.ID)
			logger.Log("WARN", "pickup handoff failed", map[string]interface{}{
				"passenger_id": cand.ID, "error": err.Error(),
			})
			continue
		}
		c.onboard[p.ID] = p
		boarded++

		if c.repo != nil {
			if err := c.repo.Mark(ctx, p.ID, passenger.StatusOnboard, c.clock.Now()); err != nil {
				logger.Log("WARN", "failed to mark passenger ONBOARD in store", map[string]interface{}{
					"passenger_id": p.ID, "error": err.Error(),
				})
			}
		}
	}
	return boarded
}

// alighters returns the onboard passengers whose destination lies within the
// alight radius of the position.
func (c *Conductor) alighters(pos shared.Coordinate) []*passenger.Passenger {
	radius := c.cfg.Float("conductor.alight_radius_meters", 50)
	var out []*passenger.Passenger
	for _, p := range c.onboard {
		if shared.HaversineMeters(p.Destination, pos) <= radius {
			out = append(out, p)
		}
	}
	return out
}

// alight completes trips for passengers whose destination is here
func (c *Conductor) alight(ctx context.Context, pos shared.Coordinate) int {
	logger := logging.LoggerFromContext(ctx)
	now := c.clock.Now()

	alighted := 0
	for _, p := range c.alighters(pos) {
		if err := p.Alight(); err != nil {
			logger.Log("WARN", "alight transition failed", map[string]interface{}{
				"passenger_id": p.ID, "error": err.Error(),
			})
			continue
		}
		_ = c.veh.Disembark(p.ID)
		delete(c.onboard, p.ID)
		alighted++

		if c.repo != nil {
			if err := c.repo.Mark(ctx, p.ID, passenger.StatusAlighted, now); err != nil {
				logger.Log("WARN", "failed to mark passenger ALIGHTED in store", map[string]interface{}{
					"passenger_id": p.ID, "error": err.Error(),
				})
			}
		}

		c.events.PassengerAlighted(passenger.AlightedEvent{
			PassengerID: p.ID,
			VehicleID:   c.veh.ID(),
			RouteID:     p.RouteID,
			Position:    pos,
			AlightedAt:  now,
		})
	}
	return alighted
}

// stopDuration derives how long the current stop lasts from the work done so
// far, clamped to the configured bounds.
func (c *Conductor) stopDuration() time.Duration {
	base := c.cfg.Float("conductor.stop_duration.base_seconds", 10)
	perBoard := c.cfg.Float("conductor.stop_duration.per_boarding_seconds", 2)
	perAlight := c.cfg.Float("conductor.stop_duration.per_alighting_seconds", 1.5)
	minSec := c.cfg.Float("conductor.stop_duration.min_seconds", 5)
	maxSec := c.cfg.Float("conductor.stop_duration.max_seconds", 120)

	sec := utils.Clamp(base+perBoard*float64(c.stopBoarded)+perAlight*float64(c.stopAlighted), minSec, maxSec)
	return time.Duration(sec * float64(time.Second))
}
