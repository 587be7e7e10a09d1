package conductor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/commuter-go/internal/application/geocache"
	"github.com/andrescamacho/commuter-go/internal/application/location"
	"github.com/andrescamacho/commuter-go/internal/application/reservoir"
	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
	"github.com/andrescamacho/commuter-go/internal/domain/vehicle"
	"github.com/andrescamacho/commuter-go/test/helpers"
)

// scriptedDriver records requests and fails on demand
type scriptedDriver struct {
	stopErr   error
	departErr error
	stops     []StopRequestEvent
	departs   []DepartEvent
}

func (d *scriptedDriver) RequestStop(_ context.Context, ev StopRequestEvent) error {
	d.stops = append(d.stops, ev)
	return d.stopErr
}

func (d *scriptedDriver) RequestDepart(_ context.Context, ev DepartEvent) error {
	d.departs = append(d.departs, ev)
	return d.departErr
}

type alightRecorder struct {
	alighted []passenger.AlightedEvent
}

func (r *alightRecorder) PassengerAlighted(ev passenger.AlightedEvent) {
	r.alighted = append(r.alighted, ev)
}

var conductorStart = time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)

type fixture struct {
	veh      *vehicle.Vehicle
	driver   *scriptedDriver
	events   *alightRecorder
	depotRes *reservoir.DepotReservoir
	routeRes *reservoir.RouteReservoir
	loc      *location.Service
	clock    *shared.MockClock
	cond     *Conductor
}

func newFixture(t *testing.T, capacity int, source *helpers.StaticSource) *fixture {
	t.Helper()

	veh, err := vehicle.New("veh-1", "r1", geo.DirectionOutbound, capacity)
	require.NoError(t, err)

	clock := shared.NewMockClock(conductorStart)
	cache := geocache.New(source, clock)
	require.NoError(t, cache.Refresh(context.Background()))
	loc := location.New(cache)
	loc.RefreshFromCache()

	driver := &scriptedDriver{}
	events := &alightRecorder{}
	depotRes := reservoir.NewDepotReservoir(nil, nil, nil, clock)
	routeRes := reservoir.NewRouteReservoir(0, nil, nil, clock)

	cond := New(veh, cache, loc, depotRes, routeRes, nil, driver, events, &helpers.MapConfig{}, clock)
	return &fixture{
		veh: veh, driver: driver, events: events,
		depotRes: depotRes, routeRes: routeRes,
		loc: loc, clock: clock, cond: cond,
	}
}

func waitingRoutePassenger(t *testing.T, id string, origin, dest shared.Coordinate) *passenger.Passenger {
	t.Helper()
	p, err := passenger.New(id, origin, dest, "r1", geo.DirectionOutbound,
		passenger.KindRoute, 0.5, conductorStart, conductorStart.Add(30*time.Minute))
	require.NoError(t, err)
	return p
}

func TestStepIgnoresVehicleWithoutTelemetry(t *testing.T) {
	f := newFixture(t, 10, &helpers.StaticSource{})
	f.cond.Step(context.Background())
	assert.Equal(t, PhaseCruising, f.cond.Phase())
	assert.Empty(t, f.driver.stops)
}

func TestStalePositionDefersStopDecision(t *testing.T) {
	f := newFixture(t, 10, &helpers.StaticSource{})
	pos := shared.Coordinate{Lat: 0, Lon: 0}
	f.veh.UpdatePosition(pos, conductorStart)
	require.NoError(t, f.routeRes.Spawn(waitingRoutePassenger(t, "p1", pos, shared.Coordinate{Lat: 0.05, Lon: 0})))

	// The last position is older than one broadcast interval, so no stop
	// decision is made even with a passenger in range.
	f.clock.Advance(6 * time.Second)
	f.cond.Step(context.Background())
	assert.Equal(t, PhaseCruising, f.cond.Phase())
	assert.Empty(t, f.driver.stops)

	// Fresh telemetry resumes the cycle.
	f.veh.UpdatePosition(pos, f.clock.Now())
	f.cond.Step(context.Background())
	assert.Equal(t, PhaseBoarding, f.cond.Phase())
	require.Len(t, f.driver.stops, 1)
}

func TestBoardingCycleAlongRoute(t *testing.T) {
	f := newFixture(t, 10, &helpers.StaticSource{})
	pos := shared.Coordinate{Lat: 0, Lon: 0}
	f.veh.UpdatePosition(pos, conductorStart)

	p := waitingRoutePassenger(t, "p1", pos, shared.Coordinate{Lat: 0.05, Lon: 0})
	require.NoError(t, f.routeRes.Spawn(p))

	// First tick: stop requested, engine cut, passenger boards.
	f.cond.Step(context.Background())
	assert.Equal(t, PhaseBoarding, f.cond.Phase())
	assert.Equal(t, vehicle.EngineOff, f.veh.Engine())
	require.Len(t, f.driver.stops, 1)
	assert.Equal(t, 1, f.driver.stops[0].Waiting)
	assert.Equal(t, 1, f.cond.OnboardCount())
	assert.Equal(t, passenger.StatusOnboard, p.Status)
	assert.False(t, f.routeRes.Contains("p1"))

	// Stop duration (base 10s + 2s per boarding) has not elapsed yet.
	f.cond.Step(context.Background())
	assert.Equal(t, PhaseBoarding, f.cond.Phase())
	assert.Empty(t, f.driver.departs)

	// Past the deadline the conductor departs and the engine comes back.
	f.clock.Advance(13 * time.Second)
	f.cond.Step(context.Background())
	assert.Equal(t, PhaseCruising, f.cond.Phase())
	assert.Equal(t, vehicle.EngineOn, f.veh.Engine())
	require.Len(t, f.driver.departs, 1)
	assert.Equal(t, 1, f.driver.departs[0].Boarded)
	assert.Equal(t, 1, f.driver.departs[0].Onboard)
}

func TestFullVehicleDepartsImmediately(t *testing.T) {
	f := newFixture(t, 1, &helpers.StaticSource{})
	pos := shared.Coordinate{Lat: 0, Lon: 0}
	f.veh.UpdatePosition(pos, conductorStart)

	require.NoError(t, f.routeRes.Spawn(waitingRoutePassenger(t, "p1", pos, shared.Coordinate{Lat: 0.05, Lon: 0})))
	require.NoError(t, f.routeRes.Spawn(waitingRoutePassenger(t, "p2", pos, shared.Coordinate{Lat: 0.05, Lon: 0})))

	// Capacity 1: one boards, the vehicle is full with nobody alighting, so
	// the depart goes out in the same tick.
	f.cond.Step(context.Background())
	assert.Equal(t, PhaseCruising, f.cond.Phase())
	assert.Equal(t, 1, f.cond.OnboardCount())
	require.Len(t, f.driver.departs, 1)
	assert.True(t, f.routeRes.Contains("p2"), "second passenger keeps waiting")
}

func TestFullVehicleNeverRequestsStopForBoarding(t *testing.T) {
	f := newFixture(t, 0, &helpers.StaticSource{})
	pos := shared.Coordinate{Lat: 0, Lon: 0}
	f.veh.UpdatePosition(pos, conductorStart)
	require.NoError(t, f.routeRes.Spawn(waitingRoutePassenger(t, "p1", pos, shared.Coordinate{Lat: 0.05, Lon: 0})))

	f.cond.Step(context.Background())
	assert.Empty(t, f.driver.stops)
	assert.Equal(t, PhaseCruising, f.cond.Phase())
}

func TestUnacknowledgedStopRevertsToCruising(t *testing.T) {
	f := newFixture(t, 10, &helpers.StaticSource{})
	pos := shared.Coordinate{Lat: 0, Lon: 0}
	f.veh.UpdatePosition(pos, conductorStart)
	require.NoError(t, f.routeRes.Spawn(waitingRoutePassenger(t, "p1", pos, shared.Coordinate{Lat: 0.05, Lon: 0})))

	f.driver.stopErr = errors.New("driver timeout")
	f.cond.Step(context.Background())
	assert.Equal(t, PhaseCruising, f.cond.Phase())
	assert.Equal(t, vehicle.EngineOn, f.veh.Engine())
	assert.Equal(t, 0, f.cond.OnboardCount())
	assert.True(t, f.routeRes.Contains("p1"))

	// Driver recovers; the next tick retries the whole stop.
	f.driver.stopErr = nil
	f.cond.Step(context.Background())
	assert.Equal(t, PhaseBoarding, f.cond.Phase())
	assert.Equal(t, 1, f.cond.OnboardCount())
}

func TestUnacknowledgedDepartRetries(t *testing.T) {
	f := newFixture(t, 1, &helpers.StaticSource{})
	pos := shared.Coordinate{Lat: 0, Lon: 0}
	f.veh.UpdatePosition(pos, conductorStart)
	require.NoError(t, f.routeRes.Spawn(waitingRoutePassenger(t, "p1", pos, shared.Coordinate{Lat: 0.05, Lon: 0})))

	f.driver.departErr = errors.New("driver timeout")
	f.cond.Step(context.Background())
	assert.Equal(t, PhaseReadyToDepart, f.cond.Phase())
	assert.Equal(t, vehicle.EngineOff, f.veh.Engine())

	f.driver.departErr = nil
	f.cond.Step(context.Background())
	assert.Equal(t, PhaseCruising, f.cond.Phase())
	assert.Equal(t, vehicle.EngineOn, f.veh.Engine())
	assert.Len(t, f.driver.departs, 2)
}

func TestAlightingAtDestination(t *testing.T) {
	f := newFixture(t, 10, &helpers.StaticSource{})
	origin := shared.Coordinate{Lat: 0, Lon: 0}
	dest := shared.Coordinate{Lat: 0.05, Lon: 0}
	f.veh.UpdatePosition(origin, conductorStart)

	p := waitingRoutePassenger(t, "p1", origin, dest)
	require.NoError(t, f.routeRes.Spawn(p))

	// Board at the origin and depart.
	f.cond.Step(context.Background())
	f.clock.Advance(13 * time.Second)
	f.cond.Step(context.Background())
	require.Equal(t, PhaseCruising, f.cond.Phase())

	// Arrive at the destination: a stop happens with nobody waiting.
	f.veh.UpdatePosition(dest, f.clock.Now())
	f.cond.Step(context.Background())
	require.Len(t, f.driver.stops, 2)
	assert.Equal(t, 1, f.driver.stops[1].Alighting)
	assert.Equal(t, 0, f.cond.OnboardCount())
	assert.Equal(t, passenger.StatusAlighted, p.Status)
	require.Len(t, f.events.alighted, 1)
	assert.Equal(t, "p1", f.events.alighted[0].PassengerID)

	f.clock.Advance(13 * time.Second)
	f.cond.Step(context.Background())
	assert.Equal(t, PhaseCruising, f.cond.Phase())
	assert.Equal(t, 0, f.veh.OnboardCount())
}

func TestBoardsFromDepotQueueInsideDepotFence(t *testing.T) {
	depotLoc := shared.Coordinate{Lat: -33.45, Lon: -70.66}
	depot, err := geo.NewDepot("d1", "Central", depotLoc, []string{"r1"}, 10)
	require.NoError(t, err)
	fence, err := geo.NewCircleGeofence("d1-fence", geo.GeofenceTypeDepot, depotLoc, 80)
	require.NoError(t, err)
	fence.DepotID = "d1"

	f := newFixture(t, 10, &helpers.StaticSource{
		DepotList:    []*geo.Depot{depot},
		GeofenceList: []*geo.Geofence{fence},
	})
	f.veh.UpdatePosition(depotLoc, conductorStart)

	p, err := passenger.New("p1", depotLoc, shared.Coordinate{Lat: -33.40, Lon: -70.60},
		"r1", geo.DirectionOutbound, passenger.KindDepot, 0.5,
		conductorStart, conductorStart.Add(30*time.Minute))
	require.NoError(t, err)
	p.DepotID = "d1"
	require.NoError(t, f.depotRes.Spawn(p))

	f.cond.Step(context.Background())
	assert.Equal(t, PhaseBoarding, f.cond.Phase())
	require.Len(t, f.driver.stops, 1)
	assert.Equal(t, "d1", f.driver.stops[0].DepotID)
	assert.Equal(t, 1, f.cond.OnboardCount())
	assert.Equal(t, 0, f.depotRes.QueueLength("d1", "r1"))
}

func TestRouteScanAheadTriggersEarlyStop(t *testing.T) {
	route, err := geo.NewRoute("r1", "Line 1", []shared.Coordinate{
		{Lat: 0.00, Lon: 0},
		{Lat: 0.01, Lon: 0},
		{Lat: 0.02, Lon: 0},
	}, geo.TerminusFirst)
	require.NoError(t, err)

	f := newFixture(t, 10, &helpers.StaticSource{RouteList: []*geo.Route{route}})
	f.veh.UpdatePosition(shared.Coordinate{Lat: 0, Lon: 0}, conductorStart)

	// Passenger waits at the next waypoint, far outside the pickup radius of
	// the current position.
	ahead := shared.Coordinate{Lat: 0.01, Lon: 0}
	require.NoError(t, f.routeRes.Spawn(waitingRoutePassenger(t, "p1", ahead, shared.Coordinate{Lat: 0.05, Lon: 0})))

	f.cond.Step(context.Background())
	require.Len(t, f.driver.stops, 1)
	assert.Equal(t, 1, f.driver.stops[0].Waiting)
}
