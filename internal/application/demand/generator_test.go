package demand

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/commuter-go/internal/application/geocache"
	"github.com/andrescamacho/commuter-go/internal/application/reservoir"
	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
	"github.com/andrescamacho/commuter-go/test/helpers"
)

// 2026-08-24 is a Monday; hour 8 is residential morning peak.
var tickAt = time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)

type countingRepo struct {
	inserted []*passenger.Passenger
}

func (r *countingRepo) Insert(_ context.Context, p *passenger.Passenger) error {
	r.inserted = append(r.inserted, p)
	return nil
}

func (r *countingRepo) Mark(context.Context, string, passenger.Status, time.Time) error {
	return nil
}

func (r *countingRepo) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

func (r *countingRepo) Query(context.Context, passenger.QueryFilter) ([]*passenger.Passenger, error) {
	return nil, nil
}

func (r *countingRepo) ListWaiting(context.Context) ([]*passenger.Passenger, error) {
	return nil, nil
}

type spawnRecorder struct {
	spawned []passenger.SpawnedEvent
}

func (r *spawnRecorder) CommuterSpawned(ev passenger.SpawnedEvent) {
	r.spawned = append(r.spawned, ev)
}

func residentialZone(t *testing.T) *geo.Zone {
	t.Helper()
	zone, err := geo.NewZone("z1", geo.ZoneResidential, []shared.Coordinate{
		{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.02}, {Lat: 0.02, Lon: 0.02}, {Lat: 0.02, Lon: 0}, {Lat: 0, Lon: 0},
	}, 1.0, 1.0)
	require.NoError(t, err)
	return zone
}

func demandSource(t *testing.T, convention geo.TerminusConvention) *helpers.StaticSource {
	t.Helper()
	route, err := geo.NewRoute("r1", "Line 1", []shared.Coordinate{
		{Lat: 0, Lon: 0.01}, {Lat: 0.01, Lon: 0.01}, {Lat: 0.02, Lon: 0.01},
	}, convention)
	require.NoError(t, err)
	poi, err := geo.NewPOI("poi-1", "market", shared.Coordinate{Lat: 0.01, Lon: 0.01}, 1.0)
	require.NoError(t, err)

	return &helpers.StaticSource{
		ZoneList:  []*geo.Zone{residentialZone(t)},
		RouteList: []*geo.Route{route},
		POIList:   []*geo.POI{poi},
	}
}

func newTestGenerator(t *testing.T, source *helpers.StaticSource, cfg *helpers.MapConfig) (*Generator, *reservoir.DepotReservoir, *reservoir.RouteReservoir, *countingRepo, *spawnRecorder) {
	t.Helper()
	clock := shared.NewMockClock(tickAt)
	cache := geocache.New(source, clock)
	require.NoError(t, cache.Refresh(context.Background()))

	depotRes := reservoir.NewDepotReservoir(nil, nil, nil, clock)
	routeRes := reservoir.NewRouteReservoir(0, nil, nil, clock)
	repo := &countingRepo{}
	events := &spawnRecorder{}
	rng := rand.New(rand.NewSource(42))

	gen := NewGenerator(cache, cfg, depotRes, routeRes, repo, events, rng, clock)
	return gen, depotRes, routeRes, repo, events
}

func TestSamplePoissonConvergesToMean(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const mean = 4.0
	const samples = 20000

	sum := 0
	for i := 0; i < samples; i++ {
		sum += samplePoisson(rng, mean)
	}
	assert.InDelta(t, mean, float64(sum)/samples, 0.1)
}

func TestSamplePoissonEdgeCases(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, 0, samplePoisson(rng, 0))
	assert.Equal(t, 0, samplePoisson(rng, -3))
}

func TestSanitizeMultiplier(t *testing.T) {
	v, ok := sanitizeMultiplier(1.5)
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)

	v, ok = sanitizeMultiplier(-0.5)
	assert.False(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestParseMultiplierCSV(t *testing.T) {
	table, ok := parseMultiplierCSV("0.5, 1.0, 1.0, 1.0, 1.0, 1.1, 0.7", 7)
	require.True(t, ok)
	assert.Equal(t, 0.5, table[0])

	_, ok = parseMultiplierCSV("1,2,3", 7)
	assert.False(t, ok)
	_, ok = parseMultiplierCSV("a,b,c,d,e,f,g", 7)
	assert.False(t, ok)
	_, ok = parseMultiplierCSV("", 7)
	assert.False(t, ok)
}

func TestTickSpawnsInsideZone(t *testing.T) {
	gen, _, routeRes, repo, events := newTestGenerator(t, demandSource(t, geo.TerminusFirst), &helpers.MapConfig{})

	spawned, err := gen.Tick(context.Background(), tickAt, time.Hour)
	require.NoError(t, err)
	require.Greater(t, spawned, 0)

	zone := residentialZone(t)
	for _, p := range repo.inserted {
		assert.True(t, zone.Contains(p.Origin), "origin %+v outside zone", p.Origin)
		assert.Equal(t, "r1", p.RouteID)
		assert.Equal(t, passenger.StatusWaiting, p.Status)
		assert.Equal(t, tickAt, p.SpawnTime)
		assert.Equal(t, tickAt.Add(30*time.Minute), p.ExpiryTime)
	}
	assert.Len(t, repo.inserted, spawned)
	assert.Len(t, events.spawned, spawned)
	assert.EqualValues(t, spawned, routeRes.Stats().Spawned)
}

func TestTickEmptyCacheSpawnsNothing(t *testing.T) {
	gen, _, _, repo, _ := newTestGenerator(t, &helpers.StaticSource{}, &helpers.MapConfig{})

	spawned, err := gen.Tick(context.Background(), tickAt, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, spawned)
	assert.Empty(t, repo.inserted)
}

func TestTickRefusesRoutesWithoutConvention(t *testing.T) {
	gen, _, routeRes, repo, _ := newTestGenerator(t, demandSource(t, geo.TerminusUndeclared), &helpers.MapConfig{})

	spawned, err := gen.Tick(context.Background(), tickAt, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, spawned)
	assert.Empty(t, repo.inserted)
	assert.Zero(t, routeRes.Stats().Spawned)
}

func TestTickAssignsDepotKindNearDepot(t *testing.T) {
	source := demandSource(t, geo.TerminusFirst)
	depot, err := geo.NewDepot("d1", "Central", shared.Coordinate{Lat: 0.01, Lon: 0.01}, []string{"r1"}, 50)
	require.NoError(t, err)
	source.DepotList = []*geo.Depot{depot}

	// Proximity threshold wide enough to cover the whole zone.
	cfg := &helpers.MapConfig{Values: map[string]string{
		"passenger_spawning.geographic.depot_proximity_meters": "10000",
	}}
	gen, depotRes, routeRes, _, events := newTestGenerator(t, source, cfg)

	spawned, err := gen.Tick(context.Background(), tickAt, time.Hour)
	require.NoError(t, err)
	require.Greater(t, spawned, 0)

	assert.EqualValues(t, spawned, depotRes.Stats().Spawned)
	assert.Zero(t, routeRes.Stats().Spawned)
	for _, ev := range events.spawned {
		assert.Equal(t, string(passenger.KindDepot), ev.Kind)
		assert.Equal(t, "d1", ev.DepotID)
	}
}

func TestRateScaleNormalizesToTarget(t *testing.T) {
	cfg := &helpers.MapConfig{Values: map[string]string{
		"passenger_spawning.rates.average_passengers_per_hour": "24",
	}}
	gen, _, _, _, _ := newTestGenerator(t, demandSource(t, geo.TerminusFirst), cfg)

	// Baseline is one residential zone at weight 1: 12 passengers/hour.
	snap := gen.cache.Snapshot()
	assert.InDelta(t, 2.0, gen.rateScale(snap), 1e-9)
}

func TestRateScaleWithoutTargetUsesMultiplier(t *testing.T) {
	cfg := &helpers.MapConfig{Values: map[string]string{
		"passenger_spawning.rates.demand_multiplier": "0.5",
	}}
	gen, _, _, _, _ := newTestGenerator(t, demandSource(t, geo.TerminusFirst), cfg)
	assert.InDelta(t, 0.5, gen.rateScale(gen.cache.Snapshot()), 1e-9)
}

func TestConfigOverridesForDemandModel(t *testing.T) {
	cfg := &helpers.MapConfig{Values: map[string]string{
		"passenger_spawning.rates.base_density.residential": "99",
		"passenger_spawning.rates.day_of_week":              "0,0,0,0,0,0,0",
	}}
	gen, _, _, _, _ := newTestGenerator(t, demandSource(t, geo.TerminusFirst), cfg)

	assert.Equal(t, 99.0, gen.baseDensityFor(geo.ZoneResidential))
	assert.Equal(t, 0.0, gen.dayOfWeek(1))

	// A zeroed day-of-week table shuts spawning down entirely.
	spawned, err := gen.Tick(context.Background(), tickAt, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, spawned)
}
