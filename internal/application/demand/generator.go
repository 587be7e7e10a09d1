package demand

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/andrescamacho/commuter-go/internal/application/geocache"
	"github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/application/ports"
	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// Events receives demand notifications; the daemon wires the hub publisher
type Events interface {
	CommuterSpawned(ev passenger.SpawnedEvent)
}

// NoopEvents discards all notifications
type NoopEvents struct{}

func (NoopEvents) CommuterSpawned(passenger.SpawnedEvent) {}

const (
	originSampleAttempts      = 100
	destinationSampleAttempts = 10
)

// Generator evaluates the Poisson demand model per zone per tick and places
// the resulting passengers into the matching reservoir.
type Generator struct {
	cache    *geocache.Cache
	cfg      ports.ConfigView
	depotRes passenger.Reservoir
	routeRes passenger.Reservoir
	repo     passenger.Repository
	events   Events
	rng      *rand.Rand
	clock    shared.Clock

	// routes already warned about a missing direction convention
	warnedRoutes map[string]bool

	lastTick time.Time
}

// NewGenerator creates a demand generator. A nil rng seeds from the clock; a
// nil events sink discards notifications.
func NewGenerator(
	cache *geocache.Cache,
	cfg ports.ConfigView,
	depotRes, routeRes passenger.Reservoir,
	repo passenger.Repository,
	events Events,
	rng *rand.Rand,
	clock shared.Clock,
) *Generator {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(clock.Now().UnixNano()))
	}
	if events == nil {
		events = NoopEvents{}
	}
	return &Generator{
		cache:        cache,
		cfg:          cfg,
		depotRes:     depotRes,
		routeRes:     routeRes,
		repo:         repo,
		events:       events,
		rng:          rng,
		clock:        clock,
		warnedRoutes: make(map[string]bool),
	}
}

// Run ticks the demand model until the context is cancelled
func (g *Generator) Run(ctx context.Context) error {
	interval := g.cfg.Duration("passenger_spawning.rates.tick_interval_seconds", 10*time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g.lastTick = g.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := g.clock.Now()
			if _, err := g.Tick(ctx, now, now.Sub(g.lastTick)); err != nil {
				logging.LoggerFromContext(ctx).Log("WARN", "demand tick failed", map[string]interface{}{"error": err.Error()})
			}
			g.lastTick = now
		}
	}
}

// Tick evaluates one demand step of duration dt ending at tickTime and
// returns how many passengers were spawned. An empty cache yields zero.
func (g *Generator) Tick(ctx context.Context, tickTime time.Time, dt time.Duration) (int, error) {
	logger := logging.LoggerFromContext(ctx)
	snap := g.cache.Snapshot()
	if len(snap.Zones) == 0 || len(snap.Routes) == 0 {
		return 0, nil
	}

	hour := tickTime.Hour()
	day := int(tickTime.Weekday())
	dtMinutes := dt.Minutes()
	scale := g.rateScale(snap)

	spawned := 0
	for _, zone := range snap.Zones {
		if zone.SpawnWeight == 0 {
			continue
		}

		tod, ok := sanitizeMultiplier(g.timeOfDay(zone.Type, hour))
		if !ok {
			logger.Log("WARN", "negative or NaN time-of-day multiplier treated as zero", map[string]interface{}{
				"zone_id": zone.ID, "zone_type": string(zone.Type), "hour": hour,
			})
		}
		dow, ok := sanitizeMultiplier(g.dayOfWeek(day))
		if !ok {
			logger.Log("WARN", "negative or NaN day-of-week multiplier treated as zero", map[string]interface{}{"day": day})
		}

		rate := g.baseDensityFor(zone.Type) * zone.SpawnWeight * tod * dow * dtMinutes / 60.0 * scale
		count := samplePoisson(g.rng, rate)

		for i := 0; i < count; i++ {
			req, ok := g.buildRequest(ctx, snap, zone, hour)
			if !ok {
				continue
			}
			if err := g.place(ctx, req, tickTime); err != nil {
				logger.Log("WARN", "failed to place spawned passenger", map[string]interface{}{
					"zone_id": zone.ID, "error": err.Error(),
				})
				continue
			}
			spawned++
		}
	}
	return spawned, nil
}

// rateScale normalizes network demand toward the configured average
// passengers per hour. Unset or non-positive targets leave rates unscaled.
func (g *Generator) rateScale(snap *geocache.Snapshot) float64 {
	target := g.cfg.Float("passenger_spawning.rates.average_passengers_per_hour", 0)
	multiplier := g.cfg.Float("passenger_spawning.rates.demand_multiplier", 1.0)
	if target <= 0 {
		return multiplier
	}
	baseline := 0.0
	for _, zone := range snap.Zones {
		baseline += g.baseDensityFor(zone.Type) * zone.SpawnWeight
	}
	if baseline <= 0 {
		return multiplier
	}
	return multiplier * target / baseline
}

// buildRequest synthesizes one spawn request for a zone: origin inside the
// zone, POI destination, route assignment and direction.
func (g *Generator) buildRequest(ctx context.Context, snap *geocache.Snapshot, zone *geo.Zone, hour int) (*passenger.SpawnRequest, bool) {
	logger := logging.LoggerFromContext(ctx)

	origin, ok := g.sampleOrigin(zone)
	if !ok {
		logger.Log("WARN", "failed to sample origin inside zone", map[string]interface{}{"zone_id": zone.ID})
		return nil, false
	}

	dest, ok := g.sampleDestination(snap, origin)
	if !ok {
		return nil, false
	}

	route, ok := g.assignRoute(ctx, snap, origin)
	if !ok {
		return nil, false
	}

	req := &passenger.SpawnRequest{
		Origin:      origin,
		Destination: dest,
		RouteID:     route.ID,
		Direction:   route.DirectionBetween(origin, dest),
		Priority:    g.rng.Float64(),
		Kind:        passenger.KindRoute,
		ZoneID:      zone.ID,
		PeakHour:    peakHours[hour],
	}

	// Depot kind applies when the origin's nearest depot serves the route
	// and lies within the proximity threshold.
	proximity := g.cfg.Float("passenger_spawning.geographic.depot_proximity_meters", 150)
	if depot := nearestDepot(snap, origin); depot != nil &&
		shared.HaversineMeters(origin, depot.Location) <= proximity &&
		depot.ServesRoute(route.ID) {
		req.Kind = passenger.KindDepot
		req.DepotID = depot.ID
	}

	return req, true
}

// place creates the passenger, stores it and routes it to its reservoir
func (g *Generator) place(ctx context.Context, req *passenger.SpawnRequest, tickTime time.Time) error {
	maxWait := g.cfg.Duration("reservoir.max_wait_time_minutes", 30*time.Minute)

	p, err := passenger.New(
		uuid.NewString(),
		req.Origin,
		req.Destination,
		req.RouteID,
		req.Direction,
		req.Kind,
		req.Priority,
		tickTime,
		tickTime.Add(maxWait),
	)
	if err != nil {
		return err
	}
	p.DepotID = req.DepotID

	res := g.routeRes
	if req.Kind == passenger.KindDepot {
		res = g.depotRes
	}
	if err := res.Spawn(p); err != nil {
		return err
	}

	if g.repo != nil {
		if err := g.repo.Insert(ctx, p); err != nil {
			logging.LoggerFromContext(ctx).Log("WARN", "failed to mirror passenger to store", map[string]interface{}{
				"passenger_id": p.ID, "error": err.Error(),
			})
		}
	}

	g.events.CommuterSpawned(passenger.SpawnedEvent{
		PassengerID: p.ID,
		RouteID:     p.RouteID,
		Direction:   string(p.Direction),
		Kind:        string(p.Kind),
		DepotID:     p.DepotID,
		ZoneID:      req.ZoneID,
		Origin:      p.Origin,
		Destination: p.Destination,
		PeakHour:    req.PeakHour,
		SpawnTime:   p.SpawnTime,
	})
	return nil
}

// sampleOrigin draws a uniform random point inside the zone polygon by
// rejection sampling against its bbox.
func (g *Generator) sampleOrigin(zone *geo.Zone) (shared.Coordinate, bool) {
	for i := 0; i < originSampleAttempts; i++ {
		p := shared.Coordinate{
			Lat: zone.BBox.MinLat + g.rng.Float64()*(zone.BBox.MaxLat-zone.BBox.MinLat),
			Lon: zone.BBox.MinLon + g.rng.Float64()*(zone.BBox.MaxLon-zone.BBox.MinLon),
		}
		if zone.Contains(p) {
			return p, true
		}
	}
	return shared.Coordinate{}, false
}

// sampleDestination draws a POI weighted by activity level with an
// inverse-distance bias, resampling while the trip exceeds the configured
// maximum distance.
func (g *Generator) sampleDestination(snap *geocache.Snapshot, origin shared.Coordinate) (shared.Coordinate, bool) {
	if len(snap.POIs) == 0 {
		return shared.Coordinate{}, false
	}
	maxTripMeters := g.cfg.Float("passenger_spawning.geographic.max_trip_distance_km", 30) * 1000

	for attempt := 0; attempt < destinationSampleAttempts; attempt++ {
		total := 0.0
		weights := make([]float64, len(snap.POIs))
		for i, poi := range snap.POIs {
			distKM := shared.HaversineMeters(origin, poi.Location) / 1000
			w := poi.ActivityLevel / (1 + distKM)
			weights[i] = w
			total += w
		}
		if total <= 0 {
			return shared.Coordinate{}, false
		}

		r := g.rng.Float64() * total
		cum := 0.0
		chosen := snap.POIs[len(snap.POIs)-1]
		for i, w := range weights {
			cum += w
			if r <= cum {
				chosen = snap.POIs[i]
				break
			}
		}

		if shared.HaversineMeters(origin, chosen.Location) <= maxTripMeters {
			return chosen.Location, true
		}
	}
	return shared.Coordinate{}, false
}

// assignRoute picks the route minimizing projection distance from the
// origin, ties broken by lower route id. Routes without a declared direction
// convention are refused with a one-time warning.
func (g *Generator) assignRoute(ctx context.Context, snap *geocache.Snapshot, origin shared.Coordinate) (*geo.Route, bool) {
	logger := logging.LoggerFromContext(ctx)

	var best *geo.Route
	bestDist := 0.0
	for _, route := range snap.Routes {
		if !route.HasDirectionConvention() {
			if !g.warnedRoutes[route.ID] {
				g.warnedRoutes[route.ID] = true
				logger.Log("WARN", "route lacks direction convention; refusing spawns on it", map[string]interface{}{"route_id": route.ID})
			}
			continue
		}
		_, d := route.NearestVertex(origin)
		if best == nil || d < bestDist || (d == bestDist && route.ID < best.ID) {
			best = route
			bestDist = d
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// timeOfDay resolves the hourly multiplier, honoring a 24-slot CSV override
// under passenger_spawning.rates.time_of_day.<zone_type>.
func (g *Generator) timeOfDay(zoneType geo.ZoneType, hour int) float64 {
	if raw := g.cfg.String("passenger_spawning.rates.time_of_day."+string(zoneType), ""); raw != "" {
		if table, ok := parseMultiplierCSV(raw, 24); ok {
			return table[hour%24]
		}
	}
	return timeOfDayMultiplier(zoneType, hour)
}

// dayOfWeek resolves the weekday multiplier, honoring a 7-slot CSV override
// under passenger_spawning.rates.day_of_week (Sunday first).
func (g *Generator) dayOfWeek(day int) float64 {
	if raw := g.cfg.String("passenger_spawning.rates.day_of_week", ""); raw != "" {
		if table, ok := parseMultiplierCSV(raw, 7); ok {
			return table[day%7]
		}
	}
	return defaultDayOfWeek[day%7]
}

func (g *Generator) baseDensityFor(zoneType geo.ZoneType) float64 {
	return g.cfg.Float("passenger_spawning.rates.base_density."+string(zoneType), baseDensity(zoneType))
}

func nearestDepot(snap *geocache.Snapshot, p shared.Coordinate) *geo.Depot {
	var best *geo.Depot
	bestDist := 0.0
	for _, depot := range snap.Depots {
		d := shared.HaversineMeters(p, depot.Location)
		if best == nil || d < bestDist {
			best = depot
			bestDist = d
		}
	}
	return best
}

// String satisfies fmt.Stringer for logging
func (g *Generator) String() string {
	return fmt.Sprintf("demand.Generator(lastTick=%s)", g.lastTick.Format(time.RFC3339))
}
