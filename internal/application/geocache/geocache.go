package geocache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// Source supplies validated domain entities from the CMS. Implemented by the
// cms.Store adapter; replaced by fixtures in tests.
type Source interface {
	Zones(ctx context.Context) ([]*geo.Zone, error)
	POIs(ctx context.Context) ([]*geo.POI, error)
	Places(ctx context.Context) ([]*geo.Place, error)
	Routes(ctx context.Context) ([]*geo.Route, error)
	Depots(ctx context.Context) ([]*geo.Depot, error)
	Geofences(ctx context.Context) ([]*geo.Geofence, error)
}

// Snapshot is one immutable view of the geography. Consumers hold the
// pointer they read; a concurrent refresh never mutates a published snapshot.
type Snapshot struct {
	Zones     []*geo.Zone
	POIs      []*geo.POI
	Places    []*geo.Place
	Routes    []*geo.Route
	Depots    []*geo.Depot
	Geofences []*geo.Geofence

	RouteByID map[string]*geo.Route
	DepotByID map[string]*geo.Depot

	FetchedAt time.Time
}

// emptySnapshot is served before the first successful refresh
func emptySnapshot() *Snapshot {
	return &Snapshot{
		RouteByID: map[string]*geo.Route{},
		DepotByID: map[string]*geo.Depot{},
	}
}

// Cache loads and caches the geography from the CMS. Reads are lock-free;
// Refresh builds a complete new snapshot and swaps it atomically.
type Cache struct {
	source Source
	snap   atomic.Pointer[Snapshot]
	clock  shared.Clock
}

// New creates a cache serving an empty snapshot until the first refresh.
// A nil clock selects the real clock.
func New(source Source, clock shared.Clock) *Cache {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	c := &Cache{source: source, clock: clock}
	c.snap.Store(emptySnapshot())
	return c
}

// Snapshot returns the current immutable snapshot; never nil
func (c *Cache) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Refresh fetches every collection and swaps in a new snapshot. A failed
// fetch leaves the previous snapshot in place.
func (c *Cache) Refresh(ctx context.Context) error {
	logger := logging.LoggerFromContext(ctx)

	zones, err := c.source.Zones(ctx)
	if err != nil {
		return err
	}
	pois, err := c.source.POIs(ctx)
	if err != nil {
		return err
	}
	places, err := c.source.Places(ctx)
	if err != nil {
		return err
	}
	routes, err := c.source.Routes(ctx)
	if err != nil {
		return err
	}
	depots, err := c.source.Depots(ctx)
	if err != nil {
		return err
	}
	fences, err := c.source.Geofences(ctx)
	if err != nil {
		return err
	}

	snap := &Snapshot{
		Zones:     zones,
		POIs:      pois,
		Places:    places,
		Routes:    routes,
		Depots:    depots,
		Geofences: fences,
		RouteByID: make(map[string]*geo.Route, len(routes)),
		DepotByID: make(map[string]*geo.Depot, len(depots)),
		FetchedAt: c.clock.Now(),
	}
	for _, r := range routes {
		snap.RouteByID[r.ID] = r
	}
	for _, d := range depots {
		snap.DepotByID[d.ID] = d
	}

	c.snap.Store(snap)
	logger.Log("INFO", "geo cache refreshed", map[string]interface{}{
		"zones": len(zones), "pois": len(pois), "places": len(places),
		"routes": len(routes), "depots": len(depots), "geofences": len(fences),
	})
	return nil
}
