package location

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/commuter-go/internal/application/geocache"
	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
	"github.com/andrescamacho/commuter-go/test/helpers"
)

func circleFence(t *testing.T, id string, fenceType geo.GeofenceType, center shared.Coordinate, radius float64) *geo.Geofence {
	t.Helper()
	g, err := geo.NewCircleGeofence(id, fenceType, center, radius)
	require.NoError(t, err)
	return g
}

func serviceWithFences(t *testing.T, fences ...*geo.Geofence) *Service {
	t.Helper()
	svc := New(geocache.New(&helpers.StaticSource{}, nil))
	for _, g := range fences {
		require.NoError(t, svc.AddGeofence(g))
	}
	return svc
}

func TestTransitionsBySetDifference(t *testing.T) {
	a := shared.Coordinate{Lat: 0, Lon: 0}
	b := shared.Coordinate{Lat: 0.05, Lon: 0}
	svc := serviceWithFences(t,
		circleFence(t, "fence-a", geo.GeofenceTypeProximity, a, 200),
		circleFence(t, "fence-b", geo.GeofenceTypeProximity, b, 200),
	)

	// First observation enters everything currently containing.
	ctx := svc.GetLocationContext(ContextRequest{Position: a, EntityID: "veh-1", DetectTransitions: true})
	assert.Equal(t, []string{"fence-a"}, ctx.EnterEvents)
	assert.Empty(t, ctx.ExitEvents)

	// Same position again: no transitions.
	ctx = svc.GetLocationContext(ContextRequest{Position: a, EntityID: "veh-1", DetectTransitions: true})
	assert.Empty(t, ctx.EnterEvents)
	assert.Empty(t, ctx.ExitEvents)

	// Jump straight from A to B: one exit, one enter, nothing in between.
	ctx = svc.GetLocationContext(ContextRequest{Position: b, EntityID: "veh-1", DetectTransitions: true})
	assert.Equal(t, []string{"fence-b"}, ctx.EnterEvents)
	assert.Equal(t, []string{"fence-a"}, ctx.ExitEvents)

	// Leave both.
	ctx = svc.GetLocationContext(ContextRequest{Position: shared.Coordinate{Lat: 1, Lon: 1}, EntityID: "veh-1", DetectTransitions: true})
	assert.Empty(t, ctx.EnterEvents)
	assert.Equal(t, []string{"fence-b"}, ctx.ExitEvents)
}

func TestTransitionStateIsPerEntity(t *testing.T) {
	at := shared.Coordinate{Lat: 0, Lon: 0}
	svc := serviceWithFences(t, circleFence(t, "f", geo.GeofenceTypeProximity, at, 200))

	ctx := svc.GetLocationContext(ContextRequest{Position: at, EntityID: "veh-1", DetectTransitions: true})
	assert.Equal(t, []string{"f"}, ctx.EnterEvents)

	// A different entity gets its own first-observation enter.
	ctx = svc.GetLocationContext(ContextRequest{Position: at, EntityID: "veh-2", DetectTransitions: true})
	assert.Equal(t, []string{"f"}, ctx.EnterEvents)
}

func TestForgetEntityResetsTransitions(t *testing.T) {
	at := shared.Coordinate{Lat: 0, Lon: 0}
	svc := serviceWithFences(t, circleFence(t, "f", geo.GeofenceTypeProximity, at, 200))

	svc.GetLocationContext(ContextRequest{Position: at, EntityID: "veh-1", DetectTransitions: true})
	svc.ForgetEntity("veh-1")
	ctx := svc.GetLocationContext(ContextRequest{Position: at, EntityID: "veh-1", DetectTransitions: true})
	assert.Equal(t, []string{"f"}, ctx.EnterEvents)
}

func TestOverlappingFencesContainIndependently(t *testing.T) {
	at := shared.Coordinate{Lat: 0, Lon: 0}
	svc := serviceWithFences(t,
		circleFence(t, "inner", geo.GeofenceTypeProximity, at, 100),
		circleFence(t, "outer", geo.GeofenceTypeProximity, at, 1000),
	)

	ctx := svc.GetLocationContext(ContextRequest{Position: at})
	assert.Equal(t, []string{"inner", "outer"}, ctx.ContainingGeofenceIDs)

	// Between the two radii only the outer fence contains.
	edge := shared.Coordinate{Lat: 500 / shared.MetersPerDegreeLat, Lon: 0}
	ctx = svc.GetLocationContext(ContextRequest{Position: edge})
	assert.Equal(t, []string{"outer"}, ctx.ContainingGeofenceIDs)
}

func TestGeofenceCRUD(t *testing.T) {
	svc := serviceWithFences(t)
	f := circleFence(t, "f", geo.GeofenceTypeProximity, shared.Coordinate{}, 100)

	require.NoError(t, svc.AddGeofence(f))
	assert.Error(t, svc.AddGeofence(f), "duplicate id")

	got, err := svc.GetGeofence("f")
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.RadiusMeters)

	bigger := circleFence(t, "f", geo.GeofenceTypeProximity, shared.Coordinate{}, 300)
	require.NoError(t, svc.UpdateGeofence(bigger))
	got, err = svc.GetGeofence("f")
	require.NoError(t, err)
	assert.Equal(t, 300.0, got.RadiusMeters)

	require.NoError(t, svc.RemoveGeofence("f"))
	_, err = svc.GetGeofence("f")
	assert.True(t, shared.IsNotFoundError(err))
	assert.True(t, shared.IsNotFoundError(svc.RemoveGeofence("f")))
}

func TestDepotAt(t *testing.T) {
	depotLoc := shared.Coordinate{Lat: -33.45, Lon: -70.66}
	fence := circleFence(t, "depot-1-fence", geo.GeofenceTypeDepot, depotLoc, 80)
	fence.DepotID = "depot-1"
	svc := serviceWithFences(t, fence,
		circleFence(t, "other", geo.GeofenceTypeProximity, depotLoc, 500))

	id, ok := svc.DepotAt(depotLoc)
	require.True(t, ok)
	assert.Equal(t, "depot-1", id)

	// Inside the proximity fence but outside the depot fence.
	_, ok = svc.DepotAt(shared.Coordinate{Lat: depotLoc.Lat + 200/shared.MetersPerDegreeLat, Lon: depotLoc.Lon})
	assert.False(t, ok)
}

func TestRefreshFromCacheIndexesPoints(t *testing.T) {
	depot, err := geo.NewDepot("d1", "Central", shared.Coordinate{Lat: 0, Lon: 0}, []string{"r1"}, 10)
	require.NoError(t, err)
	poi, err := geo.NewPOI("poi-1", "market", shared.Coordinate{Lat: 0.001, Lon: 0}, 0.8)
	require.NoError(t, err)
	fence := circleFence(t, "f1", geo.GeofenceTypeDepot, shared.Coordinate{Lat: 0, Lon: 0}, 100)

	cache := geocache.New(&helpers.StaticSource{
		DepotList:    []*geo.Depot{depot},
		POIList:      []*geo.POI{poi},
		GeofenceList: []*geo.Geofence{fence},
	}, nil)
	require.NoError(t, cache.Refresh(context.Background()))

	svc := New(cache)
	svc.RefreshFromCache()

	ctx := svc.GetLocationContext(ContextRequest{
		Position:      shared.Coordinate{Lat: 0, Lon: 0},
		IncludeNearby: true,
	})
	assert.Equal(t, []string{"f1"}, ctx.ContainingGeofenceIDs)
	require.NotNil(t, ctx.NearestStop)
	assert.Equal(t, "d1", ctx.NearestStop.ID)
	require.NotNil(t, ctx.NearestPOI)
	assert.Equal(t, "poi-1", ctx.NearestPOI.ID)
	require.Len(t, ctx.NearbyStops, 1)
}
