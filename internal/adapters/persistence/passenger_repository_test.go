package persistence_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/commuter-go/internal/adapters/persistence"
	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
	"github.com/andrescamacho/commuter-go/test/helpers"
)

var storeSpawnTime = time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)

func storedPassenger(t *testing.T, id, routeID string, origin shared.Coordinate, spawn time.Time) *passenger.Passenger {
	t.Helper()
	p, err := passenger.New(id, origin,
		shared.Coordinate{Lat: origin.Lat + 0.05, Lon: origin.Lon},
		routeID, geo.DirectionOutbound, passenger.KindRoute, 0.5,
		spawn, spawn.Add(30*time.Minute))
	require.NoError(t, err)
	return p
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	repo := persistence.NewPassengerRepository(helpers.NewTestDB(t))
	ctx := context.Background()

	p := storedPassenger(t, "p1", "r1", shared.Coordinate{Lat: -33.45, Lon: -70.66}, storeSpawnTime)
	p.DepotID = "d1"
	require.NoError(t, repo.Insert(ctx, p))

	out, err := repo.Query(ctx, passenger.QueryFilter{RouteID: "r1"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	got := out[0]
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Origin, got.Origin)
	assert.Equal(t, p.Destination, got.Destination)
	assert.Equal(t, geo.DirectionOutbound, got.Direction)
	assert.Equal(t, passenger.KindRoute, got.Kind)
	assert.Equal(t, "d1", got.DepotID)
	assert.Equal(t, passenger.StatusWaiting, got.Status)
}

func TestMarkUpdatesStatus(t *testing.T) {
	repo := persistence.NewPassengerRepository(helpers.NewTestDB(t))
	ctx := context.Background()

	p := storedPassenger(t, "p1", "r1", shared.Coordinate{}, storeSpawnTime)
	require.NoError(t, repo.Insert(ctx, p))

	require.NoError(t, repo.Mark(ctx, "p1", passenger.StatusOnboard, storeSpawnTime.Add(time.Minute)))
	out, err := repo.Query(ctx, passenger.QueryFilter{Status: passenger.StatusOnboard})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "p1", out[0].ID)

	err = repo.Mark(ctx, "ghost", passenger.StatusOnboard, storeSpawnTime)
	assert.True(t, shared.IsNotFoundError(err))
}

func TestQueryFilters(t *testing.T) {
	repo := persistence.NewPassengerRepository(helpers.NewTestDB(t))
	ctx := context.Background()

	inside := shared.Coordinate{Lat: -33.45, Lon: -70.66}
	outside := shared.Coordinate{Lat: -33.20, Lon: -70.66}
	for i := 0; i < 3; i++ {
		p := storedPassenger(t, fmt.Sprintf("in-%d", i), "r1", inside, storeSpawnTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Insert(ctx, p))
	}
	require.NoError(t, repo.Insert(ctx, storedPassenger(t, "other-route", "r2", inside, storeSpawnTime)))
	require.NoError(t, repo.Insert(ctx, storedPassenger(t, "far-away", "r1", outside, storeSpawnTime)))

	bbox := &shared.BoundingBox{MinLat: -33.5, MaxLat: -33.4, MinLon: -70.7, MaxLon: -70.6}
	out, err := repo.Query(ctx, passenger.QueryFilter{RouteID: "r1", BBox: bbox})
	require.NoError(t, err)
	require.Len(t, out, 3)

	// Newest spawn first.
	assert.Equal(t, "in-2", out[0].ID)
	assert.Equal(t, "in-0", out[2].ID)

	out, err = repo.Query(ctx, passenger.QueryFilter{RouteID: "r1", BBox: bbox, Limit: 1})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "in-2", out[0].ID)
}

func TestListWaiting(t *testing.T) {
	repo := persistence.NewPassengerRepository(helpers.NewTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, storedPassenger(t, "w1", "r1", shared.Coordinate{}, storeSpawnTime)))
	require.NoError(t, repo.Insert(ctx, storedPassenger(t, "w2", "r1", shared.Coordinate{}, storeSpawnTime)))
	require.NoError(t, repo.Mark(ctx, "w2", passenger.StatusExpired, storeSpawnTime))

	out, err := repo.ListWaiting(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "w1", out[0].ID)
}

func TestDeleteExpiredKeepsLiveRecords(t *testing.T) {
	repo := persistence.NewPassengerRepository(helpers.NewTestDB(t))
	ctx := context.Background()

	for _, id := range []string{"old-expired", "new-expired", "old-waiting"} {
		require.NoError(t, repo.Insert(ctx, storedPassenger(t, id, "r1", shared.Coordinate{}, storeSpawnTime)))
	}
	require.NoError(t, repo.Mark(ctx, "old-expired", passenger.StatusExpired, storeSpawnTime.Add(-3*time.Hour)))
	require.NoError(t, repo.Mark(ctx, "new-expired", passenger.StatusExpired, storeSpawnTime))

	deleted, err := repo.DeleteExpired(ctx, storeSpawnTime.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	out, err := repo.Query(ctx, passenger.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
