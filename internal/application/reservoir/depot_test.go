package reservoir

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

type recordingEvents struct {
	mu      sync.Mutex
	boarded []passenger.BoardedEvent
	expired []passenger.ExpiredEvent
}

func (r *recordingEvents) PassengerBoarded(ev passenger.BoardedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boarded = append(r.boarded, ev)
}

func (r *recordingEvents) PassengerExpired(ev passenger.ExpiredEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, ev)
}

func (r *recordingEvents) expiredReasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.expired))
	for i, ev := range r.expired {
		out[i] = ev.Reason
	}
	return out
}

var testSpawnTime = time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)

func depotPassenger(t *testing.T, id, depotID string) *passenger.Passenger {
	t.Helper()
	p, err := passenger.New(id,
		shared.Coordinate{Lat: -33.45, Lon: -70.66},
		shared.Coordinate{Lat: -33.40, Lon: -70.60},
		"r1", geo.DirectionOutbound, passenger.KindDepot, 0.5,
		testSpawnTime, testSpawnTime.Add(30*time.Minute))
	require.NoError(t, err)
	p.DepotID = depotID
	return p
}

func TestDepotSpawnRejectsWrongKind(t *testing.T) {
	res := NewDepotReservoir(nil, nil, nil, nil)
	p, err := passenger.New("p1",
		shared.Coordinate{}, shared.Coordinate{Lat: 1},
		"r1", geo.DirectionOutbound, passenger.KindRoute, 0.5,
		testSpawnTime, testSpawnTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Error(t, res.Spawn(p))
}

func TestDepotFIFOOrderSurvivesQueryAndPickup(t *testing.T) {
	events := &recordingEvents{}
	res := NewDepotReservoir(nil, events, nil, shared.NewMockClock(testSpawnTime))

	for i := 1; i <= 5; i++ {
		require.NoError(t, res.Spawn(depotPassenger(t, fmt.Sprintf("p%d", i), "d1")))
	}

	q := passenger.PickupQuery{
		DepotID: "d1", RouteID: "r1",
		VehiclePosition: shared.Coordinate{Lat: -33.45, Lon: -70.66},
	}
	out, err := res.Query(q)
	require.NoError(t, err)
	require.Len(t, out, 5)
	for i, p := range out {
		assert.Equal(t, fmt.Sprintf("p%d", i+1), p.ID)
	}

	// Picking up the head leaves the rest in spawn order.
	picked, err := res.MarkPickedUp("p1", "veh-1")
	require.NoError(t, err)
	assert.Equal(t, passenger.StatusOnboard, picked.Status)
	require.Len(t, events.boarded, 1)
	assert.Equal(t, "veh-1", events.boarded[0].VehicleID)

	out, err = res.Query(q)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, "p2", out[0].ID)
}

func TestDepotDuplicateSpawnIsIdempotent(t *testing.T) {
	res := NewDepotReservoir(nil, nil, nil, nil)
	p := depotPassenger(t, "p1", "d1")
	require.NoError(t, res.Spawn(p))
	require.NoError(t, res.Spawn(p))
	assert.Equal(t, 1, res.QueueLength("d1", "r1"))
	assert.EqualValues(t, 1, res.Stats().Spawned)
}

func TestDepotOverflowEvictsOldest(t *testing.T) {
	events := &recordingEvents{}
	res := NewDepotReservoir(func(string) int { return 2 }, events, nil, shared.NewMockClock(testSpawnTime))

	require.NoError(t, res.Spawn(depotPassenger(t, "p1", "d1")))
	require.NoError(t, res.Spawn(depotPassenger(t, "p2", "d1")))
	require.NoError(t, res.Spawn(depotPassenger(t, "p3", "d1")))

	assert.Equal(t, 2, res.QueueLength("d1", "r1"))
	assert.False(t, res.Contains("p1"), "oldest passenger evicted")
	assert.Equal(t, []string{ExpireReasonOverflow}, events.expiredReasons())

	out, err := res.Query(passenger.PickupQuery{
		DepotID: "d1", RouteID: "r1",
		VehiclePosition: shared.Coordinate{Lat: -33.45, Lon: -70.66},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "p2", out[0].ID)
}

func TestDepotQueryFiltersByDistanceAndCount(t *testing.T) {
	res := NewDepotReservoir(nil, nil, nil, nil)
	near := depotPassenger(t, "near", "d1")
	far := depotPassenger(t, "far", "d1")
	far.Origin = shared.Coordinate{Lat: -33.40, Lon: -70.66} // ~5.5 km north
	require.NoError(t, res.Spawn(near))
	require.NoError(t, res.Spawn(far))

	out, err := res.Query(passenger.PickupQuery{
		DepotID: "d1", RouteID: "r1",
		VehiclePosition:   shared.Coordinate{Lat: -33.45, Lon: -70.66},
		MaxDistanceMeters: 100,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "near", out[0].ID)

	out, err = res.Query(passenger.PickupQuery{
		DepotID: "d1", RouteID: "r1",
		VehiclePosition: shared.Coordinate{Lat: -33.45, Lon: -70.66},
		MaxCount:        1,
	})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestDepotMarkPickedUpUnknownPassenger(t *testing.T) {
	res := NewDepotReservoir(nil, nil, nil, nil)
	_, err := res.MarkPickedUp("ghost", "veh-1")
	assert.True(t, shared.IsNotFoundError(err))
}

func TestDepotQueuesAreIsolatedPerRoute(t *testing.T) {
	res := NewDepotReservoir(nil, nil, nil, nil)
	p1 := depotPassenger(t, "p1", "d1")
	p2 := depotPassenger(t, "p2", "d1")
	p2.RouteID = "r2"
	require.NoError(t, res.Spawn(p1))
	require.NoError(t, res.Spawn(p2))

	assert.Equal(t, 1, res.QueueLength("d1", "r1"))
	assert.Equal(t, 1, res.QueueLength("d1", "r2"))
}
