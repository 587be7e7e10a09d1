package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/commuter-go/internal/adapters/persistence"
	"github.com/andrescamacho/commuter-go/internal/application/geocache"
	"github.com/andrescamacho/commuter-go/internal/application/location"
	"github.com/andrescamacho/commuter-go/internal/application/reservoir"
	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
	"github.com/andrescamacho/commuter-go/internal/domain/vehicle"
	"github.com/andrescamacho/commuter-go/test/helpers"
)

func TestCommutersResponderAnswersWithWaitingCount(t *testing.T) {
	h := New(nil)
	defer h.Close()

	start := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	pos := shared.Coordinate{Lat: -33.45, Lon: -70.66}

	veh, err := vehicle.New("veh-1", "r1", geo.DirectionOutbound, 10)
	require.NoError(t, err)
	veh.UpdatePosition(pos, start)
	registry := persistence.NewVehicleRegistry()
	require.NoError(t, registry.Save(context.Background(), veh))

	routeRes := reservoir.NewRouteReservoir(0, nil, nil, shared.NewMockClock(start))
	for _, id := range []string{"p1", "p2"} {
		p, err := passenger.New(id, pos, shared.Coordinate{Lat: -33.40, Lon: -70.60},
			"r1", geo.DirectionOutbound, passenger.KindRoute, 0.5, start, start.Add(30*time.Minute))
		require.NoError(t, err)
		require.NoError(t, routeRes.Spawn(p))
	}

	loc := location.New(geocache.New(&helpers.StaticSource{}, nil))
	responder := NewCommutersResponder(h, registry, loc,
		reservoir.NewDepotReservoir(nil, nil, nil, nil), routeRes, &helpers.MapConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = responder.Run(ctx) }()
	waitForSubscriber(t, h, NamespaceVehicle, vehicle.EventQueryCommuters)

	req := h.NewEnvelope(vehicle.EventQueryCommuters, "driver:veh-1",
		vehicle.QueryCommutersEvent{VehicleID: "veh-1"})
	resp, err := h.Request(ctx, NamespaceVehicle, req, time.Second)
	require.NoError(t, err)
	assert.Equal(t, EventQueryCommutersResponse, resp.Type)

	var body CommutersResponse
	require.True(t, decodeEnvelope(resp.Data, &body))
	assert.Equal(t, "veh-1", body.VehicleID)
	assert.Equal(t, 2, body.Waiting)
	assert.False(t, body.AtDepot)
}

func TestCommutersResponderZeroBeforeTelemetry(t *testing.T) {
	h := New(nil)
	defer h.Close()

	veh, err := vehicle.New("veh-1", "r1", geo.DirectionOutbound, 10)
	require.NoError(t, err)
	registry := persistence.NewVehicleRegistry()
	require.NoError(t, registry.Save(context.Background(), veh))

	loc := location.New(geocache.New(&helpers.StaticSource{}, nil))
	responder := NewCommutersResponder(h, registry, loc,
		reservoir.NewDepotReservoir(nil, nil, nil, nil),
		reservoir.NewRouteReservoir(0, nil, nil, nil), &helpers.MapConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = responder.Run(ctx) }()
	waitForSubscriber(t, h, NamespaceVehicle, vehicle.EventQueryCommuters)

	req := h.NewEnvelope(vehicle.EventQueryCommuters, "driver:veh-1",
		vehicle.QueryCommutersEvent{VehicleID: "veh-1"})
	resp, err := h.Request(ctx, NamespaceVehicle, req, time.Second)
	require.NoError(t, err)

	var body CommutersResponse
	require.True(t, decodeEnvelope(resp.Data, &body))
	assert.Zero(t, body.Waiting)
}
