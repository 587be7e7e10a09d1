package hub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/commuter-go/internal/application/conductor"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
	"github.com/andrescamacho/commuter-go/internal/domain/vehicle"
	"github.com/andrescamacho/commuter-go/test/helpers"
)

// ackDriverLayer plays the driver side: it acknowledges stop and depart
// requests for one vehicle until the context ends.
func ackDriverLayer(ctx context.Context, h *Hub, vehicleID string) {
	stopSub := h.Subscribe(NamespaceVehicle, conductor.EventRequestStop, vehicleID)
	departSub := h.Subscribe(NamespaceVehicle, conductor.EventReadyDepart, vehicleID)
	go func() {
		defer h.Unsubscribe(stopSub)
		defer h.Unsubscribe(departSub)
		for {
			select {
			case <-ctx.Done():
				return
			case req, ok := <-stopSub.C:
				if !ok {
					return
				}
				_ = h.Respond(NamespaceVehicle, req, vehicle.EventStopAck, vehicleID, nil)
			case req, ok := <-departSub.C:
				if !ok {
					return
				}
				_ = h.Respond(NamespaceVehicle, req, vehicle.EventEngineOn, vehicleID, nil)
			}
		}
	}()
}

func TestDriverStopAndDepartRoundTrip(t *testing.T) {
	h := New(nil)
	defer h.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ackDriverLayer(ctx, h, "veh-1")

	d := NewDriver(h, &helpers.MapConfig{})
	require.NoError(t, d.RequestStop(ctx, conductor.StopRequestEvent{VehicleID: "veh-1", Waiting: 2}))
	require.NoError(t, d.RequestDepart(ctx, conductor.DepartEvent{VehicleID: "veh-1", Boarded: 2}))
}

func TestDriverTimesOutWithoutDriverLayer(t *testing.T) {
	h := New(nil)
	defer h.Close()

	cfg := &helpers.MapConfig{Values: map[string]string{
		"conductor.driver_response_timeout_seconds": "30ms",
	}}
	d := NewDriver(h, cfg)

	err := d.RequestStop(context.Background(), conductor.StopRequestEvent{VehicleID: "veh-1"})
	require.Error(t, err)
	assert.True(t, shared.IsTimeoutError(err))
}

func TestDriverRequestsAreTargeted(t *testing.T) {
	h := New(nil)
	defer h.Close()

	// A driver layer for a different vehicle must not see the request.
	other := h.Subscribe(NamespaceVehicle, conductor.EventRequestStop, "veh-2")
	cfg := &helpers.MapConfig{Values: map[string]string{
		"conductor.driver_response_timeout_seconds": "30ms",
	}}
	d := NewDriver(h, cfg)

	err := d.RequestStop(context.Background(), conductor.StopRequestEvent{VehicleID: "veh-1"})
	assert.True(t, shared.IsTimeoutError(err))
	assertNoEnvelope(t, other.C)
}
