package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/andrescamacho/commuter-go/internal/adapters/hub"
	"github.com/andrescamacho/commuter-go/internal/application/location"
	"github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/domain/vehicle"
)

// Geofence transition event types published on the system namespace
const (
	EventGeofenceEntered = "geofence:entered"
	EventGeofenceExited  = "geofence:exited"
)

// TransitionEvent reports a vehicle crossing a geofence boundary
type TransitionEvent struct {
	VehicleID  string    `json:"vehicle_id"`
	GeofenceID string    `json:"geofence_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// Bridge consumes vehicle telemetry off the hub: position updates feed the
// vehicle registry and the location service's transition detection, engine
// events keep the observed engine state current.
type Bridge struct {
	hub      *hub.Hub
	vehicles vehicle.Repository
	loc      *location.Service

	mu         sync.Mutex
	lastUpdate map[string]time.Time
}

// NewBridge creates a telemetry bridge
func NewBridge(h *hub.Hub, vehicles vehicle.Repository, loc *location.Service) *Bridge {
	return &Bridge{
		hub:        h,
		vehicles:   vehicles,
		loc:        loc,
		lastUpdate: make(map[string]time.Time),
	}
}

// Run consumes telemetry until the context is cancelled
func (b *Bridge) Run(ctx context.Context) error {
	posSub := b.hub.Subscribe(hub.NamespaceVehicle, vehicle.EventPosition, "telemetry-bridge")
	onSub := b.hub.Subscribe(hub.NamespaceVehicle, vehicle.EventEngineOn, "telemetry-bridge")
	offSub := b.hub.Subscribe(hub.NamespaceVehicle, vehicle.EventEngineOff, "telemetry-bridge")
	defer b.hub.Unsubscribe(posSub)
	defer b.hub.Unsubscribe(onSub)
	defer b.hub.Unsubscribe(offSub)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-posSub.C:
			if !ok {
				return nil
			}
			b.handlePosition(ctx, env)
		case env, ok := <-onSub.C:
			if !ok {
				return nil
			}
			b.handleEngine(ctx, env, vehicle.EngineOn)
		case env, ok := <-offSub.C:
			if !ok {
				return nil
			}
			b.handleEngine(ctx, env, vehicle.EngineOff)
		}
	}
}

func (b *Bridge) handlePosition(ctx context.Context, env hub.Envelope) {
	logger := logging.LoggerFromContext(ctx)

	var ev vehicle.PositionEvent
	if !decode(env.Data, &ev) || ev.VehicleID == "" {
		logger.Log("WARN", "malformed position event dropped", map[string]interface{}{"envelope_id": env.ID})
		return
	}

	veh, err := b.vehicles.FindByID(ctx, ev.VehicleID)
	if err != nil {
		logger.Log("WARN", "position for unknown vehicle", map[string]interface{}{"vehicle_id": ev.VehicleID})
		return
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = env.Timestamp
	}
	veh.UpdatePosition(ev.Coordinate(), ts)

	b.mu.Lock()
	b.lastUpdate[ev.VehicleID] = ts
	b.mu.Unlock()

	lctx := b.loc.GetLocationContext(location.ContextRequest{
		Position:          ev.Coordinate(),
		EntityID:          ev.VehicleID,
		DetectTransitions: true,
	})
	for _, id := range lctx.EnterEvents {
		b.publishTransition(EventGeofenceEntered, ev.VehicleID, id, ts)
	}
	for _, id := range lctx.ExitEvents {
		b.publishTransition(EventGeofenceExited, ev.VehicleID, id, ts)
	}
}

func (b *Bridge) publishTransition(eventType, vehicleID, geofenceID string, ts time.Time) {
	_ = b.hub.Publish(hub.NamespaceSystem, b.hub.NewEnvelope(eventType, "telemetry-bridge", TransitionEvent{
		VehicleID:  vehicleID,
		GeofenceID: geofenceID,
		Timestamp:  ts,
	}))
}

func (b *Bridge) handleEngine(ctx context.Context, env hub.Envelope, state vehicle.EngineState) {
	var ev vehicle.EngineEvent
	if !decode(env.Data, &ev) || ev.VehicleID == "" {
		return
	}
	if veh, err := b.vehicles.FindByID(ctx, ev.VehicleID); err == nil {
		veh.SetEngine(state)
	}
}

// LastUpdate returns when the vehicle last reported a position
func (b *Bridge) LastUpdate(vehicleID string) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.lastUpdate[vehicleID]
	return ts, ok
}

// StaleVehicles returns vehicles whose last position is older than maxAge
func (b *Bridge) StaleVehicles(now time.Time, maxAge time.Duration) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var stale []string
	for id, ts := range b.lastUpdate {
		if now.Sub(ts) > maxAge {
			stale = append(stale, id)
		}
	}
	return stale
}

// decode accepts both in-process typed payloads and JSON-shaped maps from
// external publishers.
func decode(data interface{}, out interface{}) bool {
	switch v := data.(type) {
	case nil:
		return false
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return false
		}
		return json.Unmarshal(raw, out) == nil
	}
}
