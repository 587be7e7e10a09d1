package hub

import (
	"context"
	"encoding/json"

	"github.com/andrescamacho/commuter-go/internal/application/location"
	"github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/application/ports"
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
	"github.com/andrescamacho/commuter-go/internal/domain/vehicle"
)

// EventQueryCommutersResponse answers vehicle:query:commuters
const EventQueryCommutersResponse = "vehicle:query:commuters:response"

// CommutersResponse counts the waiting commuters reachable from the
// vehicle's position.
type CommutersResponse struct {
	VehicleID string `json:"vehicle_id"`
	Waiting   int    `json:"waiting"`
	AtDepot   bool   `json:"at_depot"`
	DepotID   string `json:"depot_id,omitempty"`
}

// CommutersResponder answers driver-layer vehicle:query:commuters requests
// with a correlated count of waiting commuters near the vehicle.
type CommutersResponder struct {
	hub      *Hub
	vehicles vehicle.Repository
	loc      *location.Service
	depotRes passenger.Reservoir
	routeRes passenger.Reservoir
	cfg      ports.ConfigView
}

// NewCommutersResponder wires the responder over the hub
func NewCommutersResponder(h *Hub, vehicles vehicle.Repository, loc *location.Service, depotRes, routeRes passenger.Reservoir, cfg ports.ConfigView) *CommutersResponder {
	return &CommutersResponder{hub: h, vehicles: vehicles, loc: loc, depotRes: depotRes, routeRes: routeRes, cfg: cfg}
}

// Run consumes queries until the context is cancelled
func (r *CommutersResponder) Run(ctx context.Context) error {
	sub := r.hub.Subscribe(NamespaceVehicle, vehicle.EventQueryCommuters, "commuters-responder")
	defer r.hub.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-sub.C:
			if !ok {
				return nil
			}
			r.answer(ctx, env)
		}
	}
}

func (r *CommutersResponder) answer(ctx context.Context, env Envelope) {
	logger := logging.LoggerFromContext(ctx)

	var q vehicle.QueryCommutersEvent
	if !decodeEnvelope(env.Data, &q) || q.VehicleID == "" {
		logger.Log("WARN", "malformed commuters query dropped", map[string]interface{}{"envelope_id": env.ID})
		return
	}

	veh, err := r.vehicles.FindByID(ctx, q.VehicleID)
	if err != nil {
		logger.Log("WARN", "commuters query for unknown vehicle", map[string]interface{}{"vehicle_id": q.VehicleID})
		return
	}

	pos, at := veh.Position()
	resp := CommutersResponse{VehicleID: q.VehicleID}
	if !at.IsZero() {
		radius := q.MaxDistanceMeters
		if radius <= 0 {
			radius = r.cfg.Float("conductor.pickup_radius_meters", 100)
		}

		query := passenger.PickupQuery{
			RouteID:           veh.RouteID(),
			Direction:         string(veh.Direction()),
			VehiclePosition:   pos,
			MaxDistanceMeters: radius,
		}
		res := r.routeRes
		if depotID, ok := r.loc.DepotAt(pos); ok {
			query.DepotID = depotID
			res = r.depotRes
			resp.AtDepot = true
			resp.DepotID = depotID
		}
		if candidates, err := res.Query(query); err == nil {
			resp.Waiting = len(candidates)
		}
	}

	if err := r.hub.Respond(NamespaceVehicle, env, EventQueryCommutersResponse, "commuters-responder", resp); err != nil {
		logger.Log("WARN", "failed to answer commuters query", map[string]interface{}{"error": err.Error()})
	}
}

// decodeEnvelope accepts both in-process typed payloads and JSON-shaped maps
func decodeEnvelope(data interface{}, out interface{}) bool {
	if data == nil {
		return false
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}
