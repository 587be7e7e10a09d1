package hub

import (
	"context"
	"time"

	"github.com/andrescamacho/commuter-go/internal/application/conductor"
	"github.com/andrescamacho/commuter-go/internal/application/ports"
)

// Driver relays conductor stop/depart requests to the driver layer over the
// hub's correlated request path. The driver layer answers with driver:stop_ack
// (or driver:engine:on for departs) carrying the request's correlation id.
type Driver struct {
	hub *Hub
	cfg ports.ConfigView
}

var _ conductor.Driver = (*Driver)(nil)

// NewDriver creates a hub-backed driver port
func NewDriver(h *Hub, cfg ports.ConfigView) *Driver {
	return &Driver{hub: h, cfg: cfg}
}

func (d *Driver) timeout() time.Duration {
	if d.cfg == nil {
		return DefaultRequestTimeout
	}
	return d.cfg.Duration("conductor.driver_response_timeout_seconds", DefaultRequestTimeout)
}

// RequestStop blocks until the driver acknowledges the stop or the response
// timeout elapses.
func (d *Driver) RequestStop(ctx context.Context, ev conductor.StopRequestEvent) error {
	env := d.hub.NewEnvelope(conductor.EventRequestStop, "conductor:"+ev.VehicleID, ev)
	env.Target = ev.VehicleID
	_, err := d.hub.Request(ctx, NamespaceVehicle, env, d.timeout())
	return err
}

// RequestDepart blocks until the driver acknowledges the depart or the
// response timeout elapses.
func (d *Driver) RequestDepart(ctx context.Context, ev conductor.DepartEvent) error {
	env := d.hub.NewEnvelope(conductor.EventReadyDepart, "conductor:"+ev.VehicleID, ev)
	env.Target = ev.VehicleID
	_, err := d.hub.Request(ctx, NamespaceVehicle, env, d.timeout())
	return err
}
