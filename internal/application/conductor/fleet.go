package conductor

import (
	"context"
	"sync"

	"github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/domain/vehicle"
)

// Fleet runs one conductor per registered vehicle. Each conductor owns its
// vehicle's boarding cycle on its own goroutine.
type Fleet struct {
	vehicles vehicle.Repository
	build    func(v *vehicle.Vehicle) *Conductor

	mu         sync.Mutex
	conductors map[string]*Conductor
}

// NewFleet creates a fleet; build constructs the conductor for a vehicle
func NewFleet(vehicles vehicle.Repository, build func(v *vehicle.Vehicle) *Conductor) *Fleet {
	return &Fleet{
		vehicles:   vehicles,
		build:      build,
		conductors: make(map[string]*Conductor),
	}
}

// Conductor returns the running conductor for a vehicle, if any
func (f *Fleet) Conductor(vehicleID string) (*Conductor, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conductors[vehicleID]
	return c, ok
}

// Run starts a conductor per vehicle and blocks until the context is
// cancelled and every conductor has returned.
func (f *Fleet) Run(ctx context.Context) error {
	vehicles, err := f.vehicles.ListAll(ctx)
	if err != nil {
		return err
	}

	logger := logging.LoggerFromContext(ctx)
	logger.Log("INFO", "starting conductors", map[string]interface{}{"vehicles": len(vehicles)})

	var wg sync.WaitGroup
	for _, v := range vehicles {
		c := f.build(v)
		f.mu.Lock()
		f.conductors[v.ID()] = c
		f.mu.Unlock()

		wg.Add(1)
		go func(c *Conductor, id string) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Log("ERROR", "conductor exited", map[string]interface{}{
					"vehicle_id": id, "error": err.Error(),
				})
			}
		}(c, v.ID())
	}

	wg.Wait()
	return ctx.Err()
}
