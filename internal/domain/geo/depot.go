package geo

import "github.com/andrescamacho/commuter-go/internal/domain/shared"

// Depot is a fixed boarding location with assigned routes and a bounded
// waiting queue per route. Immutable per cache snapshot.
type Depot struct {
	ID               string
	Name             string
	Location         shared.Coordinate
	AssignedRoutes   []string
	MaxQueueCapacity int
}

// NewDepot creates a depot with validation
func NewDepot(id, name string, location shared.Coordinate, assignedRoutes []string, maxQueueCapacity int) (*Depot, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	if maxQueueCapacity <= 0 {
		return nil, shared.NewValidationError("max_queue_capacity", "must be positive")
	}
	return &Depot{
		ID:               id,
		Name:             name,
		Location:         location,
		AssignedRoutes:   assignedRoutes,
		MaxQueueCapacity: maxQueueCapacity,
	}, nil
}

// ServesRoute reports whether the depot is assigned to the given route
func (d *Depot) ServesRoute(routeID string) bool {
	for _, id := range d.AssignedRoutes {
		if id == routeID {
			return true
		}
	}
	return false
}
