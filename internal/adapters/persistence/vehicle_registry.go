package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/andrescamacho/commuter-go/internal/domain/shared"
	"github.com/andrescamacho/commuter-go/internal/domain/vehicle"
)

// VehicleRegistry is the in-memory vehicle repository. Records are seeded
// from the CMS at startup; position and onboard state live on the vehicle
// itself and are runtime-only.
type VehicleRegistry struct {
	mu       sync.RWMutex
	vehicles map[string]*vehicle.Vehicle
}

var _ vehicle.Repository = (*VehicleRegistry)(nil)

// NewVehicleRegistry creates an empty registry
func NewVehicleRegistry() *VehicleRegistry {
	return &VehicleRegistry{vehicles: make(map[string]*vehicle.Vehicle)}
}

// Save inserts or replaces a vehicle record
func (r *VehicleRegistry) Save(_ context.Context, v *vehicle.Vehicle) error {
	if v == nil || v.ID() == "" {
		return shared.NewValidationError("vehicle", "missing id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicles[v.ID()] = v
	return nil
}

// FindByID returns the vehicle or a NotFoundError
func (r *VehicleRegistry) FindByID(_ context.Context, id string) (*vehicle.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.vehicles[id]; ok {
		return v, nil
	}
	return nil, shared.NewNotFoundError("vehicle", id)
}

// ListByRoute returns every vehicle assigned to the route, ordered by id
func (r *VehicleRegistry) ListByRoute(_ context.Context, routeID string) ([]*vehicle.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*vehicle.Vehicle
	for _, v := range r.vehicles {
		if v.RouteID() == routeID {
			out = append(out, v)
		}
	}
	sortVehicles(out)
	return out, nil
}

// ListAll returns every registered vehicle, ordered by id
func (r *VehicleRegistry) ListAll(_ context.Context) ([]*vehicle.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*vehicle.Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		out = append(out, v)
	}
	sortVehicles(out)
	return out, nil
}

func sortVehicles(vs []*vehicle.Vehicle) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].ID() < vs[j].ID() })
}
