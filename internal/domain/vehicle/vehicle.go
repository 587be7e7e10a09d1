package vehicle

import (
	"sync"
	"time"

	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// EngineState is the observed state of the vehicle's engine
type EngineState string

const (
	EngineOn  EngineState = "ON"
	EngineOff EngineState = "OFF"
)

// Vehicle is the conductor's view of one simulated vehicle. Position and
// engine state are observed through vehicle:position and driver events;
// capacity comes from the authoritative vehicle record, never a default.
//
// Invariants:
// - len(onboard) <= capacity at all times, including concurrent boarding
// - onboard membership changes only under the vehicle lock
type Vehicle struct {
	mu sync.Mutex

	id        string
	routeID   string
	direction geo.Direction
	capacity  int

	position   shared.Coordinate
	positionAt time.Time
	engine     EngineState

	onboard map[string]struct{}
}

// New creates a vehicle with validation. Capacity zero is legal and means
// the vehicle never boards.
func New(id, routeID string, direction geo.Direction, capacity int) (*Vehicle, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	if routeID == "" {
		return nil, shared.NewValidationError("route_id", "cannot be empty")
	}
	if !direction.Valid() {
		return nil, shared.NewValidationError("direction", "must be OUTBOUND or INBOUND")
	}
	if capacity < 0 {
		return nil, shared.NewValidationError("capacity", "cannot be negative")
	}
	return &Vehicle{
		id:        id,
		routeID:   routeID,
		direction: direction,
		capacity:  capacity,
		engine:    EngineOn,
		onboard:   make(map[string]struct{}),
	}, nil
}

// ID returns the vehicle id
func (v *Vehicle) ID() string { return v.id }

// RouteID returns the assigned route
func (v *Vehicle) RouteID() string { return v.routeID }

// Capacity returns the authoritative seat capacity
func (v *Vehicle) Capacity() int { return v.capacity }

// Direction returns the current travel direction
func (v *Vehicle) Direction() geo.Direction {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.direction
}

// Reverse flips the travel direction at a terminus
func (v *Vehicle) Reverse() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.direction = v.direction.Opposite()
}

// UpdatePosition records a telemetry observation
func (v *Vehicle) UpdatePosition(p shared.Coordinate, at time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.position = p
	v.positionAt = at
}

// Position returns the last observed position and its timestamp
func (v *Vehicle) Position() (shared.Coordinate, time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.position, v.positionAt
}

// SetEngine records the driver-reported engine state
func (v *Vehicle) SetEngine(state EngineState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine = state
}

// Engine returns the last reported engine state
func (v *Vehicle) Engine() EngineState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine
}

// TryBoard adds a passenger to the onboard set. The capacity check happens
// under the vehicle lock so concurrent boarders cannot exceed it.
func (v *Vehicle) TryBoard(passengerID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.onboard) >= v.capacity {
		return shared.NewCapacityExceededError(v.id, v.capacity)
	}
	v.onboard[passengerID] = struct{}{}
	return nil
}

// Disembark removes a passenger from the onboard set
func (v *Vehicle) Disembark(passengerID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.onboard[passengerID]; !ok {
		return shared.NewNotFoundError("onboard passenger", passengerID)
	}
	delete(v.onboard, passengerID)
	return nil
}

// OnboardCount returns the number of passengers currently aboard
func (v *Vehicle) OnboardCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.onboard)
}

// OnboardIDs returns a snapshot of the onboard passenger ids
func (v *Vehicle) OnboardIDs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]string, 0, len(v.onboard))
	for id := range v.onboard {
		ids = append(ids, id)
	}
	return ids
}

// RemainingCapacity returns how many more passengers fit
func (v *Vehicle) RemainingCapacity() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.capacity - len(v.onboard)
}
