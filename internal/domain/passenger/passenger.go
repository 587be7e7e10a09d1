package passenger

import (
	"fmt"
	"time"

	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// Status is the lifecycle state of a passenger
type Status string

const (
	// StatusWaiting means the passenger is owned by exactly one reservoir
	StatusWaiting Status = "WAITING"

	// StatusOnboard means the passenger was picked up and is owned by a vehicle
	StatusOnboard Status = "ONBOARD"

	// StatusAlighted means the trip completed at the destination
	StatusAlighted Status = "ALIGHTED"

	// StatusExpired means the passenger waited past expiry and was swept
	StatusExpired Status = "EXPIRED"
)

// Kind selects which reservoir owns a WAITING passenger
type Kind string

const (
	// KindDepot passengers queue FIFO at a depot for one of its routes
	KindDepot Kind = "DEPOT"

	// KindRoute passengers wait along the route path, grid-indexed
	KindRoute Kind = "ROUTE"
)

// Passenger is a synthesized commuter travelling along one route in one
// direction.
//
// Invariants:
// - Direction is immutable once spawned
// - A WAITING passenger appears in at most one reservoir
// - ONBOARD passengers are not subject to expiry
// - Status transitions: WAITING -> ONBOARD -> ALIGHTED, WAITING -> EXPIRED
type Passenger struct {
	ID          string
	Origin      shared.Coordinate
	Destination shared.Coordinate
	RouteID     string
	Direction   geo.Direction
	Kind        Kind
	Priority    float64
	SpawnTime   time.Time
	ExpiryTime  time.Time
	Status      Status

	// DepotID is set for DEPOT-kind passengers only
	DepotID string

	// AssignedVehicle is set when the passenger boards
	AssignedVehicle string
}

// New creates a WAITING passenger with validation
func New(id string, origin, destination shared.Coordinate, routeID string, direction geo.Direction, kind Kind, priority float64, spawnTime, expiryTime time.Time) (*Passenger, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	if routeID == "" {
		return nil, shared.NewValidationError("route_id", "cannot be empty")
	}
	if !direction.Valid() {
		return nil, shared.NewValidationError("direction", "must be OUTBOUND or INBOUND")
	}
	if priority < 0 || priority > 1 {
		return nil, shared.NewValidationError("priority", "must be within [0, 1]")
	}
	if !expiryTime.After(spawnTime) {
		return nil, shared.NewValidationError("expiry_time", "must be after spawn_time")
	}

	return &Passenger{
		ID:          id,
		Origin:      origin,
		Destination: destination,
		RouteID:     routeID,
		Direction:   direction,
		Kind:        kind,
		Priority:    priority,
		SpawnTime:   spawnTime,
		ExpiryTime:  expiryTime,
		Status:      StatusWaiting,
	}, nil
}

// Board transitions WAITING -> ONBOARD and records the vehicle
func (p *Passenger) Board(vehicleID string) error {
	if p.Status != StatusWaiting {
		return shared.NewStateError(fmt.Sprintf("cannot board passenger %s in status %s", p.ID, p.Status))
	}
	p.Status = StatusOnboard
	p.AssignedVehicle = vehicleID
	return nil
}

// Alight transitions ONBOARD -> ALIGHTED
func (p *Passenger) Alight() error {
	if p.Status != StatusOnboard {
		return shared.NewStateError(fmt.Sprintf("cannot alight passenger %s in status %s", p.ID, p.Status))
	}
	p.Status = StatusAlighted
	return nil
}

// Expire transitions WAITING -> EXPIRED. ONBOARD passengers never expire.
func (p *Passenger) Expire() error {
	if p.Status != StatusWaiting {
		return shared.NewStateError(fmt.Sprintf("cannot expire passenger %s in status %s", p.ID, p.Status))
	}
	p.Status = StatusExpired
	return nil
}

// ExpiredAt reports whether a WAITING passenger has outlived its expiry time
func (p *Passenger) ExpiredAt(now time.Time) bool {
	return p.Status == StatusWaiting && !now.Before(p.ExpiryTime)
}
