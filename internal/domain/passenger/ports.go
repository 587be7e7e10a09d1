package passenger

import (
	"context"
	"time"

	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// PickupQuery describes a vehicle's request for candidate passengers.
// DepotID selects the depot FIFO path; an empty DepotID queries along the
// route grid in the given direction.
type PickupQuery struct {
	DepotID           string
	RouteID           string
	Direction         string
	VehiclePosition   shared.Coordinate
	MaxDistanceMeters float64
	MaxCount          int
}

// Reservoir is the shared contract of the depot and route reservoirs so the
// conductor and the expiration sweeper stay reservoir-agnostic.
type Reservoir interface {
	// Spawn places a WAITING passenger into the reservoir. Spawning the same
	// id twice is an idempotent no-op.
	Spawn(p *Passenger) error

	// Query returns up to MaxCount candidates without removing them
	Query(q PickupQuery) ([]*Passenger, error)

	// MarkPickedUp removes the passenger, transitions it to ONBOARD and
	// returns it. Non-WAITING passengers yield a StateError.
	MarkPickedUp(passengerID, vehicleID string) (*Passenger, error)

	// ExpirePass sweeps out every WAITING passenger whose expiry time has
	// passed and returns the expired set.
	ExpirePass(now time.Time) []*Passenger

	// Contains reports whether the passenger id is currently held
	Contains(passengerID string) bool
}

// QueryFilter bounds a PassengerStore query
type QueryFilter struct {
	RouteID string
	Status  Status
	BBox    *shared.BoundingBox
	Limit   int
}

// Repository is the durable record of the passenger lifecycle, mirrored from
// the in-memory reservoirs.
type Repository interface {
	Insert(ctx context.Context, p *Passenger) error
	Mark(ctx context.Context, id string, status Status, ts time.Time) error
	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)
	Query(ctx context.Context, filter QueryFilter) ([]*Passenger, error)

	// ListWaiting returns WAITING records for orphan detection after restart
	ListWaiting(ctx context.Context) ([]*Passenger, error)
}
