package passenger

import (
	"time"

	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// Hub event types produced by the passenger lifecycle
const (
	EventSpawned  = "commuter:spawned"
	EventBoarded  = "passenger:boarded"
	EventAlighted = "passenger:alighted"
	EventExpired  = "passenger:expired"
)

// SpawnedEvent is published when the demand generator places a passenger
// into a reservoir.
type SpawnedEvent struct {
	PassengerID string            `json:"passenger_id"`
	RouteID     string            `json:"route_id"`
	Direction   string            `json:"direction"`
	Kind        string            `json:"kind"`
	DepotID     string            `json:"depot_id,omitempty"`
	ZoneID      string            `json:"zone_id,omitempty"`
	Origin      shared.Coordinate `json:"origin"`
	Destination shared.Coordinate `json:"destination"`
	PeakHour    bool              `json:"peak_hour"`
	SpawnTime   time.Time         `json:"spawn_time"`
}

// BoardedEvent is published when a reservoir hands a passenger to a vehicle
type BoardedEvent struct {
	PassengerID string    `json:"passenger_id"`
	VehicleID   string    `json:"vehicle_id"`
	RouteID     string    `json:"route_id"`
	BoardedAt   time.Time `json:"boarded_at"`
}

// AlightedEvent is published when a passenger leaves the vehicle at its
// destination.
type AlightedEvent struct {
	PassengerID string            `json:"passenger_id"`
	VehicleID   string            `json:"vehicle_id"`
	RouteID     string            `json:"route_id"`
	Position    shared.Coordinate `json:"position"`
	AlightedAt  time.Time         `json:"alighted_at"`
}

// ExpiredEvent is published when the sweeper (or queue overflow) removes a
// WAITING passenger.
type ExpiredEvent struct {
	PassengerID string    `json:"passenger_id"`
	RouteID     string    `json:"route_id"`
	Reason      string    `json:"reason"` // "timeout" or "overflow"
	ExpiredAt   time.Time `json:"expired_at"`
}
