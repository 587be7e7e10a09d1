package vehicle

import (
	"time"

	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// Hub event types consumed from the driver/vehicle layer
const (
	EventPosition       = "vehicle:position"
	EventQueryCommuters = "vehicle:query:commuters"
	EventEngineOn       = "driver:engine:on"
	EventEngineOff      = "driver:engine:off"
	EventStopAck        = "driver:stop_ack"
)

// PositionEvent is one GPS telemetry observation
type PositionEvent struct {
	VehicleID string    `json:"vehicle_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Speed     float64   `json:"speed"`
	Heading   float64   `json:"heading"`
	Timestamp time.Time `json:"timestamp"`
}

// Coordinate converts the telemetry pair into the shared coordinate type
func (e PositionEvent) Coordinate() shared.Coordinate {
	return shared.Coordinate{Lat: e.Lat, Lon: e.Lon}
}

// EngineEvent reports a driver engine transition
type EngineEvent struct {
	VehicleID string    `json:"vehicle_id"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryCommutersEvent is the driver layer asking how many commuters wait
// ahead; answered with a correlated response.
type QueryCommutersEvent struct {
	VehicleID         string  `json:"vehicle_id"`
	MaxDistanceMeters float64 `json:"max_distance_meters"`
}
