package passenger

import (
	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// SpawnRequest is the demand generator's output: one commuter to be placed
// into a reservoir.
type SpawnRequest struct {
	Origin      shared.Coordinate
	Destination shared.Coordinate
	RouteID     string
	Direction   geo.Direction
	Priority    float64
	Kind        Kind

	// DepotID is set when Kind == DEPOT
	DepotID string

	// ZoneID records the originating zone for accounting
	ZoneID string

	// PeakHour is reported for downstream accounting
	PeakHour bool
}
