package geo

import (
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// ZoneType categorizes landuse zones for the demand model
type ZoneType string

const (
	ZoneResidential ZoneType = "residential"
	ZoneCommercial  ZoneType = "commercial"
	ZoneIndustrial  ZoneType = "industrial"
	ZoneSchool      ZoneType = "school"
	ZoneHospital    ZoneType = "hospital"
	ZoneRecreation  ZoneType = "recreation"
	ZoneMixed       ZoneType = "mixed"
)

// Zone is a landuse polygon with a population density used by the demand
// model. Immutable per cache snapshot.
type Zone struct {
	ID                    string
	Type                  ZoneType
	Ring                  Ring
	BBox                  shared.BoundingBox
	BasePopulationDensity float64
	SpawnWeight           float64
}

// NewZone creates a zone with geometry validation
func NewZone(id string, zoneType ZoneType, points []shared.Coordinate, density, spawnWeight float64) (*Zone, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	ring, err := NewRing(points)
	if err != nil {
		return nil, err
	}
	if density < 0 {
		return nil, shared.NewValidationError("base_population_density", "cannot be negative")
	}
	if spawnWeight < 0 {
		return nil, shared.NewValidationError("spawn_weight", "cannot be negative")
	}

	return &Zone{
		ID:                    id,
		Type:                  zoneType,
		Ring:                  ring,
		BBox:                  ring.BoundingBox(),
		BasePopulationDensity: density,
		SpawnWeight:           spawnWeight,
	}, nil
}

// Contains reports whether the point lies within the zone polygon
func (z *Zone) Contains(p shared.Coordinate) bool {
	return z.BBox.Contains(p) && z.Ring.Contains(p)
}
