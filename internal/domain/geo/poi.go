package geo

import "github.com/andrescamacho/commuter-go/internal/domain/shared"

// POI is an amenity point with an activity level that biases destination
// selection. Immutable per cache snapshot.
type POI struct {
	ID            string
	Type          string
	Location      shared.Coordinate
	ActivityLevel float64
}

// NewPOI creates a POI. Activity levels below zero are clamped to zero so a
// bad record cannot produce negative selection weights.
func NewPOI(id, poiType string, location shared.Coordinate, activityLevel float64) (*POI, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	if activityLevel < 0 {
		activityLevel = 0
	}
	return &POI{
		ID:            id,
		Type:          poiType,
		Location:      location,
		ActivityLevel: activityLevel,
	}, nil
}

// Place is a named point (town, suburb, landmark) used for nearest-place
// lookups. Immutable per cache snapshot.
type Place struct {
	ID       string
	Name     string
	Location shared.Coordinate
}
