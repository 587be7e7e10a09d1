package geo

import (
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// GeofenceType categorizes what a geofence is used for
type GeofenceType string

const (
	GeofenceTypeDepot        GeofenceType = "depot"
	GeofenceTypeBoardingZone GeofenceType = "boarding_zone"
	GeofenceTypeRestricted   GeofenceType = "restricted"
	GeofenceTypeProximity    GeofenceType = "proximity"
	GeofenceTypeCustom       GeofenceType = "custom"
)

// GeometryType distinguishes circle from polygon geofences
type GeometryType string

const (
	GeometryCircle  GeometryType = "circle"
	GeometryPolygon GeometryType = "polygon"
)

// Geofence is a runtime-mutable named region used for containment checks and
// enter/exit transition events.
//
// Invariants:
// - Geometry is immutable after construction; updates replace the geofence
// - BBox is derived at construction and always encloses the geometry
// - A point exactly on the boundary is inside (circle: distance == radius)
type Geofence struct {
	ID       string
	Type     GeofenceType
	Geometry GeometryType
	Enabled  bool

	// Circle geometry
	Center       shared.Coordinate
	RadiusMeters float64

	// Polygon geometry
	Ring Ring

	// Derived bbox pre-filter
	BBox shared.BoundingBox

	// Reference to the depot this fence guards, for depot-type fences
	DepotID string

	Metadata map[string]string
}

// NewCircleGeofence creates a circular geofence with validation
func NewCircleGeofence(id string, fenceType GeofenceType, center shared.Coordinate, radiusMeters float64) (*Geofence, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	if radiusMeters <= 0 {
		return nil, shared.NewValidationError("radius_meters", "must be positive")
	}

	bbox := shared.BoundingBox{
		MinLat: center.Lat, MaxLat: center.Lat,
		MinLon: center.Lon, MaxLon: center.Lon,
	}.Expand(radiusMeters)

	return &Geofence{
		ID:           id,
		Type:         fenceType,
		Geometry:     GeometryCircle,
		Enabled:      true,
		Center:       center,
		RadiusMeters: radiusMeters,
		BBox:         bbox,
	}, nil
}

// NewPolygonGeofence creates a polygon geofence. The ring must be closed and
// carry at least three distinct vertices.
func NewPolygonGeofence(id string, fenceType GeofenceType, points []shared.Coordinate) (*Geofence, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	ring, err := NewRing(points)
	if err != nil {
		return nil, err
	}

	return &Geofence{
		ID:       id,
		Type:     fenceType,
		Geometry: GeometryPolygon,
		Enabled:  true,
		Ring:     ring,
		BBox:     ring.BoundingBox(),
	}, nil
}

// Contains performs the bbox fast-reject followed by the exact geometry test.
// Disabled geofences contain nothing.
func (g *Geofence) Contains(p shared.Coordinate) bool {
	if !g.Enabled {
		return false
	}
	if !g.BBox.Contains(p) {
		return false
	}
	switch g.Geometry {
	case GeometryCircle:
		return shared.HaversineMeters(g.Center, p) <= g.RadiusMeters
	case GeometryPolygon:
		return g.Ring.Contains(p)
	default:
		return false
	}
}
