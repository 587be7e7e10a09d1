package geo

import (
	"math"

	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// onEdgeEpsilonDegrees is the tolerance used to classify a point as lying on
// a polygon edge. Roughly one centimeter at the equator.
const onEdgeEpsilonDegrees = 1e-7

// Ring is a closed polygon ring: the last coordinate must equal the first.
// All polygon containment in the core goes through Ring so that zones and
// geofences agree on boundary semantics.
type Ring []shared.Coordinate

// NewRing validates and returns a closed ring. A ring needs at least three
// distinct vertices and the closing coordinate must repeat the first.
func NewRing(points []shared.Coordinate) (Ring, error) {
	if len(points) < 4 {
		return nil, shared.NewValidationError("polygon", "ring requires at least 3 vertices plus closing point")
	}
	first := points[0]
	last := points[len(points)-1]
	if first.Lat != last.Lat || first.Lon != last.Lon {
		return nil, shared.NewValidationError("polygon", "ring must be closed")
	}
	return Ring(points), nil
}

// BoundingBox returns the axis-aligned bbox of the ring
func (r Ring) BoundingBox() shared.BoundingBox {
	box, _ := shared.BoundingBoxOf(r)
	return box
}

// Contains reports whether the point is inside the ring. Vertices and edge
// points count as inside; the interior test is a standard ray cast.
func (r Ring) Contains(p shared.Coordinate) bool {
	if r.onBoundary(p) {
		return true
	}

	inside := false
	n := len(r) - 1 // closing vertex repeats the first
	for i := 0; i < n; i++ {
		a := r[i]
		b := r[i+1]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) {
			xCross := a.Lon + (p.Lat-a.Lat)/(b.Lat-a.Lat)*(b.Lon-a.Lon)
			if p.Lon < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

func (r Ring) onBoundary(p shared.Coordinate) bool {
	n := len(r) - 1
	for i := 0; i < n; i++ {
		if pointNearSegment(p, r[i], r[i+1]) {
			return true
		}
	}
	return false
}

// pointNearSegment checks whether p lies within onEdgeEpsilonDegrees of the
// segment a-b in planar degree space. Good enough at geofence scale.
func pointNearSegment(p, a, b shared.Coordinate) bool {
	dLat := b.Lat - a.Lat
	dLon := b.Lon - a.Lon
	lenSq := dLat*dLat + dLon*dLon
	if lenSq == 0 {
		return math.Abs(p.Lat-a.Lat) <= onEdgeEpsilonDegrees &&
			math.Abs(p.Lon-a.Lon) <= onEdgeEpsilonDegrees
	}
	t := ((p.Lat-a.Lat)*dLat + (p.Lon-a.Lon)*dLon) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	projLat := a.Lat + t*dLat
	projLon := a.Lon + t*dLon
	dpLat := p.Lat - projLat
	dpLon := p.Lon - projLon
	return math.Sqrt(dpLat*dpLat+dpLon*dpLon) <= onEdgeEpsilonDegrees
}
