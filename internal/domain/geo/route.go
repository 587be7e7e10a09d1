package geo

import (
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// TerminusConvention declares which end of the route polyline is the
// "inbound terminus". The CMS must declare it per route; without it the core
// refuses to spawn ROUTE-kind passengers on the route.
type TerminusConvention string

const (
	// TerminusFirst means index 0 of the path is the inbound terminus
	TerminusFirst TerminusConvention = "first"

	// TerminusLast means the final path index is the inbound terminus
	TerminusLast TerminusConvention = "last"

	// TerminusUndeclared means the CMS did not declare a convention
	TerminusUndeclared TerminusConvention = ""
)

// Route is an ordered polyline travelled in one of two directions.
// Immutable per cache snapshot.
type Route struct {
	ID         string
	Name       string
	Path       []shared.Coordinate
	Convention TerminusConvention
	BBox       shared.BoundingBox
}

// NewRoute creates a route with validation. A route needs at least two
// coordinates to define a direction of travel.
func NewRoute(id, name string, path []shared.Coordinate, convention TerminusConvention) (*Route, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	if len(path) < 2 {
		return nil, shared.NewValidationError("path", "route requires at least 2 coordinates")
	}
	switch convention {
	case TerminusFirst, TerminusLast, TerminusUndeclared:
	default:
		return nil, shared.NewValidationError("direction_convention", "must be 'first' or 'last'")
	}

	bbox, _ := shared.BoundingBoxOf(path)
	return &Route{
		ID:         id,
		Name:       name,
		Path:       path,
		Convention: convention,
		BBox:       bbox,
	}, nil
}

// HasDirectionConvention reports whether the CMS declared which terminus is
// inbound.
func (r *Route) HasDirectionConvention() bool {
	return r.Convention != TerminusUndeclared
}

// InboundTerminus returns the coordinate of the inbound terminus.
// Callers must check HasDirectionConvention first; an undeclared convention
// falls back to the first coordinate.
func (r *Route) InboundTerminus() shared.Coordinate {
	if r.Convention == TerminusLast {
		return r.Path[len(r.Path)-1]
	}
	return r.Path[0]
}

// NearestVertex projects a point onto the nearest route coordinate and
// returns its index and distance in meters.
func (r *Route) NearestVertex(p shared.Coordinate) (int, float64) {
	bestIdx := 0
	bestDist := shared.HaversineMeters(r.Path[0], p)
	for i := 1; i < len(r.Path); i++ {
		d := shared.HaversineMeters(r.Path[i], p)
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return bestIdx, bestDist
}

// DirectionBetween classifies a trip as INBOUND when the destination lies
// nearer to the inbound terminus than the origin does, OUTBOUND otherwise.
func (r *Route) DirectionBetween(origin, destination shared.Coordinate) Direction {
	terminus := r.InboundTerminus()
	if shared.HaversineMeters(destination, terminus) < shared.HaversineMeters(origin, terminus) {
		return DirectionInbound
	}
	return DirectionOutbound
}

// WaypointsAhead returns up to n path coordinates ahead of the given vertex
// index in the travel direction. OUTBOUND walks toward the non-inbound
// terminus; INBOUND walks toward the inbound terminus.
func (r *Route) WaypointsAhead(fromIdx, n int, direction Direction) []shared.Coordinate {
	if n <= 0 || fromIdx < 0 || fromIdx >= len(r.Path) {
		return nil
	}

	// Determine which way "ahead" walks along the path slice.
	towardEnd := direction == DirectionOutbound
	if r.Convention == TerminusLast {
		towardEnd = direction == DirectionInbound
	}

	ahead := make([]shared.Coordinate, 0, n)
	if towardEnd {
		for i := fromIdx + 1; i < len(r.Path) && len(ahead) < n; i++ {
			ahead = append(ahead, r.Path[i])
		}
	} else {
		for i := fromIdx - 1; i >= 0 && len(ahead) < n; i-- {
			ahead = append(ahead, r.Path[i])
		}
	}
	return ahead
}
