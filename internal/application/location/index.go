package location

import (
	"sort"

	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// PointKind tags indexed points by what they are
type PointKind string

const (
	PointStop  PointKind = "stop"
	PointPOI   PointKind = "poi"
	PointPlace PointKind = "place"
)

// NearbyPoint is one nearest/nearby query result
type NearbyPoint struct {
	ID             string
	Name           string
	Kind           PointKind
	Location       shared.Coordinate
	DistanceMeters float64
}

type indexedPoint struct {
	id       string
	name     string
	kind     PointKind
	location shared.Coordinate
}

// index is the immutable state behind the location service. Readers load it
// through an atomic pointer; writers build a replacement and swap.
type index struct {
	geofences []*geo.Geofence
	byID      map[string]*geo.Geofence
	points    *pointIndex
}

// pointIndex buckets points into a fixed-size degree grid for nearest and
// radius queries. Static per index; rebuilt on refresh.
type pointIndex struct {
	cellSize float64
	buckets  map[shared.Cell][]indexedPoint
}

const (
	pointIndexCellSize = 0.01
	// maxSearchRings bounds the outward ring walk of a nearest query
	// (50 rings * ~1.1 km per cell covers ~55 km).
	maxSearchRings = 50
)

func newPointIndex(points []indexedPoint) *pointIndex {
	pi := &pointIndex{
		cellSize: pointIndexCellSize,
		buckets:  make(map[shared.Cell][]indexedPoint),
	}
	for _, p := range points {
		cell := shared.CellOf(p.location, pi.cellSize)
		pi.buckets[cell] = append(pi.buckets[cell], p)
	}
	return pi
}

// ringCells enumerates the cells on the square ring at the given radius
// around the center cell. Radius 0 is the center cell itself.
func ringCells(center shared.Cell, radius int) []shared.Cell {
	if radius == 0 {
		return []shared.Cell{center}
	}
	cells := make([]shared.Cell, 0, 8*radius)
	for col := center.Col - radius; col <= center.Col+radius; col++ {
		cells = append(cells, shared.Cell{Row: center.Row - radius, Col: col})
		cells = append(cells, shared.Cell{Row: center.Row + radius, Col: col})
	}
	for row := center.Row - radius + 1; row <= center.Row+radius-1; row++ {
		cells = append(cells, shared.Cell{Row: row, Col: center.Col - radius})
		cells = append(cells, shared.Cell{Row: row, Col: center.Col + radius})
	}
	return cells
}

// nearest finds the closest point of the given kind by walking grid rings
// outward. Once a candidate appears, one extra ring is scanned so a closer
// point in an adjacent cell cannot be missed.
func (pi *pointIndex) nearest(p shared.Coordinate, kind PointKind) (NearbyPoint, bool) {
	center := shared.CellOf(p, pi.cellSize)

	best := NearbyPoint{}
	found := false
	foundAtRing := -1

	for ring := 0; ring <= maxSearchRings; ring++ {
		if found && ring > foundAtRing+1 {
			break
		}
		for _, cell := range ringCells(center, ring) {
			for _, cand := range pi.buckets[cell] {
				if cand.kind != kind {
					continue
				}
				d := shared.HaversineMeters(p, cand.location)
				if !found || d < best.DistanceMeters {
					best = NearbyPoint{
						ID:             cand.id,
						Name:           cand.name,
						Kind:           cand.kind,
						Location:       cand.location,
						DistanceMeters: d,
					}
					if !found {
						foundAtRing = ring
					}
					found = true
				}
			}
		}
	}
	return best, found
}

// within returns every point of the kind inside radiusMeters, ascending by
// distance.
func (pi *pointIndex) within(p shared.Coordinate, radiusMeters float64, kind PointKind) []NearbyPoint {
	var results []NearbyPoint
	for _, cell := range shared.CellsWithinRadius(p, radiusMeters, pi.cellSize) {
		for _, cand := range pi.buckets[cell] {
			if cand.kind != kind {
				continue
			}
			d := shared.HaversineMeters(p, cand.location)
			if d <= radiusMeters {
				results = append(results, NearbyPoint{
					ID:             cand.id,
					Name:           cand.name,
					Kind:           cand.kind,
					Location:       cand.location,
					DistanceMeters: d,
				})
			}
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})
	return results
}

// containing returns the ids of enabled geofences containing the point
func (ix *index) containing(p shared.Coordinate) []string {
	var ids []string
	for _, g := range ix.geofences {
		if g.Contains(p) {
			ids = append(ids, g.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
