package shared

import "math"

// earthRadiusMeters is the mean Earth radius used for all geodesic math
const earthRadiusMeters = 6371000.0

// Coordinate is an immutable WGS84 latitude/longitude pair
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinate creates a coordinate with range validation
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return Coordinate{}, NewValidationError("lat", "must be within [-90, 90]")
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return Coordinate{}, NewValidationError("lon", "must be within [-180, 180]")
	}
	return Coordinate{Lat: lat, Lon: lon}, nil
}

// HaversineMeters computes the great-circle distance between two coordinates.
// This is the single geodesic routine for the whole core; components must not
// reimplement distance locally.
func HaversineMeters(a, b Coordinate) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLon*sinLon
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DistanceTo is a convenience wrapper around HaversineMeters
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	return HaversineMeters(c, other)
}

// Cell identifies a grid bucket obtained by flooring latitude and longitude
// by a fixed cell size in degrees.
type Cell struct {
	Row int
	Col int
}

// CellOf returns the grid cell containing the coordinate for the given cell
// size in degrees.
func CellOf(c Coordinate, cellSizeDegrees float64) Cell {
	return Cell{
		Row: int(math.Floor(c.Lat / cellSizeDegrees)),
		Col: int(math.Floor(c.Lon / cellSizeDegrees)),
	}
}

// CellsWithinRadius enumerates every cell whose bounding box can intersect
// the circle of radiusMeters around center. The longitude span widens with
// latitude so the enumeration stays correct away from the equator.
func CellsWithinRadius(center Coordinate, radiusMeters, cellSizeDegrees float64) []Cell {
	if radiusMeters < 0 {
		return nil
	}

	latSpan := radiusMeters / MetersPerDegreeLat
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01 // near-pole guard
	}
	lonSpan := radiusMeters / (MetersPerDegreeLat * cosLat)

	minRow := int(math.Floor((center.Lat - latSpan) / cellSizeDegrees))
	maxRow := int(math.Floor((center.Lat + latSpan) / cellSizeDegrees))
	minCol := int(math.Floor((center.Lon - lonSpan) / cellSizeDegrees))
	maxCol := int(math.Floor((center.Lon + lonSpan) / cellSizeDegrees))

	cells := make([]Cell, 0, (maxRow-minRow+1)*(maxCol-minCol+1))
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			cells = append(cells, Cell{Row: row, Col: col})
		}
	}
	return cells
}

// MetersPerDegreeLat is the approximate north-south extent of one degree of
// latitude, used for bbox spans and grid enumeration.
const MetersPerDegreeLat = 111320.0

// BoundingBox is an axis-aligned lat/lon rectangle used as a containment
// pre-filter.
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// Contains reports whether the coordinate lies inside or on the box edge
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat &&
		c.Lon >= b.MinLon && c.Lon <= b.MaxLon
}

// Expand grows the box by the given number of meters on every side
func (b BoundingBox) Expand(meters float64) BoundingBox {
	latSpan := meters / MetersPerDegreeLat
	midLat := (b.MinLat + b.MaxLat) / 2
	cosLat := math.Cos(midLat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lonSpan := meters / (MetersPerDegreeLat * cosLat)
	return BoundingBox{
		MinLat: b.MinLat - latSpan,
		MinLon: b.MinLon - lonSpan,
		MaxLat: b.MaxLat + latSpan,
		MaxLon: b.MaxLon + lonSpan,
	}
}

// BoundingBoxOf computes the bbox enclosing a set of coordinates.
// Returns false when the set is empty.
func BoundingBoxOf(points []Coordinate) (BoundingBox, bool) {
	if len(points) == 0 {
		return BoundingBox{}, false
	}
	box := BoundingBox{
		MinLat: points[0].Lat, MaxLat: points[0].Lat,
		MinLon: points[0].Lon, MaxLon: points[0].Lon,
	}
	for _, p := range points[1:] {
		box.MinLat = math.Min(box.MinLat, p.Lat)
		box.MaxLat = math.Max(box.MaxLat, p.Lat)
		box.MinLon = math.Min(box.MinLon, p.Lon)
		box.MaxLon = math.Max(box.MaxLon, p.Lon)
	}
	return box, true
}
