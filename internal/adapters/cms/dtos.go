package cms

// DTOs for the CMS list endpoints. Values arrive as loosely-typed JSON; the
// converter turns them into validated domain entities and drops bad records.

// listResponse is the CMS pagination envelope shared by all collections
type listResponse[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// CoordinateDTO is a [lon, lat] pair in GeoJSON order
type CoordinateDTO [2]float64

// ZoneDTO is a landuse zone record
type ZoneDTO struct {
	ID                string          `json:"id"`
	Type              string          `json:"type"`
	Geometry          []CoordinateDTO `json:"geometry"`
	PopulationDensity float64         `json:"population_density"`
	SpawnWeight       *float64        `json:"spawn_weight,omitempty"`
}

// POIDTO is an amenity point record
type POIDTO struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
	ActivityLevel *float64 `json:"activity_level,omitempty"`
}

// PlaceDTO is a named point record
type PlaceDTO struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// RouteDTO is an ordered polyline with its direction convention
type RouteDTO struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Coordinates     []CoordinateDTO `json:"coordinates"`
	InboundTerminus string          `json:"inbound_terminus"` // "first" | "last" | ""
}

// DepotDTO is a named boarding point with capacity and assigned routes
type DepotDTO struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Capacity int      `json:"capacity"`
	Routes   []string `json:"routes"`
}

// VehicleDTO is the authoritative vehicle record
type VehicleDTO struct {
	ID        string `json:"id"`
	RouteID   string `json:"route_id"`
	Capacity  int    `json:"capacity"`
	Direction string `json:"direction"`
}

// GeofenceDTO is a circle or polygon region record
type GeofenceDTO struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	GeometryType string          `json:"geometry_type"` // "circle" | "polygon"
	CenterLat    *float64        `json:"center_lat,omitempty"`
	CenterLon    *float64        `json:"center_lon,omitempty"`
	RadiusMeters *float64        `json:"radius_meters,omitempty"`
	Polygon      []CoordinateDTO `json:"polygon,omitempty"`
	DepotID      string          `json:"depot_id,omitempty"`
	Enabled      bool            `json:"enabled"`
}

// ConfigEntryDTO is one OperationalConfiguration row. Values are serialized
// as strings and parsed per declared type by the configuration service.
type ConfigEntryDTO struct {
	Section      string `json:"section"`
	Key          string `json:"key"`
	ValueType    string `json:"value_type"` // "int" | "float" | "bool" | "string" | "duration"
	Value        string `json:"value"`
	DefaultValue string `json:"default_value"`
}
