package cms

import (
	"context"

	"github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
	"github.com/andrescamacho/commuter-go/internal/domain/vehicle"
)

// Store wraps the raw CMS client and converts records into validated domain
// entities. Malformed records are dropped with a warning rather than
// poisoning a snapshot.
type Store struct {
	client *Client
}

// NewStore creates a domain-level view over the CMS client
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func coordOf(dto CoordinateDTO) (shared.Coordinate, error) {
	// GeoJSON order: [lon, lat]
	return shared.NewCoordinate(dto[1], dto[0])
}

func ringOf(dtos []CoordinateDTO) ([]shared.Coordinate, error) {
	points := make([]shared.Coordinate, 0, len(dtos))
	for _, d := range dtos {
		c, err := coordOf(d)
		if err != nil {
			return nil, err
		}
		points = append(points, c)
	}
	return points, nil
}

// Zones fetches and converts all landuse zones
func (s *Store) Zones(ctx context.Context) ([]*geo.Zone, error) {
	logger := logging.LoggerFromContext(ctx)
	dtos, err := s.client.ListZones(ctx)
	if err != nil {
		return nil, err
	}

	zones := make([]*geo.Zone, 0, len(dtos))
	for _, dto := range dtos {
		ring, err := ringOf(dto.Geometry)
		if err != nil {
			logger.Log("WARN", "dropping zone with bad geometry", map[string]interface{}{"zone_id": dto.ID, "error": err.Error()})
			continue
		}
		weight := 1.0
		if dto.SpawnWeight != nil {
			weight = *dto.SpawnWeight
		}
		zone, err := geo.NewZone(dto.ID, geo.ZoneType(dto.Type), ring, dto.PopulationDensity, weight)
		if err != nil {
			logger.Log("WARN", "dropping invalid zone", map[string]interface{}{"zone_id": dto.ID, "error": err.Error()})
			continue
		}
		zones = append(zones, zone)
	}
	return zones, nil
}

// POIs fetches and converts all amenity points
func (s *Store) POIs(ctx context.Context) ([]*geo.POI, error) {
	logger := logging.LoggerFromContext(ctx)
	dtos, err := s.client.ListPOIs(ctx)
	if err != nil {
		return nil, err
	}

	pois := make([]*geo.POI, 0, len(dtos))
	for _, dto := range dtos {
		loc, err := shared.NewCoordinate(dto.Lat, dto.Lon)
		if err != nil {
			logger.Log("WARN", "dropping POI with bad coordinates", map[string]interface{}{"poi_id": dto.ID, "error": err.Error()})
			continue
		}
		activity := 1.0
		if dto.ActivityLevel != nil {
			activity = *dto.ActivityLevel
		}
		poi, err := geo.NewPOI(dto.ID, dto.Type, loc, activity)
		if err != nil {
			logger.Log("WARN", "dropping invalid POI", map[string]interface{}{"poi_id": dto.ID, "error": err.Error()})
			continue
		}
		pois = append(pois, poi)
	}
	return pois, nil
}

// Places fetches and converts all named places
func (s *Store) Places(ctx context.Context) ([]*geo.Place, error) {
	logger := logging.LoggerFromContext(ctx)
	dtos, err := s.client.ListPlaces(ctx)
	if err != nil {
		return nil, err
	}

	places := make([]*geo.Place, 0, len(dtos))
	for _, dto := range dtos {
		loc, err := shared.NewCoordinate(dto.Lat, dto.Lon)
		if err != nil {
			logger.Log("WARN", "dropping place with bad coordinates", map[string]interface{}{"place_id": dto.ID, "error": err.Error()})
			continue
		}
		places = append(places, &geo.Place{ID: dto.ID, Name: dto.Name, Location: loc})
	}
	return places, nil
}

// Routes fetches and converts all routes
func (s *Store) Routes(ctx context.Context) ([]*geo.Route, error) {
	logger := logging.LoggerFromContext(ctx)
	dtos, err := s.client.ListRoutes(ctx)
	if err != nil {
		return nil, err
	}

	routes := make([]*geo.Route, 0, len(dtos))
	for _, dto := range dtos {
		path, err := ringOf(dto.Coordinates)
		if err != nil {
			logger.Log("WARN", "dropping route with bad coordinates", map[string]interface{}{"route_id": dto.ID, "error": err.Error()})
			continue
		}
		route, err := geo.NewRoute(dto.ID, dto.Name, path, geo.TerminusConvention(dto.InboundTerminus))
		if err != nil {
			logger.Log("WARN", "dropping invalid route", map[string]interface{}{"route_id": dto.ID, "error": err.Error()})
			continue
		}
		if !route.HasDirectionConvention() {
			logger.Log("WARN", "route has no direction convention; ROUTE-kind spawning disabled for it", map[string]interface{}{"route_id": dto.ID})
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// Depots fetches and converts all depots
func (s *Store) Depots(ctx context.Context) ([]*geo.Depot, error) {
	logger := logging.LoggerFromContext(ctx)
	dtos, err := s.client.ListDepots(ctx)
	if err != nil {
		return nil, err
	}

	depots := make([]*geo.Depot, 0, len(dtos))
	for _, dto := range dtos {
		loc, err := shared.NewCoordinate(dto.Lat, dto.Lon)
		if err != nil {
			logger.Log("WARN", "dropping depot with bad coordinates", map[string]interface{}{"depot_id": dto.ID, "error": err.Error()})
			continue
		}
		depot, err := geo.NewDepot(dto.ID, dto.Name, loc, dto.Routes, dto.Capacity)
		if err != nil {
			logger.Log("WARN", "dropping invalid depot", map[string]interface{}{"depot_id": dto.ID, "error": err.Error()})
			continue
		}
		depots = append(depots, depot)
	}
	return depots, nil
}

// Geofences fetches and converts all geofences
func (s *Store) Geofences(ctx context.Context) ([]*geo.Geofence, error) {
	logger := logging.LoggerFromContext(ctx)
	dtos, err := s.client.ListGeofences(ctx)
	if err != nil {
		return nil, err
	}

	fences := make([]*geo.Geofence, 0, len(dtos))
	for _, dto := range dtos {
		fence, err := s.geofenceOf(dto)
		if err != nil {
			logger.Log("WARN", "dropping invalid geofence", map[string]interface{}{"geofence_id": dto.ID, "error": err.Error()})
			continue
		}
		fences = append(fences, fence)
	}
	return fences, nil
}

func (s *Store) geofenceOf(dto GeofenceDTO) (*geo.Geofence, error) {
	switch geo.GeometryType(dto.GeometryType) {
	case geo.GeometryCircle:
		if dto.CenterLat == nil || dto.CenterLon == nil || dto.RadiusMeters == nil {
			return nil, shared.NewValidationError("geometry", "circle requires center and radius")
		}
		center, err := shared.NewCoordinate(*dto.CenterLat, *dto.CenterLon)
		if err != nil {
			return nil, err
		}
		fence, err := geo.NewCircleGeofence(dto.ID, geo.GeofenceType(dto.Type), center, *dto.RadiusMeters)
		if err != nil {
			return nil, err
		}
		fence.Enabled = dto.Enabled
		fence.DepotID = dto.DepotID
		return fence, nil

	case geo.GeometryPolygon:
		ring, err := ringOf(dto.Polygon)
		if err != nil {
			return nil, err
		}
		fence, err := geo.NewPolygonGeofence(dto.ID, geo.GeofenceType(dto.Type), ring)
		if err != nil {
			return nil, err
		}
		fence.Enabled = dto.Enabled
		fence.DepotID = dto.DepotID
		return fence, nil

	default:
		return nil, shared.NewValidationError("geometry_type", "must be circle or polygon")
	}
}

// Vehicles fetches the authoritative vehicle records
func (s *Store) Vehicles(ctx context.Context) ([]*vehicle.Vehicle, error) {
	logger := logging.LoggerFromContext(ctx)
	dtos, err := s.client.ListVehicles(ctx)
	if err != nil {
		return nil, err
	}

	vehicles := make([]*vehicle.Vehicle, 0, len(dtos))
	for _, dto := range dtos {
		direction := geo.Direction(dto.Direction)
		if !direction.Valid() {
			direction = geo.DirectionOutbound
		}
		v, err := vehicle.New(dto.ID, dto.RouteID, direction, dto.Capacity)
		if err != nil {
			logger.Log("WARN", "dropping invalid vehicle record", map[string]interface{}{"vehicle_id": dto.ID, "error": err.Error()})
			continue
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}

// ConfigEntries fetches the raw operational configuration rows
func (s *Store) ConfigEntries(ctx context.Context) ([]ConfigEntryDTO, error) {
	return s.client.ListConfiguration(ctx)
}
