package helpers

import (
	"context"

	"github.com/andrescamacho/commuter-go/internal/domain/geo"
)

// StaticSource serves fixed geography collections as a geocache.Source.
// Set Err to make every fetch fail.
type StaticSource struct {
	ZoneList     []*geo.Zone
	POIList      []*geo.POI
	PlaceList    []*geo.Place
	RouteList    []*geo.Route
	DepotList    []*geo.Depot
	GeofenceList []*geo.Geofence

	Err error
}

func (s *StaticSource) Zones(context.Context) ([]*geo.Zone, error) {
	return s.ZoneList, s.Err
}

func (s *StaticSource) POIs(context.Context) ([]*geo.POI, error) {
	return s.POIList, s.Err
}

func (s *StaticSource) Places(context.Context) ([]*geo.Place, error) {
	return s.PlaceList, s.Err
}

func (s *StaticSource) Routes(context.Context) ([]*geo.Route, error) {
	return s.RouteList, s.Err
}

func (s *StaticSource) Depots(context.Context) ([]*geo.Depot, error) {
	return s.DepotList, s.Err
}

func (s *StaticSource) Geofences(context.Context) ([]*geo.Geofence, error) {
	return s.GeofenceList, s.Err
}
