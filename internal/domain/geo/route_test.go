package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

func northSouthRoute(t *testing.T, convention TerminusConvention) *Route {
	t.Helper()
	route, err := NewRoute("r1", "Line 1", []shared.Coordinate{
		{Lat: 0.00, Lon: 0},
		{Lat: 0.01, Lon: 0},
		{Lat: 0.02, Lon: 0},
		{Lat: 0.03, Lon: 0},
		{Lat: 0.04, Lon: 0},
	}, convention)
	require.NoError(t, err)
	return route
}

func TestNewRouteValidation(t *testing.T) {
	_, err := NewRoute("", "x", []shared.Coordinate{{}, {}}, TerminusFirst)
	assert.Error(t, err)
	_, err = NewRoute("r", "x", []shared.Coordinate{{Lat: 1, Lon: 1}}, TerminusFirst)
	assert.Error(t, err)
	_, err = NewRoute("r", "x", []shared.Coordinate{{}, {Lat: 1}}, TerminusConvention("middle"))
	assert.Error(t, err)
}

func TestDirectionBetweenUsesInboundTerminus(t *testing.T) {
	route := northSouthRoute(t, TerminusFirst)

	// Inbound terminus is the first vertex (lat 0). Travelling toward it
	// is INBOUND, away is OUTBOUND.
	origin := shared.Coordinate{Lat: 0.03, Lon: 0}
	dest := shared.Coordinate{Lat: 0.005, Lon: 0}
	assert.Equal(t, DirectionInbound, route.DirectionBetween(origin, dest))
	assert.Equal(t, DirectionOutbound, route.DirectionBetween(dest, origin))
}

func TestDirectionBetweenTerminusLast(t *testing.T) {
	route := northSouthRoute(t, TerminusLast)

	origin := shared.Coordinate{Lat: 0.005, Lon: 0}
	dest := shared.Coordinate{Lat: 0.035, Lon: 0}
	assert.Equal(t, DirectionInbound, route.DirectionBetween(origin, dest))
}

func TestNearestVertex(t *testing.T) {
	route := northSouthRoute(t, TerminusFirst)
	idx, dist := route.NearestVertex(shared.Coordinate{Lat: 0.021, Lon: 0})
	assert.Equal(t, 2, idx)
	assert.InDelta(t, 111.3, dist, 5)
}

func TestWaypointsAheadRespectsDirection(t *testing.T) {
	route := northSouthRoute(t, TerminusFirst)

	// OUTBOUND walks away from the inbound terminus (index 0), so "ahead"
	// from index 1 is indexes 2 and 3.
	ahead := route.WaypointsAhead(1, 2, DirectionOutbound)
	require.Len(t, ahead, 2)
	assert.Equal(t, 0.02, ahead[0].Lat)
	assert.Equal(t, 0.03, ahead[1].Lat)

	ahead = route.WaypointsAhead(2, 5, DirectionInbound)
	require.Len(t, ahead, 2)
	assert.Equal(t, 0.01, ahead[0].Lat)
	assert.Equal(t, 0.00, ahead[1].Lat)
}

func TestWaypointsAheadTerminusLastFlipsWalk(t *testing.T) {
	route := northSouthRoute(t, TerminusLast)

	// With the inbound terminus at the end, INBOUND walks toward the end.
	ahead := route.WaypointsAhead(2, 2, DirectionInbound)
	require.Len(t, ahead, 2)
	assert.Equal(t, 0.03, ahead[0].Lat)
}

func TestRouteWithoutConvention(t *testing.T) {
	route := northSouthRoute(t, TerminusUndeclared)
	assert.False(t, route.HasDirectionConvention())
}
