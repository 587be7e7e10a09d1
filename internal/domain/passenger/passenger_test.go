package passenger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

func newTestPassenger(t *testing.T) *Passenger {
	t.Helper()
	spawn := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	p, err := New("p-1",
		shared.Coordinate{Lat: 0, Lon: 0},
		shared.Coordinate{Lat: 0.01, Lon: 0},
		"r1", geo.DirectionOutbound, KindRoute, 0.5,
		spawn, spawn.Add(30*time.Minute))
	require.NoError(t, err)
	return p
}

func TestNewValidation(t *testing.T) {
	spawn := time.Now()
	cases := []struct {
		name string
		fn   func() error
	}{
		{"empty id", func() error {
			_, err := New("", shared.Coordinate{}, shared.Coordinate{}, "r1", geo.DirectionOutbound, KindRoute, 0.5, spawn, spawn.Add(time.Minute))
			return err
		}},
		{"empty route", func() error {
			_, err := New("p", shared.Coordinate{}, shared.Coordinate{}, "", geo.DirectionOutbound, KindRoute, 0.5, spawn, spawn.Add(time.Minute))
			return err
		}},
		{"bad direction", func() error {
			_, err := New("p", shared.Coordinate{}, shared.Coordinate{}, "r1", geo.Direction("SIDEWAYS"), KindRoute, 0.5, spawn, spawn.Add(time.Minute))
			return err
		}},
		{"priority out of range", func() error {
			_, err := New("p", shared.Coordinate{}, shared.Coordinate{}, "r1", geo.DirectionOutbound, KindRoute, 1.5, spawn, spawn.Add(time.Minute))
			return err
		}},
		{"expiry before spawn", func() error {
			_, err := New("p", shared.Coordinate{}, shared.Coordinate{}, "r1", geo.DirectionOutbound, KindRoute, 0.5, spawn, spawn)
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.fn())
		})
	}
}

func TestLifecycleTransitions(t *testing.T) {
	p := newTestPassenger(t)
	assert.Equal(t, StatusWaiting, p.Status)

	require.NoError(t, p.Board("veh-1"))
	assert.Equal(t, StatusOnboard, p.Status)
	assert.Equal(t, "veh-1", p.AssignedVehicle)

	require.NoError(t, p.Alight())
	assert.Equal(t, StatusAlighted, p.Status)
}

func TestIllegalTransitions(t *testing.T) {
	p := newTestPassenger(t)
	assert.Error(t, p.Alight(), "alight before boarding")

	require.NoError(t, p.Board("veh-1"))
	assert.Error(t, p.Board("veh-2"), "double board")
	assert.Error(t, p.Expire(), "expire while onboard")

	require.NoError(t, p.Alight())
	assert.Error(t, p.Alight(), "double alight")
}

func TestExpiredAt(t *testing.T) {
	p := newTestPassenger(t)
	assert.False(t, p.ExpiredAt(p.SpawnTime))
	assert.False(t, p.ExpiredAt(p.ExpiryTime.Add(-time.Second)))
	assert.True(t, p.ExpiredAt(p.ExpiryTime))

	// ONBOARD passengers never expire, no matter the clock.
	require.NoError(t, p.Board("veh-1"))
	assert.False(t, p.ExpiredAt(p.ExpiryTime.Add(time.Hour)))
}
