package vehicle

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

func TestNewValidation(t *testing.T) {
	_, err := New("", "r1", geo.DirectionOutbound, 10)
	assert.Error(t, err)
	_, err = New("v1", "", geo.DirectionOutbound, 10)
	assert.Error(t, err)
	_, err = New("v1", "r1", geo.DirectionOutbound, -1)
	assert.Error(t, err)

	v, err := New("v1", "r1", geo.DirectionOutbound, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Capacity())
}

func TestTryBoardRespectsCapacity(t *testing.T) {
	v, err := New("v1", "r1", geo.DirectionOutbound, 2)
	require.NoError(t, err)

	require.NoError(t, v.TryBoard("p1"))
	require.NoError(t, v.TryBoard("p2"))
	err = v.TryBoard("p3")
	require.Error(t, err)
	assert.True(t, shared.IsCapacityExceededError(err))
	assert.Equal(t, 2, v.OnboardCount())
}

func TestZeroCapacityNeverBoards(t *testing.T) {
	v, err := New("v1", "r1", geo.DirectionOutbound, 0)
	require.NoError(t, err)
	assert.True(t, shared.IsCapacityExceededError(v.TryBoard("p1")))
}

func TestConcurrentBoardingNeverExceedsCapacity(t *testing.T) {
	const capacity = 10
	v, err := New("v1", "r1", geo.DirectionOutbound, capacity)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = v.TryBoard(fmt.Sprintf("p%d", i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, capacity, v.OnboardCount())
}

func TestDisembark(t *testing.T) {
	v, err := New("v1", "r1", geo.DirectionOutbound, 2)
	require.NoError(t, err)
	require.NoError(t, v.TryBoard("p1"))

	require.NoError(t, v.Disembark("p1"))
	assert.Equal(t, 0, v.OnboardCount())
	assert.Error(t, v.Disembark("p1"))
}

func TestPositionAndEngine(t *testing.T) {
	v, err := New("v1", "r1", geo.DirectionOutbound, 2)
	require.NoError(t, err)

	at := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	v.UpdatePosition(shared.Coordinate{Lat: 1, Lon: 2}, at)
	pos, ts := v.Position()
	assert.Equal(t, 1.0, pos.Lat)
	assert.Equal(t, at, ts)

	assert.Equal(t, EngineOn, v.Engine())
	v.SetEngine(EngineOff)
	assert.Equal(t, EngineOff, v.Engine())
}

func TestReverseFlipsDirection(t *testing.T) {
	v, err := New("v1", "r1", geo.DirectionOutbound, 2)
	require.NoError(t, err)
	v.Reverse()
	assert.Equal(t, geo.DirectionInbound, v.Direction())
}
