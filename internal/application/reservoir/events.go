package reservoir

import (
	"sync/atomic"

	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
)

// Events receives reservoir lifecycle notifications. The daemon wires a
// hub-publishing implementation; tests use a recording fake.
type Events interface {
	PassengerBoarded(ev passenger.BoardedEvent)
	PassengerExpired(ev passenger.ExpiredEvent)
}

// NoopEvents discards all notifications
type NoopEvents struct{}

func (NoopEvents) PassengerBoarded(passenger.BoardedEvent) {}
func (NoopEvents) PassengerExpired(passenger.ExpiredEvent) {}

// Stats tracks reservoir counters with atomic integers so readers never
// contend with queue mutation.
type Stats struct {
	Spawned  atomic.Int64
	PickedUp atomic.Int64
	Expired  atomic.Int64
	Waiting  atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters
type StatsSnapshot struct {
	Spawned  int64 `json:"spawned"`
	PickedUp int64 `json:"picked_up"`
	Expired  int64 `json:"expired"`
	Waiting  int64 `json:"waiting"`
}

// Snapshot copies the counters
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Spawned:  s.Spawned.Load(),
		PickedUp: s.PickedUp.Load(),
		Expired:  s.Expired.Load(),
		Waiting:  s.Waiting.Load(),
	}
}
