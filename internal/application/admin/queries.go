package admin

import (
	"context"

	"github.com/andrescamacho/commuter-go/internal/application/mediator"
	"github.com/andrescamacho/commuter-go/internal/application/reservoir"
	"github.com/andrescamacho/commuter-go/internal/domain/container"
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
)

// PassengersQuery asks for passenger records matching a filter
type PassengersQuery struct {
	RouteID string
	Status  string
	Limit   int
}

// PassengersResult carries the matching records
type PassengersResult struct {
	Passengers []*passenger.Passenger `json:"passengers"`
}

// ReservoirStatsQuery asks for the live reservoir counters
type ReservoirStatsQuery struct{}

// ReservoirStatsResult carries both reservoirs' counters
type ReservoirStatsResult struct {
	Depot reservoir.StatsSnapshot `json:"depot"`
	Route reservoir.StatsSnapshot `json:"route"`
}

// ContainerLogsQuery asks for the newest log lines of one container
type ContainerLogsQuery struct {
	ContainerID string
	Limit       int
}

// ContainerLogsResult carries the log lines
type ContainerLogsResult struct {
	Entries []*container.LogEntry `json:"entries"`
}

// StatsSource exposes reservoir counters; both reservoirs satisfy it
type StatsSource interface {
	Stats() reservoir.StatsSnapshot
}

// RegisterHandlers wires the admin query handlers into the mediator
func RegisterHandlers(
	m mediator.Mediator,
	passengers passenger.Repository,
	depotStats, routeStats StatsSource,
	logs container.LogRepository,
) error {
	err := mediator.RegisterHandler[PassengersQuery](m, mediator.HandlerFunc(
		func(ctx context.Context, req mediator.Request) (mediator.Response, error) {
			q := req.(PassengersQuery)
			out, err := passengers.Query(ctx, passenger.QueryFilter{
				RouteID: q.RouteID,
				Status:  passenger.Status(q.Status),
				Limit:   q.Limit,
			})
			if err != nil {
				return nil, err
			}
			return PassengersResult{Passengers: out}, nil
		}))
	if err != nil {
		return err
	}

	err = mediator.RegisterHandler[ReservoirStatsQuery](m, mediator.HandlerFunc(
		func(ctx context.Context, req mediator.Request) (mediator.Response, error) {
			return ReservoirStatsResult{
				Depot: depotStats.Stats(),
				Route: routeStats.Stats(),
			}, nil
		}))
	if err != nil {
		return err
	}

	return mediator.RegisterHandler[ContainerLogsQuery](m, mediator.HandlerFunc(
		func(ctx context.Context, req mediator.Request) (mediator.Response, error) {
			q := req.(ContainerLogsQuery)
			entries, err := logs.ListByContainer(ctx, q.ContainerID, q.Limit)
			if err != nil {
				return nil, err
			}
			return ContainerLogsResult{Entries: entries}, nil
		}))
}
