package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	adminhttp "github.com/andrescamacho/commuter-go/internal/adapters/admin"
	"github.com/andrescamacho/commuter-go/internal/adapters/cms"
	"github.com/andrescamacho/commuter-go/internal/adapters/hub"
	"github.com/andrescamacho/commuter-go/internal/adapters/metrics"
	"github.com/andrescamacho/commuter-go/internal/adapters/persistence"
	"github.com/andrescamacho/commuter-go/internal/adapters/telemetry"
	appadmin "github.com/andrescamacho/commuter-go/internal/application/admin"
	"github.com/andrescamacho/commuter-go/internal/application/conductor"
	"github.com/andrescamacho/commuter-go/internal/application/demand"
	"github.com/andrescamacho/commuter-go/internal/application/geocache"
	applog "github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/application/location"
	"github.com/andrescamacho/commuter-go/internal/application/mediator"
	"github.com/andrescamacho/commuter-go/internal/application/reservoir"
	"github.com/andrescamacho/commuter-go/internal/domain/container"
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
	"github.com/andrescamacho/commuter-go/internal/domain/vehicle"
	"github.com/andrescamacho/commuter-go/internal/infrastructure/config"
	"github.com/andrescamacho/commuter-go/internal/infrastructure/daemon"
	"github.com/andrescamacho/commuter-go/internal/infrastructure/database"
	infralog "github.com/andrescamacho/commuter-go/internal/infrastructure/logging"
	"github.com/andrescamacho/commuter-go/internal/infrastructure/pidfile"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "commuter-daemon",
		Short:   "Commuter coordination daemon",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := infralog.New(cfg.Logging.Level, cfg.Logging.Format, nil)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = applog.WithLogger(ctx, logger)

	if cfg.Daemon.PidFile != "" {
		if err := pidfile.Write(cfg.Daemon.PidFile); err != nil {
			return err
		}
		defer pidfile.Remove(cfg.Daemon.PidFile)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}

	passRepo := persistence.NewPassengerRepository(db)
	containerRepo := persistence.NewContainerRepository(db)
	logRepo := persistence.NewContainerLogRepository(db)

	client := cms.NewClientWithConfig(cfg.CMS.BaseURL, cfg.CMS.Timeout, 5, time.Second, nil)
	store := cms.NewStore(client)

	cache := geocache.New(store, nil)
	if err := cache.Refresh(ctx); err != nil {
		logger.Log("WARN", "initial cache refresh failed; starting with empty geography", map[string]interface{}{"error": err.Error()})
	}

	live := config.NewLive(store, logger)
	if err := live.Refresh(ctx); err != nil {
		logger.Log("WARN", "initial configuration refresh failed; using defaults", map[string]interface{}{"error": err.Error()})
	}

	locSvc := location.New(cache)
	locSvc.RefreshFromCache()

	h := hub.New(nil)
	defer h.Close()

	m := metrics.New()
	bridge := hub.NewEventBridge(h)
	sink := &eventSink{bridge: bridge, metrics: m}

	depotRes := reservoir.NewDepotReservoir(func(depotID string) int {
		if d, ok := cache.Snapshot().DepotByID[depotID]; ok {
			return d.MaxQueueCapacity
		}
		return 0
	}, sink, logger, nil)
	routeRes := reservoir.NewRouteReservoir(0, sink, logger, nil)
	reservoirs := []passenger.Reservoir{depotRes, routeRes}

	sweeper := reservoir.NewSweeper(reservoirs, passRepo, cfg.Daemon.SweepInterval, cfg.Daemon.StoreTTL, nil)
	gen := demand.NewGenerator(cache, live, depotRes, routeRes, passRepo, sink, nil, nil)

	registry := persistence.NewVehicleRegistry()
	if vehicles, err := store.Vehicles(ctx); err != nil {
		logger.Log("WARN", "failed to load vehicle records", map[string]interface{}{"error": err.Error()})
	} else {
		for _, v := range vehicles {
			_ = registry.Save(ctx, v)
		}
		logger.Log("INFO", "vehicle registry seeded", map[string]interface{}{"vehicles": len(vehicles)})
	}

	driver := hub.NewDriver(h, live)
	fleet := conductor.NewFleet(registry, func(v *vehicle.Vehicle) *conductor.Conductor {
		return conductor.New(v, cache, locSvc, depotRes, routeRes, passRepo, driver, sink, live, nil)
	})

	telem := telemetry.NewBridge(h, registry, locSvc)
	responder := hub.NewCommutersResponder(h, registry, locSvc, depotRes, routeRes, live)

	med := mediator.NewMediator()
	if err := appadmin.RegisterHandlers(med, passRepo, depotRes, routeRes, logRepo); err != nil {
		return err
	}

	runner := daemon.NewRunner(containerRepo, logRepo, h, logger, cfg.Daemon.HealthInterval, nil)
	runner.OnRestart(func(t container.Type) {
		m.ContainerRestarts.WithLabelValues(string(t)).Inc()
	})
	runner.OnFatal(cancel)
	runner.RecoverInterrupted(ctx)

	if cfg.Metrics.Enabled {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Log("ERROR", "metrics endpoint failed", map[string]interface{}{"error": err.Error()})
			}
		}()
	}
	if cfg.Admin.Enabled {
		adminSrv := adminhttp.NewServer(med, func() interface{} { return runner.Health() })
		go func() {
			if err := adminSrv.Serve(ctx, cfg.Admin.Addr); err != nil {
				logger.Log("ERROR", "admin endpoint failed", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	ops := []daemon.Operation{
		{
			Type: container.TypeDemandGenerator,
			Name: "demand-generator",
			Run:  gen.Run,
		},
		{
			Type: container.TypeSweeper,
			Name: "expiration-sweeper",
			Run:  sweeper.Run,
		},
		{
			Type: container.TypeCacheRefresher,
			Name: "cache-refresher",
			Run: func(ctx context.Context) error {
				return refreshLoop(ctx, cfg.Daemon.CacheRefreshInterval, func(ctx context.Context) error {
					start := time.Now()
					if err := cache.Refresh(ctx); err != nil {
						m.CacheRefreshes.WithLabelValues("failure").Inc()
						return err
					}
					m.CacheRefreshes.WithLabelValues("success").Inc()
					m.CacheRefreshDuration.Observe(time.Since(start).Seconds())
					locSvc.RefreshFromCache()
					return nil
				})
			},
		},
		{
			Type: container.TypeConfigRefresher,
			Name: "config-refresher",
			Run: func(ctx context.Context) error {
				return refreshLoop(ctx, cfg.Daemon.ConfigRefreshInterval, live.Refresh)
			},
		},
		{
			Type: container.TypeTelemetryBridge,
			Name: "telemetry-bridge",
			Run:  telem.Run,
		},
		{
			Type: container.TypeTelemetryBridge,
			Name: "commuters-responder",
			Run:  responder.Run,
		},
		{
			Type: container.TypeConductor,
			Name: "conductor-fleet",
			Run:  fleet.Run,
		},
		{
			Type: container.TypeHealthMonitor,
			Name: "metrics-sampler",
			Run: func(ctx context.Context) error {
				return refreshLoop(ctx, cfg.Daemon.HealthInterval, func(context.Context) error {
					m.PassengersWaiting.WithLabelValues("depot").Set(float64(depotRes.Stats().Waiting))
					m.PassengersWaiting.WithLabelValues("route").Set(float64(routeRes.Stats().Waiting))
					published, dropped := h.Stats()
					m.HubPublished.Set(float64(published))
					m.HubDropped.Set(float64(dropped))
					for id := range telemetryStale(telem, cfg.Daemon.StaleTelemetryAfter) {
						logger.Log("WARN", "vehicle telemetry stale", map[string]interface{}{"vehicle_id": id})
					}
					return nil
				})
			},
		},
	}

	logger.Log("INFO", "commuter daemon starting", map[string]interface{}{"version": version})
	runner.Run(ctx, ops)
	logger.Log("INFO", "commuter daemon stopped", nil)
	return nil
}

// refreshLoop runs fn at the interval until the context is cancelled.
// Individual failures are logged and retried on the next tick.
func refreshLoop(ctx context.Context, interval time.Duration, fn func(ctx context.Context) error) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				applog.LoggerFromContext(ctx).Log("WARN", "periodic task failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func telemetryStale(b *telemetry.Bridge, maxAge time.Duration) map[string]struct{} {
	out := make(map[string]struct{})
	if maxAge <= 0 {
		return out
	}
	for _, id := range b.StaleVehicles(time.Now(), maxAge) {
		out[id] = struct{}{}
	}
	return out
}

// eventSink fans lifecycle events out to the hub bridge and the metric set.
// It satisfies the demand, reservoir and conductor event interfaces.
type eventSink struct {
	bridge  *hub.EventBridge
	metrics *metrics.Metrics
}

func (s *eventSink) CommuterSpawned(ev passenger.SpawnedEvent) {
	s.bridge.CommuterSpawned(ev)
	s.metrics.PassengersSpawned.WithLabelValues(ev.Kind).Inc()
}

func (s *eventSink) PassengerBoarded(ev passenger.BoardedEvent) {
	s.bridge.PassengerBoarded(ev)
	s.metrics.PassengersBoarded.Inc()
}

func (s *eventSink) PassengerAlighted(ev passenger.AlightedEvent) {
	s.bridge.PassengerAlighted(ev)
	s.metrics.PassengersAlighted.Inc()
}

func (s *eventSink) PassengerExpired(ev passenger.ExpiredEvent) {
	s.bridge.PassengerExpired(ev)
	s.metrics.PassengersExpired.WithLabelValues(ev.Reason).Inc()
}
