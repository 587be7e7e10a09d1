package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the core's operational counters and gauges
type Metrics struct {
	registry *prometheus.Registry

	PassengersSpawned  *prometheus.CounterVec
	PassengersBoarded  prometheus.Counter
	PassengersAlighted prometheus.Counter
	PassengersExpired  *prometheus.CounterVec
	PassengersWaiting  *prometheus.GaugeVec

	HubPublished prometheus.Gauge
	HubDropped   prometheus.Gauge

	CacheRefreshes       *prometheus.CounterVec
	CacheRefreshDuration prometheus.Histogram

	ContainerRestarts *prometheus.CounterVec
}

// New creates the metric set on its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PassengersSpawned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "commuter_passengers_spawned_total",
			Help: "Passengers placed into a reservoir, by kind",
		}, []string{"kind"}),
		PassengersBoarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "commuter_passengers_boarded_total",
			Help: "Passengers handed to a vehicle",
		}),
		PassengersAlighted: factory.NewCounter(prometheus.CounterOpts{
			Name: "commuter_passengers_alighted_total",
			Help: "Passengers that completed their trip",
		}),
		PassengersExpired: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "commuter_passengers_expired_total",
			Help: "Passengers removed before pickup, by reason",
		}, []string{"reason"}),
		PassengersWaiting: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "commuter_passengers_waiting",
			Help: "Passengers currently waiting, by reservoir",
		}, []string{"reservoir"}),
		HubPublished: factory.NewGauge(prometheus.GaugeOpts{
			Name: "commuter_hub_envelopes_published",
			Help: "Envelopes published on the hub since start",
		}),
		HubDropped: factory.NewGauge(prometheus.GaugeOpts{
			Name: "commuter_hub_envelopes_dropped",
			Help: "Envelopes dropped by slow subscribers since start",
		}),
		CacheRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "commuter_cache_refreshes_total",
			Help: "Geographic cache refresh attempts, by outcome",
		}, []string{"outcome"}),
		CacheRefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "commuter_cache_refresh_duration_seconds",
			Help:    "Duration of geographic cache refreshes",
			Buckets: prometheus.DefBuckets,
		}),
		ContainerRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "commuter_container_restarts_total",
			Help: "Automatic container restarts, by container type",
		}, []string{"type"}),
	}
}

// Handler returns the scrape endpoint handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the scrape endpoint until the context is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
