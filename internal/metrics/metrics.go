// Package metrics exposes Prometheus counters and histograms for a pixetl
// run, served over an optional /metrics HTTP endpoint. Wiring (namespaced
// collectors registered against a dedicated registry, served via
// promhttp.Handler) follows the qrank webserver's use of
// github.com/prometheus/client_golang — the only repo in the pack that
// reaches for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pixetl"

// Collectors holds every metric a run emits.
type Collectors struct {
	registry *prometheus.Registry

	TilesProcessed *prometheus.CounterVec
	BytesUploaded  prometheus.Counter
	WindowDuration prometheus.Histogram
	RunDuration    prometheus.Histogram
}

// New creates and registers a fresh set of collectors.
func New() *Collectors {
	registry := prometheus.NewRegistry()

	c := &Collectors{
		registry: registry,
		TilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tiles_processed_total",
			Help:      "Number of tiles that reached each terminal status.",
		}, []string{"status"}),
		BytesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_uploaded_total",
			Help:      "Total bytes uploaded to the destination bucket.",
		}),
		WindowDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "window_duration_seconds",
			Help:      "Time spent reading, transforming and writing one super-window.",
			Buckets:   prometheus.DefBuckets,
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock time for a complete run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
	}

	registry.MustRegister(c.TilesProcessed, c.BytesUploaded, c.WindowDuration, c.RunDuration)
	return c
}

// ObserveWindow records how long a single super-window took.
func (c *Collectors) ObserveWindow(d time.Duration) {
	c.WindowDuration.Observe(d.Seconds())
}

// ObserveRun records a completed run's wall-clock time.
func (c *Collectors) ObserveRun(d time.Duration) {
	c.RunDuration.Observe(d.Seconds())
}

// IncTile increments the counter for one tile reaching status.
func (c *Collectors) IncTile(status string) {
	c.TilesProcessed.WithLabelValues(status).Inc()
}

// AddBytesUploaded adds n bytes to the upload counter.
func (c *Collectors) AddBytesUploaded(n int64) {
	c.BytesUploaded.Add(float64(n))
}

// Serve starts an HTTP server exposing /metrics on addr, returning once ctx
// is cancelled or the server fails to start.
func (c *Collectors) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
