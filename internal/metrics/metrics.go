// Package metrics exposes the updater's Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "panel_ddns"

// Metrics holds the collectors of one updater process. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ipChanges        prometheus.Counter
	providerFailures *prometheus.CounterVec
	recordsUpdated   *prometheus.CounterVec
	virtualSkipped   *prometheus.CounterVec
	syncFailures     prometheus.Counter
	lastSync         prometheus.Gauge
}

// New creates the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ipChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_changes_total",
			Help:      "Number of observed public IP changes.",
		}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Number of failed public IP lookups per source.",
		}, []string{"source"}),
		recordsUpdated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_updated_total",
			Help:      "Number of DNS records updated per domain.",
		}, []string{"domain"}),
		virtualSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "virtual_records_skipped_total",
			Help:      "Number of matching virtual DNS records that could not be updated per domain.",
		}, []string{"domain"}),
		syncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_failures_total",
			Help:      "Number of update runs that ended with an error.",
		}),
		lastSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sync_timestamp_seconds",
			Help:      "Unix time of the last successful update run.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ipChanges,
		m.providerFailures,
		m.recordsUpdated,
		m.virtualSkipped,
		m.syncFailures,
		m.lastSync,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) IPChanged() {
	if m == nil {
		return
	}
	m.ipChanges.Inc()
}

func (m *Metrics) ProviderFailed(source string) {
	if m == nil {
		return
	}
	m.providerFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordsUpdated(domain string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsUpdated.WithLabelValues(domain).Add(float64(n))
}

func (m *Metrics) VirtualSkipped(domain string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.virtualSkipped.WithLabelValues(domain).Add(float64(n))
}

func (m *Metrics) SyncFailed() {
	if m == nil {
		return
	}
	m.syncFailures.Inc()
}

// SyncSucceeded records t as the time of the last successful run.
func (m *Metrics) SyncSucceeded(t time.Time) {
	if m == nil {
		return
	}
	m.lastSync.Set(float64(t.Unix()))
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes m on addr at /metrics until ctx is done.
func Serve(ctx context.Context, log logr.Logger, addr string, m *Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics: listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Info("serving metrics", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve: %w", err)
	}
	return nil
}
