// Package metrics exposes Prometheus collectors for agent invocations and
// call-stack depth.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crewx"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	invocations   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	callDepth     prometheus.Histogram
	dispatchBatch prometheus.Histogram
}

// MustNew constructs the collectors and registers them with reg, which
// defaults to prometheus.DefaultRegisterer. Registering the same set twice
// reuses the existing collectors instead of panicking.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "invocations_total",
			Help:      "Agent invocations by agent, mode and outcome.",
		}, []string{"agent", "mode", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "invocation_duration_seconds",
			Help:      "Wall time spent in one agent invocation.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"agent", "mode"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "invocations_in_flight",
			Help:      "Agent invocations currently running.",
		}),
		callDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "callstack_depth",
			Help:      "Depth of the frame pushed for each invocation.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		dispatchBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_batch_size",
			Help:      "Number of requests handed to the parallel dispatcher at once.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
		}),
	}

	m.invocations = register(reg, m.invocations)
	m.duration = register(reg, m.duration)
	m.inFlight = register(reg, m.inFlight)
	m.callDepth = register(reg, m.callDepth)
	m.dispatchBatch = register(reg, m.dispatchBatch)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Started records the beginning of an invocation at the given stack depth.
func (m *Metrics) Started(depth int) {
	if m == nil {
		return
	}
	m.inFlight.Inc()
	m.callDepth.Observe(float64(depth))
}

// Finished records the outcome of an invocation that called Started.
func (m *Metrics) Finished(agentID, mode string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.Observe(agentID, mode, success, elapsed)
}

// Observe records an invocation outcome without touching the in-flight gauge.
// Rejected pushes use it directly.
func (m *Metrics) Observe(agentID, mode string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.invocations.WithLabelValues(agentID, mode, status).Inc()
	m.duration.WithLabelValues(agentID, mode).Observe(elapsed.Seconds())
}

// Batch records the size of one dispatch.
func (m *Metrics) Batch(n int) {
	if m == nil {
		return
	}
	m.dispatchBatch.Observe(float64(n))
}

// Handler returns the HTTP handler serving g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
