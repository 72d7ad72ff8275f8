// Package metrics exposes render service counters in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rapidriter/wasm-renderer/domain/entities"
	domainerrors "github.com/rapidriter/wasm-renderer/domain/errors"
	"github.com/rapidriter/wasm-renderer/domain/ports"
)

const namespace = "wasmrender"

// Outcome labels for finished streams.
const (
	OutcomeEnd          = "end"
	OutcomeError        = "error"
	OutcomeDisconnected = "disconnected"
	OutcomeTimeout      = "timeout"
)

var _ ports.StreamObserver = (*Recorder)(nil)

// Recorder collects render metrics on a private registry.
// It implements ports.StreamObserver.
type Recorder struct {
	registry       *prometheus.Registry
	loads          *prometheus.CounterVec
	events         *prometheus.CounterVec
	hostCalls      *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	streamDuration *prometheus.HistogramVec
	keepAlives     prometheus.Counter
	activeStreams  prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry. Go runtime and
// process collectors are registered when withRuntime is true.
func NewRecorder(withRuntime bool) *Recorder {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	r := &Recorder{
		registry: reg,
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_loads_total",
			Help:      "Guest module loads by result.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_sent_total",
			Help:      "Stream events written to clients by kind.",
		}, []string{"kind"}),
		hostCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_calls_total",
			Help:      "Host capability invocations by name.",
		}, []string{"capability"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_total",
			Help:      "Render requests rejected before streaming by reason.",
		}, []string{"reason"}),
		streamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Wall time of finished streams by outcome.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"outcome"}),
		keepAlives: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keepalives_sent_total",
			Help:      "Idle keep-alive comments written to clients.",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Streams currently in progress.",
		}),
	}

	reg.MustRegister(r.loads, r.events, r.hostCalls, r.rejected, r.streamDuration, r.keepAlives, r.activeStreams)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// LoadFinished records the result of a module load.
func (r *Recorder) LoadFinished(err error) {
	result := "ok"
	if err != nil {
		result = domainerrors.ToErrorDetail(err).Type
	}
	r.loads.WithLabelValues(result).Inc()
}

// Rejected records a request refused before streaming.
func (r *Recorder) Rejected(reason string) {
	r.rejected.WithLabelValues(reason).Inc()
}

// HostCall records one host capability invocation. It has the shape
// expected by hostfuncs.CountingMiddleware.
func (r *Recorder) HostCall(name string) {
	r.hostCalls.WithLabelValues(name).Inc()
}

// StreamStarted marks a stream as active. Every call must be paired with
// StreamClosed.
func (r *Recorder) StreamStarted() {
	r.activeStreams.Inc()
}

// EventSent implements ports.StreamObserver.
func (r *Recorder) EventSent(ev entities.Event) {
	r.events.WithLabelValues(ev.Name()).Inc()
}

// KeepAliveSent implements ports.StreamObserver.
func (r *Recorder) KeepAliveSent() {
	r.keepAlives.Inc()
}

// StreamClosed implements ports.StreamObserver.
func (r *Recorder) StreamClosed(err error, elapsed time.Duration) {
	r.activeStreams.Dec()
	r.streamDuration.WithLabelValues(Outcome(err)).Observe(elapsed.Seconds())
}

// Outcome classifies the error a stream ended with.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeEnd
	case domainerrors.IsDisconnect(err) && errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case domainerrors.IsDisconnect(err):
		return OutcomeDisconnected
	default:
		return OutcomeError
	}
}
