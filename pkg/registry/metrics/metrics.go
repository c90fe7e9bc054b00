// Package metrics exposes registry activity as Prometheus metrics: one
// counter per committed mutation (as a registry.EventSink) and request
// counters and latency for the HTTP API.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tendant/media-registry/pkg/registry"
)

const namespace = "registry"

// Event label values
const (
	EventContentRegistered    = "content_registered"
	EventContentModified      = "content_modified"
	EventOwnershipTransferred = "ownership_transferred"
	EventContentDeleted       = "content_deleted"
	EventPermissionSet        = "permission_set"
)

// Metrics holds the registry collectors.
type Metrics struct {
	events              *prometheus.CounterVec
	lastContentID       prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Committed registry mutations by event",
			},
			[]string{"event"},
		),
		lastContentID: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_content_id",
				Help:      "Identifier assigned by the most recent registration",
			},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests handled by the registry API",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// EventSink returns a registry.EventSink that counts committed mutations.
func (m *Metrics) EventSink() registry.EventSink {
	return &eventSink{m: m}
}

type eventSink struct {
	m *Metrics
}

func (s *eventSink) ContentRegistered(ctx context.Context, record *registry.ContentRecord) error {
	s.m.events.WithLabelValues(EventContentRegistered).Inc()
	s.m.lastContentID.Set(float64(record.ID))
	return nil
}

func (s *eventSink) ContentModified(ctx context.Context, record *registry.ContentRecord) error {
	s.m.events.WithLabelValues(EventContentModified).Inc()
	return nil
}

func (s *eventSink) OwnershipTransferred(ctx context.Context, id uint64, from, to registry.Principal) error {
	s.m.events.WithLabelValues(EventOwnershipTransferred).Inc()
	return nil
}

func (s *eventSink) ContentDeleted(ctx context.Context, id uint64, owner registry.Principal) error {
	s.m.events.WithLabelValues(EventContentDeleted).Inc()
	return nil
}

func (s *eventSink) PermissionSet(ctx context.Context, id uint64, principal registry.Principal, allowed bool) error {
	s.m.events.WithLabelValues(EventPermissionSet).Inc()
	return nil
}

// Middleware records request counts and latency. Requests are labelled by
// their chi route pattern so content ids do not blow up cardinality.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			route := routePattern(r)
			m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
			m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
