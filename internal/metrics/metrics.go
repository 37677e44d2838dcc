// Package metrics provides Prometheus instrumentation for the bet service.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BetsProposed counts bets accepted into the registry.
	BetsProposed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bets_proposed_total",
		Help: "Total number of bets proposed",
	})

	// VotesTotal counts accepted votes, partitioned by choice.
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bets_votes_total",
		Help: "Total number of votes cast",
	}, []string{"choice"})

	// Finalizations counts finalize calls by outcome.
	Finalizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bets_finalized_total",
		Help: "Total number of finalizations",
	}, []string{"outcome"})

	// PendingBets tracks bets that have not been finalized.
	PendingBets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bets_pending",
		Help: "Number of bets awaiting finalization",
	})

	// Validations counts proposal validations by result
	// (valid, rejected, malformed_date, unavailable).
	Validations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bets_validation_total",
		Help: "Proposal validation results",
	}, []string{"result"})

	CollaboratorLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bets_collaborator_latency_seconds",
		Help:    "Latency of calls to external collaborators",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	}, []string{"collaborator"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bets_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// PublishFailures counts lifecycle events a sink failed to deliver.
	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bets_publish_failures_total",
		Help: "Lifecycle events that failed to publish",
	}, []string{"sink"})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bets_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bets_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0, 20.0},
	}, []string{"method", "path"})
)

// ObserveCollaborator records the time since start for collaborator.
func ObserveCollaborator(collaborator string, start time.Time) {
	CollaboratorLatency.WithLabelValues(collaborator).Observe(time.Since(start).Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request metrics. The chi route pattern is used as the
// path label so bet ids do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
