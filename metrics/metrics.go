// Package metrics exposes engine counters on a dedicated Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tournament"

// Recorder methods are safe on a nil receiver so that callers can run without metrics.
type Recorder struct {
	registry *prometheus.Registry

	setsRecorded         *prometheus.CounterVec
	matchesCompleted     *prometheus.CounterVec
	bracketAdvancements  prometheus.Counter
	notificationFailures *prometheus.CounterVec
	notificationsDropped *prometheus.CounterVec
	txRetries            prometheus.Counter
	tournamentsCompleted prometheus.Counter
	registrations        prometheus.Counter
	httpRequests         *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(reg)

	return &Recorder{
		registry: reg,
		setsRecorded: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sets_recorded_total",
			Help:      "Sets recorded, by match stage.",
		}, []string{"stage"}),
		matchesCompleted: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_completed_total",
			Help:      "Matches that reached completed, by stage.",
		}, []string{"stage"}),
		bracketAdvancements: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bracket_advancements_total",
			Help:      "Winners moved into a next bracket match.",
		}),
		notificationFailures: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Real-time events that could not be published, by event type.",
		}, []string{"event"}),
		notificationsDropped: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Real-time events dropped because the delivery queue was full, by event type.",
		}, []string{"event"}),
		txRetries: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_retries_total",
			Help:      "Serializable transactions retried after a conflict.",
		}),
		tournamentsCompleted: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tournaments_completed_total",
			Help:      "Tournaments that crowned a winner.",
		}),
		registrations: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participants_registered_total",
			Help:      "Participants placed into a group.",
		}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpRequestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) SetRecorded(stage string) {
	if r == nil {
		return
	}
	r.setsRecorded.WithLabelValues(stage).Inc()
}

func (r *Recorder) MatchCompleted(stage string) {
	if r == nil {
		return
	}
	r.matchesCompleted.WithLabelValues(stage).Inc()
}

func (r *Recorder) BracketAdvanced() {
	if r == nil {
		return
	}
	r.bracketAdvancements.Inc()
}

func (r *Recorder) NotificationFailed(event string) {
	if r == nil {
		return
	}
	r.notificationFailures.WithLabelValues(event).Inc()
}

func (r *Recorder) NotificationDropped(event string) {
	if r == nil {
		return
	}
	r.notificationsDropped.WithLabelValues(event).Inc()
}

func (r *Recorder) TxRetried() {
	if r == nil {
		return
	}
	r.txRetries.Inc()
}

func (r *Recorder) TournamentCompleted() {
	if r == nil {
		return
	}
	r.tournamentsCompleted.Inc()
}

func (r *Recorder) ParticipantRegistered() {
	if r == nil {
		return
	}
	r.registrations.Inc()
}

func (r *Recorder) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
