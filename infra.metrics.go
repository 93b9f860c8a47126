package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the book counters on a dedicated registry.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry         *prometheus.Registry
	BookOperations   *prometheus.CounterVec
	BookRejections   *prometheus.CounterVec
	EventsJournaled  *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	QueuePushFailure prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		BookOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "books_operations_total",
			Help: "Total number of committed book operations",
		}, []string{"op"}),
		BookRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "books_rejections_total",
			Help: "Total number of book writes rejected by a constraint",
		}, []string{"op", "reason"}),
		EventsJournaled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "books_journal_events_total",
			Help: "Total number of book events written to the journal",
		}, []string{"op"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "books_http_requests_total",
			Help: "Total number of served http requests by status code",
		}, []string{"code"}),
		QueuePushFailure: factory.NewCounter(prometheus.CounterOpts{
			Name: "books_queue_push_failures_total",
			Help: "Total number of book events which could not be queued",
		}),
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) BookCommitted(op string) {
	if m == nil {
		return
	}
	m.BookOperations.WithLabelValues(op).Inc()
}

func (m *Metrics) BookRejected(op string, reason Violation) {
	if m == nil {
		return
	}
	m.BookRejections.WithLabelValues(op, string(reason)).Inc()
}

func (m *Metrics) EventJournaled(op string) {
	if m == nil {
		return
	}
	m.EventsJournaled.WithLabelValues(op).Inc()
}

func (m *Metrics) RequestServed(code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(code).Inc()
}

func (m *Metrics) QueuePushFailed() {
	if m == nil {
		return
	}
	m.QueuePushFailure.Inc()
}
