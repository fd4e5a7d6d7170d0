// Package metrics exposes the catalog's Prometheus counters.
package metrics

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	pkgerrors "myshop/pkg/errors"
)

// Cache lookup results.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

// Metrics records catalog and HTTP counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	gatherer             prometheus.Gatherer
	cacheRequests        *prometheus.CounterVec
	invalidationFailures prometheus.Counter
	eventsPublished      *prometheus.CounterVec
	httpRequests         *prometheus.CounterVec
}

// New registers the counters on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the counters on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_cache_requests_total",
			Help: "Catalog cache lookups by key and result.",
		}, []string{"key", "result"}),
		invalidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_cache_invalidation_failures_total",
			Help: "Cache invalidations that failed after a successful write.",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_events_published_total",
			Help: "Catalog events dispatched to subscribers.",
		}, []string{"type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.cacheRequests, m.invalidationFailures, m.eventsPublished, m.httpRequests)
	return m
}

// CacheLookup counts a hit or miss on key.
func (m *Metrics) CacheLookup(key string, hit bool) {
	if m == nil {
		return
	}
	result := ResultMiss
	if hit {
		result = ResultHit
	}
	m.cacheRequests.WithLabelValues(key, result).Inc()
}

// InvalidationFailed counts a swallowed invalidation error.
func (m *Metrics) InvalidationFailed() {
	if m == nil {
		return
	}
	m.invalidationFailures.Inc()
}

// EventPublished counts a dispatched event.
func (m *Metrics) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// Middleware counts every request once its handler chain has returned.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if m == nil {
			return err
		}

		status := c.Response().StatusCode()
		if err != nil {
			status = statusOf(err)
		}
		m.httpRequests.WithLabelValues(c.Method(), c.Route().Path, strconv.Itoa(status)).Inc()
		return err
	}
}

func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	if e := pkgerrors.As(err); e != nil {
		return pkgerrors.MetadataFor(e.Code()).HTTPStatus
	}
	return fiber.StatusInternalServerError
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}
