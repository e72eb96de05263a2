// Package metrics provides the Prometheus-based metrics collaborator the
// core pipeline reports into, grounded on the teacher's
// internal/edge/metrics/prometheus_metrics.go but trimmed to the counters
// this service actually names: request outcomes, cache hit/miss, and the
// "up to date, no polyfills needed" UA counter from spec.md §4.2.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Collector reports polyfill-service request and cache outcomes.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upToDateUA      *prometheus.CounterVec
	cacheHitsTotal  *prometheus.CounterVec
	cacheMissTotal  *prometheus.CounterVec
	bundleEmpty     prometheus.Counter

	httpHandler fasthttp.RequestHandler
}

// New registers the collector's metrics against the default registerer.
func New(namespace string) *Collector {
	return NewWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewWithRegistry registers against a caller-supplied registerer, the way
// the teacher's NewPrometheusMetricsWithRegistry supports test isolation.
func NewWithRegistry(namespace string, registerer prometheus.Registerer) *Collector {
	c := &Collector{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of polyfill bundle requests processed, by route and outcome.",
		}, []string{"route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time taken to assemble or serve a polyfill bundle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		upToDateUA: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "up_to_date_ua_total",
			Help:      "User agents identified as not needing any polyfills.",
		}, []string{"family"}),
		cacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache lookups served without regenerating the bundle, by tier.",
		}, []string{"tier"}),
		cacheMissTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache lookups that required generating the bundle.",
		}, []string{}),
		bundleEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_empty_total",
			Help:      "Bundles assembled with no features installed.",
		}),
	}

	registerer.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.upToDateUA,
		c.cacheHitsTotal,
		c.cacheMissTotal,
		c.bundleEmpty,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	c.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return c
}

// RecordRequest records a completed request's route, outcome and latency.
func (c *Collector) RecordRequest(route, status string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(route, status).Inc()
	c.requestDuration.WithLabelValues(route, status).Observe(duration.Seconds())
}

// IncUpToDateUA increments the counter for a UA family that needed no
// polyfills at all (spec.md §4.2).
func (c *Collector) IncUpToDateUA(family string) {
	c.upToDateUA.WithLabelValues(family).Inc()
}

// RecordCacheHit records a hit in the named tier ("empty" or "disk").
func (c *Collector) RecordCacheHit(tier string) {
	c.cacheHitsTotal.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a cache miss that required bundle generation.
func (c *Collector) RecordCacheMiss() {
	c.cacheMissTotal.WithLabelValues().Inc()
}

// RecordBundleEmpty records that an assembled bundle installed nothing.
func (c *Collector) RecordBundleEmpty() {
	c.bundleEmpty.Inc()
}

// ServeHTTP exposes the registered metrics in the Prometheus text format.
func (c *Collector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	c.httpHandler(ctx)
}
