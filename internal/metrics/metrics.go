// Package metrics collects Prometheus metrics for the API and serves them
// on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the API metrics.
type Collector struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	events        *prometheus.CounterVec
	imageReleases *prometheus.CounterVec
}

// NewCollector registers the metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allure_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "allure_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allure_events_published_total",
			Help: "Domain events by type and result.",
		}, []string{"type", "result"}),
		imageReleases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allure_image_releases_total",
			Help: "Image host releases after product deletion by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(c.requests, c.latency, c.events, c.imageReleases)
	return c
}

// RecordRequest counts one HTTP request.
func (c *Collector) RecordRequest(method, route string, status int, d time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) RecordEvent(typ string, err error) {
	c.events.WithLabelValues(typ, result(err)).Inc()
}

func (c *Collector) RecordImageRelease(err error) {
	c.imageReleases.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the registry for scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
