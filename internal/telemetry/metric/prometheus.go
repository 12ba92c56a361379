package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/regmesh-go/internal/core/client"
)

const namespace = "regmesh"

// Registry holds all application metrics. It implements distro.Metrics
// and healthcheck.Metrics.
type Registry struct {
	registry *prometheus.Registry

	// Distro metrics
	DistroSync          *prometheus.CounterVec
	DistroVerify        *prometheus.CounterVec
	DistroVerifyBatches *prometheus.CounterVec

	// Client registry metrics
	ClientsExpired *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with the Go and process collectors and
// every regmesh metric registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		DistroSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distro",
			Name:      "sync_total",
			Help:      "Distro change syncs sent to peers, by result",
		}, []string{"resource_type", "result"}),

		DistroVerify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distro",
			Name:      "verify_total",
			Help:      "Distro verify batches sent to peers, by result",
		}, []string{"resource_type", "result"}),

		DistroVerifyBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distro",
			Name:      "verify_batches_total",
			Help:      "Distro verify batches scheduled",
		}, []string{"resource_type"}),

		ClientsExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "client_expired_total",
			Help:      "Clients removed after their heartbeat or verify renewal stopped",
		}, []string{"kind"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served",
		}, []string{"method", "route", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.DistroSync,
		r.DistroVerify,
		r.DistroVerifyBatches,
		r.ClientsExpired,
		r.RequestsTotal,
		r.RequestDuration,
	)
	return r
}

// MustRegister adds collectors to the registry.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Gatherer exposes the registry for tests and custom handlers.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns the /metrics handler.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// SyncResult records the outcome of one change sync.
func (r *Registry) SyncResult(resourceType string, ok bool) {
	r.DistroSync.WithLabelValues(resourceType, result(ok)).Inc()
}

// VerifyResult records the outcome of one verify batch.
func (r *Registry) VerifyResult(resourceType string, ok bool) {
	r.DistroVerify.WithLabelValues(resourceType, result(ok)).Inc()
}

// VerifyBatchSent counts a scheduled verify batch.
func (r *Registry) VerifyBatchSent(resourceType string) {
	r.DistroVerifyBatches.WithLabelValues(resourceType).Inc()
}

// ClientExpired counts a client removed by expiry.
func (r *Registry) ClientExpired(kind client.Kind) {
	r.ClientsExpired.WithLabelValues(string(kind)).Inc()
}

// ObserveRequest records one served HTTP request.
func (r *Registry) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
