// Package metric provides Prometheus metrics for regmesh.
//
//   - prometheus.go: registry, distro and registry counters, HTTP handler
//   - collector.go: gauges sampled from the client managers and membership
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
