// Package metrics provides Prometheus instrumentation for sids.
//
// All metrics are registered on the default registry at package init and
// prefixed with "sids_". Components update them directly; Collector copies
// periodic gauges (progress, index size, queue depth) from a StatsProvider.
//
// Serve exposes /metrics and /healthz on a chi router. It is only started
// when a metrics address is configured.
package metrics
