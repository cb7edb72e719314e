/*
Package observability turns pipeline lifecycle hooks into Prometheus metrics
and structured log lines.

Metrics and LoggingHooks each produce a domain.LifecycleHooks value; Combine
fans one hook set out to several, so an engine can feed both at once.
*/
package observability
