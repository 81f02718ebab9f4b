/*
Package observability provides lifecycle hooks for monitoring conformance runs.

Metrics exports Prometheus counters and histograms per service, suite state and
operation; LogHooks writes the same events to a structured logger. Both return
domain.LifecycleHooks and can be combined with LifecycleHooks.Merge.
*/
package observability
