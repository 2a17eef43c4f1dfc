// Package sinks implements concrete progress consumers: structured logging,
// Prometheus metrics, the run/outcome repository, and a Pub/Sub outcome
// feed. Each sink satisfies progress.Sink and is safe for repeated
// Consume/Close cycles.
package sinks
