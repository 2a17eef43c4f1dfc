// Package progress turns crawler notifications into progress events, batches
// them on a background goroutine and fans them out to pluggable sinks such as
// logs, Prometheus metrics, Postgres and Pub/Sub.
package progress
