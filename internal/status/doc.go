// Package status exposes a read-only HTTP surface over a running crawl:
// health, the live crawl snapshot, Prometheus metrics and, when an outcome
// repository is configured, persisted runs and their URL outcomes.
package status
