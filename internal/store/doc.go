// Package store defines the outcome repository used to persist crawl runs and
// per-URL outcomes. Implementations live in storage/postgres and
// storage/memory; this package must not import database drivers.
package store
