// Package crawler runs a single-site crawl: a fixed pool of workers drains a
// deduplicating frontier, fetching, storing and mining each page for further
// same-site links until every admitted URL has an outcome.
package crawler
