package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/sitecrawler/internal/progress"
)

// PrometheusSink exports crawl progress as Prometheus metrics.
type PrometheusSink struct {
	urlsAdmitted  prometheus.Counter
	urlsProcessed *prometheus.CounterVec
	urlsInFlight  prometheus.Gauge
	urlDuration   *prometheus.HistogramVec

	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram

	inFlight *inFlightTracker
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		urlsAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_urls_admitted_total",
			Help: "URLs admitted to the frontier.",
		}),
		urlsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_urls_processed_total",
			Help: "URLs that reached a terminal outcome.",
		}, []string{"outcome"}),
		urlsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_urls_in_flight",
			Help: "URLs currently being fetched.",
		}),
		urlDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_url_duration_seconds",
			Help:    "Time to fetch, store and mine one URL.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_runs_total",
			Help: "Finished runs partitioned by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawler_run_duration_seconds",
			Help:    "Wall time per finished run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		inFlight: newInFlightTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.urlsAdmitted,
		s.urlsProcessed,
		s.urlsInFlight,
		s.urlDuration,
		s.runs,
		s.runDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageURLAdmitted:
		s.urlsAdmitted.Inc()
	case progress.StageURLStart:
		if s.inFlight.start(evt.RunID, evt.URL) {
			s.urlsInFlight.Inc()
		}
	case progress.StageURLDone:
		s.observeURL(evt, "succeeded")
	case progress.StageURLError:
		s.observeURL(evt, "failed")
	case progress.StageRunDone:
		s.observeRun(evt, "completed")
	case progress.StageRunCanceled:
		s.observeRun(evt, "canceled")
	case progress.StageRunError:
		s.observeRun(evt, "error")
	}
}

func (s *PrometheusSink) observeURL(evt progress.Event, outcome string) {
	s.urlsProcessed.WithLabelValues(outcome).Inc()
	s.urlDuration.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
	if s.inFlight.finish(evt.RunID, evt.URL) {
		s.urlsInFlight.Dec()
	}
}

func (s *PrometheusSink) observeRun(evt progress.Event, result string) {
	s.runs.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runDuration.Observe(evt.Dur.Seconds())
	}
	if n := s.inFlight.forget(evt.RunID); n > 0 {
		s.urlsInFlight.Sub(float64(n))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type flightKey struct {
	run [16]byte
	url string
}

// inFlightTracker keeps the gauge honest when start/finish events arrive in
// separate batches or a run ends with fetches abandoned.
type inFlightTracker struct {
	mu      sync.Mutex
	running map[flightKey]struct{}
}

func newInFlightTracker() *inFlightTracker {
	return &inFlightTracker{running: make(map[flightKey]struct{})}
}

func (t *inFlightTracker) start(run [16]byte, url string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := flightKey{run: run, url: url}
	if _, ok := t.running[key]; ok {
		return false
	}
	t.running[key] = struct{}{}
	return true
}

func (t *inFlightTracker) finish(run [16]byte, url string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := flightKey{run: run, url: url}
	if _, ok := t.running[key]; !ok {
		return false
	}
	delete(t.running, key)
	return true
}

func (t *inFlightTracker) forget(run [16]byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for key := range t.running {
		if key.run == run {
			delete(t.running, key)
			n++
		}
	}
	return n
}
