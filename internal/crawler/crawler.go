package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/clock/system"
	"github.com/JakeFAU/sitecrawler/internal/frontier"
	"github.com/JakeFAU/sitecrawler/internal/id/uuid"
)

// Dependencies bundles the collaborators a Crawler needs. Reader, Store and
// Extractor are required; the rest fall back to real implementations.
type Dependencies struct {
	Reader    ContentReader
	Store     ContentStore
	Extractor LinkExtractor
	Clock     Clock
	IDs       IDGenerator
	Logger    *zap.Logger
}

// Crawler orchestrates one crawl at a time. Read accessors are safe to call
// while Run is in progress.
type Crawler struct {
	cfg       Config
	reader    ContentReader
	store     ContentStore
	extractor LinkExtractor
	clock     Clock
	ids       IDGenerator
	logger    *zap.Logger

	running  atomic.Bool
	state    atomic.Int32
	frontier *frontier.Frontier
	// succeeded and failed are disjoint subsets of the admitted URLs.
	succeeded frontier.Set
	failed    frontier.Set
	// outstanding counts admitted URLs without an outcome yet.
	outstanding atomic.Int64

	mu       sync.RWMutex
	current  *run
	finished time.Time

	listenersMu sync.RWMutex
	listeners   []Listener
}

// run holds the per-invocation coordination state.
type run struct {
	id      string
	root    string
	started time.Time

	done     chan struct{}
	doneOnce sync.Once
	// wake nudges one idle worker when new work is admitted.
	wake chan struct{}
}

func (r *run) finish() {
	r.doneOnce.Do(func() { close(r.done) })
}

// New validates the configuration and collaborators and returns an idle
// Crawler.
func New(cfg Config, deps Dependencies) (*Crawler, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Reader == nil:
		return nil, ErrMissingReader
	case deps.Store == nil:
		return nil, ErrMissingStore
	case deps.Extractor == nil:
		return nil, ErrMissingExtractor
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = uuid.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Crawler{
		cfg:       cfg,
		reader:    deps.Reader,
		store:     deps.Store,
		extractor: deps.Extractor,
		clock:     deps.Clock,
		ids:       deps.IDs,
		logger:    deps.Logger,
		frontier:  frontier.New(),
	}, nil
}

// Subscribe registers l for every subsequent notification.
func (c *Crawler) Subscribe(l Listener) {
	if l == nil {
		return
	}
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	next := make([]Listener, len(c.listeners), len(c.listeners)+1)
	copy(next, c.listeners)
	c.listeners = append(next, l)
}

// Run crawls every same-site page reachable from rootURL and returns once
// each admitted URL has succeeded or failed. Per-URL failures are reported
// through notifications and counters, never as the returned error. A
// canceled ctx yields an error matching both ErrCanceled and ctx.Err().
func (c *Crawler) Run(ctx context.Context, rootURL string) error {
	root := strings.ToLower(strings.TrimSpace(rootURL))
	if root == "" {
		return ErrInvalidRoot
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	runID, err := c.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	r := c.reset(runID, root)
	logger := c.logger.With(zap.String("run_id", runID), zap.String("root_url", root))
	logger.Info("crawl started", zap.Int("workers", c.cfg.Workers))
	c.emit(Event{Kind: EventRunStarted, RunID: runID, URL: root, At: r.started})

	c.admit(r, root)

	var wg sync.WaitGroup
	for i := range c.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.work(ctx, r, i, logger)
		}()
	}
	wg.Wait()

	runErr := c.conclude(ctx, r)
	elapsed := c.Elapsed()
	fields := []zap.Field{
		zap.Int("total", c.Total()),
		zap.Int("succeeded", c.Succeeded()),
		zap.Int("failed", c.Failed()),
		zap.Duration("elapsed", elapsed),
	}
	if runErr != nil {
		logger.Warn("crawl stopped", append(fields, zap.Error(runErr))...)
	} else {
		logger.Info("crawl finished", fields...)
	}
	c.emit(Event{Kind: EventRunFinished, RunID: runID, URL: root, Err: runErr, At: c.clock.Now(), Duration: elapsed})
	return runErr
}

func (c *Crawler) reset(runID, root string) *run {
	c.frontier.Reset()
	c.succeeded.Reset()
	c.failed.Reset()
	c.outstanding.Store(0)

	r := &run{
		id:      runID,
		root:    root,
		started: c.clock.Now(),
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
	c.mu.Lock()
	c.current = r
	c.finished = time.Time{}
	c.mu.Unlock()
	c.state.Store(int32(StateRunning))
	return r
}

func (c *Crawler) conclude(ctx context.Context, r *run) error {
	c.mu.Lock()
	c.finished = c.clock.Now()
	c.mu.Unlock()

	// Fetches interrupted by cancellation settle as failures and may close
	// done, so the context is checked first.
	if err := ctx.Err(); err != nil {
		c.state.Store(int32(StateCanceled))
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	c.state.Store(int32(StateCompleted))
	select {
	case <-r.done:
		return nil
	default:
		return fmt.Errorf("%w: %d outstanding", ErrIncomplete, c.outstanding.Load())
	}
}

// admit adds url to the frontier and reports whether it was new. The
// outstanding counter is raised first so a concurrent worker finishing url
// can never observe zero early; callers other than Run itself always hold an
// outstanding URL of their own.
func (c *Crawler) admit(r *run, url string) bool {
	c.outstanding.Add(1)
	if !c.frontier.Admit(url) {
		c.outstanding.Add(-1)
		return false
	}
	c.emit(Event{Kind: EventURLAdmitted, RunID: r.id, URL: url, At: c.clock.Now()})
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return true
}

// settle marks one outstanding URL as terminal.
func (c *Crawler) settle(r *run) {
	if c.outstanding.Add(-1) == 0 {
		r.finish()
	}
}

func (c *Crawler) emit(ev Event) {
	c.listenersMu.RLock()
	listeners := c.listeners
	c.listenersMu.RUnlock()
	for _, l := range listeners {
		c.notify(l, ev)
	}
}

func (c *Crawler) notify(l Listener, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("listener panicked",
				zap.Stringer("event", ev.Kind),
				zap.String("url", ev.URL),
				zap.Any("panic", rec))
		}
	}()
	l(ev)
}

// RootURL returns the lowercased root of the current or last run.
func (c *Crawler) RootURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return ""
	}
	return c.current.root
}

// RunID returns the identifier of the current or last run.
func (c *Crawler) RunID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return ""
	}
	return c.current.id
}

// Total returns how many URLs have been admitted. It only grows during a run.
func (c *Crawler) Total() int { return c.frontier.Count() }

// Succeeded returns how many URLs were processed successfully.
func (c *Crawler) Succeeded() int { return c.succeeded.Len() }

// Failed returns how many URLs failed.
func (c *Crawler) Failed() int { return c.failed.Len() }

// Progress returns floor((succeeded+failed)*100/total), or 0 before anything
// has been admitted.
func (c *Crawler) Progress() int {
	processed := c.Succeeded() + c.Failed()
	total := c.Total()
	return progressOf(processed, total)
}

func progressOf(processed, total int) int {
	if total <= 0 {
		return 0
	}
	return min(processed*100/total, 100)
}

// FullyProcessed reports whether every admitted URL has an outcome.
func (c *Crawler) FullyProcessed() bool {
	processed := c.Succeeded() + c.Failed()
	total := c.Total()
	return total > 0 && processed == total
}

// Elapsed returns the time since the current run started, or the duration of
// the last run once it has finished.
func (c *Crawler) Elapsed() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return 0
	}
	if !c.finished.IsZero() {
		return c.finished.Sub(c.current.started)
	}
	return c.clock.Now().Sub(c.current.started)
}

// ElapsedSeconds is Elapsed in seconds.
func (c *Crawler) ElapsedSeconds() float64 {
	return c.Elapsed().Seconds()
}

// State returns the lifecycle phase.
func (c *Crawler) State() State {
	s := State(c.state.Load())
	if s == StateRunning && c.frontier.Pending() == 0 && c.outstanding.Load() > 0 {
		return StateDraining
	}
	return s
}

// Snapshot collects the read surface in one value.
func (c *Crawler) Snapshot() Snapshot {
	succeeded, failed := c.Succeeded(), c.Failed()
	total := c.Total()
	return Snapshot{
		RunID:          c.RunID(),
		RootURL:        c.RootURL(),
		State:          c.State(),
		Total:          total,
		Succeeded:      succeeded,
		Failed:         failed,
		Progress:       progressOf(succeeded+failed, total),
		FullyProcessed: total > 0 && succeeded+failed == total,
		ElapsedSeconds: c.ElapsedSeconds(),
	}
}

// IsCanceled reports whether err came from a canceled run.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}
