package crawler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/admission"
)

// work drains the frontier until the run is done or ctx is canceled.
func (c *Crawler) work(ctx context.Context, r *run, id int, logger *zap.Logger) {
	logger = logger.With(zap.Int("worker", id))
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("worker aborted", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
		}
	}()

	idle := time.NewTimer(c.cfg.PollInterval)
	defer idle.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if url, ok := c.frontier.TryTake(); ok {
			c.process(ctx, r, url, logger)
			continue
		}
		idle.Reset(c.cfg.PollInterval)
		select {
		case <-r.done:
			return
		case <-ctx.Done():
			return
		case <-r.wake:
		case <-idle.C:
		}
	}
}

// process takes one URL to a terminal outcome. It never panics.
func (c *Crawler) process(ctx context.Context, r *run, url string, logger *zap.Logger) {
	start := c.clock.Now()
	c.emit(Event{Kind: EventURLProcessing, RunID: r.id, URL: url, At: start})

	err := c.visit(ctx, r, url)
	end := c.clock.Now()
	ev := Event{RunID: r.id, URL: url, At: end, Duration: end.Sub(start)}
	if err != nil {
		c.failed.Add(url)
		logger.Warn("url failed", zap.String("url", url), zap.Error(err))
		ev.Kind, ev.Err = EventURLFailed, err
	} else {
		c.succeeded.Add(url)
		logger.Debug("url succeeded", zap.String("url", url))
		ev.Kind = EventURLSucceeded
	}
	c.emit(ev)
	c.settle(r)
}

// visit fetches, stores and mines url. Collaborator panics become a
// *PanicError.
func (c *Crawler) visit(ctx context.Context, r *run, url string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()

	res, err := c.reader.Read(ctx, url)
	if err != nil {
		return fmt.Errorf("read %s: %w", url, err)
	}
	if res == nil || res.Content == nil {
		return fmt.Errorf("%w: no content for %s", ErrInvalidURL, url)
	}
	if err := c.store.Save(ctx, url, res.Content, res.ContentType); err != nil {
		return fmt.Errorf("save %s: %w", url, err)
	}
	if !res.IsText() {
		return nil
	}
	for link := range c.extractor.Extract(string(res.Content)) {
		if canonical, ok := admission.Admit(link, r.root); ok {
			c.admit(r, canonical)
		}
	}
	return nil
}
