// Package app builds and holds the long-lived services of one crawler
// process, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/config"
	"github.com/JakeFAU/sitecrawler/internal/crawler"
	"github.com/JakeFAU/sitecrawler/internal/extract"
	collyfetcher "github.com/JakeFAU/sitecrawler/internal/fetcher/colly"
	"github.com/JakeFAU/sitecrawler/internal/logging"
	"github.com/JakeFAU/sitecrawler/internal/progress"
	"github.com/JakeFAU/sitecrawler/internal/progress/sinks"
	pubsubpublisher "github.com/JakeFAU/sitecrawler/internal/publisher/pubsub"
	"github.com/JakeFAU/sitecrawler/internal/status"
	"github.com/JakeFAU/sitecrawler/internal/storage/gcs"
	"github.com/JakeFAU/sitecrawler/internal/storage/local"
	"github.com/JakeFAU/sitecrawler/internal/storage/memory"
	"github.com/JakeFAU/sitecrawler/internal/storage/postgres"
	"github.com/JakeFAU/sitecrawler/internal/store"
)

// App holds the shared services for one process: the crawler, its content
// store, the progress hub with its sinks, the outcome repository and the
// status server.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	crawler  *crawler.Crawler
	content  crawler.ContentStore
	hub      *progress.Hub
	registry *prometheus.Registry
	repo     store.OutcomeRepository
	status   *status.Server

	// closers run in reverse order on Close.
	closers []func(context.Context) error
}

// Option customizes New.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	reader    crawler.ContentReader
	publisher sinks.Publisher
}

// WithLogger replaces the logger built from config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithReader replaces the Colly content reader.
func WithReader(reader crawler.ContentReader) Option {
	return func(o *options) { o.reader = reader }
}

// WithPublisher replaces the Pub/Sub publisher built from config.
func WithPublisher(publisher sinks.Publisher) Option {
	return func(o *options) { o.publisher = publisher }
}

// New wires every service described by cfg. It fails fast; anything already
// opened is closed before returning an error.
func New(ctx context.Context, cfg config.Config, opts ...Option) (a *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger, err = logging.New(cfg.Logging.Development)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}

	a = &App{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if a.content, err = a.openContentStore(ctx); err != nil {
		return nil, err
	}
	if a.repo, err = a.openRepository(ctx); err != nil {
		return nil, err
	}

	hubSinks := []progress.Sink{sinks.NewLogSink(logger.Named("progress"))}
	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink: %w", err)
	}
	hubSinks = append(hubSinks, promSink, sinks.NewStoreSink(a.repo, logger))

	publisher, err := a.openPublisher(ctx, o.publisher)
	if err != nil {
		return nil, err
	}
	if publisher != nil {
		hubSinks = append(hubSinks, sinks.NewPubSubSink(publisher, logger))
	}

	a.hub = progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   cfg.Progress.MaxBatchWait,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         logger,
	}, hubSinks...)
	a.closers = append(a.closers, a.hub.Close)

	reader := o.reader
	if reader == nil {
		reader = collyfetcher.New(collyfetcher.Config{
			UserAgent:   cfg.HTTP.UserAgent,
			Timeout:     cfg.FetchTimeout(),
			MaxBodySize: cfg.HTTP.MaxBodyBytes,
		}, logger)
	}
	extractor, err := extract.New(cfg.Crawler.Extractor)
	if err != nil {
		return nil, fmt.Errorf("link extractor: %w", err)
	}

	a.crawler, err = crawler.New(crawler.Config{
		Workers:      cfg.Crawler.Workers,
		PollInterval: cfg.Crawler.PollInterval,
	}, crawler.Dependencies{
		Reader:    reader,
		Store:     a.content,
		Extractor: extractor,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build crawler: %w", err)
	}
	a.crawler.Subscribe(progress.Listener(a.hub, a.crawler))

	a.status, err = status.NewServer(a.crawler, status.Options{
		Gatherer:   a.registry,
		Registerer: a.registry,
		Repository: a.repo,
		Logger:     logger.Named("status"),
	})
	if err != nil {
		return nil, fmt.Errorf("build status server: %w", err)
	}

	logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("postgres", cfg.DB.DSN != ""),
		zap.Bool("pubsub", publisher != nil),
		zap.String("extractor", cfg.Crawler.Extractor))
	return a, nil
}

func (a *App) openContentStore(ctx context.Context) (crawler.ContentStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil
	case config.BackendGCS:
		st, err := gcs.Open(ctx, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: a.cfg.Storage.Prefix}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("open gcs store: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return st.Close() })
		return st, nil
	default:
		st, err := local.New(local.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		return st, nil
	}
}

func (a *App) openRepository(ctx context.Context) (store.OutcomeRepository, error) {
	if a.cfg.DB.DSN == "" {
		return memory.NewOutcomeStore(), nil
	}
	repo, err := postgres.New(ctx, postgres.Config{
		DSN:           a.cfg.DB.DSN,
		RunsTable:     a.cfg.DB.RunsTable,
		OutcomesTable: a.cfg.DB.OutcomesTable,
		MaxConns:      a.cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open outcome store: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		repo.Close()
		return nil
	})
	return repo, nil
}

func (a *App) openPublisher(ctx context.Context, override sinks.Publisher) (sinks.Publisher, error) {
	if override != nil {
		return override, nil
	}
	if a.cfg.PubSub.ProjectID == "" {
		return nil, nil
	}
	pub, err := pubsubpublisher.New(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("open pubsub publisher: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
	return pub, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Crawler returns the configured crawler.
func (a *App) Crawler() *crawler.Crawler { return a.crawler }

// ContentStore returns the backend fetched content is written to.
func (a *App) ContentStore() crawler.ContentStore { return a.content }

// Repository returns the outcome repository backing the store sink.
func (a *App) Repository() store.OutcomeRepository { return a.repo }

// Registry returns the Prometheus registry served on /metrics.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Status returns the status server.
func (a *App) Status() *status.Server { return a.status }

// Crawl runs one crawl and returns its final snapshot. Cancellation is
// reported through the error and the snapshot state.
func (a *App) Crawl(ctx context.Context, rootURL string) (crawler.Snapshot, error) {
	if rootURL == "" {
		rootURL = a.cfg.Crawler.RootURL
	}
	err := a.crawler.Run(ctx, rootURL)
	return a.crawler.Snapshot(), err
}

// Serve runs the status server on the configured port until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	return a.status.ListenAndServe(ctx, a.cfg.StatusAddr())
}

// Close flushes the progress hub and releases every opened client. Later
// failures do not stop earlier closers from running.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.logger != nil {
		// Sync fails on stderr/stdout for some platforms; nothing useful to do.
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}
