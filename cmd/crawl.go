package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

func newCrawlCmd(opts *rootOptions) *cobra.Command {
	var serve bool
	cmd := &cobra.Command{
		Use:   "crawl [root-url]",
		Short: "Crawl one site starting at root-url",
		Long: `Crawls every page whose URL starts with root-url, following links found
in text responses. The root may also come from crawler.root_url. SIGINT and
SIGTERM cancel the crawl; a canceled crawl still prints its summary.

With --serve the status server keeps running after the crawl until
interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := opts.cfg.Crawler.RootURL
			if len(args) == 1 {
				root = args[0]
			}
			return runCrawl(cmd, root, opts.cfg.Status.Enabled, serve)
		},
	}
	cmd.Flags().Int("workers", crawler.DefaultWorkers, "number of concurrent workers")
	cmd.Flags().BoolVar(&serve, "serve", false, "keep the status server running after the crawl")
	return cmd
}

func runCrawl(cmd *cobra.Command, root string, statusEnabled, keepServing bool) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveDone := make(chan error, 1)
	serveCtx, stopServe := context.WithCancel(ctx)
	defer stopServe()
	if statusEnabled {
		go func() { serveDone <- appInstance.Serve(serveCtx) }()
	} else {
		serveDone <- nil
	}

	snap, runErr := appInstance.Crawl(ctx, root)
	fmt.Fprintf(cmd.OutOrStdout(), "crawl finished: total=%d succeeded=%d failed=%d seconds=%.2f\n",
		snap.Total, snap.Succeeded, snap.Failed, snap.ElapsedSeconds)

	switch {
	case runErr == nil:
	case crawler.IsCanceled(runErr):
		logger.Warn("crawl canceled", zap.Error(runErr))
	default:
		stopServe()
		<-serveDone
		// PersistentPostRunE is skipped when RunE fails.
		if err := appInstance.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("close application services", zap.Error(err))
		}
		return fmt.Errorf("run crawl: %w", runErr)
	}

	if statusEnabled && keepServing && ctx.Err() == nil {
		logger.Info("crawl done; status server still running, interrupt to exit")
		<-ctx.Done()
	}
	stopServe()
	if err := <-serveDone; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}
