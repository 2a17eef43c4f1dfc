// Package cmd defines the sitecrawler CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/app"
	"github.com/JakeFAU/sitecrawler/internal/config"
	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App is the application surface commands use. Tests inject a fake through
// newApp.
type App interface {
	Logger() *zap.Logger
	Crawl(ctx context.Context, rootURL string) (crawler.Snapshot, error)
	Serve(ctx context.Context) error
	Close(ctx context.Context) error
}

// newApp is the application factory.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.New(ctx, cfg)
}

type rootOptions struct {
	cfgFile string
	cfg     config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "sitecrawler",
		Short: "Crawl every page of one site concurrently.",
		Long: `sitecrawler fetches every same-site page reachable from a root URL,
stores the raw content, and reports progress to logs, Prometheus, an optional
Postgres outcome store and an optional Pub/Sub topic.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := applyFlagOverrides(cmd, &cfg); err != nil {
				return err
			}
			opts.cfg = cfg

			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return nil
			}
			if err := appInstance.Close(context.WithoutCancel(cmd.Context())); err != nil {
				return fmt.Errorf("close application services: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "YAML config file (env CRAWLER_* always applies)")
	cmd.AddCommand(newCrawlCmd(opts))
	return cmd
}

// applyFlagOverrides copies explicitly set flags over the loaded config.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		workers, err := flags.GetInt("workers")
		if err != nil {
			return fmt.Errorf("read --workers: %w", err)
		}
		cfg.Crawler.Workers = workers
	}
	if flags.Lookup("serve") != nil && flags.Changed("serve") {
		serve, err := flags.GetBool("serve")
		if err != nil {
			return fmt.Errorf("read --serve: %w", err)
		}
		cfg.Status.Enabled = cfg.Status.Enabled || serve
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
