package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hyperjump/molegis/internal/cli"
	"github.com/hyperjump/molegis/internal/config"
	"github.com/hyperjump/molegis/internal/fetch"
	"github.com/hyperjump/molegis/internal/legislators"
	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/pipeline"
	"github.com/hyperjump/molegis/internal/scraper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runFlags are the flags shared by the pipeline commands.
type runFlags struct {
	year        int
	sessionCode string
	force       bool
	limit       int
	output      string
}

func (f *runFlags) register(cmd *cobra.Command, withSession bool) {
	if withSession {
		cmd.Flags().IntVar(&f.year, "year", 0, "session year (0 = current session)")
		cmd.Flags().StringVar(&f.sessionCode, "session-code", "R", "session code: R, S1, or S2")
	}
	cmd.Flags().BoolVar(&f.force, "force", false, "reprocess bills that already have text and replace their embeddings")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "process at most this many bills per session (0 = all)")
	cmd.Flags().StringVar(&f.output, "output", "text", "summary format: text or json")
}

func (f *runFlags) options() (pipeline.Options, error) {
	year, code, err := parseSession(f.year, f.sessionCode)
	if err != nil {
		return pipeline.Options{}, err
	}
	if f.limit < 0 {
		return pipeline.Options{}, fmt.Errorf("invalid limit %d", f.limit)
	}
	return pipeline.Options{Year: year, Code: code, Force: f.force, Limit: f.limit}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// scrapeEnv is everything a scraping command needs on top of Components.
type scrapeEnv struct {
	*Components
	browser *scraper.Browser
	source  scraper.BillSource
	house   *scraper.HouseSource
	blobs   *fetch.BlobCache
}

func (e *scrapeEnv) Close() {
	if e.browser != nil {
		_ = e.browser.Close()
	}
	if e.blobs != nil {
		_ = e.blobs.Close()
	}
	e.Components.Close()
}

func newScrapeEnv(ctx context.Context, cfg *config.Config, logger *zap.Logger, chamber string) (*scrapeEnv, error) {
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	env := &scrapeEnv{Components: components}

	env.browser, err = scraper.NewBrowser(ctx, scraper.BrowserConfig{
		Headless:    cfg.Scraper.HeadlessOrDefault(),
		UserAgent:   cfg.Scraper.UserAgent,
		PageTimeout: cfg.Scraper.PageTimeout,
	}, logger)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	env.house = scraper.NewHouseSource(env.browser, cfg.Scraper.HouseBaseURL)
	switch chamber {
	case config.ChamberSenate:
		env.source = scraper.NewSenateSource(env.browser, cfg.Scraper.SenateBaseURL)
	default:
		env.source = env.house
	}

	if cfg.Storage.BlobCachePath != "" {
		env.blobs, err = fetch.OpenBlobCache(cfg.Storage.BlobCachePath, logger)
		if err != nil {
			logger.Warn("blob cache unavailable, downloading every document", zap.Error(err))
			env.blobs = nil
		}
	}
	return env, nil
}

func (e *scrapeEnv) orchestrator(logger *zap.Logger) *pipeline.Orchestrator {
	cfg := e.Config
	downloader := fetch.NewDownloader(
		fetch.WithTimeout(cfg.Pipeline.DownloadTimeout),
		fetch.WithRetry(cfg.Pipeline.DownloadRetries, cfg.Pipeline.RetryBaseDelay),
		fetch.WithUserAgent(cfg.Scraper.UserAgent),
		fetch.WithLogger(logger),
	)
	acquirer := fetch.NewAcquirer(downloader, e.blobs, e.Metrics, logger)

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithRecorder(e.Metrics),
		pipeline.WithBrowser(e.browser),
	}
	if e.source.Chamber() == scraper.ChamberHouse {
		opts = append(opts, pipeline.WithRosterSync(e.rosterSyncer(logger)))
	}
	return pipeline.New(e.Storage, e.source, acquirer, e.Indexer, opts...)
}

func (e *scrapeEnv) rosterSyncer(logger *zap.Logger) *legislators.Syncer {
	return legislators.NewSyncer(e.house, e.Storage,
		legislators.WithLogger(logger),
		legislators.WithRetry(e.Config.Pipeline.DownloadRetries, e.Config.Pipeline.RetryBaseDelay))
}

func scrapeCmd(g *globalFlags) *cobra.Command {
	var (
		flags           runFlags
		chamber         string
		withLegislators bool
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape, store, and embed one session's bills",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			format, err := cli.ParseOutputFormat(flags.output)
			if err != nil {
				return err
			}
			cfg, logger, err := setup(g)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if chamber != "" {
				cfg.Scraper.Chamber = chamber
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			opts.SyncRoster = withLegislators

			ctx, cancel := signalContext()
			defer cancel()
			env, err := newScrapeEnv(ctx, cfg, logger, cfg.Scraper.Chamber)
			if err != nil {
				return err
			}
			defer env.Close()

			summary, err := env.orchestrator(logger).Run(ctx, opts)
			if summary != nil {
				_ = cli.WriteRunSummary(cmd.OutOrStdout(), summary, format)
			}
			if err != nil {
				return err
			}
			return runResult([]*models.RunSummary{summary})
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringVar(&chamber, "chamber", "", "chamber to scrape: house or senate (default from config)")
	cmd.Flags().BoolVar(&withLegislators, "with-legislators", false, "sync the House member roster before scraping")
	return cmd
}

func scrapeAllCmd(g *globalFlags) *cobra.Command {
	var (
		flags           runFlags
		withLegislators bool
	)
	cmd := &cobra.Command{
		Use:   "scrape-all",
		Short: "Scrape every known House session, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			format, err := cli.ParseOutputFormat(flags.output)
			if err != nil {
				return err
			}
			cfg, logger, err := setup(g)
			if err != nil {
				return err
			}
			defer logger.Sync()
			opts.SyncRoster = withLegislators

			ctx, cancel := signalContext()
			defer cancel()
			env, err := newScrapeEnv(ctx, cfg, logger, config.ChamberHouse)
			if err != nil {
				return err
			}
			defer env.Close()

			summaries, runErr := env.orchestrator(logger).RunAll(ctx, models.KnownSessions, opts)
			out := cmd.OutOrStdout()
			for _, s := range summaries {
				_ = cli.WriteRunSummary(out, s, format)
			}
			if format == cli.OutputText {
				t := pipeline.Total(summaries)
				fmt.Fprintf(out, "\nTotal: %d sessions (%d failed), %d processed, %d skipped, %d failed, %d embeddings\n",
					t.Sessions, t.FailedSessions, t.Processed, t.Skipped, t.Failed, t.Embeddings)
			}
			if runErr != nil {
				return runErr
			}
			return runResult(summaries)
		},
	}
	flags.register(cmd, false)
	cmd.Flags().BoolVar(&withLegislators, "with-legislators", false, "sync each session's member roster before scraping")
	return cmd
}

func embedCmd(g *globalFlags) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Regenerate embeddings for a session's stored bills",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			format, err := cli.ParseOutputFormat(flags.output)
			if err != nil {
				return err
			}
			cfg, logger, err := setup(g)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := signalContext()
			defer cancel()
			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			orch := pipeline.New(components.Storage, nil, nil, components.Indexer,
				pipeline.WithLogger(logger),
				pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
				pipeline.WithRecorder(components.Metrics))
			summary, err := orch.Regenerate(ctx, opts)
			if summary != nil {
				_ = cli.WriteRunSummary(cmd.OutOrStdout(), summary, format)
			}
			if err != nil {
				return err
			}
			return runResult([]*models.RunSummary{summary})
		},
	}
	flags.register(cmd, true)
	return cmd
}

func legislatorsCmd(g *globalFlags) *cobra.Command {
	var (
		year        int
		sessionCode string
	)
	cmd := &cobra.Command{
		Use:   "legislators",
		Short: "Sync the House member roster for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, code, err := parseSession(year, sessionCode)
			if err != nil {
				return err
			}
			cfg, logger, err := setup(g)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := signalContext()
			defer cancel()
			env, err := newScrapeEnv(ctx, cfg, logger, config.ChamberHouse)
			if err != nil {
				return err
			}
			defer env.Close()

			dbYear := year
			if dbYear == 0 {
				dbYear = models.CurrentSessionYear()
			}
			sessionID, err := env.Storage.UpsertSession(ctx, dbYear, code)
			if err != nil {
				return fmt.Errorf("failed to resolve session: %w", err)
			}
			res, err := env.rosterSyncer(logger).Sync(ctx, sessionID, year, code)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %d %s roster: %d members, %d inserted, %d updated, %d failed\n",
				dbYear, code, res.Members, res.Inserted, res.Updated, res.Failed)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "session year (0 = current session)")
	cmd.Flags().StringVar(&sessionCode, "session-code", "R", "session code: R, S1, or S2")
	return cmd
}
