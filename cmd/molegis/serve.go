package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hyperjump/molegis/internal/config"
	"github.com/hyperjump/molegis/internal/search"
	"github.com/hyperjump/molegis/internal/server"
	"github.com/hyperjump/molegis/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd(g *globalFlags) *cobra.Command {
	var (
		host        string
		port        int
		watchConfig bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only search and bill API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(g)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			ctx, cancel := signalContext()
			defer cancel()
			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			if watchConfig {
				if g.resolvedPath == "" {
					logger.Warn("no config file loaded, --watch-config ignored")
				} else {
					w := watcher.NewWatcher([]string{g.resolvedPath}, func(path string) {
						reloadSearchConfig(path, components.Engine, logger)
					}, watcher.WithLogger(logger))
					if err := w.Start(ctx); err != nil {
						logger.Warn("config watcher failed to start", zap.Error(err))
					} else {
						defer w.Stop()
					}
				}
			}

			srv := server.NewServer(components.Engine, components.Storage, cfg, components.Metrics.Handler(), logger)
			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}

			logger.Info("Shutting down...")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				logger.Warn("server shutdown failed", zap.Error(err))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	cmd.Flags().BoolVar(&watchConfig, "watch-config", false, "reload search settings when the config file changes")
	return cmd
}

// reloadSearchConfig applies the search section of the config at path. Invalid
// files are logged and the running settings are kept.
func reloadSearchConfig(path string, engine *search.Engine, logger *zap.Logger) {
	cfg, err := config.Load(path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		logger.Warn("config reload failed, keeping current search settings", zap.String("path", path), zap.Error(err))
		return
	}
	engine.UpdateConfig(&cfg.Search)
	logger.Info("search settings reloaded",
		zap.String("path", path),
		zap.Float64("keyword_weight", cfg.Search.KeywordWeight),
		zap.Float64("semantic_weight", cfg.Search.SemanticWeight),
		zap.Int("default_limit", cfg.Search.DefaultLimit))
}
