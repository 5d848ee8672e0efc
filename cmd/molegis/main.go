// Package main is the molegis CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/molegis/internal/config"
	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/molegis/config.yaml"

// errNoBillSucceeded makes the process exit non-zero when a run stored nothing
// but saw failures.
var errNoBillSucceeded = errors.New("no bill succeeded")

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	debug      bool
	// resolvedPath is the config file setup actually loaded; empty when defaults were used.
	resolvedPath string
}

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if it exists. When neither file exists the built-in
// defaults are used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads and validates config and builds the logger.
func setup(g *globalFlags) (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	debugMode := cfg.Debug || g.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	g.resolvedPath = resolved
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger, nil
}

// runResult decides the exit status of a pipeline command: it fails only when
// no bill succeeded while some failed, or when no session could be set up.
func runResult(summaries []*models.RunSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	processed, failed, setupFailed := 0, 0, 0
	for _, s := range summaries {
		if s == nil {
			continue
		}
		processed += s.Processed
		failed += s.Failed
		if s.Err != "" {
			setupFailed++
		}
	}
	if processed > 0 {
		return nil
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d failed", errNoBillSucceeded, failed)
	}
	if setupFailed == len(summaries) {
		return fmt.Errorf("%w: every session failed to set up", errNoBillSucceeded)
	}
	return nil
}

// parseSession reads --year and --session-code.
func parseSession(year int, code string) (int, models.SessionCode, error) {
	if year < 0 {
		return 0, "", fmt.Errorf("invalid year %d", year)
	}
	c, err := models.ParseSessionCode(code)
	if err != nil {
		return 0, "", err
	}
	return year, c, nil
}

// buildSearchQuery joins positional args into a single query string.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "molegis",
		Short:         "Missouri legislative ingestion and embedding pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		scrapeCmd(g),
		scrapeAllCmd(g),
		embedCmd(g),
		legislatorsCmd(g),
		serveCmd(g),
		searchCmd(g),
		statusCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Show version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "molegis version %s\n", version)
			},
		},
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
