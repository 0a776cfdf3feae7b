// Package cmd implements the sql-ball command line interface
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sqlball/sqlball/internal/config"
	"github.com/sqlball/sqlball/internal/llm"
	"github.com/sqlball/sqlball/internal/logging"
	"github.com/sqlball/sqlball/internal/pipeline"
	"github.com/sqlball/sqlball/internal/storage"
)

var (
	flagDBPath      string
	flagLogLevel    string
	flagProvider    string
	flagMaxAttempts int
)

var rootCmd = &cobra.Command{
	Use:   "sql-ball",
	Short: "Ask a football analytics database questions in plain language",
	Long: `sql-ball compiles natural language questions into SQL over a local
DuckDB football database. Generated queries pass a safety validator before
execution, failed attempts are corrected automatically, and accepted
results are cached until the schema changes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI
func Execute() error {
	ctx := context.Background()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db-path", "", "Path to the DuckDB database file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "LLM provider: openai, anthropic, ollama")
	rootCmd.PersistentFlags().IntVar(&flagMaxAttempts, "max-attempts", 0, "Maximum synthesis attempts per question")
}

// loadConfig merges file, environment and flag configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithOverrides(map[string]interface{}{
		"db-path":      flagDBPath,
		"log-level":    flagLogLevel,
		"provider":     flagProvider,
		"max-attempts": flagMaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	cfg.ExpandAllPaths()

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		logging.SetupFallbackLogger()
	}

	return cfg, nil
}

// buildPipeline assembles the full stack. The returned cleanup must be
// called before exit.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, *storage.Store, func(), error) {
	store, err := storage.NewStore(cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := store.Initialize(ctx); err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	if err := store.Seed(ctx); err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	generator, err := llm.NewClient(llm.ConfigFromApp(cfg.LLM))
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	p, err := pipeline.New(ctx, cfg, store, generator)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		p.Close()
		_ = store.Close()
	}

	return p, store, cleanup, nil
}
