package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database and cache statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, store, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	dbStats, err := store.GetStats(ctx)
	if err != nil {
		return err
	}

	cacheStats, err := p.CacheStats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Teams:   %d\n", dbStats.Teams)
	fmt.Fprintf(out, "Players: %d\n", dbStats.Players)
	fmt.Fprintf(out, "Matches: %d\n", dbStats.Matches)
	fmt.Fprintf(out, "Cache:   %d entries, %d hits, %d misses (%.0f%% hit rate)\n",
		cacheStats.TotalEntries, cacheStats.Hits, cacheStats.Misses, cacheStats.HitRate*100)

	return nil
}
