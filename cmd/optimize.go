package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <sql>",
	Short: "Suggest improvements for a SQL query",
	Long: `Analyze a SQL query and print an improved form, the rules that were
applied and index suggestions. The advice is informational; the original
query is never modified in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, _, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	advice := p.Optimize(args[0])
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Original:  %s\n", advice.Original)
	fmt.Fprintf(out, "Optimized: %s\n", advice.Optimized)

	if len(advice.Applied) > 0 {
		fmt.Fprintln(out, "\nApplied rules:")

		for _, rewrite := range advice.Applied {
			fmt.Fprintf(out, "  %s: %s\n", rewrite.Rule, rewrite.Rationale)
		}
	}

	if len(advice.Suggestions) > 0 {
		fmt.Fprintln(out, "\nSuggestions:")

		for _, suggestion := range advice.Suggestions {
			fmt.Fprintf(out, "  - %s\n", suggestion)
		}
	}

	if len(advice.Indexes) > 0 {
		fmt.Fprintln(out, "\nIndex suggestions:")

		for _, index := range advice.Indexes {
			fmt.Fprintf(out, "  %s\n", index)
		}
	}

	return nil
}
