package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/sqlball/sqlball/internal/formatter"
	"github.com/sqlball/sqlball/internal/pipeline"
)

var (
	queryMaxRows int
	queryShowSQL bool
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask the database a question in plain language",
	Long: `Compile a natural language question into SQL, run it and print the
result. The generated query is validated before execution; rejected
candidates are corrected automatically up to the attempt limit.

Examples:
  sql-ball query "who are the top scorers this season"
  sql-ball query --max-rows 5 "matches with more than 5 total goals"
  sql-ball query --show-sql "clean sheets per goalkeeper"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&queryMaxRows, "max-rows", 0, "Row cap for the result (0 uses the configured maximum)")
	queryCmd.Flags().BoolVar(&queryShowSQL, "show-sql", false, "Print the generated SQL before the result")

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
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

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " compiling question..."
	s.Start()

	resp, err := p.Process(ctx, pipeline.Request{
		Question: args[0],
		MaxRows:  queryMaxRows,
	})

	s.Stop()

	if err != nil {
		return err
	}

	printResponse(cmd, resp)

	return nil
}

func printResponse(cmd *cobra.Command, resp *pipeline.Response) {
	out := cmd.OutOrStdout()
	f := formatter.New()

	if queryShowSQL || resp.Fallback {
		fmt.Fprintf(out, "SQL: %s\n\n", resp.SQL)
	}

	fmt.Fprint(out, f.FormatTable(resp.Columns, resp.Rows))
	fmt.Fprintf(out, "\n%s\n",
		f.FormatSummary(len(resp.Rows), resp.ElapsedMs, resp.FromCache, resp.Truncated, resp.Confidence))

	for _, warning := range resp.Warnings {
		fmt.Fprintf(out, "note: %s\n", warning)
	}

	if len(resp.Mappings) > 0 {
		fmt.Fprintln(out, "\nRecognized terms:")

		for phrase, hint := range resp.Mappings {
			fmt.Fprintf(out, "  %s -> %s\n", phrase, hint)
		}
	}
}
