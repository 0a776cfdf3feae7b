package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var schemaRefresh bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the schema context the compiler works from",
	RunE:  runSchema,
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaRefresh, "refresh", false, "Rebuild the schema index from the database first")

	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
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

	if schemaRefresh {
		if _, err := p.RefreshSchema(ctx); err != nil {
			return err
		}
	}

	docs, version := p.SchemaDocuments()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Schema version: %s\n\n", version)

	currentTable := ""

	for _, doc := range docs {
		if doc.Column == "" {
			if currentTable != "" {
				fmt.Fprintln(out)
			}

			currentTable = doc.Table
			fmt.Fprintf(out, "%s: %s\n", doc.Table, doc.Description)

			continue
		}

		fmt.Fprintf(out, "  %-16s %-10s %s\n", doc.Column, doc.DataType, doc.Description)
	}

	return nil
}
