package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sqlball/sqlball/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Start the HTTP API. Endpoints:

  POST /api/query             answer a natural language question
  POST /api/execute           validate and run caller-supplied SQL
  POST /api/validate          check a SQL statement without executing it
  POST /api/optimize          advisory rewrite and index suggestions
  POST /api/schema/refresh    rebuild the schema context index
  GET  /api/schema            current schema documents and version
  GET  /api/suggestions/TYPE  general advice per query shape
  GET  /api/examples          example questions
  GET  /api/health            liveness and cache statistics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides configuration)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	p, _, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	server := api.NewServer(cfg.Server, api.NewHandler(p))

	return server.Run(ctx)
}
