package cmd

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"paylink/internal/extraction"
	"paylink/internal/logger"
	"paylink/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the extraction, schedule, link and export API over HTTP",
	Long: `Start the HTTP API. Extraction is enabled when the configured provider
has its credentials; otherwise /api/extract answers 503 and the remaining
routes keep working.`,
	Example: `  paylink serve
  LINK_STORE=redis REDIS_ADDR=localhost:6379 paylink serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: HTTP_ADDR)")
	serveCmd.Flags().Bool("debug", false, "Run gin in debug mode")
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("serve")

	addr, _ := cmd.Flags().GetString("addr")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.HTTPAddr
	}
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := createCommandContext(0, log)
	defer cancel()

	svc, closeStore, err := openLinkService(ctx, log)
	if err != nil {
		return err
	}
	defer closeStore()

	extractor, err := extraction.New(ctx, cfg, "")
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.ExtractionProvider).Msg("Extraction disabled")
		extractor = nil
	} else {
		defer func() {
			if closeErr := extractor.Close(); closeErr != nil {
				log.Warn().Err(closeErr).Msg("Failed to close extractor")
			}
		}()
	}

	engine, err := engineFor(cfg.MonthPolicy, false)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Schedule:  engine,
		Links:     svc,
		Extractor: extractor,
	})

	log.Info().
		Str("addr", addr).
		Str("store", cfg.LinkStore).
		Str("policy", cfg.MonthPolicy).
		Bool("extraction", extractor != nil).
		Msg("Starting paylink server")

	return srv.Run(ctx, addr)
}
