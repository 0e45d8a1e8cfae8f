package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"paylink/internal/links"
	"paylink/internal/linkstore"
	"paylink/internal/logger"
	"paylink/pkg/models"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Create and open shareable payment links",
	Long: `Payment links store the buyer profile and line items under a short id.
Opening a link recomputes the schedule for the requested payment term.

The backend is selected with LINK_STORE (memory, sqlite or redis). The
memory store only lives as long as the process, so use sqlite or redis
from the command line.`,
}

var linkCreateCmd = &cobra.Command{
	Use:   "create [extraction.json]",
	Short: "Store an extraction and print its share URL",
	Example: `  paylink link create extraction.json
  paylink extract invoice.pdf -o ext.json && paylink link create ext.json`,
	Args: cobra.ExactArgs(1),
	RunE: runLinkCreate,
}

var linkOpenCmd = &cobra.Command{
	Use:     "open [id]",
	Short:   "Load a link and compute its schedule",
	Example: `  paylink link open k3x9q2 --term quarterly`,
	Args:    cobra.ExactArgs(1),
	RunE:    runLinkOpen,
}

func init() {
	rootCmd.AddCommand(linkCmd)
	linkCmd.AddCommand(linkCreateCmd, linkOpenCmd)

	linkCreateCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")

	linkOpenCmd.Flags().StringP("term", "t", string(models.PaymentTermMonthly), "Payment term (monthly or quarterly)")
	linkOpenCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

// openLinkService opens the configured store and wraps it in a link service.
// The returned close function releases the store.
func openLinkService(ctx context.Context, log zerolog.Logger) (*links.Service, func(), error) {
	cfg, err := requireConfig()
	if err != nil {
		return nil, nil, err
	}

	store, err := linkstore.NewStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s link store: %w", cfg.LinkStore, err)
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close link store")
		}
	}

	engine, err := engineFor(cfg.MonthPolicy, false)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	log.Debug().Str("store", cfg.LinkStore).Msg("Link store opened")
	return links.NewService(store, engine, cfg.PublicBaseURL), closeStore, nil
}

func runLinkCreate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("link")
	outputPath, _ := cmd.Flags().GetString("output")

	ext, err := readExtraction(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := createCommandContext(30, log)
	defer cancel()

	svc, closeStore, err := openLinkService(ctx, log)
	if err != nil {
		return err
	}
	defer closeStore()

	created, err := svc.Create(ctx, *ext)
	if err != nil {
		return err
	}
	return writeJSON(created, outputPath, log)
}

func runLinkOpen(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("link")
	termFlag, _ := cmd.Flags().GetString("term")
	outputPath, _ := cmd.Flags().GetString("output")

	term, err := models.ParsePaymentTerm(termFlag)
	if err != nil {
		return err
	}

	ctx, cancel := createCommandContext(30, log)
	defer cancel()

	svc, closeStore, err := openLinkService(ctx, log)
	if err != nil {
		return err
	}
	defer closeStore()

	opened, err := svc.Open(ctx, args[0], term)
	if err != nil {
		return err
	}
	return writeJSON(opened, outputPath, log)
}
