package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"paylink/internal/config"
	"paylink/internal/logger"
)

var version = "1.0.0"

// appConfig is set by Execute. It is nil when the environment could not be
// loaded, in which case commands report cfgErr.
var (
	appConfig *config.Config
	cfgErr    error
)

var rootCmd = &cobra.Command{
	Use:   "paylink",
	Short: "Paylink - turn invoices into shareable payment schedules",
	Long: `Paylink extracts line items from invoices, splits subscription charges
into monthly or quarterly installments, exports vendor/buyer ledgers and
stores shareable payment links.

Every command reads its settings from the environment (or a .env file).
Run "paylink serve" to expose the same operations over HTTP.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with the loaded configuration.
func Execute(cfg *config.Config, loadErr error) {
	log := logger.WithComponent("cmd")
	appConfig, cfgErr = cfg, loadErr

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// requireConfig returns the loaded configuration or the reason it is missing.
func requireConfig() (*config.Config, error) {
	if appConfig == nil {
		if cfgErr != nil {
			return nil, fmt.Errorf("configuration could not be loaded: %w", cfgErr)
		}
		return nil, fmt.Errorf("configuration not loaded")
	}
	return appConfig, nil
}
