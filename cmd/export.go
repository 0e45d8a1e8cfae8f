package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"paylink/internal/ledger"
	"paylink/internal/logger"
	"paylink/internal/sheets"
	"paylink/pkg/models"
)

var exportCmd = &cobra.Command{
	Use:   "export [items.json]",
	Short: "Export the vendor/buyer ledger for a batch of line items",
	Long: `Compute the schedule for a batch of line items and export the financing
ledger: one vendor draw row per item (amount minus the vendor fee) and one
buyer row per installment (amount plus the buyer fee).

Formats:
  csv     - comma separated values with a header row
  xlsx    - Excel workbook (requires --output)
  sheets  - append to a Google Sheet (GOOGLE_SHEET_URL plus Google credentials)

Fees are percentages, e.g. --vendor-fee 2.5 charges the vendor 2.5%.`,
	Example: `  # CSV ledger to stdout
  paylink export items.json --vendor-fee 2.5 --buyer-fee 3

  # Quarterly ledger as Excel workbook
  paylink export items.json --term quarterly --format xlsx -o ledger.xlsx

  # Append to the configured Google Sheet
  paylink export items.json --format sheets --worksheet "Acme 2025"`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("term", "t", string(models.PaymentTermMonthly), "Payment term (monthly or quarterly)")
	exportCmd.Flags().String("policy", "", "Month span policy (tolerant or calendar, default: MONTH_POLICY)")
	exportCmd.Flags().String("vendor-fee", "", "Vendor fee in percent")
	exportCmd.Flags().String("buyer-fee", "", "Buyer fee in percent")
	exportCmd.Flags().StringP("format", "f", "csv", "Output format: csv, xlsx or sheets")
	exportCmd.Flags().String("worksheet", "", "Worksheet name for xlsx and sheets (default: GOOGLE_SHEET_WORKSHEET or Ledger)")
	exportCmd.Flags().Int("timeout", 60, "Timeout in seconds for the sheets upload")
	exportCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")

	termFlag, _ := cmd.Flags().GetString("term")
	policyName, _ := cmd.Flags().GetString("policy")
	vendorFee, _ := cmd.Flags().GetString("vendor-fee")
	buyerFee, _ := cmd.Flags().GetString("buyer-fee")
	format, _ := cmd.Flags().GetString("format")
	worksheet, _ := cmd.Flags().GetString("worksheet")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	outputPath, _ := cmd.Flags().GetString("output")

	format = strings.ToLower(format)
	switch format {
	case "csv", "sheets":
	case "xlsx":
		if outputPath == "" {
			return fmt.Errorf("xlsx export needs --output")
		}
	default:
		return fmt.Errorf("unknown format %q (expected csv, xlsx or sheets)", format)
	}

	term, err := models.ParsePaymentTerm(termFlag)
	if err != nil {
		return err
	}
	fees, err := ledger.ParseFees(vendorFee, buyerFee)
	if err != nil {
		return err
	}
	engine, err := engineFor(policyName, false)
	if err != nil {
		return err
	}

	ext, err := readExtraction(args[0])
	if err != nil {
		return err
	}

	data, err := engine.Compute(ext.LineItems, term)
	if err != nil {
		return err
	}

	rows, err := ledger.BuildRows(ledger.ItemsFromPaymentData(ext.LineItems, data), fees)
	if err != nil {
		return err
	}

	log.Info().
		Str("term", string(term)).
		Str("format", format).
		Str("vendor_fee", fees.VendorPercent.String()).
		Str("buyer_fee", fees.BuyerPercent.String()).
		Int("rows", len(rows)).
		Msg("Ledger built")

	ctx, cancel := createCommandContext(timeoutSecs, log)
	defer cancel()

	if format == "sheets" {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateSheets(); err != nil {
			return fmt.Errorf("google sheets is not configured: %w", err)
		}
		credentials, err := cfg.GoogleCredentials()
		if err != nil {
			return err
		}

		svc, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL, credentials)
		if err != nil {
			return fmt.Errorf("failed to create sheets service: %w", err)
		}
		if worksheet == "" {
			worksheet = cfg.GoogleSheetWorksheet
		}
		if err := ledger.NewSheetsWriter(svc, worksheet).Write(ctx, rows); err != nil {
			return fmt.Errorf("failed to write to google sheets: %w", err)
		}

		log.Info().
			Str("worksheet", worksheet).
			Int("rows", len(rows)).
			Msg("Ledger appended to Google Sheets")
		return nil
	}

	var buf bytes.Buffer
	var w ledger.Writer = ledger.NewCSVWriter(&buf)
	if format == "xlsx" {
		w = ledger.NewXLSXWriter(&buf, worksheet)
	}
	if err := w.Write(ctx, rows); err != nil {
		return err
	}
	return writeOutput(buf.Bytes(), outputPath, log)
}
