package cmd

import (
	"github.com/spf13/cobra"

	"paylink/internal/logger"
	"paylink/pkg/models"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule [items.json]",
	Short: "Compute the installment schedule for a batch of line items",
	Long: `Compute per-invoice installment plans, the merged buyer schedule and the
one-off fees for a batch of line items.

The input is either a JSON array of line items or an extraction document
({"buyerData": ..., "invoiceData": [...]}). Amounts are integer cents.`,
	Example: `  # Monthly schedule to stdout
  paylink schedule items.json

  # Quarterly schedule using calendar month counting
  paylink schedule items.json --term quarterly --policy calendar

  # Skip invalid items instead of rejecting the batch
  paylink schedule items.json --lenient -o schedule.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().StringP("term", "t", string(models.PaymentTermMonthly), "Payment term (monthly or quarterly)")
	scheduleCmd.Flags().String("policy", "", "Month span policy (tolerant or calendar, default: MONTH_POLICY)")
	scheduleCmd.Flags().Bool("lenient", false, "Drop invalid items instead of rejecting the batch")
	scheduleCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("schedule")

	termFlag, _ := cmd.Flags().GetString("term")
	policyName, _ := cmd.Flags().GetString("policy")
	lenient, _ := cmd.Flags().GetBool("lenient")
	outputPath, _ := cmd.Flags().GetString("output")

	term, err := models.ParsePaymentTerm(termFlag)
	if err != nil {
		return err
	}

	engine, err := engineFor(policyName, lenient)
	if err != nil {
		return err
	}

	ext, err := readExtraction(args[0])
	if err != nil {
		return err
	}

	data, err := engine.Compute(ext.LineItems, term)
	if err != nil {
		log.Error().Err(err).Str("file", args[0]).Msg("Schedule computation failed")
		return err
	}

	log.Info().
		Str("term", string(term)).
		Str("policy", data.Policy).
		Int("items", len(ext.LineItems)).
		Strs("dropped", data.Dropped).
		Int64("grand_total", data.GrandTotal()).
		Msg("Schedule computed")

	return writeJSON(data, outputPath, log)
}
