// Package ledger builds the vendor/buyer ledger export for a financed batch.
//
// Every exported item produces one vendor draw row (what the vendor is paid
// after the vendor fee) and one buyer row per installment (what the buyer
// repays including the buyer fee). Buyer installments use remainder
// distribution so each item's buyer rows sum exactly to its marked-up total.
package ledger

import (
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"paylink/internal/schedule"
	"paylink/pkg/models"
)

// ItemType distinguishes the two sides of a ledger line.
type ItemType string

const (
	ItemTypeVendor ItemType = "vendor"
	ItemTypeBuyer  ItemType = "buyer"
)

var (
	hundred = decimal.NewFromInt(100)

	// financingFeeScale encodes a fee percentage as an integer (2.5% -> 250000).
	financingFeeScale = decimal.NewFromInt(100_000)
)

// Header is the column order used by every writer.
var Header = []string{
	"lineId",
	"parentLineId",
	"vendorLineId",
	"itemType",
	"itemName",
	"itemDescription",
	"itemFinancingFee",
	"itemCreditCardFee",
	"amount",
	"dueDate",
}

// Fees holds the vendor and buyer fee percentages.
type Fees struct {
	VendorPercent decimal.Decimal
	BuyerPercent  decimal.Decimal
}

// ParseFees parses percentage strings such as "2.5". Empty strings mean 0.
func ParseFees(vendor, buyer string) (Fees, error) {
	parse := func(name, s string) (decimal.Decimal, error) {
		if s == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid %s fee %q: %w", name, s, err)
		}
		return d, nil
	}

	v, err := parse("vendor", vendor)
	if err != nil {
		return Fees{}, err
	}
	b, err := parse("buyer", buyer)
	if err != nil {
		return Fees{}, err
	}
	return Fees{VendorPercent: v, BuyerPercent: b}, nil
}

// ExportItem is one financed item. NumberOfPayments may be zero, in which case
// only the vendor row is produced.
type ExportItem struct {
	Title            string
	Description      string
	Amount           int64
	FirstChargeDate  models.Date
	NumberOfPayments int
	Term             models.PaymentTerm
}

// Row is one ledger line.
type Row struct {
	LineID            string
	ParentLineID      string
	VendorLineID      string
	ItemType          ItemType
	ItemName          string
	ItemDescription   string
	ItemFinancingFee  int64
	ItemCreditCardFee string
	Amount            int64
	DueDate           models.Date
}

// Record renders the row in Header order.
func (r Row) Record() []string {
	return []string{
		r.LineID,
		r.ParentLineID,
		r.VendorLineID,
		string(r.ItemType),
		r.ItemName,
		r.ItemDescription,
		strconv.FormatInt(r.ItemFinancingFee, 10),
		r.ItemCreditCardFee,
		strconv.FormatInt(r.Amount, 10),
		r.DueDate.String(),
	}
}

// ItemsFromPaymentData turns a computed schedule back into export items.
// Subscriptions with installments start on their own start date; one-off
// fees are a single payment on their due date. Details without installments
// and one-offs without a due date have nothing to repay and are left out, so
// no vendor draw is exported without matching buyer rows. Descriptions are
// looked up from the original line items by id.
func ItemsFromPaymentData(items []models.LineItem, data *schedule.PaymentData) []ExportItem {
	byID := lo.KeyBy(items, func(item models.LineItem) string { return item.ID })

	out := make([]ExportItem, 0, len(data.Details)+len(data.Summary.OneOff))
	for _, d := range data.Details {
		if d.InstallmentCount == 0 {
			continue
		}
		out = append(out, ExportItem{
			Title:            d.ServiceTitle,
			Description:      byID[d.ID].ServiceDescription,
			Amount:           d.TotalAmount,
			FirstChargeDate:  d.StartDate,
			NumberOfPayments: d.InstallmentCount,
			Term:             data.Term,
		})
	}
	for _, fee := range data.Summary.OneOff {
		if fee.DueDate == nil {
			continue
		}
		out = append(out, ExportItem{
			Title:            fee.ServiceTitle,
			Description:      byID[fee.ID].ServiceDescription,
			Amount:           fee.Amount,
			FirstChargeDate:  *fee.DueDate,
			NumberOfPayments: 1,
			Term:             data.Term,
		})
	}
	return out
}

// BuildRows produces the vendor and buyer rows for items.
func BuildRows(items []ExportItem, fees Fees) ([]Row, error) {
	vendorShare := hundred.Sub(fees.VendorPercent)
	buyerShare := hundred.Add(fees.BuyerPercent)
	vendorFee := fees.VendorPercent.Mul(financingFeeScale).Round(0).IntPart()
	buyerFee := fees.BuyerPercent.Mul(financingFeeScale).Round(0).IntPart()

	var rows []Row
	for i, item := range items {
		vendorLineID := fmt.Sprintf("Vendor_Draw_%d", i+1)
		buyerLineID := fmt.Sprintf("Line_%d", i+1)

		rows = append(rows, Row{
			LineID:           vendorLineID,
			VendorLineID:     vendorLineID,
			ItemType:         ItemTypeVendor,
			ItemName:         item.Title,
			ItemDescription:  item.Description,
			ItemFinancingFee: vendorFee,
			Amount:           applyPercent(item.Amount, vendorShare),
			DueDate:          item.FirstChargeDate,
		})

		if item.NumberOfPayments <= 0 {
			continue
		}

		buyerTotal := applyPercent(item.Amount, buyerShare)
		amounts, err := schedule.Distribute(buyerTotal, item.NumberOfPayments)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i+1, item.Title, err)
		}

		period := item.Term.IntervalMonths()
		for j, amount := range amounts {
			due := item.FirstChargeDate
			if !due.IsZero() {
				due = due.AddMonths(j * period)
			}
			rows = append(rows, Row{
				LineID:           buyerLineID,
				VendorLineID:     vendorLineID,
				ItemType:         ItemTypeBuyer,
				ItemName:         item.Title,
				ItemDescription:  item.Description,
				ItemFinancingFee: buyerFee,
				Amount:           amount,
				DueDate:          due,
			})
		}
	}
	return rows, nil
}

// applyPercent returns round(amount * share / 100), rounding half away from zero.
func applyPercent(amount int64, share decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(share).Div(hundred).Round(0).IntPart()
}
