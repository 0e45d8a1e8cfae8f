package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylink/internal/schedule"
	"paylink/pkg/models"
)

func mustFees(t *testing.T, vendor, buyer string) Fees {
	t.Helper()
	fees, err := ParseFees(vendor, buyer)
	require.NoError(t, err)
	return fees
}

func TestBuildRowsVendorAndBuyerSides(t *testing.T) {
	items := []ExportItem{{
		Title:            "Platform license",
		Description:      "Annual plan",
		Amount:           1_000_000,
		FirstChargeDate:  models.NewDate(2025, 1, 31),
		NumberOfPayments: 3,
		Term:             models.PaymentTermMonthly,
	}}

	rows, err := BuildRows(items, mustFees(t, "2.5", "5"))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	vendor := rows[0]
	assert.Equal(t, "Vendor_Draw_1", vendor.LineID)
	assert.Equal(t, "Vendor_Draw_1", vendor.VendorLineID)
	assert.Equal(t, "", vendor.ParentLineID)
	assert.Equal(t, ItemTypeVendor, vendor.ItemType)
	assert.Equal(t, int64(975_000), vendor.Amount)
	assert.Equal(t, int64(250_000), vendor.ItemFinancingFee)
	assert.Equal(t, models.NewDate(2025, 1, 31), vendor.DueDate)

	wantDates := []models.Date{
		models.NewDate(2025, 1, 31),
		models.NewDate(2025, 2, 28),
		models.NewDate(2025, 3, 31),
	}
	for j, row := range rows[1:] {
		assert.Equal(t, "Line_1", row.LineID)
		assert.Equal(t, "Vendor_Draw_1", row.VendorLineID)
		assert.Equal(t, ItemTypeBuyer, row.ItemType)
		assert.Equal(t, int64(500_000), row.ItemFinancingFee)
		assert.Equal(t, int64(350_000), row.Amount)
		assert.Equal(t, wantDates[j], row.DueDate)
	}
}

func TestBuildRowsRoundsAndConservesBuyerTotal(t *testing.T) {
	items := []ExportItem{
		{Title: "odd", Amount: 333, FirstChargeDate: models.NewDate(2025, 1, 1), NumberOfPayments: 3, Term: models.PaymentTermMonthly},
		{Title: "half", Amount: 10, FirstChargeDate: models.NewDate(2025, 1, 1), NumberOfPayments: 1, Term: models.PaymentTermMonthly},
	}

	rows, err := BuildRows(items, mustFees(t, "2.5", "5"))
	require.NoError(t, err)
	require.Len(t, rows, 6)

	assert.Equal(t, int64(325), rows[0].Amount)
	assert.Equal(t, []int64{117, 117, 116}, []int64{rows[1].Amount, rows[2].Amount, rows[3].Amount})

	// 10 * 105% = 10.5 rounds half away from zero.
	assert.Equal(t, "Vendor_Draw_2", rows[4].LineID)
	assert.Equal(t, int64(10), rows[4].Amount)
	assert.Equal(t, int64(11), rows[5].Amount)
}

func TestBuildRowsQuarterlyHasNoEndClamp(t *testing.T) {
	items := []ExportItem{{
		Title:            "q",
		Amount:           1_000,
		FirstChargeDate:  models.NewDate(2025, 11, 30),
		NumberOfPayments: 3,
		Term:             models.PaymentTermQuarterly,
	}}

	rows, err := BuildRows(items, Fees{})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, models.NewDate(2025, 11, 30), rows[1].DueDate)
	assert.Equal(t, models.NewDate(2026, 2, 28), rows[2].DueDate)
	assert.Equal(t, models.NewDate(2026, 5, 30), rows[3].DueDate)
	assert.Equal(t, int64(0), rows[0].ItemFinancingFee)
}

func TestBuildRowsWithoutPayments(t *testing.T) {
	rows, err := BuildRows([]ExportItem{{Title: "zero", Amount: 500, FirstChargeDate: models.NewDate(2025, 1, 1)}}, Fees{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ItemTypeVendor, rows[0].ItemType)
}

func TestBuildRowsRejectsNegativeBuyerTotal(t *testing.T) {
	fees := Fees{BuyerPercent: decimal.NewFromInt(-150)}
	_, err := BuildRows([]ExportItem{{Title: "x", Amount: 100, NumberOfPayments: 2}}, fees)
	assert.ErrorIs(t, err, schedule.ErrNegativeAmount)
}

func TestParseFees(t *testing.T) {
	fees, err := ParseFees("", "1.25")
	require.NoError(t, err)
	assert.True(t, fees.VendorPercent.IsZero())
	assert.Equal(t, "1.25", fees.BuyerPercent.String())

	_, err = ParseFees("abc", "")
	assert.Error(t, err)
}

func TestItemsFromPaymentData(t *testing.T) {
	items := []models.LineItem{
		{ID: "sub", ServiceTitle: "License", ServiceDescription: "Yearly", ServiceAmount: 1_200_000,
			StartDate: models.NewDate(2025, 1, 1), EndDate: models.NewDate(2025, 12, 31)},
		{ID: "fee", ServiceTitle: "Setup", ServiceDescription: "One time", ServiceAmount: 50_000, IsSpecialCharge: true},
	}
	data, err := schedule.Compute(items, models.PaymentTermQuarterly)
	require.NoError(t, err)

	exported := ItemsFromPaymentData(items, data)
	require.Len(t, exported, 2)

	assert.Equal(t, ExportItem{
		Title:            "License",
		Description:      "Yearly",
		Amount:           1_200_000,
		FirstChargeDate:  models.NewDate(2025, 1, 1),
		NumberOfPayments: 4,
		Term:             models.PaymentTermQuarterly,
	}, exported[0])
	assert.Equal(t, "One time", exported[1].Description)
	assert.Equal(t, 1, exported[1].NumberOfPayments)
	assert.Equal(t, models.NewDate(2025, 1, 1), exported[1].FirstChargeDate)

	rows, err := BuildRows(exported, Fees{})
	require.NoError(t, err)
	var buyerTotal int64
	for _, row := range rows {
		if row.ItemType == ItemTypeBuyer {
			buyerTotal += row.Amount
		}
	}
	assert.Equal(t, data.GrandTotal(), buyerTotal)
}

func TestItemsFromPaymentDataSkipsUnbillableItems(t *testing.T) {
	tests := []struct {
		name  string
		items []models.LineItem
	}{
		{
			name: "span collapses to zero months",
			items: []models.LineItem{
				{ID: "trial", ServiceTitle: "Trial", ServiceAmount: 90_000,
					StartDate: models.NewDate(2025, 1, 20), EndDate: models.NewDate(2025, 2, 5)},
			},
		},
		{
			name: "one-off without subscriptions",
			items: []models.LineItem{
				{ID: "fee", ServiceTitle: "Setup", ServiceAmount: 1_000_000, IsSpecialCharge: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := schedule.Compute(tt.items, models.PaymentTermMonthly)
			require.NoError(t, err)

			exported := ItemsFromPaymentData(tt.items, data)
			assert.Empty(t, exported)

			rows, err := BuildRows(exported, Fees{})
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}
