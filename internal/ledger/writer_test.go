package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"paylink/pkg/models"
)

func sampleRows() []Row {
	return []Row{
		{LineID: "Vendor_Draw_1", VendorLineID: "Vendor_Draw_1", ItemType: ItemTypeVendor, ItemName: "License, annual",
			ItemFinancingFee: 250_000, Amount: 975_000, DueDate: models.NewDate(2025, 1, 1)},
		{LineID: "Line_1", VendorLineID: "Vendor_Draw_1", ItemType: ItemTypeBuyer, ItemName: "License, annual",
			Amount: 1_050_000, DueDate: models.NewDate(2025, 1, 1)},
	}
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVWriter(&buf).Write(context.Background(), sampleRows()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, []string{
		"Vendor_Draw_1", "", "Vendor_Draw_1", "vendor", "License, annual", "", "250000", "", "975000", "2025-01-01",
	}, records[1])
	assert.Equal(t, "buyer", records[2][3])
}

func TestXLSXWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewXLSXWriter(&buf, "").Write(context.Background(), sampleRows()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{DefaultSheetName}, f.GetSheetList())
	rows, err := f.GetRows(DefaultSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "975000", rows[1][8])
	assert.Equal(t, "2025-01-01", rows[2][9])
}

type fakeAppender struct {
	sheet  string
	header []string
	values [][]interface{}
}

func (f *fakeAppender) AppendRows(_ context.Context, sheetName string, header []string, values [][]interface{}) error {
	f.sheet = sheetName
	f.header = header
	f.values = values
	return nil
}

func TestSheetsWriter(t *testing.T) {
	appender := &fakeAppender{}
	require.NoError(t, NewSheetsWriter(appender, "Q1").Write(context.Background(), sampleRows()))

	assert.Equal(t, "Q1", appender.sheet)
	assert.Equal(t, Header, appender.header)
	require.Len(t, appender.values, 2)
	assert.Equal(t, "Line_1", appender.values[1][0])
}
