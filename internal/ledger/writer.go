package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Writer persists ledger rows somewhere.
type Writer interface {
	Write(ctx context.Context, rows []Row) error
}

// CSVWriter writes rows as CSV with a header line.
type CSVWriter struct {
	out io.Writer
}

// NewCSVWriter creates a CSV writer over out.
func NewCSVWriter(out io.Writer) *CSVWriter {
	return &CSVWriter{out: out}
}

func (w *CSVWriter) Write(_ context.Context, rows []Row) error {
	cw := csv.NewWriter(w.out)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.LineID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DefaultSheetName is the worksheet used by the XLSX and Sheets writers when none is given.
const DefaultSheetName = "Ledger"

// XLSXWriter writes rows as an Excel workbook with a single sheet.
type XLSXWriter struct {
	out   io.Writer
	sheet string
}

// NewXLSXWriter creates a workbook writer. An empty sheet name uses DefaultSheetName.
func NewXLSXWriter(out io.Writer, sheet string) *XLSXWriter {
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return &XLSXWriter{out: out, sheet: sheet}
}

func (w *XLSXWriter) Write(_ context.Context, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(w.sheet)
	if err != nil {
		return fmt.Errorf("create sheet %s: %w", w.sheet, err)
	}
	f.SetActiveSheet(index)
	if w.sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("remove default sheet: %w", err)
		}
	}

	for i, header := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(w.sheet, cell, header); err != nil {
			return fmt.Errorf("write header %s: %w", header, err)
		}
	}

	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(w.sheet, cell, &[]interface{}{
			row.LineID,
			row.ParentLineID,
			row.VendorLineID,
			string(row.ItemType),
			row.ItemName,
			row.ItemDescription,
			row.ItemFinancingFee,
			row.ItemCreditCardFee,
			row.Amount,
			row.DueDate.String(),
		}); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	if err := f.Write(w.out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SheetAppender appends rows to a named worksheet, creating it with header
// when missing. internal/sheets.Service implements it.
type SheetAppender interface {
	AppendRows(ctx context.Context, sheetName string, header []string, values [][]interface{}) error
}

// SheetsWriter appends rows to a Google Sheets worksheet.
type SheetsWriter struct {
	appender SheetAppender
	sheet    string
}

// NewSheetsWriter creates a writer that appends to sheet through appender.
func NewSheetsWriter(appender SheetAppender, sheet string) *SheetsWriter {
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return &SheetsWriter{appender: appender, sheet: sheet}
}

func (w *SheetsWriter) Write(ctx context.Context, rows []Row) error {
	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		record := row.Record()
		cells := make([]interface{}, len(record))
		for i, v := range record {
			cells[i] = v
		}
		values = append(values, cells)
	}
	return w.appender.AppendRows(ctx, w.sheet, Header, values)
}
