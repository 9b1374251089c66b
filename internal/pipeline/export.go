package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"poflow/internal"
	"poflow/internal/session"
)

var ExportHeaders = []string{"Item Number", "Request Item", "Quantity", "UOM", "Price/Unit", "Amount", "Selected Match"}

// ExportRow is one line of an order export. Values are kept as the user sees
// them; no numeric coercion happens here.
type ExportRow struct {
	ItemNumber    int
	RequestItem   string
	Quantity      string
	UOM           string
	PricePerUnit  string
	Amount        string
	SelectedMatch string
}

func (r ExportRow) record() []string {
	return []string{
		strconv.Itoa(r.ItemNumber),
		r.RequestItem,
		r.Quantity,
		r.UOM,
		r.PricePerUnit,
		r.Amount,
		r.SelectedMatch,
	}
}

func ExportRows(items []internal.LineItem) []ExportRow {
	out := make([]ExportRow, 0, len(items))
	for i, item := range items {
		out = append(out, ExportRow{
			ItemNumber:    i + 1,
			RequestItem:   session.Description(item),
			Quantity:      session.Quantity(item),
			UOM:           session.Unit(item),
			PricePerUnit:  session.UnitPrice(item),
			Amount:        session.Amount(item),
			SelectedMatch: item.SelectedMatch,
		})
	}
	return out
}

// ExportRowsFromOrderItems renders stored order items the way the order
// store archives them.
func ExportRowsFromOrderItems(items []internal.OrderItem) []ExportRow {
	out := make([]ExportRow, 0, len(items))
	for i, item := range items {
		out = append(out, ExportRow{
			ItemNumber:    i + 1,
			RequestItem:   item.RequestItem,
			Quantity:      formatNumber(item.Quantity),
			UOM:           item.UOM,
			PricePerUnit:  formatNumber(item.PricePerUnit),
			Amount:        formatNumber(item.Amount),
			SelectedMatch: item.Matches,
		})
	}
	return out
}

func WriteCSV(w io.Writer, items []internal.LineItem) error {
	return WriteExportCSV(w, ExportRows(items))
}

func WriteExportCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeaders); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row.record()); err != nil {
			return fmt.Errorf("write csv row %d: %w", row.ItemNumber, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseCSV reads an export produced by WriteCSV.
func ParseCSV(r io.Reader) ([]ExportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(ExportHeaders)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv: missing header")
	}
	for i, h := range ExportHeaders {
		if records[0][i] != h {
			return nil, fmt.Errorf("read csv: unexpected header %q at column %d", records[0][i], i+1)
		}
	}

	out := make([]ExportRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		n, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: item number: %w", i+2, err)
		}
		out = append(out, ExportRow{
			ItemNumber:    n,
			RequestItem:   rec[1],
			Quantity:      rec[2],
			UOM:           rec[3],
			PricePerUnit:  rec[4],
			Amount:        rec[5],
			SelectedMatch: rec[6],
		})
	}
	return out, nil
}

func ExportXLSX(rows []ExportRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range ExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.ItemNumber)
		set(2, row.RequestItem)
		set(3, numericCell(row.Quantity))
		set(4, row.UOM)
		set(5, numericCell(row.PricePerUnit))
		set(6, numericCell(row.Amount))
		set(7, row.SelectedMatch)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// numericCell stores clean numbers as numbers so spreadsheets can sum them.
func numericCell(v string) any {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
