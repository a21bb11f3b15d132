package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"restodash/internal/invoices"
)

// SheetName is the worksheet holding the exported invoices.
const SheetName = "Factures"

// Header is the first row of every export.
var Header = []string{"Référence", "Fournisseur", "Date", "HT", "TVA", "TTC", "Articles"}

// Rows turns table rows into spreadsheet rows. Amounts stay numeric, rounded
// to the cent; missing amounts are empty cells.
func Rows(items []invoices.ListItem) [][]any {
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		rows = append(rows, []any{
			item.Reference,
			item.Supplier,
			item.Date,
			amount(item.HTValue),
			amount(item.TVAValue),
			amount(item.TTCValue),
			item.ArticleCount,
		})
	}
	return rows
}

// totalRow is the footer row summing the exported amounts.
func totalRow(items []invoices.ListItem) []any {
	sum := invoices.Totals(items)
	return []any{
		"Total",
		fmt.Sprintf("%d factures", sum.Count),
		"",
		sum.HTValue.Round(2).InexactFloat64(),
		sum.TVAValue.Round(2).InexactFloat64(),
		sum.TTCValue.Round(2).InexactFloat64(),
		"",
	}
}

func amount(v *float64) any {
	if v == nil {
		return ""
	}
	return roundCents(*v)
}

// WriteSpreadsheet writes an xlsx workbook with one row per invoice and a
// total row to w.
func WriteSpreadsheet(w io.Writer, items []invoices.ListItem) error {
	const op = "export.WriteSpreadsheet"

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("%s: header: %w", op, err)
	}

	rowIdx := 2
	for _, row := range append(Rows(items), totalRow(items)) {
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("%s: row %d: %w", op, rowIdx, err)
		}
		rowIdx++
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("%s: flush: %w", op, err)
	}

	_ = f.SetColWidth(SheetName, "A", "A", 18)
	_ = f.SetColWidth(SheetName, "B", "B", 28)
	_ = f.SetColWidth(SheetName, "C", "C", 12)
	_ = f.SetColWidth(SheetName, "D", "F", 14)

	// NumFmt 4 is "#,##0.00"
	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4})
	_ = f.SetColStyle(SheetName, "D:F", moneyStyle)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("%s: write: %w", op, err)
	}
	return nil
}
