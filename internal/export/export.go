// Package export renders stored pricing runs as xlsx workbooks.
package export

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/vapformula/internal/pricing"
	"github.com/Simplici0/vapformula/internal/store"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	resultsSheet   = "Pricing Run Results"
	breakdownSheet = "Breakdown"
	sapSheet       = "SAP Upload"

	defaultMaterial = "MAT-001"
	defaultCurrency = "USD"
	defaultUnit     = "LB"

	headerFill = "E0E0E0"
	dateLayout = "2006-01-02"
)

// RunFileName is the download name of a run workbook.
func RunFileName(run store.Run) string {
	return fmt.Sprintf("pricing-run-%s.xlsx", run.RunNumber)
}

// SAPFileName is the download name of a SAP upload workbook.
func SAPFileName(run store.Run) string {
	return fmt.Sprintf("sap-upload-%s.xlsx", run.RunNumber)
}

// RunWorkbook lists run metadata, the input parameters, the ingredients and the
// calculated results, with the itemized breakdown on a second sheet.
func RunWorkbook(run store.Run) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), resultsSheet); err != nil {
		return nil, fmt.Errorf("rename results sheet: %w", err)
	}

	rows := [][]any{
		{"Field", "Value"},
		{"Run Number", run.RunNumber},
		{"Customer", orNA(run.CustomerName)},
		{"Pricing Model", orNA(run.ModelName)},
		{"Period Start", formatDate(run.PeriodStart)},
		{"Period End", formatDate(run.PeriodEnd)},
		{"Status", run.Status},
		{"Created", run.CreatedAt.Format("2006-01-02 15:04:05")},
		{"", ""},
		{"INPUT PARAMETERS", ""},
		{"Yield", percent(run.Input.YieldPercent)},
	}
	for _, adder := range []struct {
		label string
		value *float64
	}{
		{"Packaging", run.Input.Packaging},
		{"Freight", run.Input.Freight},
		{"Conversion", run.Input.Conversion},
		{"Rebates", run.Input.Rebates},
	} {
		if adder.value != nil {
			rows = append(rows, []any{adder.label, dollars(*adder.value)})
		}
	}
	rows = append(rows,
		[]any{"Payment Terms Rate", percent(run.Input.PaymentTermsRate)},
		[]any{"", ""},
		[]any{"INGREDIENTS", ""},
	)
	for _, ing := range run.Input.Ingredients {
		rows = append(rows, []any{"  " + ing.Name, fmt.Sprintf("%s @ %s/lb", percent(ing.RecipePercent), dollars(ing.MarketPrice))})
	}
	rows = append(rows,
		[]any{"", ""},
		[]any{"CALCULATION RESULTS", ""},
		[]any{"Pre-Yield Subtotal", round(run.Output.PreYieldSubtotal, 4)},
		[]any{"Post-Yield Subtotal", round(run.Output.PostYieldSubtotal, 4)},
		[]any{"FOB Pre-Terms", round(run.Output.FOBPreTerms, 4)},
		[]any{"Payment Terms Adder", round(run.Output.PaymentTermsAdder, 4)},
		[]any{"FOB Final", round(run.Output.FOBFinal, 4)},
	)

	if err := writeRows(f, resultsSheet, rows); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(resultsSheet, "A", "B", 30); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	if err := styleHeader(f, resultsSheet, "B1"); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(breakdownSheet); err != nil {
		return nil, fmt.Errorf("create breakdown sheet: %w", err)
	}
	if err := writeRows(f, breakdownSheet, breakdownRows(run.Output.Breakdown)); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(breakdownSheet, "A", "E", 22); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	if err := styleHeader(f, breakdownSheet, "E1"); err != nil {
		return nil, err
	}

	return write(f)
}

// SAPWorkbook produces the single-row condition upload for a run's final price.
func SAPWorkbook(run store.Run) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sapSheet); err != nil {
		return nil, fmt.Errorf("rename sap sheet: %w", err)
	}

	material := run.ModelName
	if material == "" {
		material = defaultMaterial
	}
	customer := run.CustomerSoldTo
	if customer == "" {
		customer = "CUST-001"
	}

	rows := [][]any{
		{"Material", "Customer", "Price", "Currency", "Valid From", "Valid To", "Unit"},
		{
			material,
			customer,
			round(run.Output.FOBFinal, 4),
			defaultCurrency,
			run.PeriodStart.Format(dateLayout),
			run.PeriodEnd.Format(dateLayout),
			defaultUnit,
		},
	}
	if err := writeRows(f, sapSheet, rows); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sapSheet, "A", "G", 15); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	if err := styleHeader(f, sapSheet, "G1"); err != nil {
		return nil, err
	}

	return write(f)
}

func breakdownRows(breakdown []pricing.BreakdownRow) [][]any {
	rows := [][]any{{"Component", "Factor Type", "Factor Value", "Market Reference", "Calculated Cost"}}
	for _, r := range breakdown {
		rows = append(rows, []any{r.Component, r.FactorType, optional(r.FactorValue), r.MarketReference, optional(r.CalculatedCost)})
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell reference: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func styleHeader(f *excelize.File, sheet, lastCell string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastCell, style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}

func write(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return round(*v, 4)
}

func round(v float64, places int) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	return r
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

func dollars(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format(dateLayout)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
