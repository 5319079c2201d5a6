// Package importer validates uploaded pricing workbooks before their rows are
// accepted. It reads the first sheet, maps columns by header name and reports
// every problem it finds with the sheet row and column it came from.
package importer

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Column headers recognized in a pricing workbook.
const (
	ColProductCode   = "Product Code"
	ColProductName   = "Product Name"
	ColBasePrice     = "Base Price"
	ColMinOrderQty   = "Minimum Order Quantity"
	ColEffectiveDate = "Effective Date"
	ColExpiryDate    = "Expiry Date"
	ColUOM           = "UOM"
	ColCategory      = "Category"
	ColDescription   = "Description"
)

const defaultUOM = "EA"

// LargeFileRows is the row count above which a warning is added.
const LargeFileRows = 1000

var requiredColumns = []string{ColProductCode, ColProductName, ColBasePrice}

// RowError is one problem found in the workbook. Row is the 1-based sheet row;
// file level problems use row 0.
type RowError struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Error  string `json:"error"`
	Value  string `json:"value,omitempty"`
}

func (e RowError) String() string {
	line := fmt.Sprintf("Row %d, Column %q: %s", e.Row, e.Column, e.Error)
	if e.Value != "" {
		line += fmt.Sprintf(" (Value: %s)", e.Value)
	}
	return line
}

// Result holds the outcome of validating one workbook.
type Result struct {
	Valid       bool       `json:"valid"`
	Errors      []RowError `json:"errors"`
	Warnings    []string   `json:"warnings"`
	RecordCount int        `json:"recordCount"`
}

// ErrorReport renders one line per error, in the order they were found.
func (r Result) ErrorReport() []string {
	lines := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		lines = append(lines, e.String())
	}
	return lines
}

// Product is a data row that passed validation, ready to be stored.
type Product struct {
	Row           int
	MaterialCode  string
	Name          string
	UOM           string
	BasePrice     float64
	MinOrderQty   *float64
	EffectiveDate *time.Time
	ExpiryDate    *time.Time
	Category      string
	Description   string
}

// ValidatePricingWorkbook reads an xlsx workbook from r and validates the data
// rows of its first sheet. An error is returned only when the workbook cannot
// be read at all; data problems are reported in the Result.
func ValidatePricingWorkbook(r io.Reader) (Result, error) {
	result, _, err := ParsePricingWorkbook(r)
	return result, err
}

// ParsePricingWorkbook validates the workbook like ValidatePricingWorkbook
// and also returns the rows that had no errors.
func ParsePricingWorkbook(r io.Reader) (Result, []Product, error) {
	rows, err := readFirstSheet(r)
	if err != nil {
		return Result{}, nil, err
	}
	result, products := ParseRows(rows)
	return result, products, nil
}

func readFirstSheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	// Raw values keep dates as serial numbers and prices unformatted.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// ValidateRows validates rows whose first entry is the header row.
func ValidateRows(rows [][]string) Result {
	result, _ := ParseRows(rows)
	return result
}

// ParseRows validates rows whose first entry is the header row and returns
// the data rows that passed.
func ParseRows(rows [][]string) (Result, []Product) {
	if len(rows) == 0 {
		return emptyResult(), nil
	}

	columns := mapHeader(rows[0])

	type dataRow struct {
		number int
		cells  []string
	}
	data := make([]dataRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		data = append(data, dataRow{number: i + 2, cells: row})
	}
	if len(data) == 0 {
		return emptyResult(), nil
	}

	result := Result{Errors: []RowError{}, Warnings: []string{}, RecordCount: len(data)}

	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			result.Errors = append(result.Errors, RowError{
				Column: col,
				Error:  fmt.Sprintf("Required column %q is missing", col),
			})
		}
	}
	if len(result.Errors) > 0 {
		return result, nil
	}

	products := make([]Product, 0, len(data))
	for _, row := range data {
		cell := func(col string) string {
			idx, ok := columns[col]
			if !ok || idx >= len(row.cells) {
				return ""
			}
			return strings.TrimSpace(row.cells[idx])
		}
		rowErrors := 0
		add := func(col, msg, value string) {
			rowErrors++
			result.Errors = append(result.Errors, RowError{Row: row.number, Column: col, Error: msg, Value: value})
		}

		p := Product{
			Row:          row.number,
			MaterialCode: cell(ColProductCode),
			Name:         cell(ColProductName),
			UOM:          cell(ColUOM),
			Category:     cell(ColCategory),
			Description:  cell(ColDescription),
		}
		if p.UOM == "" {
			p.UOM = defaultUOM
		}

		if p.MaterialCode == "" {
			add(ColProductCode, "Product Code is required", "")
		}
		if p.Name == "" {
			add(ColProductName, "Product Name is required", "")
		}

		switch price := cell(ColBasePrice); {
		case price == "":
			add(ColBasePrice, "Base Price is required", "")
		default:
			v, ok := parseNumber(price)
			switch {
			case !ok:
				add(ColBasePrice, "Base Price must be a valid number", price)
			case v < 0:
				add(ColBasePrice, "Base Price cannot be negative", price)
			default:
				p.BasePrice = v
			}
		}

		if qty := cell(ColMinOrderQty); qty != "" {
			if v, ok := parseNumber(qty); ok {
				p.MinOrderQty = &v
			} else {
				add(ColMinOrderQty, "Minimum Order Quantity must be a valid number", qty)
			}
		}

		for _, c := range []struct {
			col string
			dst **time.Time
		}{{ColEffectiveDate, &p.EffectiveDate}, {ColExpiryDate, &p.ExpiryDate}} {
			raw := cell(c.col)
			if raw == "" {
				continue
			}
			if d, ok := parseDate(raw); ok {
				*c.dst = &d
			} else {
				add(c.col, "Invalid date format. Use YYYY-MM-DD", raw)
			}
		}

		if rowErrors == 0 {
			products = append(products, p)
		}
	}

	if len(data) > LargeFileRows {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("File contains %d rows. Large files may take longer to process.", len(data)))
	}
	result.Valid = len(result.Errors) == 0
	return result, products
}

func emptyResult() Result {
	return Result{
		Errors:   []RowError{{Column: "File", Error: "File is empty or has no data"}},
		Warnings: []string{},
	}
}

// mapHeader returns the index of each recognized column, matching headers
// case-insensitively.
func mapHeader(header []string) map[string]int {
	known := []string{
		ColProductCode, ColProductName, ColBasePrice, ColMinOrderQty,
		ColEffectiveDate, ColExpiryDate, ColUOM, ColCategory, ColDescription,
	}
	columns := make(map[string]int, len(known))
	for i, h := range header {
		h = strings.TrimSpace(h)
		for _, col := range known {
			if _, seen := columns[col]; !seen && strings.EqualFold(h, col) {
				columns[col] = i
			}
		}
	}
	return columns
}

// parseNumber accepts finite decimal numbers only. ParseFloat alone would
// let "NaN" and "Inf" through.
func parseNumber(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// validDate accepts YYYY-MM-DD text or an Excel date serial.
func validDate(raw string) bool {
	_, ok := parseDate(raw)
	return ok
}

func parseDate(raw string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	serial, ok := parseNumber(raw)
	if !ok || serial <= 0 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
