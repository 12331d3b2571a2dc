package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"dixis-bulk-orders/apperrors"
	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/models"
)

// Recognized column names
const (
	ColumnSKU         = "product_sku"
	ColumnName        = "product_name"
	ColumnQuantity    = "quantity"
	ColumnCustomPrice = "custom_price"
	ColumnNotes       = "notes"
)

// DefaultMaxRows bounds the number of data rows read from one file
const DefaultMaxRows = 1000

const utf8BOM = "\ufeff"

// Options configures ParseCSV
type Options struct {
	MaxRows int
	Logger  *logging.Logger
}

// Row is one accepted data row keyed by lower-cased header name
type Row struct {
	Number int               // 1-based source line where the record starts, the header is line 1
	Fields map[string]string // trimmed cell values
}

// Get returns the trimmed value of a column, or "" when absent
func (r Row) Get(column string) string {
	return r.Fields[column]
}

// Result is the normalized content of an import file
type Result struct {
	Headers     []string
	Rows        []Row
	SkippedRows []models.SkippedRow
}

// ParseCSV reads a header row and its data rows. Rows whose column count differs
// from the header are left out of Rows and reported in SkippedRows.
// No catalog lookups or business validation happen here.
func ParseCSV(r io.Reader, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("importer")
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.ImportFormat("import file is empty: header row is missing")
	}
	if err != nil {
		return nil, apperrors.ImportFormat("failed to read header row").Wrap(err)
	}

	headers, err := normalizeHeaders(header)
	if err != nil {
		return nil, err
	}

	result := &Result{Headers: headers}
	dataRows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			dataRows++
			logger.Warn("skipping malformed import row", "row", parseErr.StartLine, "error", parseErr.Err)
			result.SkippedRows = append(result.SkippedRows, models.SkippedRow{
				RowNumber: parseErr.StartLine,
				Reason:    parseErr.Err.Error(),
			})
			continue
		}
		if err != nil {
			return nil, apperrors.ImportFormat("failed to read import file").Wrap(err)
		}

		dataRows++
		// blank lines are dropped by the reader, so the record's own line is the row number
		rowNumber, _ := reader.FieldPos(0)

		if len(record) != len(headers) {
			reason := fmt.Sprintf("expected %d columns, got %d", len(headers), len(record))
			logger.Warn("skipping import row with mismatched column count",
				"row", rowNumber,
				"expected", len(headers),
				"got", len(record),
			)
			result.SkippedRows = append(result.SkippedRows, models.SkippedRow{RowNumber: rowNumber, Reason: reason})
			continue
		}

		if len(result.Rows) >= maxRows {
			return nil, apperrors.ImportFormat(fmt.Sprintf("import file exceeds the maximum of %d rows", maxRows))
		}

		fields := make(map[string]string, len(headers))
		for i, h := range headers {
			fields[h] = strings.TrimSpace(record[i])
		}
		result.Rows = append(result.Rows, Row{Number: rowNumber, Fields: fields})
	}

	if dataRows == 0 {
		return nil, apperrors.ImportFormat("import file has no data rows after the header")
	}
	if len(result.Rows) == 0 {
		return nil, apperrors.ImportFormat("import file has no valid data rows").
			WithDetail("skippedRows", strconv.Itoa(len(result.SkippedRows)))
	}

	logger.Debug("import file parsed",
		"rows", len(result.Rows),
		"skipped", len(result.SkippedRows),
	)
	return result, nil
}

func normalizeHeaders(raw []string) ([]string, error) {
	headers := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, h := range raw {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			return nil, apperrors.ImportFormat(fmt.Sprintf("header column %d is empty", i+1))
		}
		if seen[h] {
			return nil, apperrors.ImportFormat(fmt.Sprintf("duplicate header column %q", h))
		}
		seen[h] = true
		headers[i] = h
	}

	if !seen[ColumnQuantity] {
		return nil, apperrors.ImportFormat("header row must contain a quantity column")
	}
	if !seen[ColumnSKU] && !seen[ColumnName] {
		return nil, apperrors.ImportFormat("header row must contain a product_sku or product_name column")
	}
	return headers, nil
}

// Normalize turns parsed rows into canonical line item tuples
func Normalize(result *Result) []models.LineItemRequest {
	items := make([]models.LineItemRequest, 0, len(result.Rows))
	for _, row := range result.Rows {
		items = append(items, models.LineItemRequest{
			SKU:             row.Get(ColumnSKU),
			Name:            row.Get(ColumnName),
			Quantity:        row.Get(ColumnQuantity),
			CustomPrice:     row.Get(ColumnCustomPrice),
			Notes:           row.Get(ColumnNotes),
			SourceRowNumber: row.Number,
		})
	}
	return items
}

// FromProducts turns a programmatic submission into canonical line item tuples
func FromProducts(products []models.ProductLineRequest) []models.LineItemRequest {
	items := make([]models.LineItemRequest, 0, len(products))
	for _, p := range products {
		item := models.LineItemRequest{
			ProductID: p.ProductID,
			Quantity:  strconv.Itoa(p.Quantity),
			Notes:     strings.TrimSpace(p.Notes),
		}
		if p.CustomPrice != nil {
			item.CustomPrice = p.CustomPrice.String()
		}
		items = append(items, item)
	}
	return items
}
