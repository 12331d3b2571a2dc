package importer

import (
	"encoding/csv"
	"io"
)

// TemplateHeaders is the canonical header row of an import file
var TemplateHeaders = []string{ColumnSKU, ColumnName, ColumnQuantity, ColumnCustomPrice, ColumnNotes}

// TemplateRows are the example rows shipped with the downloadable template
var TemplateRows = [][]string{
	{"PROD-001", "Organic Tomatoes", "50", "2.50", "Extra ripe"},
	{"PROD-002", "Fresh Basil", "25", "", ""},
}

// TemplateFilename is the suggested download name
const TemplateFilename = "bulk_order_template.csv"

// WriteTemplate writes the header and example rows as CSV
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TemplateHeaders); err != nil {
		return err
	}
	if err := cw.WriteAll(TemplateRows); err != nil {
		return err
	}
	return cw.Error()
}
