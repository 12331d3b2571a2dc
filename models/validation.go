package models

import "github.com/shopspring/decimal"

// LineItemRequest is the canonical tuple produced by the import normalizer.
// Quantity and CustomPrice stay raw so the validator can report non-numeric input.
type LineItemRequest struct {
	ProductID       int64  `json:"product_id,omitempty"`
	SKU             string `json:"product_sku,omitempty"`
	Name            string `json:"product_name,omitempty"`
	Quantity        string `json:"quantity"`
	CustomPrice     string `json:"custom_price,omitempty"`
	Notes           string `json:"notes,omitempty"`
	SourceRowNumber int    `json:"row_number,omitempty"` // 1-based file row, header is row 1
}

// ProductRef returns the reference the caller used for this line
func (l LineItemRequest) ProductRef() string {
	switch {
	case l.SKU != "":
		return l.SKU
	case l.Name != "":
		return l.Name
	default:
		return formatID(l.ProductID)
	}
}

// Outcome statuses
const (
	OutcomeValid   = "valid"
	OutcomeInvalid = "invalid"
	OutcomeWarning = "warning"
)

// Outcome reasons
const (
	ReasonNotFound          = "not found"
	ReasonNotB2B            = "not available for B2B"
	ReasonInvalidQuantity   = "invalid quantity"
	ReasonInsufficientStock = "insufficient stock"
)

// ValidationOutcome is the validator's verdict on one line
type ValidationOutcome struct {
	Index      int    `json:"index"`
	RowNumber  int    `json:"row_number,omitempty"`
	ProductRef string `json:"product_ref"`
	ProductID  int64  `json:"product_id,omitempty"`
	Status     string `json:"status"` // valid, invalid, warning
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ValidationSummary aggregates the accepted lines of a report
type ValidationSummary struct {
	TotalProducts       int             `json:"total_products"`
	TotalQuantity       int             `json:"total_quantity"`
	EstimatedTotal      decimal.Decimal `json:"estimated_total"`
	AvailableProducts   int             `json:"available_products"`
	UnavailableProducts int             `json:"unavailable_products"`
}

// SkippedRow records an import row dropped for a column count mismatch
type SkippedRow struct {
	RowNumber int    `json:"row_number"`
	Reason    string `json:"reason"`
}

// ValidationReport is returned by the preview endpoint and carried into order creation
// Example response:
// {
//   "valid": true,
//   "errors": [],
//   "warnings": ["Row 3: Insufficient stock for Fresh Basil (available: 10)"],
//   "summary": {"total_products": 2, "total_quantity": 75, "estimated_total": "137.50", ...},
//   "skipped_rows": [{"row_number": 4, "reason": "expected 5 columns, got 3"}]
// }
type ValidationReport struct {
	Valid       bool                `json:"valid"`
	Errors      []string            `json:"errors"`
	Warnings    []string            `json:"warnings"`
	Summary     ValidationSummary   `json:"summary"`
	SkippedRows []SkippedRow        `json:"skipped_rows,omitempty"`
	Outcomes    []ValidationOutcome `json:"outcomes"`
}

// AcceptedLine is a valid or warning line ready for pricing
type AcceptedLine struct {
	Product     *Product         `json:"product"`
	Quantity    int              `json:"quantity"`
	CustomPrice *decimal.Decimal `json:"custom_price,omitempty"`
	Notes       string           `json:"notes,omitempty"`
	RowNumber   int              `json:"row_number,omitempty"`
}
