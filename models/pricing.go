package models

import "github.com/shopspring/decimal"

// PricedLine represents pricing information for a single accepted line
type PricedLine struct {
	Line      AcceptedLine    `json:"line"`
	UnitPrice decimal.Decimal `json:"unit_price"` // custom price or discounted catalog price
	LineTotal decimal.Decimal `json:"line_total"` // unit_price * quantity
}

// Quote represents the complete pricing calculation result
type Quote struct {
	Lines         []PricedLine    `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	Total         decimal.Decimal `json:"total"`
	TotalProducts int             `json:"total_products"`
	TotalQuantity int             `json:"total_quantity"`
}
