package models

import "github.com/shopspring/decimal"

// Product represents a catalog entry in the database
type Product struct {
	ID                int64           `json:"id"`
	TenantID          int64           `json:"tenant_id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"` // retail price
	B2BAvailable      bool            `json:"b2b_available"`
	Stock             int             `json:"stock"`
	LowStockThreshold *int            `json:"low_stock_threshold,omitempty"` // nil uses the configured default
	IsActive          bool            `json:"is_active"`
}

// Threshold returns the product's low-stock threshold or def when unset
func (p *Product) Threshold(def int) int {
	if p.LowStockThreshold == nil {
		return def
	}
	return *p.LowStockThreshold
}
