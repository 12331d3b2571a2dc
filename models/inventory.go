package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockAdjustmentReasonFulfillment is the reason written by reconciliation
const StockAdjustmentReasonFulfillment = "order_fulfillment"

// StockAdjustment is an append-only stock history entry
type StockAdjustment struct {
	ID             int64     `json:"id"`
	TenantID       int64     `json:"tenant_id"`
	ProductID      int64     `json:"product_id"`
	OldStock       int       `json:"old_stock"`
	NewStock       int       `json:"new_stock"`
	Delta          int       `json:"delta"` // new_stock - old_stock
	Reason         string    `json:"reason"`
	RelatedOrderID *int64    `json:"related_order_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// LowStockSignal is emitted when a reconciled product ends at or below its threshold
type LowStockSignal struct {
	EventID      string    `json:"event_id"`
	TenantID     int64     `json:"tenant_id"`
	ProductID    int64     `json:"product_id"`
	SKU          string    `json:"sku"`
	Name         string    `json:"name"`
	CurrentStock int       `json:"current_stock"`
	Threshold    int       `json:"threshold"`
	OrderID      int64     `json:"order_id"`
	RaisedAt     time.Time `json:"raised_at"`
}

// ReconciliationResult describes one committed reconciliation
type ReconciliationResult struct {
	OrderID      int64             `json:"order_id"`
	OrderNumber  string            `json:"order_number"`
	Adjustments  []StockAdjustment `json:"adjustments"`
	Signals      []LowStockSignal  `json:"low_stock_signals"`
	ReconciledAt time.Time         `json:"reconciled_at"`
}

// Reorder priorities
const (
	ReorderPriorityHigh   = "high"
	ReorderPriorityMedium = "medium"
)

// ReorderSuggestion is recomputed on each forecast run and never persisted
type ReorderSuggestion struct {
	ProductID         int64           `json:"product_id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	CurrentStock      int             `json:"current_stock"`
	SalesVelocity     decimal.Decimal `json:"sales_velocity"` // units per day over 30 days
	DaysUntilStockout int             `json:"days_until_stockout"`
	SuggestedQuantity int             `json:"suggested_quantity"`
	Priority          string          `json:"priority"` // high or medium
}

// ReorderSummary counts suggestions by priority
type ReorderSummary struct {
	TotalSuggestions int `json:"total_suggestions"`
	HighPriority     int `json:"high_priority"`
	MediumPriority   int `json:"medium_priority"`
}

// ReorderReport is the forecaster output
type ReorderReport struct {
	Suggestions []ReorderSuggestion `json:"suggestions"`
	Summary     ReorderSummary      `json:"summary"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// Stock alert types and severities
const (
	AlertLowStock   = "low_stock"
	AlertOutOfStock = "out_of_stock"

	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// StockAlert is one entry of the stock monitor listing
type StockAlert struct {
	Type         string `json:"type"`
	Severity     string `json:"severity"`
	ProductID    int64  `json:"product_id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	CurrentStock int    `json:"current_stock"`
	Threshold    int    `json:"threshold"`
	Message      string `json:"message"`
}

// ProductSales is units sold for one product over a window
type ProductSales struct {
	ProductID int64  `json:"product_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	UnitsSold int    `json:"units_sold"`
}

// InventoryAnalytics summarizes stock health for a tenant
type InventoryAnalytics struct {
	TotalProducts         int             `json:"total_products"`
	LowStockProducts      int             `json:"low_stock_products"`
	OutOfStockProducts    int             `json:"out_of_stock_products"`
	StockHealthPercentage decimal.Decimal `json:"stock_health_percentage"`
	TotalInventoryValue   decimal.Decimal `json:"total_inventory_value"`
	TopSellingProducts    []ProductSales  `json:"top_selling_products"`
}

// FulfillmentEvent is the message that triggers reconciliation
// Example: {"orderId": 42, "tenantId": 1}
type FulfillmentEvent struct {
	OrderID  int64 `json:"orderId"`
	TenantID int64 `json:"tenantId"`
}
