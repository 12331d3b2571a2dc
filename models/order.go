package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusPendingApproval = "pending_approval"
	OrderStatusCancelled       = "cancelled"
)

// Order priorities
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Bulk order sources
const (
	SourceCSV    = "csv"
	SourceManual = "manual"
)

// Order represents an order header in the database
type Order struct {
	ID                    int64            `json:"id"`
	TenantID              int64            `json:"tenant_id"`
	BusinessAccountID     int64            `json:"business_account_id"`
	OrderNumber           string           `json:"order_number"` // BULK-YYYYMMDD-0001
	Status                string           `json:"status"`       // pending_approval, cancelled, ...
	Subtotal              decimal.Decimal  `json:"subtotal"`
	TaxAmount             decimal.Decimal  `json:"tax_amount"`
	TotalAmount           decimal.Decimal  `json:"total_amount"`
	Currency              string           `json:"currency"`
	IsBulkOrder           bool             `json:"is_bulk_order"`
	Priority              string           `json:"priority"`
	DeliveryDate          *time.Time       `json:"delivery_date,omitempty"`
	Notes                 string           `json:"notes,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	InventoryReconciledAt *time.Time       `json:"inventory_reconciled_at,omitempty"`
	Items                 []OrderItem      `json:"items"`
	BulkDetail            *BulkOrderDetail `json:"bulk_detail,omitempty"`
}

// OrderItem represents a line item of an order
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductSKU  string          `json:"product_sku,omitempty"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"` // unit_price * quantity
	Notes       string          `json:"notes,omitempty"`
}

// BulkOrderDetail is stored 1:1 with a bulk order
type BulkOrderDetail struct {
	ID               int64  `json:"id"`
	OrderID          int64  `json:"order_id"`
	Source           string `json:"source"` // csv or manual
	OriginalFilename string `json:"original_filename,omitempty"`
	TotalProducts    int    `json:"total_products"`
	TotalQuantity    int    `json:"total_quantity"`
	ProcessingNotes  string `json:"processing_notes,omitempty"`
}

// OrderSummary is returned alongside a created order
type OrderSummary struct {
	TotalProducts int             `json:"total_products"`
	TotalQuantity int             `json:"total_quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// BulkOrderResult represents the response for a created bulk order
// Example response:
// {
//   "order": {"id": 42, "order_number": "BULK-20261017-0001", "status": "pending_approval", "items": [...], ...},
//   "summary": {"total_products": 2, "total_quantity": 75, "subtotal": "137.50", "tax_amount": "33.00", "total_amount": "170.50"},
//   "warnings": ["Row 3: Insufficient stock for Fresh Basil (available: 10)"]
// }
type BulkOrderResult struct {
	Order       *Order              `json:"order"`
	Summary     OrderSummary        `json:"summary"`
	Warnings    []string            `json:"warnings,omitempty"`
	Rejected    []ValidationOutcome `json:"rejected,omitempty"`
	SkippedRows []SkippedRow        `json:"skipped_rows,omitempty"`
}

// SubmissionMeta carries the order-level fields of a submission.
// DeliveryDate uses YYYY-MM-DD and must be after today.
type SubmissionMeta struct {
	Source           string `json:"-"`
	OriginalFilename string `json:"-"`
	DeliveryDate     string `json:"delivery_date,omitempty" form:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
	Priority         string `json:"priority,omitempty" form:"priority" validate:"omitempty,oneof=normal high urgent"`
	Notes            string `json:"notes,omitempty" form:"notes" validate:"max=1000"`
}

// ProductLineRequest is one entry of a programmatic submission
// Example: {"product_id": 12, "quantity": 50, "custom_price": "2.40", "notes": "Extra ripe"}
type ProductLineRequest struct {
	ProductID   int64            `json:"product_id" validate:"required"`
	Quantity    int              `json:"quantity" validate:"max=10000"`
	CustomPrice *decimal.Decimal `json:"custom_price,omitempty"`
	Notes       string           `json:"notes,omitempty" validate:"max=500"`
}

// BulkOrderRequest represents the request body for a programmatic bulk order
type BulkOrderRequest struct {
	Products []ProductLineRequest `json:"products" validate:"required,min=1,max=100,dive"`
	SubmissionMeta
}

// AuditEntry records a committed pipeline action for the audit sink
type AuditEntry struct {
	EventID      string          `json:"event_id"`
	Action       string          `json:"action"` // bulk_order_created, bulk_order_cancelled
	TenantID     int64           `json:"tenant_id"`
	AccountID    int64           `json:"account_id"`
	OrderID      int64           `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	ProductCount int             `json:"product_count"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	RequestID    string          `json:"request_id,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// DriveImportFile is a Drive file that can be imported as a bulk order
type DriveImportFile struct {
	FileID       string `json:"file_id"`
	Name         string `json:"name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// DriveImportRequest represents the request body for a Drive import
// Example: {"file_id": "1AbC...", "priority": "high", "delivery_date": "2026-10-24"}
type DriveImportRequest struct {
	FileID string `json:"file_id" validate:"required"`
	SubmissionMeta
}
