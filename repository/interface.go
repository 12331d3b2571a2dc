package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"dixis-bulk-orders/models"
)

var (
	// ErrNotFound is returned when a tenant-scoped lookup matches no row
	ErrNotFound = errors.New("not found")
	// ErrSerialization is returned when the store aborted a transaction that may succeed on retry
	ErrSerialization = errors.New("serialization failure")
)

// ReaderInterface defines the read-only queries used outside transactions.
// Every lookup is scoped to a tenant.
type ReaderInterface interface {
	GetBusinessAccount(ctx context.Context, tenantID, accountID int64) (*models.BusinessAccount, error)
	GetProduct(ctx context.Context, tenantID, productID int64) (*models.Product, error)
	FindProductBySKU(ctx context.Context, tenantID int64, sku string) (*models.Product, error)
	// FindProductByName matches a case-insensitive substring; the lowest id wins
	FindProductByName(ctx context.Context, tenantID int64, name string) (*models.Product, error)
	GetOrder(ctx context.Context, tenantID, orderID int64) (*models.Order, error)
	ListActiveProducts(ctx context.Context, tenantID int64) ([]models.Product, error)
	// UnitsSoldSince sums ordered quantities per product since the given time, excluding cancelled orders
	UnitsSoldSince(ctx context.Context, tenantID int64, since time.Time) (map[int64]int, error)
	ListStockAdjustments(ctx context.Context, tenantID, productID int64) ([]models.StockAdjustment, error)
}

// TxInterface defines the operations available inside one atomic transaction.
// Lock* methods take row locks held until commit or rollback.
type TxInterface interface {
	LockBusinessAccount(ctx context.Context, tenantID, accountID int64) (*models.BusinessAccount, error)
	UpdateOutstandingBalance(ctx context.Context, tenantID, accountID int64, balance decimal.Decimal) error

	// NextOrderSequence atomically increments and returns the counter for prefix+day
	NextOrderSequence(ctx context.Context, prefix, day string) (int, error)
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertOrderItem(ctx context.Context, item *models.OrderItem) error
	InsertBulkOrderDetail(ctx context.Context, detail *models.BulkOrderDetail) error

	LockOrder(ctx context.Context, tenantID, orderID int64) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, tenantID, orderID int64, status string) error
	MarkOrderReconciled(ctx context.Context, tenantID, orderID int64, at time.Time) error

	LockProduct(ctx context.Context, tenantID, productID int64) (*models.Product, error)
	UpdateProductStock(ctx context.Context, tenantID, productID int64, stock int) error
	InsertStockAdjustment(ctx context.Context, adj *models.StockAdjustment) error
}

// StoreInterface is the relational store the pipeline runs against.
// WithTx commits when fn returns nil and rolls back everything otherwise.
type StoreInterface interface {
	ReaderInterface
	WithTx(ctx context.Context, fn func(tx TxInterface) error) error
}
