package service

import (
	"context"

	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/models"
)

// AuditSink records committed pipeline actions. Failures never undo the action.
type AuditSink interface {
	Record(ctx context.Context, entry models.AuditEntry) error
}

// LowStockNotifier delivers low-stock signals raised by reconciliation
type LowStockNotifier interface {
	NotifyLowStock(ctx context.Context, signals []models.LowStockSignal) error
}

// LogNotifier writes audit entries and low-stock signals to the log.
// Used when no message broker is configured.
type LogNotifier struct {
	logger *logging.Logger
}

var (
	_ AuditSink        = (*LogNotifier)(nil)
	_ LowStockNotifier = (*LogNotifier)(nil)
)

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.WithComponent("log_notifier")}
}

func (n *LogNotifier) Record(ctx context.Context, entry models.AuditEntry) error {
	n.logger.Info("📝 Audit",
		"action", entry.Action,
		"eventId", entry.EventID,
		"tenantId", entry.TenantID,
		"accountId", entry.AccountID,
		"orderId", entry.OrderID,
		"orderNumber", entry.OrderNumber,
		"productCount", entry.ProductCount,
		"totalAmount", entry.TotalAmount.StringFixed(2),
	)
	return nil
}

func (n *LogNotifier) NotifyLowStock(ctx context.Context, signals []models.LowStockSignal) error {
	for _, s := range signals {
		n.logger.Warn("⚠️ Low stock",
			"eventId", s.EventID,
			"tenantId", s.TenantID,
			"productId", s.ProductID,
			"sku", s.SKU,
			"currentStock", s.CurrentStock,
			"threshold", s.Threshold,
			"orderId", s.OrderID,
		)
	}
	return nil
}
