package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"dixis-bulk-orders/apperrors"
	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/metrics"
	"dixis-bulk-orders/models"
	"dixis-bulk-orders/repository"
)

const defaultNotifyTimeout = 5 * time.Second

// ReconcilerDeps holds the collaborators of InventoryReconciler
type ReconcilerDeps struct {
	Store    repository.StoreInterface
	Notifier LowStockNotifier
	Metrics  *metrics.Metrics
	Logger   *logging.Logger
	Now      func() time.Time

	DefaultLowStockThreshold int
	MaxAttempts              int
}

// InventoryReconciler applies a fulfilled order's quantities to stock.
// Each order is reconciled in its own transaction, at most once.
type InventoryReconciler struct {
	store            repository.StoreInterface
	notifier         LowStockNotifier
	metrics          *metrics.Metrics
	logger           *logging.Logger
	now              func() time.Time
	defaultThreshold int
	maxAttempts      int
}

// Ensure InventoryReconciler implements InventoryReconcilerInterface
var _ InventoryReconcilerInterface = (*InventoryReconciler)(nil)

// NewInventoryReconciler creates a new InventoryReconciler instance
func NewInventoryReconciler(deps ReconcilerDeps) *InventoryReconciler {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	r := &InventoryReconciler{
		store:            deps.Store,
		notifier:         deps.Notifier,
		metrics:          deps.Metrics,
		logger:           logger.WithComponent("inventory_reconciler"),
		now:              deps.Now,
		defaultThreshold: deps.DefaultLowStockThreshold,
		maxAttempts:      deps.MaxAttempts,
	}
	if r.notifier == nil {
		r.notifier = NewLogNotifier(logger)
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.maxAttempts < 1 {
		r.maxAttempts = 3
	}
	return r
}

// Reconcile decrements stock for every item of an order, floors it at zero,
// appends one stock adjustment per item and emits low-stock signals after commit.
// A second call for the same order returns a Conflict without touching stock.
func (r *InventoryReconciler) Reconcile(ctx context.Context, rc models.RequestContext, orderID int64) (*models.ReconciliationResult, error) {
	logger := r.logger.WithOperation("reconcile").WithFields(map[string]any{
		"tenantId":  rc.TenantID,
		"orderId":   orderID,
		"requestId": rc.RequestID,
	})

	var result *models.ReconciliationResult
	start := time.Now()
	err := runTx(ctx, r.store, r.maxAttempts, func(tx repository.TxInterface) error {
		var err error
		result, err = r.reconcile(ctx, tx, rc.TenantID, orderID)
		return err
	})
	r.metrics.ObserveTransaction("reconcile_inventory", start, err)

	if err != nil {
		if _, ok := apperrors.As(err); ok {
			logger.Info("Reconciliation rejected", "error", err)
			return nil, err
		}
		retryable := errors.Is(err, repository.ErrSerialization) ||
			errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled)
		logger.Error("❌ Error reconciling inventory", "error", err, "retryable", retryable)
		return nil, apperrors.ReconciliationFailure(orderID, err, retryable)
	}

	r.metrics.AddStockAdjustments(len(result.Adjustments))
	logger.Info("✓ Inventory reconciled",
		"orderNumber", result.OrderNumber,
		"adjustments", len(result.Adjustments),
		"lowStockSignals", len(result.Signals),
	)

	if len(result.Signals) > 0 {
		r.metrics.AddLowStockSignals(len(result.Signals))
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultNotifyTimeout)
		defer cancel()
		if err := r.notifier.NotifyLowStock(notifyCtx, result.Signals); err != nil {
			logger.Warn("⚠️ Low-stock signals not delivered", "count", len(result.Signals), "error", err)
		}
	}
	return result, nil
}

func (r *InventoryReconciler) reconcile(ctx context.Context, tx repository.TxInterface, tenantID, orderID int64) (*models.ReconciliationResult, error) {
	order, err := tx.LockOrder(ctx, tenantID, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, apperrors.Conflict(fmt.Sprintf("order %s is cancelled and cannot be fulfilled", order.OrderNumber))
	}
	if order.InventoryReconciledAt != nil {
		return nil, apperrors.Conflict(fmt.Sprintf("order %s was already reconciled", order.OrderNumber))
	}

	now := r.now().UTC()
	result := &models.ReconciliationResult{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		Adjustments:  make([]models.StockAdjustment, 0, len(order.Items)),
		Signals:      []models.LowStockSignal{},
		ReconciledAt: now,
	}

	// products are locked in id order
	items := append([]models.OrderItem(nil), order.Items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	for _, item := range items {
		product, err := tx.LockProduct(ctx, tenantID, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock product %d: %w", item.ProductID, err)
		}

		newStock := product.Stock - item.Quantity
		if newStock < 0 {
			newStock = 0
		}
		if err := tx.UpdateProductStock(ctx, tenantID, product.ID, newStock); err != nil {
			return nil, fmt.Errorf("failed to update stock for product %d: %w", product.ID, err)
		}

		relatedOrderID := order.ID
		adjustment := models.StockAdjustment{
			TenantID:       tenantID,
			ProductID:      product.ID,
			OldStock:       product.Stock,
			NewStock:       newStock,
			Delta:          newStock - product.Stock,
			Reason:         models.StockAdjustmentReasonFulfillment,
			RelatedOrderID: &relatedOrderID,
			CreatedAt:      now,
		}
		if err := tx.InsertStockAdjustment(ctx, &adjustment); err != nil {
			return nil, fmt.Errorf("failed to record stock adjustment for product %d: %w", product.ID, err)
		}
		result.Adjustments = append(result.Adjustments, adjustment)

		if threshold := product.Threshold(r.defaultThreshold); newStock <= threshold {
			result.Signals = append(result.Signals, models.LowStockSignal{
				EventID:      uuid.NewString(),
				TenantID:     tenantID,
				ProductID:    product.ID,
				SKU:          product.SKU,
				Name:         product.Name,
				CurrentStock: newStock,
				Threshold:    threshold,
				OrderID:      order.ID,
				RaisedAt:     now,
			})
		}
	}

	if err := tx.MarkOrderReconciled(ctx, tenantID, order.ID, now); err != nil {
		return nil, fmt.Errorf("failed to mark order reconciled: %w", err)
	}
	return result, nil
}
