package service

import (
	"context"

	"dixis-bulk-orders/models"
)

// InventoryReconcilerInterface decrements stock for fulfilled orders
type InventoryReconcilerInterface interface {
	Reconcile(ctx context.Context, rc models.RequestContext, orderID int64) (*models.ReconciliationResult, error)
}

// ReorderForecasterInterface computes reorder suggestions from recent sales
type ReorderForecasterInterface interface {
	Forecast(ctx context.Context, rc models.RequestContext) (*models.ReorderReport, error)
}

// InventoryMonitorInterface reports stock alerts and analytics
type InventoryMonitorInterface interface {
	MonitorStockLevels(ctx context.Context, rc models.RequestContext) ([]models.StockAlert, error)
	Analytics(ctx context.Context, rc models.RequestContext) (*models.InventoryAnalytics, error)
}
