package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dixis-bulk-orders/app/middleware"
	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/service"
)

// InventoryController handles the admin inventory endpoints
type InventoryController struct {
	reconciler service.InventoryReconcilerInterface
	forecaster service.ReorderForecasterInterface
	monitor    service.InventoryMonitorInterface
	logger     *logging.Logger
}

// NewInventoryController creates a new InventoryController
func NewInventoryController(
	reconciler service.InventoryReconcilerInterface,
	forecaster service.ReorderForecasterInterface,
	monitor service.InventoryMonitorInterface,
	logger *logging.Logger,
) *InventoryController {
	return &InventoryController{
		reconciler: reconciler,
		forecaster: forecaster,
		monitor:    monitor,
		logger:     logger.WithComponent("inventory_controller"),
	}
}

// Fulfill handles POST /admin/orders/:id/fulfill
// It reconciles stock for the order the same way a fulfillment event does.
func (c *InventoryController) Fulfill(ctx *gin.Context) {
	orderID, err := pathID(ctx)
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	result, err := c.reconciler.Reconcile(ctx.Request.Context(), middleware.RequestContext(ctx), orderID)
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// ReorderSuggestions handles GET /admin/inventory/reorder-suggestions
func (c *InventoryController) ReorderSuggestions(ctx *gin.Context) {
	report, err := c.forecaster.Forecast(ctx.Request.Context(), middleware.RequestContext(ctx))
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// Alerts handles GET /admin/inventory/alerts
func (c *InventoryController) Alerts(ctx *gin.Context) {
	alerts, err := c.monitor.MonitorStockLevels(ctx.Request.Context(), middleware.RequestContext(ctx))
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// Analytics handles GET /admin/inventory/analytics
func (c *InventoryController) Analytics(ctx *gin.Context) {
	analytics, err := c.monitor.Analytics(ctx.Request.Context(), middleware.RequestContext(ctx))
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, analytics)
}
