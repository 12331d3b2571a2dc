package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dixis-bulk-orders/app/controller"
	"dixis-bulk-orders/app/middleware"
	"dixis-bulk-orders/logging"
)

// Controllers groups the HTTP handlers
type Controllers struct {
	BulkOrder *controller.BulkOrderController
	Inventory *controller.InventoryController
}

// pingHandler handles GET /ping
func pingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SetupRoutes builds the gin engine. metricsHandler may be nil.
func SetupRoutes(controllers *Controllers, metricsHandler http.Handler, logger *logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))

	r.GET("/ping", pingHandler)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	// Bulk order routes, scoped to the caller's business account
	b2b := r.Group("/b2b", middleware.Tenant(true, logger))
	{
		b2b.GET("/bulk-orders/template", controllers.BulkOrder.Template)
		b2b.POST("/bulk-orders/validate", controllers.BulkOrder.Validate)
		b2b.POST("/bulk-orders", controllers.BulkOrder.Create)
		b2b.POST("/bulk-orders/csv", controllers.BulkOrder.ImportCSV)
		b2b.POST("/bulk-orders/drive", controllers.BulkOrder.ImportDrive)
		b2b.GET("/bulk-orders/drive/files", controllers.BulkOrder.DriveFiles)

		b2b.GET("/orders/:id", controllers.BulkOrder.GetOrder)
		b2b.POST("/orders/:id/cancel", controllers.BulkOrder.Cancel)
		b2b.GET("/orders/:id/confirmation", controllers.BulkOrder.Confirmation)
	}

	// Admin routes, scoped to the tenant only
	admin := r.Group("/admin", middleware.Tenant(false, logger))
	{
		admin.POST("/orders/:id/fulfill", controllers.Inventory.Fulfill)
		admin.GET("/inventory/reorder-suggestions", controllers.Inventory.ReorderSuggestions)
		admin.GET("/inventory/alerts", controllers.Inventory.Alerts)
		admin.GET("/inventory/analytics", controllers.Inventory.Analytics)
	}

	return r
}
