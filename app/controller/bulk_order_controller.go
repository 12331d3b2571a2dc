package controller

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dixis-bulk-orders/app/middleware"
	"dixis-bulk-orders/apperrors"
	"dixis-bulk-orders/importer"
	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/models"
	"dixis-bulk-orders/service"
)

// MaxUploadSize bounds the multipart body of a CSV import
const MaxUploadSize = 5 << 20

// BulkOrderController handles HTTP requests for bulk orders
type BulkOrderController struct {
	service service.BulkOrderServiceInterface
	logger  *logging.Logger
}

// NewBulkOrderController creates a new BulkOrderController
func NewBulkOrderController(svc service.BulkOrderServiceInterface, logger *logging.Logger) *BulkOrderController {
	return &BulkOrderController{
		service: svc,
		logger:  logger.WithComponent("bulk_order_controller"),
	}
}

// Template handles GET /b2b/bulk-orders/template
func (c *BulkOrderController) Template(ctx *gin.Context) {
	var buf bytes.Buffer
	if err := importer.WriteTemplate(&buf); err != nil {
		middleware.RespondWithError(ctx, c.logger, fmt.Errorf("failed to write template: %w", err))
		return
	}
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", importer.TemplateFilename))
	ctx.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Validate handles POST /b2b/bulk-orders/validate
// A multipart body with a "file" field previews a CSV import; a JSON body
// previews a programmatic submission. Nothing is persisted.
// Example response:
//
//	{
//	  "valid": false,
//	  "errors": ["Row 3: Product not found (PROD-999)"],
//	  "warnings": [],
//	  "summary": {"total_products": 2, "total_quantity": 60, "available_products": 1, "unavailable_products": 1, "estimated_total": "112.50"}
//	}
func (c *BulkOrderController) Validate(ctx *gin.Context) {
	rc := middleware.RequestContext(ctx)

	if ctx.ContentType() == gin.MIMEMultipartPOSTForm {
		file, _, err := c.uploadedFile(ctx)
		if err != nil {
			middleware.RespondWithError(ctx, c.logger, err)
			return
		}
		defer file.Close()

		report, err := c.service.ValidateCSV(ctx.Request.Context(), rc, file)
		if err != nil {
			middleware.RespondWithError(ctx, c.logger, err)
			return
		}
		ctx.JSON(http.StatusOK, report)
		return
	}

	var req models.BulkOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(ctx, c.logger, invalidBody(err))
		return
	}
	report, err := c.service.ValidateProducts(ctx.Request.Context(), rc, &req)
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// Create handles POST /b2b/bulk-orders
// Example request:
//
//	{
//	  "products": [{"product_id": 12, "quantity": 50}, {"product_id": 14, "quantity": 25, "notes": "Extra ripe"}],
//	  "priority": "high",
//	  "delivery_date": "2026-10-24"
//	}
func (c *BulkOrderController) Create(ctx *gin.Context) {
	var req models.BulkOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(ctx, c.logger, invalidBody(err))
		return
	}

	result, err := c.service.CreateFromProducts(ctx.Request.Context(), middleware.RequestContext(ctx), &req)
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	c.logger.Info("✓ Bulk order created", "orderNumber", result.Order.OrderNumber, "requestId", ctx.GetString(middleware.ContextKeyRequestID))
	ctx.JSON(http.StatusCreated, result)
}

// ImportCSV handles POST /b2b/bulk-orders/csv
// The multipart form carries the file in "file" plus optional delivery_date, priority and notes.
func (c *BulkOrderController) ImportCSV(ctx *gin.Context) {
	file, header, err := c.uploadedFile(ctx)
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	defer file.Close()

	var meta models.SubmissionMeta
	if err := ctx.ShouldBind(&meta); err != nil {
		middleware.RespondWithError(ctx, c.logger, invalidBody(err))
		return
	}
	meta.OriginalFilename = header.Filename

	result, err := c.service.CreateFromCSV(ctx.Request.Context(), middleware.RequestContext(ctx), file, meta)
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	c.logger.Info("✓ Bulk order imported", "orderNumber", result.Order.OrderNumber, "filename", header.Filename)
	ctx.JSON(http.StatusCreated, result)
}

// ImportDrive handles POST /b2b/bulk-orders/drive
// Example request: {"file_id": "1AbC...", "priority": "normal"}
func (c *BulkOrderController) ImportDrive(ctx *gin.Context) {
	var req models.DriveImportRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(ctx, c.logger, invalidBody(err))
		return
	}

	result, err := c.service.CreateFromDriveFile(ctx.Request.Context(), middleware.RequestContext(ctx), &req)
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusCreated, result)
}

// DriveFiles handles GET /b2b/bulk-orders/drive/files?folder_id=...
func (c *BulkOrderController) DriveFiles(ctx *gin.Context) {
	files, err := c.service.ListDriveFiles(ctx.Request.Context(), ctx.Query("folder_id"))
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"files": files, "count": len(files)})
}

// GetOrder handles GET /b2b/orders/:id
func (c *BulkOrderController) GetOrder(ctx *gin.Context) {
	orderID, err := pathID(ctx)
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	order, err := c.service.GetOrder(ctx.Request.Context(), middleware.RequestContext(ctx), orderID)
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// Cancel handles POST /b2b/orders/:id/cancel
func (c *BulkOrderController) Cancel(ctx *gin.Context) {
	orderID, err := pathID(ctx)
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	order, err := c.service.CancelOrder(ctx.Request.Context(), middleware.RequestContext(ctx), orderID)
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// Confirmation handles GET /b2b/orders/:id/confirmation?format=pdf
func (c *BulkOrderController) Confirmation(ctx *gin.Context) {
	orderID, err := pathID(ctx)
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	format := ctx.DefaultQuery("format", "html")

	body, contentType, err := c.service.Confirmation(ctx.Request.Context(), middleware.RequestContext(ctx), orderID, format)
	if err != nil {
		middleware.RespondWithError(ctx, c.logger, err)
		return
	}
	if contentType == "application/pdf" {
		ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"order-%d-confirmation.pdf\"", orderID))
	}
	ctx.Data(http.StatusOK, contentType, body)
}

func (c *BulkOrderController) uploadedFile(ctx *gin.Context) (multipart.File, *multipart.FileHeader, error) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, MaxUploadSize)
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		return nil, nil, apperrors.ImportFormat("a CSV file is required in the \"file\" form field").Wrap(err)
	}
	return file, header, nil
}

func pathID(ctx *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("id must be a positive integer")
	}
	return id, nil
}

func invalidBody(err error) error {
	return apperrors.NewAppError(apperrors.CodeValidation, "invalid request body", http.StatusBadRequest).Wrap(err)
}
