package service

import (
	"context"
	"io"

	"dixis-bulk-orders/models"
)

// BulkOrderServiceInterface defines the contract for the bulk order pipeline
type BulkOrderServiceInterface interface {
	// ValidateCSV previews an import file without persisting anything
	ValidateCSV(ctx context.Context, rc models.RequestContext, r io.Reader) (*models.ValidationReport, error)
	// ValidateProducts previews a programmatic submission without persisting anything
	ValidateProducts(ctx context.Context, rc models.RequestContext, req *models.BulkOrderRequest) (*models.ValidationReport, error)
	// CreateFromCSV imports a file all-or-nothing: any invalid row rejects the whole file
	CreateFromCSV(ctx context.Context, rc models.RequestContext, r io.Reader, meta models.SubmissionMeta) (*models.BulkOrderResult, error)
	// CreateFromProducts accepts the valid lines of a submission and reports the rest
	CreateFromProducts(ctx context.Context, rc models.RequestContext, req *models.BulkOrderRequest) (*models.BulkOrderResult, error)
	// CreateFromDriveFile downloads a CSV from Google Drive and imports it like CreateFromCSV
	CreateFromDriveFile(ctx context.Context, rc models.RequestContext, req *models.DriveImportRequest) (*models.BulkOrderResult, error)
	ListDriveFiles(ctx context.Context, folderID string) ([]models.DriveImportFile, error)
	GetOrder(ctx context.Context, rc models.RequestContext, orderID int64) (*models.Order, error)
	// CancelOrder cancels a pending order and releases its reserved credit
	CancelOrder(ctx context.Context, rc models.RequestContext, orderID int64) (*models.Order, error)
	// Confirmation renders an order confirmation as "html" or "pdf"
	Confirmation(ctx context.Context, rc models.RequestContext, orderID int64, format string) ([]byte, string, error)
}
