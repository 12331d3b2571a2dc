package service

import (
	"context"

	"dixis-bulk-orders/models"
)

// DriveServiceInterface defines the contract for Google Drive operations
type DriveServiceInterface interface {
	ListImportFiles(ctx context.Context, folderID string) ([]models.DriveImportFile, error)
	// DownloadImport returns the file name and CSV bytes of a Drive file.
	// Google Sheets are exported as CSV.
	DownloadImport(ctx context.Context, fileID string) (string, []byte, error)
}
