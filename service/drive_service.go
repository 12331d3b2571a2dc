package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"dixis-bulk-orders/apperrors"
	"dixis-bulk-orders/models"
)

// MaxImportFileSize caps the bytes read from a Drive import
const MaxImportFileSize = 5 << 20

const mimeGoogleSheet = "application/vnd.google-apps.spreadsheet"

var csvMimeTypes = map[string]bool{
	"text/csv":                 true,
	"text/plain":               true,
	"application/csv":          true,
	"application/vnd.ms-excel": true, // how Drive labels .csv uploads from Windows
	mimeGoogleSheet:            true,
}

// DriveService handles Google Drive API operations
type DriveService struct {
	client *drive.Service
}

// Ensure DriveService implements DriveServiceInterface
var _ DriveServiceInterface = (*DriveService)(nil)

// NewDriveService creates a new DriveService instance
// credentialsPath should be the path to the Service Account JSON file
func NewDriveService(ctx context.Context, credentialsPath string) (*DriveService, error) {
	return newDriveService(ctx, option.WithCredentialsFile(credentialsPath))
}

func newDriveService(ctx context.Context, opts ...option.ClientOption) (*DriveService, error) {
	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &DriveService{
		client: driveService,
	}, nil
}

// ListImportFiles lists the CSV files and Google Sheets in a Drive folder
func (ds *DriveService) ListImportFiles(ctx context.Context, folderID string) ([]models.DriveImportFile, error) {
	query := fmt.Sprintf("'%s' in parents and trashed=false", strings.ReplaceAll(folderID, "'", `\'`))

	var allFiles []*drive.File
	pageToken := ""
	for {
		call := ds.client.Files.List().
			Q(query).
			Fields("nextPageToken, files(id, name, mimeType, size, modifiedTime)").
			Context(ctx)

		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		r, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}

		allFiles = append(allFiles, r.Files...)
		pageToken = r.NextPageToken

		if pageToken == "" {
			break
		}
	}

	files := make([]models.DriveImportFile, 0, len(allFiles))
	for _, file := range allFiles {
		if !isImportable(file) {
			continue
		}
		files = append(files, models.DriveImportFile{
			FileID:       file.Id,
			Name:         file.Name,
			MimeType:     file.MimeType,
			Size:         file.Size,
			ModifiedTime: file.ModifiedTime,
		})
	}
	return files, nil
}

// DownloadImport downloads a CSV file, or exports a Google Sheet as CSV
func (ds *DriveService) DownloadImport(ctx context.Context, fileID string) (string, []byte, error) {
	file, err := ds.client.Files.Get(fileID).Fields("id, name, mimeType, size").Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("failed to get file metadata: %w", err)
	}
	if !isImportable(file) {
		return "", nil, apperrors.ImportFormat(fmt.Sprintf("file %s is not a CSV file or spreadsheet (%s)", file.Name, file.MimeType))
	}
	if file.Size > MaxImportFileSize {
		return "", nil, apperrors.ImportFormat(fmt.Sprintf("file %s is larger than %d bytes", file.Name, MaxImportFileSize))
	}

	name := file.Name
	var body io.ReadCloser
	if file.MimeType == mimeGoogleSheet {
		resp, err := ds.client.Files.Export(fileID, "text/csv").Context(ctx).Download()
		if err != nil {
			return "", nil, fmt.Errorf("failed to export spreadsheet: %w", err)
		}
		body = resp.Body
		if !strings.HasSuffix(strings.ToLower(name), ".csv") {
			name += ".csv"
		}
	} else {
		resp, err := ds.client.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return "", nil, fmt.Errorf("failed to download file: %w", err)
		}
		body = resp.Body
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, MaxImportFileSize+1))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file data: %w", err)
	}
	if len(data) > MaxImportFileSize {
		return "", nil, apperrors.ImportFormat(fmt.Sprintf("file %s is larger than %d bytes", name, MaxImportFileSize))
	}
	return name, data, nil
}

func isImportable(file *drive.File) bool {
	if csvMimeTypes[strings.ToLower(file.MimeType)] {
		return true
	}
	return strings.HasSuffix(strings.ToLower(file.Name), ".csv")
}
