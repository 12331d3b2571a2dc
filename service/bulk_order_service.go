package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"dixis-bulk-orders/apperrors"
	"dixis-bulk-orders/credit"
	"dixis-bulk-orders/document"
	"dixis-bulk-orders/importer"
	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/metrics"
	"dixis-bulk-orders/models"
	"dixis-bulk-orders/pricing"
	"dixis-bulk-orders/repository"
	"dixis-bulk-orders/validation"
)

// Audit actions
const (
	AuditBulkOrderCreated   = "bulk_order_created"
	AuditBulkOrderCancelled = "bulk_order_cancelled"
)

const (
	defaultOrderNumberPrefix = "BULK"
	defaultAuditTimeout      = 5 * time.Second
	defaultCommitAttempts    = 3
)

// ConfirmationRenderer renders order confirmation documents
type ConfirmationRenderer interface {
	RenderHTML(order *models.Order, account *models.BusinessAccount) (string, error)
	RenderPDF(ctx context.Context, order *models.Order, account *models.BusinessAccount) ([]byte, error)
}

// BulkOrderDeps holds the collaborators of BulkOrderService.
// Drive and Documents are optional; Audit defaults to the log.
type BulkOrderDeps struct {
	Store     repository.StoreInterface
	Pricing   *pricing.Engine
	Audit     AuditSink
	Drive     DriveServiceInterface
	Documents ConfirmationRenderer
	Metrics   *metrics.Metrics
	Logger    *logging.Logger
	Now       func() time.Time

	OrderNumberPrefix string
	MaxImportRows     int
	AuditTimeout      time.Duration
}

// BulkOrderService runs the bulk order pipeline: normalize, validate, price,
// check credit and commit the order in one transaction
type BulkOrderService struct {
	store     repository.StoreInterface
	validator *validation.Validator
	pricing   *pricing.Engine
	requests  *validator.Validate
	audit     AuditSink
	drive     DriveServiceInterface
	documents ConfirmationRenderer
	metrics   *metrics.Metrics
	logger    *logging.Logger
	now       func() time.Time

	prefix       string
	maxRows      int
	auditTimeout time.Duration
}

// Ensure BulkOrderService implements BulkOrderServiceInterface
var _ BulkOrderServiceInterface = (*BulkOrderService)(nil)

// NewBulkOrderService creates a new BulkOrderService instance
func NewBulkOrderService(deps BulkOrderDeps) *BulkOrderService {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	s := &BulkOrderService{
		store:        deps.Store,
		validator:    validation.NewValidator(deps.Store, deps.Pricing, logger),
		pricing:      deps.Pricing,
		requests:     validation.NewRequestValidator(),
		audit:        deps.Audit,
		drive:        deps.Drive,
		documents:    deps.Documents,
		metrics:      deps.Metrics,
		logger:       logger.WithComponent("bulk_order_service"),
		now:          deps.Now,
		prefix:       deps.OrderNumberPrefix,
		maxRows:      deps.MaxImportRows,
		auditTimeout: deps.AuditTimeout,
	}
	if s.audit == nil {
		s.audit = NewLogNotifier(logger)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.prefix == "" {
		s.prefix = defaultOrderNumberPrefix
	}
	if s.maxRows <= 0 {
		s.maxRows = importer.DefaultMaxRows
	}
	if s.auditTimeout <= 0 {
		s.auditTimeout = defaultAuditTimeout
	}
	return s
}

func (s *BulkOrderService) requestLogger(rc models.RequestContext, operation string) *logging.Logger {
	return s.logger.WithOperation(operation).WithFields(map[string]any{
		"tenantId":  rc.TenantID,
		"accountId": rc.AccountID,
		"requestId": rc.RequestID,
	})
}

// ValidateCSV previews an import file
func (s *BulkOrderService) ValidateCSV(ctx context.Context, rc models.RequestContext, r io.Reader) (*models.ValidationReport, error) {
	logger := s.requestLogger(rc, "validate_csv")

	account, err := s.account(ctx, rc)
	if err != nil {
		return nil, err
	}

	parsed, err := importer.ParseCSV(r, importer.Options{MaxRows: s.maxRows, Logger: logger})
	if err != nil {
		return nil, err
	}

	result, err := s.validator.ValidateFile(ctx, rc, importer.Normalize(parsed), account)
	if result == nil {
		return nil, err
	}
	// row errors are already part of the report
	report := result.Report
	report.SkippedRows = parsed.SkippedRows

	logger.Info("✓ Import previewed", "valid", report.Valid, "rows", len(parsed.Rows), "skipped", len(parsed.SkippedRows))
	return &report, nil
}

// ValidateProducts previews a programmatic submission
func (s *BulkOrderService) ValidateProducts(ctx context.Context, rc models.RequestContext, req *models.BulkOrderRequest) (*models.ValidationReport, error) {
	if err := validation.CheckStruct(s.requests, req); err != nil {
		return nil, err
	}

	account, err := s.account(ctx, rc)
	if err != nil {
		return nil, err
	}

	result, err := s.validator.ValidateList(ctx, rc, importer.FromProducts(req.Products), account)
	if err != nil {
		return nil, err
	}
	return &result.Report, nil
}

// CreateFromCSV imports a file into a single order. Any invalid row rejects the
// whole file; rows with a column count mismatch are skipped and reported.
func (s *BulkOrderService) CreateFromCSV(ctx context.Context, rc models.RequestContext, r io.Reader, meta models.SubmissionMeta) (*models.BulkOrderResult, error) {
	logger := s.requestLogger(rc, "create_from_csv")
	meta.Source = models.SourceCSV

	result, err := s.createFromCSV(ctx, rc, r, meta, logger)
	if err != nil {
		s.recordFailure(logger, err)
		return nil, err
	}
	return result, nil
}

func (s *BulkOrderService) createFromCSV(ctx context.Context, rc models.RequestContext, r io.Reader, meta models.SubmissionMeta, logger *logging.Logger) (*models.BulkOrderResult, error) {
	if err := validation.CheckStruct(s.requests, meta); err != nil {
		return nil, err
	}
	deliveryDate, err := s.deliveryDate(meta.DeliveryDate)
	if err != nil {
		return nil, err
	}

	account, err := s.account(ctx, rc)
	if err != nil {
		return nil, err
	}

	parsed, err := importer.ParseCSV(r, importer.Options{MaxRows: s.maxRows, Logger: logger})
	if err != nil {
		return nil, err
	}
	s.metrics.AddSkippedRows(len(parsed.SkippedRows))

	validated, err := s.validator.ValidateFile(ctx, rc, importer.Normalize(parsed), account)
	if err != nil {
		return nil, err
	}
	if err := credit.Check(validated.Report.Summary.EstimatedTotal, account); err != nil {
		return nil, err
	}

	return s.commit(ctx, rc, account, validated, meta, deliveryDate, parsed.SkippedRows, logger)
}

// CreateFromProducts creates an order from the valid lines of a submission.
// Invalid lines are returned in the result; the order fails only when no line is valid.
func (s *BulkOrderService) CreateFromProducts(ctx context.Context, rc models.RequestContext, req *models.BulkOrderRequest) (*models.BulkOrderResult, error) {
	logger := s.requestLogger(rc, "create_from_products")

	result, err := s.createFromProducts(ctx, rc, req, logger)
	if err != nil {
		s.recordFailure(logger, err)
		return nil, err
	}
	return result, nil
}

func (s *BulkOrderService) createFromProducts(ctx context.Context, rc models.RequestContext, req *models.BulkOrderRequest, logger *logging.Logger) (*models.BulkOrderResult, error) {
	if err := validation.CheckStruct(s.requests, req); err != nil {
		return nil, err
	}
	meta := req.SubmissionMeta
	meta.Source = models.SourceManual
	meta.OriginalFilename = ""

	deliveryDate, err := s.deliveryDate(meta.DeliveryDate)
	if err != nil {
		return nil, err
	}

	account, err := s.account(ctx, rc)
	if err != nil {
		return nil, err
	}

	validated, err := s.validator.ValidateList(ctx, rc, importer.FromProducts(req.Products), account)
	if err != nil {
		return nil, err
	}
	if len(validated.Accepted) == 0 {
		rows := make([]apperrors.RowError, 0, len(validated.Rejected))
		for _, o := range validated.Rejected {
			rows = append(rows, validation.RowError(o))
		}
		return nil, apperrors.ImportValidation(rows)
	}
	if err := credit.Check(validated.Report.Summary.EstimatedTotal, account); err != nil {
		return nil, err
	}

	return s.commit(ctx, rc, account, validated, meta, deliveryDate, nil, logger)
}

// CreateFromDriveFile downloads a Drive file and imports it as a CSV
func (s *BulkOrderService) CreateFromDriveFile(ctx context.Context, rc models.RequestContext, req *models.DriveImportRequest) (*models.BulkOrderResult, error) {
	if s.drive == nil {
		return nil, apperrors.ServiceUnavailable("google drive import")
	}
	if err := validation.CheckStruct(s.requests, req); err != nil {
		return nil, err
	}

	name, data, err := s.drive.DownloadImport(ctx, req.FileID)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		s.requestLogger(rc, "create_from_drive").Error("❌ Error downloading import file", "fileId", req.FileID, "error", err)
		return nil, apperrors.NewAppError(apperrors.CodeServiceUnavailable,
			"failed to download the import file from google drive", http.StatusBadGateway).Wrap(err)
	}

	meta := req.SubmissionMeta
	meta.OriginalFilename = name
	return s.CreateFromCSV(ctx, rc, bytes.NewReader(data), meta)
}

// ListDriveFiles lists importable files in a Drive folder
func (s *BulkOrderService) ListDriveFiles(ctx context.Context, folderID string) ([]models.DriveImportFile, error) {
	if s.drive == nil {
		return nil, apperrors.ServiceUnavailable("google drive import")
	}
	if strings.TrimSpace(folderID) == "" {
		return nil, apperrors.Validation("folder_id is required")
	}
	return s.drive.ListImportFiles(ctx, folderID)
}

// commit writes the order, its items and bulk detail and reserves credit in one transaction
func (s *BulkOrderService) commit(
	ctx context.Context,
	rc models.RequestContext,
	account *models.BusinessAccount,
	validated *validation.Result,
	meta models.SubmissionMeta,
	deliveryDate *time.Time,
	skipped []models.SkippedRow,
	logger *logging.Logger,
) (*models.BulkOrderResult, error) {
	quote := s.pricing.Quote(validated.Accepted, account)
	now := s.now().UTC()
	day := now.Format("20060102")

	priority := meta.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	var order *models.Order
	start := time.Now()
	err := runTx(ctx, s.store, defaultCommitAttempts, func(tx repository.TxInterface) error {
		locked, err := tx.LockBusinessAccount(ctx, rc.TenantID, account.ID)
		if err != nil {
			return fmt.Errorf("failed to lock business account: %w", err)
		}
		if err := credit.Check(quote.Total, locked); err != nil {
			return err
		}

		seq, err := tx.NextOrderSequence(ctx, s.prefix, day)
		if err != nil {
			return fmt.Errorf("failed to generate order number: %w", err)
		}

		order = &models.Order{
			TenantID:          rc.TenantID,
			BusinessAccountID: account.ID,
			OrderNumber:       fmt.Sprintf("%s-%s-%04d", s.prefix, day, seq),
			Status:            models.OrderStatusPendingApproval,
			Subtotal:          quote.Subtotal,
			TaxAmount:         quote.TaxAmount,
			TotalAmount:       quote.Total,
			Currency:          s.pricing.Currency(),
			IsBulkOrder:       true,
			Priority:          priority,
			DeliveryDate:      deliveryDate,
			Notes:             strings.TrimSpace(meta.Notes),
			CreatedAt:         now,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		items := make([]models.OrderItem, 0, len(quote.Lines))
		for _, pl := range quote.Lines {
			item := models.OrderItem{
				OrderID:     order.ID,
				ProductID:   pl.Line.Product.ID,
				ProductSKU:  pl.Line.Product.SKU,
				ProductName: pl.Line.Product.Name,
				Quantity:    pl.Line.Quantity,
				UnitPrice:   pl.UnitPrice,
				LineTotal:   pl.LineTotal,
				Notes:       pl.Line.Notes,
			}
			if err := tx.InsertOrderItem(ctx, &item); err != nil {
				return fmt.Errorf("failed to insert order item for product %d: %w", item.ProductID, err)
			}
			items = append(items, item)
		}

		detail := models.BulkOrderDetail{
			OrderID:          order.ID,
			Source:           meta.Source,
			OriginalFilename: meta.OriginalFilename,
			TotalProducts:    quote.TotalProducts,
			TotalQuantity:    quote.TotalQuantity,
			ProcessingNotes:  processingNotes(len(skipped), len(validated.Report.Warnings), len(validated.Rejected)),
		}
		if err := tx.InsertBulkOrderDetail(ctx, &detail); err != nil {
			return fmt.Errorf("failed to insert bulk order detail: %w", err)
		}

		if err := tx.UpdateOutstandingBalance(ctx, rc.TenantID, locked.ID, credit.Reserve(locked, quote.Total)); err != nil {
			return fmt.Errorf("failed to reserve credit: %w", err)
		}

		order.Items = items
		order.BulkDetail = &detail
		return nil
	})
	s.metrics.ObserveTransaction("create_bulk_order", start, err)

	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		logger.Error("❌ Error committing bulk order", "error", err)
		return nil, apperrors.TransactionFailure(err)
	}

	s.metrics.RecordOrderCreated(meta.Source)
	logger.Info("✓ Bulk order created",
		"orderId", order.ID,
		"orderNumber", order.OrderNumber,
		"products", quote.TotalProducts,
		"quantity", quote.TotalQuantity,
		"total", quote.Total.StringFixed(2),
	)

	s.recordAudit(ctx, logger, models.AuditEntry{
		EventID:      uuid.NewString(),
		Action:       AuditBulkOrderCreated,
		TenantID:     rc.TenantID,
		AccountID:    account.ID,
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		ProductCount: quote.TotalProducts,
		TotalAmount:  quote.Total,
		RequestID:    rc.RequestID,
		OccurredAt:   now,
	})

	return &models.BulkOrderResult{
		Order: order,
		Summary: models.OrderSummary{
			TotalProducts: quote.TotalProducts,
			TotalQuantity: quote.TotalQuantity,
			Subtotal:      quote.Subtotal,
			TaxAmount:     quote.TaxAmount,
			TotalAmount:   quote.Total,
		},
		Warnings:    validated.Report.Warnings,
		Rejected:    validated.Rejected,
		SkippedRows: skipped,
	}, nil
}

// GetOrder returns an order of the caller's tenant. When the caller carries an
// account id, orders of other accounts are reported as not found.
func (s *BulkOrderService) GetOrder(ctx context.Context, rc models.RequestContext, orderID int64) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, rc.TenantID, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if rc.AccountID != 0 && order.BusinessAccountID != rc.AccountID {
		return nil, apperrors.NotFound("order")
	}
	return order, nil
}

// CancelOrder moves a pending order to cancelled and releases its credit in one transaction
func (s *BulkOrderService) CancelOrder(ctx context.Context, rc models.RequestContext, orderID int64) (*models.Order, error) {
	logger := s.requestLogger(rc, "cancel_order").WithFields(map[string]any{"orderId": orderID})

	var cancelled models.Order
	start := time.Now()
	err := runTx(ctx, s.store, defaultCommitAttempts, func(tx repository.TxInterface) error {
		order, err := tx.LockOrder(ctx, rc.TenantID, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("order")
		}
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		if rc.AccountID != 0 && order.BusinessAccountID != rc.AccountID {
			return apperrors.NotFound("order")
		}
		if order.Status != models.OrderStatusPendingApproval {
			return apperrors.Conflict(fmt.Sprintf("order %s is %s and cannot be cancelled", order.OrderNumber, order.Status))
		}
		if order.InventoryReconciledAt != nil {
			return apperrors.Conflict(fmt.Sprintf("order %s has already been fulfilled", order.OrderNumber))
		}

		account, err := tx.LockBusinessAccount(ctx, rc.TenantID, order.BusinessAccountID)
		if err != nil {
			return fmt.Errorf("failed to lock business account: %w", err)
		}
		if err := tx.UpdateOutstandingBalance(ctx, rc.TenantID, account.ID, credit.Release(account, order.TotalAmount)); err != nil {
			return fmt.Errorf("failed to release credit: %w", err)
		}
		if err := tx.UpdateOrderStatus(ctx, rc.TenantID, order.ID, models.OrderStatusCancelled); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		cancelled = *order
		cancelled.Status = models.OrderStatusCancelled
		return nil
	})
	s.metrics.ObserveTransaction("cancel_order", start, err)

	if err != nil {
		if _, ok := apperrors.As(err); ok {
			s.recordFailure(logger, err)
			return nil, err
		}
		logger.Error("❌ Error cancelling order", "error", err)
		return nil, apperrors.TransactionFailure(err)
	}

	logger.Info("✓ Order cancelled", "orderNumber", cancelled.OrderNumber, "released", cancelled.TotalAmount.StringFixed(2))
	s.recordAudit(ctx, logger, models.AuditEntry{
		EventID:     uuid.NewString(),
		Action:      AuditBulkOrderCancelled,
		TenantID:    rc.TenantID,
		AccountID:   cancelled.BusinessAccountID,
		OrderID:     cancelled.ID,
		OrderNumber: cancelled.OrderNumber,
		TotalAmount: cancelled.TotalAmount,
		RequestID:   rc.RequestID,
		OccurredAt:  s.now().UTC(),
	})

	return s.GetOrder(ctx, rc, orderID)
}

// Confirmation renders the confirmation of an order as HTML or PDF
func (s *BulkOrderService) Confirmation(ctx context.Context, rc models.RequestContext, orderID int64, format string) ([]byte, string, error) {
	if s.documents == nil {
		return nil, "", apperrors.ServiceUnavailable("order confirmations")
	}

	order, err := s.GetOrder(ctx, rc, orderID)
	if err != nil {
		return nil, "", err
	}
	account, err := s.store.GetBusinessAccount(ctx, rc.TenantID, order.BusinessAccountID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load business account: %w", err)
	}

	switch strings.ToLower(format) {
	case "", "html":
		html, err := s.documents.RenderHTML(order, account)
		if err != nil {
			return nil, "", err
		}
		return []byte(html), "text/html; charset=utf-8", nil
	case "pdf":
		pdf, err := s.documents.RenderPDF(ctx, order, account)
		if errors.Is(err, document.ErrPDFUnavailable) {
			return nil, "", apperrors.ServiceUnavailable("pdf rendering")
		}
		if err != nil {
			return nil, "", err
		}
		return pdf, "application/pdf", nil
	default:
		return nil, "", apperrors.Validation(fmt.Sprintf("unsupported format %q", format))
	}
}

// account loads the caller's business account
func (s *BulkOrderService) account(ctx context.Context, rc models.RequestContext) (*models.BusinessAccount, error) {
	if rc.TenantID <= 0 || rc.AccountID <= 0 {
		return nil, apperrors.Validation("tenant and business account are required")
	}
	account, err := s.store.GetBusinessAccount(ctx, rc.TenantID, rc.AccountID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("business account")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load business account: %w", err)
	}
	return account, nil
}

// deliveryDate parses an optional YYYY-MM-DD date that must be after today
func (s *BulkOrderService) deliveryDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperrors.Validation("delivery_date must be a date in the format YYYY-MM-DD")
	}
	y, m, d := s.now().UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if !date.After(today) {
		return nil, apperrors.Validation("delivery_date must be after today").WithDetail("delivery_date", raw)
	}
	return &date, nil
}

func (s *BulkOrderService) recordAudit(ctx context.Context, logger *logging.Logger, entry models.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.auditTimeout)
	defer cancel()

	if err := s.audit.Record(ctx, entry); err != nil {
		logger.Warn("⚠️ Audit entry not recorded", "action", entry.Action, "orderId", entry.OrderID, "error", err)
	}
}

func (s *BulkOrderService) recordFailure(logger *logging.Logger, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		return
	}
	s.metrics.RecordRejection(appErr.Code)
	if appErr.HTTPStatus < http.StatusInternalServerError {
		logger.Info("Bulk order rejected", "code", appErr.Code, "message", appErr.Message)
	}
}

func processingNotes(skipped, warnings, rejected int) string {
	var notes []string
	if skipped > 0 {
		notes = append(notes, fmt.Sprintf("%d rows skipped", skipped))
	}
	if rejected > 0 {
		notes = append(notes, fmt.Sprintf("%d lines rejected", rejected))
	}
	if warnings > 0 {
		notes = append(notes, fmt.Sprintf("%d warnings", warnings))
	}
	return strings.Join(notes, "; ")
}
