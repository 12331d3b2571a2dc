package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"dixis-bulk-orders/apperrors"
	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/models"
	"dixis-bulk-orders/pricing"
	"dixis-bulk-orders/repository"
)

// MaxLineQuantity is the largest quantity accepted on one line
const MaxLineQuantity = 10000

// CatalogReader is the catalog lookup the validator needs
type CatalogReader interface {
	GetProduct(ctx context.Context, tenantID, productID int64) (*models.Product, error)
	FindProductBySKU(ctx context.Context, tenantID int64, sku string) (*models.Product, error)
	FindProductByName(ctx context.Context, tenantID int64, name string) (*models.Product, error)
}

// Validator checks line items against the catalog without mutating anything
type Validator struct {
	catalog CatalogReader
	pricing *pricing.Engine
	logger  *logging.Logger
}

// NewValidator creates a new Validator
func NewValidator(catalog CatalogReader, engine *pricing.Engine, logger *logging.Logger) *Validator {
	return &Validator{
		catalog: catalog,
		pricing: engine,
		logger:  logger.WithComponent("line_validator"),
	}
}

// Result carries the report plus the lines that can be priced
type Result struct {
	Report   models.ValidationReport
	Accepted []models.AcceptedLine
	Rejected []models.ValidationOutcome
}

type lookupMode int

const (
	byReference lookupMode = iota // SKU, then name substring
	byID
)

// ValidateFile validates rows from an import file. Import is all-or-nothing:
// when any row is invalid the result is returned together with an aggregate
// ImportValidation error listing every rejected row.
func (v *Validator) ValidateFile(ctx context.Context, rc models.RequestContext, items []models.LineItemRequest, account *models.BusinessAccount) (*Result, error) {
	result, err := v.validate(ctx, rc, items, account, byReference)
	if err != nil {
		return nil, err
	}
	if len(result.Rejected) > 0 {
		rows := make([]apperrors.RowError, 0, len(result.Rejected))
		for _, o := range result.Rejected {
			rows = append(rows, RowError(o))
		}
		return result, apperrors.ImportValidation(rows)
	}
	return result, nil
}

// ValidateList validates a programmatic submission. Invalid lines are reported
// in the result and never turned into an error; the caller decides whether a
// partial order is acceptable.
func (v *Validator) ValidateList(ctx context.Context, rc models.RequestContext, items []models.LineItemRequest, account *models.BusinessAccount) (*Result, error) {
	return v.validate(ctx, rc, items, account, byID)
}

// RowError converts a rejected outcome into its per-row error
func RowError(o models.ValidationOutcome) apperrors.RowError {
	return apperrors.RowError{
		RowNumber: o.RowNumber,
		Index:     o.Index,
		Reason:    o.Reason,
		Message:   o.Message,
	}
}

func (v *Validator) validate(ctx context.Context, rc models.RequestContext, items []models.LineItemRequest, account *models.BusinessAccount, mode lookupMode) (*Result, error) {
	logger := v.logger.WithOperation("validate").WithFields(map[string]any{
		"tenantId":  rc.TenantID,
		"accountId": account.ID,
		"requestId": rc.RequestID,
	})

	result := &Result{
		Report: models.ValidationReport{
			Errors:   []string{},
			Warnings: []string{},
			Outcomes: make([]models.ValidationOutcome, 0, len(items)),
			Summary: models.ValidationSummary{
				TotalProducts:  len(items),
				EstimatedTotal: decimal.Zero,
			},
		},
	}
	report := &result.Report

	for i, item := range items {
		outcome := models.ValidationOutcome{
			Index:      i,
			RowNumber:  item.SourceRowNumber,
			ProductRef: item.ProductRef(),
			Status:     models.OutcomeValid,
		}
		label := lineLabel(item, i, mode)

		product, err := v.resolve(ctx, rc.TenantID, item, mode)
		if err != nil {
			logger.Error("product lookup failed", "index", i, "error", err)
			return nil, err
		}

		quantity, quantityOK := parseQuantity(item.Quantity)

		switch {
		case product == nil:
			outcome.Status = models.OutcomeInvalid
			outcome.Reason = models.ReasonNotFound
			if mode == byID {
				outcome.Message = fmt.Sprintf("Product ID %d not found", item.ProductID)
			} else {
				outcome.Message = fmt.Sprintf("%s: Product not found (%s)", label, item.ProductRef())
			}
		case !product.B2BAvailable:
			outcome.Status = models.OutcomeInvalid
			outcome.Reason = models.ReasonNotB2B
			outcome.Message = fmt.Sprintf("%s: %s is not available for B2B orders", label, product.Name)
		case !quantityOK:
			outcome.Status = models.OutcomeInvalid
			outcome.Reason = models.ReasonInvalidQuantity
			outcome.Message = fmt.Sprintf("%s: Invalid quantity %q for %s", label, item.Quantity, product.Name)
		case product.Stock < quantity:
			outcome.Status = models.OutcomeWarning
			outcome.Reason = models.ReasonInsufficientStock
			outcome.Message = fmt.Sprintf("%s: Insufficient stock for %s (available: %d)", label, product.Name, product.Stock)
		}
		if product != nil {
			outcome.ProductID = product.ID
		}

		report.Outcomes = append(report.Outcomes, outcome)

		if outcome.Status == models.OutcomeInvalid {
			report.Errors = append(report.Errors, outcome.Message)
			report.Summary.UnavailableProducts++
			result.Rejected = append(result.Rejected, outcome)
			continue
		}
		if outcome.Status == models.OutcomeWarning {
			report.Warnings = append(report.Warnings, outcome.Message)
		}

		line := models.AcceptedLine{
			Product:   product,
			Quantity:  quantity,
			Notes:     strings.TrimSpace(item.Notes),
			RowNumber: item.SourceRowNumber,
		}
		if raw := strings.TrimSpace(item.CustomPrice); raw != "" {
			price, err := decimal.NewFromString(raw)
			if err != nil || price.IsNegative() {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("%s: Custom price %q ignored for %s", label, raw, product.Name))
			} else {
				line.CustomPrice = &price
			}
		}

		result.Accepted = append(result.Accepted, line)
		report.Summary.AvailableProducts++
		report.Summary.TotalQuantity += quantity
		unitPrice := v.pricing.UnitPrice(product, account, line.CustomPrice)
		report.Summary.EstimatedTotal = report.Summary.EstimatedTotal.Add(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
	}

	report.Valid = len(result.Rejected) == 0
	available := account.AvailableCredit()
	if report.Summary.EstimatedTotal.GreaterThan(available) {
		report.Valid = false
		report.Errors = append(report.Errors, fmt.Sprintf("Order total %s exceeds available credit limit %s",
			report.Summary.EstimatedTotal.StringFixed(2), available.StringFixed(2)))
	}

	logger.Debug("lines validated",
		"total", len(items),
		"accepted", len(result.Accepted),
		"rejected", len(result.Rejected),
		"warnings", len(report.Warnings),
	)
	return result, nil
}

// resolve returns nil without error when no usable product matches
func (v *Validator) resolve(ctx context.Context, tenantID int64, item models.LineItemRequest, mode lookupMode) (*models.Product, error) {
	var product *models.Product
	var err error

	if mode == byID {
		if item.ProductID <= 0 {
			return nil, nil
		}
		product, err = v.catalog.GetProduct(ctx, tenantID, item.ProductID)
	} else {
		if sku := strings.TrimSpace(item.SKU); sku != "" {
			product, err = v.catalog.FindProductBySKU(ctx, tenantID, sku)
		}
		if product == nil && (err == nil || errors.Is(err, repository.ErrNotFound)) {
			if name := strings.TrimSpace(item.Name); name != "" {
				product, err = v.catalog.FindProductByName(ctx, tenantID, name)
			}
		}
	}

	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up product %s: %w", item.ProductRef(), err)
	}
	if product == nil || !product.IsActive {
		return nil, nil
	}
	return product, nil
}

// parseQuantity accepts whole numbers from 1 to MaxLineQuantity, including "10.0"
func parseQuantity(raw string) (int, bool) {
	q, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !q.IsInteger() || !q.IsPositive() || q.GreaterThan(decimal.NewFromInt(MaxLineQuantity)) {
		return 0, false
	}
	return int(q.IntPart()), true
}

func lineLabel(item models.LineItemRequest, index int, mode lookupMode) string {
	if mode == byID {
		return fmt.Sprintf("Product %d", item.ProductID)
	}
	if item.SourceRowNumber > 0 {
		return fmt.Sprintf("Row %d", item.SourceRowNumber)
	}
	return fmt.Sprintf("Line %d", index+1)
}
