package document

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"

	"dixis-bulk-orders/models"
	"dixis-bulk-orders/utils"
)

//go:embed templates/confirmation.html
var templatesFS embed.FS

var confirmationTemplate = template.Must(
	template.New("confirmation.html").
		Funcs(template.FuncMap{"eur": utils.FormatEUR}).
		ParseFS(templatesFS, "templates/confirmation.html"),
)

// PDFRenderer turns an HTML document into PDF bytes
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// ConfirmationService renders order confirmations
type ConfirmationService struct {
	pdf     PDFRenderer
	taxRate decimal.Decimal
}

// NewConfirmationService creates a new ConfirmationService. pdf may be nil
// when no browser is available; PDF then returns ErrPDFUnavailable.
func NewConfirmationService(pdf PDFRenderer, taxRate decimal.Decimal) *ConfirmationService {
	return &ConfirmationService{pdf: pdf, taxRate: taxRate}
}

// ErrPDFUnavailable is returned when no PDF renderer is configured
var ErrPDFUnavailable = fmt.Errorf("pdf rendering is not configured")

// RenderHTML renders the confirmation page of a committed order
func (s *ConfirmationService) RenderHTML(order *models.Order, account *models.BusinessAccount) (string, error) {
	data := struct {
		Order      *models.Order
		Account    *models.BusinessAccount
		TaxPercent string
	}{
		Order:      order,
		Account:    account,
		TaxPercent: s.taxRate.Mul(decimal.NewFromInt(100)).String(),
	}

	var buf bytes.Buffer
	if err := confirmationTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// RenderPDF renders the confirmation page and prints it to PDF
func (s *ConfirmationService) RenderPDF(ctx context.Context, order *models.Order, account *models.BusinessAccount) ([]byte, error) {
	if s.pdf == nil {
		return nil, ErrPDFUnavailable
	}
	html, err := s.RenderHTML(order, account)
	if err != nil {
		return nil, err
	}
	return s.pdf.RenderPDF(ctx, html)
}
