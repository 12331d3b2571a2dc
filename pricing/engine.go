package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"dixis-bulk-orders/models"
)

// MoneyPlaces is the number of decimal places every stored amount carries
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Engine computes wholesale prices. It holds only configuration and is safe
// for concurrent use; the same input always produces the same quote.
type Engine struct {
	taxRate  decimal.Decimal
	currency string
}

// NewEngine creates a pricing engine for the given tax rate (0.24 = 24%)
func NewEngine(taxRate decimal.Decimal, currency string) (*Engine, error) {
	if taxRate.IsNegative() {
		return nil, fmt.Errorf("tax rate cannot be negative: %s", taxRate)
	}
	if currency == "" {
		currency = "EUR"
	}
	return &Engine{taxRate: taxRate, currency: currency}, nil
}

// TaxRate returns the configured tax rate
func (e *Engine) TaxRate() decimal.Decimal {
	return e.taxRate
}

// Currency returns the configured currency code
func (e *Engine) Currency() string {
	return e.currency
}

// UnitPrice returns the custom price when present, otherwise the catalog price
// minus the account's discount percentage
func (e *Engine) UnitPrice(product *models.Product, account *models.BusinessAccount, customPrice *decimal.Decimal) decimal.Decimal {
	if customPrice != nil {
		return customPrice.Round(MoneyPlaces)
	}
	return DiscountedPrice(product.Price, account.DiscountPercentage)
}

// DiscountedPrice applies a 0-100 discount percentage to a price
func DiscountedPrice(price, discountPercentage decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(discountPercentage.Div(hundred))
	return price.Mul(factor).Round(MoneyPlaces)
}

// Tax returns the tax for a subtotal rounded to cents
func (e *Engine) Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(e.taxRate).Round(MoneyPlaces)
}

// Quote prices every accepted line and computes subtotal, tax and total
func (e *Engine) Quote(lines []models.AcceptedLine, account *models.BusinessAccount) models.Quote {
	quote := models.Quote{
		Lines:    make([]models.PricedLine, 0, len(lines)),
		Subtotal: decimal.Zero,
	}

	for _, line := range lines {
		unitPrice := e.UnitPrice(line.Product, account, line.CustomPrice)
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))

		quote.Lines = append(quote.Lines, models.PricedLine{
			Line:      line,
			UnitPrice: unitPrice,
			LineTotal: lineTotal,
		})
		quote.Subtotal = quote.Subtotal.Add(lineTotal)
		quote.TotalQuantity += line.Quantity
	}

	quote.TotalProducts = len(lines)
	quote.TaxAmount = e.Tax(quote.Subtotal)
	quote.Total = quote.Subtotal.Add(quote.TaxAmount)
	return quote
}
