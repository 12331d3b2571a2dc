package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dixis-bulk-orders/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(dec("0.24"), "EUR")
	require.NoError(t, err)
	return e
}

func TestNewEngine_RejectsNegativeTax(t *testing.T) {
	_, err := NewEngine(dec("-0.01"), "EUR")
	assert.Error(t, err)
}

func TestUnitPrice(t *testing.T) {
	e := newTestEngine(t)
	product := &models.Product{ID: 1, Price: dec("2.50")}

	tests := []struct {
		name     string
		discount string
		custom   *decimal.Decimal
		want     string
	}{
		{"no discount", "0", nil, "2.50"},
		{"ten percent", "10", nil, "2.25"},
		{"rounds half up to cents", "15", nil, "2.13"},
		{"full discount", "100", nil, "0.00"},
		{"custom price wins over discount", "10", decPtr("1.99"), "1.99"},
		{"custom price rounded to cents", "0", decPtr("1.005"), "1.01"},
		{"zero custom price is honored", "10", decPtr("0"), "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := &models.BusinessAccount{DiscountPercentage: dec(tt.discount)}
			got := e.UnitPrice(product, account, tt.custom)
			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestQuote_Totals(t *testing.T) {
	e := newTestEngine(t)
	account := &models.BusinessAccount{DiscountPercentage: dec("10")}
	tomatoes := &models.Product{ID: 1, SKU: "PROD-001", Price: dec("2.50")}
	basil := &models.Product{ID: 2, SKU: "PROD-002", Price: dec("3.99")}

	lines := []models.AcceptedLine{
		{Product: tomatoes, Quantity: 50},
		{Product: basil, Quantity: 25, CustomPrice: decPtr("3.00")},
	}

	quote := e.Quote(lines, account)

	require.Len(t, quote.Lines, 2)
	assert.True(t, quote.Lines[0].UnitPrice.Equal(dec("2.25")))
	assert.True(t, quote.Lines[0].LineTotal.Equal(dec("112.50")))
	assert.True(t, quote.Lines[1].LineTotal.Equal(dec("75.00")))
	assert.True(t, quote.Subtotal.Equal(dec("187.50")))
	assert.True(t, quote.TaxAmount.Equal(dec("45.00")))
	assert.True(t, quote.Total.Equal(dec("232.50")))
	assert.Equal(t, 2, quote.TotalProducts)
	assert.Equal(t, 75, quote.TotalQuantity)
}

func TestQuote_Invariants(t *testing.T) {
	e := newTestEngine(t)
	account := &models.BusinessAccount{DiscountPercentage: dec("7.5")}

	lines := []models.AcceptedLine{
		{Product: &models.Product{ID: 1, Price: dec("0.33")}, Quantity: 3},
		{Product: &models.Product{ID: 2, Price: dec("19.99")}, Quantity: 17},
		{Product: &models.Product{ID: 3, Price: dec("1.01")}, Quantity: 9999},
	}

	quote := e.Quote(lines, account)

	sum := decimal.Zero
	for _, pl := range quote.Lines {
		assert.True(t, pl.LineTotal.Equal(pl.UnitPrice.Mul(decimal.NewFromInt(int64(pl.Line.Quantity)))))
		sum = sum.Add(pl.LineTotal)
	}
	assert.True(t, sum.Equal(quote.Subtotal))
	assert.True(t, quote.TaxAmount.Equal(quote.Subtotal.Mul(dec("0.24")).Round(2)))
	assert.True(t, quote.Total.Equal(quote.Subtotal.Add(quote.TaxAmount)))
}

func TestQuote_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	account := &models.BusinessAccount{DiscountPercentage: dec("12.5")}
	lines := []models.AcceptedLine{
		{Product: &models.Product{ID: 1, Price: dec("4.44")}, Quantity: 13},
		{Product: &models.Product{ID: 2, Price: dec("7.10")}, Quantity: 2, CustomPrice: decPtr("6.666")},
	}

	first := e.Quote(lines, account)
	second := e.Quote(lines, account)

	assert.Equal(t, first, second)
}

func TestQuote_Empty(t *testing.T) {
	quote := newTestEngine(t).Quote(nil, &models.BusinessAccount{})

	assert.True(t, quote.Subtotal.IsZero())
	assert.True(t, quote.TaxAmount.IsZero())
	assert.True(t, quote.Total.IsZero())
	assert.Empty(t, quote.Lines)
}
