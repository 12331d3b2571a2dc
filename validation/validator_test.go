package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dixis-bulk-orders/apperrors"
	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/models"
	"dixis-bulk-orders/pricing"
	"dixis-bulk-orders/repository/memory"
)

type fixture struct {
	validator *Validator
	store     *memory.Store
	account   *models.BusinessAccount
	tomatoes  models.Product
	basil     models.Product
	retail    models.Product
	retired   models.Product
	rc        models.RequestContext
}

func newFixture(t *testing.T, creditLimit string) *fixture {
	t.Helper()
	store := memory.NewStore()
	engine, err := pricing.NewEngine(decimal.RequireFromString("0.24"), "EUR")
	require.NoError(t, err)

	account := store.AddAccount(models.BusinessAccount{
		TenantID:           1,
		BusinessName:       "Taverna Nikos",
		DiscountPercentage: decimal.NewFromInt(10),
		CreditLimit:        decimal.RequireFromString(creditLimit),
	})

	return &fixture{
		validator: NewValidator(store, engine, logging.Nop()),
		store:     store,
		account:   &account,
		tomatoes: store.AddProduct(models.Product{TenantID: 1, SKU: "PROD-001", Name: "Organic Tomatoes",
			Price: decimal.RequireFromString("2.50"), B2BAvailable: true, Stock: 100, IsActive: true}),
		basil: store.AddProduct(models.Product{TenantID: 1, SKU: "PROD-002", Name: "Fresh Basil",
			Price: decimal.RequireFromString("4.00"), B2BAvailable: true, Stock: 10, IsActive: true}),
		retail: store.AddProduct(models.Product{TenantID: 1, SKU: "PROD-003", Name: "Gift Basket",
			Price: decimal.RequireFromString("30.00"), B2BAvailable: false, Stock: 5, IsActive: true}),
		retired: store.AddProduct(models.Product{TenantID: 1, SKU: "PROD-004", Name: "Old Olives",
			Price: decimal.RequireFromString("5.00"), B2BAvailable: true, Stock: 5, IsActive: false}),
		rc: models.RequestContext{TenantID: 1, AccountID: account.ID, RequestID: "req-1"},
	}
}

func TestValidateFile_OutcomePriority(t *testing.T) {
	f := newFixture(t, "10000")

	items := []models.LineItemRequest{
		{SKU: "PROD-001", Quantity: "50", SourceRowNumber: 2},
		{SKU: "NOPE", Quantity: "1", SourceRowNumber: 3},
		{SKU: "PROD-003", Quantity: "abc", SourceRowNumber: 4},
		{SKU: "PROD-001", Quantity: "0", SourceRowNumber: 5},
		{SKU: "PROD-002", Quantity: "25", SourceRowNumber: 6},
		{SKU: "PROD-004", Quantity: "1", SourceRowNumber: 7},
		{SKU: "PROD-001", Quantity: "2.5", SourceRowNumber: 8},
	}

	result, err := f.validator.ValidateFile(context.Background(), f.rc, items, f.account)
	require.Error(t, err)
	require.NotNil(t, result)

	statuses := make([]string, 0, len(result.Report.Outcomes))
	reasons := make([]string, 0, len(result.Report.Outcomes))
	for _, o := range result.Report.Outcomes {
		statuses = append(statuses, o.Status)
		reasons = append(reasons, o.Reason)
	}
	assert.Equal(t, []string{"valid", "invalid", "invalid", "invalid", "warning", "invalid", "invalid"}, statuses)
	assert.Equal(t, []string{"", "not found", "not available for B2B", "invalid quantity", "insufficient stock", "not found", "invalid quantity"}, reasons)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeImportValidation, appErr.Code)
	require.Len(t, appErr.Rows, 5)
	assert.Equal(t, 3, appErr.Rows[0].RowNumber)
	assert.Equal(t, "Row 3: Product not found (NOPE)", appErr.Rows[0].Message)

	assert.False(t, result.Report.Valid)
	assert.Len(t, result.Accepted, 2)
	assert.Equal(t, []string{"Row 6: Insufficient stock for Fresh Basil (available: 10)"}, result.Report.Warnings)
}

func TestValidateFile_AllValid(t *testing.T) {
	f := newFixture(t, "10000")

	items := []models.LineItemRequest{
		{SKU: "PROD-001", Quantity: "50", CustomPrice: "2.00", Notes: " Extra ripe ", SourceRowNumber: 2},
		{Name: "basil", Quantity: "5", SourceRowNumber: 3},
	}

	result, err := f.validator.ValidateFile(context.Background(), f.rc, items, f.account)
	require.NoError(t, err)

	report := result.Report
	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 2, report.Summary.TotalProducts)
	assert.Equal(t, 55, report.Summary.TotalQuantity)
	assert.Equal(t, 2, report.Summary.AvailableProducts)
	assert.Equal(t, 0, report.Summary.UnavailableProducts)
	// 50 * 2.00 custom + 5 * (4.00 - 10%)
	assert.True(t, report.Summary.EstimatedTotal.Equal(decimal.RequireFromString("118.00")), report.Summary.EstimatedTotal.String())

	require.Len(t, result.Accepted, 2)
	assert.Equal(t, f.basil.ID, result.Accepted[1].Product.ID)
	assert.Equal(t, "Extra ripe", result.Accepted[0].Notes)
	require.NotNil(t, result.Accepted[0].CustomPrice)
	assert.True(t, result.Accepted[0].CustomPrice.Equal(decimal.RequireFromString("2.00")))
}

func TestValidateFile_SKUTakesPrecedenceOverName(t *testing.T) {
	f := newFixture(t, "10000")

	items := []models.LineItemRequest{{SKU: "PROD-002", Name: "Tomatoes", Quantity: "1", SourceRowNumber: 2}}

	result, err := f.validator.ValidateFile(context.Background(), f.rc, items, f.account)
	require.NoError(t, err)
	assert.Equal(t, f.basil.ID, result.Accepted[0].Product.ID)

	items = []models.LineItemRequest{{SKU: "UNKNOWN", Name: "TOMATO", Quantity: "1", SourceRowNumber: 2}}
	result, err = f.validator.ValidateFile(context.Background(), f.rc, items, f.account)
	require.NoError(t, err)
	assert.Equal(t, f.tomatoes.ID, result.Accepted[0].Product.ID)
}

func TestValidateFile_NameLookupSkipsInactiveProducts(t *testing.T) {
	f := newFixture(t, "10000")
	kalamata := f.store.AddProduct(models.Product{TenantID: 1, SKU: "PROD-006", Name: "Kalamata Olives",
		Price: decimal.RequireFromString("6.00"), B2BAvailable: true, Stock: 40, IsActive: true})

	items := []models.LineItemRequest{{Name: "olives", Quantity: "3", SourceRowNumber: 2}}

	result, err := f.validator.ValidateFile(context.Background(), f.rc, items, f.account)
	require.NoError(t, err)
	require.Len(t, result.Accepted, 1)
	assert.Equal(t, kalamata.ID, result.Accepted[0].Product.ID)
	assert.Equal(t, models.OutcomeValid, result.Report.Outcomes[0].Status)
}

func TestValidateFile_NonNumericCustomPriceIsIgnored(t *testing.T) {
	f := newFixture(t, "10000")

	items := []models.LineItemRequest{
		{SKU: "PROD-001", Quantity: "10", CustomPrice: "cheap", SourceRowNumber: 2},
		{SKU: "PROD-001", Quantity: "10", CustomPrice: "-1", SourceRowNumber: 3},
	}

	result, err := f.validator.ValidateFile(context.Background(), f.rc, items, f.account)
	require.NoError(t, err)
	assert.Nil(t, result.Accepted[0].CustomPrice)
	assert.Nil(t, result.Accepted[1].CustomPrice)
	assert.Len(t, result.Report.Warnings, 2)
	assert.True(t, result.Report.Summary.EstimatedTotal.Equal(decimal.RequireFromString("45.00")))
}

func TestValidate_CreditPreview(t *testing.T) {
	f := newFixture(t, "100")

	items := []models.LineItemRequest{{SKU: "PROD-001", Quantity: "40", SourceRowNumber: 2}}

	result, err := f.validator.ValidateFile(context.Background(), f.rc, items, f.account)
	require.NoError(t, err)
	// 40 * 2.25 = 90.00
	assert.True(t, result.Report.Valid)

	items[0].Quantity = "45"
	items = append(items, models.LineItemRequest{SKU: "PROD-002", Quantity: "1", SourceRowNumber: 3})
	result, err = f.validator.ValidateFile(context.Background(), f.rc, items, f.account)
	require.NoError(t, err)
	// 45 * 2.25 + 3.60 = 104.85
	assert.False(t, result.Report.Valid)
	assert.Contains(t, result.Report.Errors, "Order total 104.85 exceeds available credit limit 100.00")
}

func TestValidateList_PartialAcceptance(t *testing.T) {
	f := newFixture(t, "10000")

	items := []models.LineItemRequest{
		{ProductID: f.tomatoes.ID, Quantity: "10"},
		{ProductID: 9999, Quantity: "1"},
		{ProductID: f.retail.ID, Quantity: "1"},
	}

	result, err := f.validator.ValidateList(context.Background(), f.rc, items, f.account)
	require.NoError(t, err)

	assert.False(t, result.Report.Valid)
	require.Len(t, result.Accepted, 1)
	require.Len(t, result.Rejected, 2)
	assert.Equal(t, "Product ID 9999 not found", result.Rejected[0].Message)
	assert.Equal(t, models.ReasonNotB2B, result.Rejected[1].Reason)
	assert.Equal(t, 2, result.Rejected[1].Index)
}

func TestValidateList_ResolvesByIDOnly(t *testing.T) {
	f := newFixture(t, "10000")

	items := []models.LineItemRequest{{SKU: "PROD-001", Quantity: "1"}}

	result, err := f.validator.ValidateList(context.Background(), f.rc, items, f.account)
	require.NoError(t, err)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, models.ReasonNotFound, result.Rejected[0].Reason)
}

func TestValidate_TenantIsolation(t *testing.T) {
	f := newFixture(t, "10000")
	other := models.RequestContext{TenantID: 2, AccountID: f.account.ID}

	result, err := f.validator.ValidateList(context.Background(), other,
		[]models.LineItemRequest{{ProductID: f.tomatoes.ID, Quantity: "1"}}, f.account)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonNotFound, result.Report.Outcomes[0].Reason)
}

type failingCatalog struct{ err error }

func (c failingCatalog) GetProduct(context.Context, int64, int64) (*models.Product, error) {
	return nil, c.err
}

func (c failingCatalog) FindProductBySKU(context.Context, int64, string) (*models.Product, error) {
	return nil, c.err
}

func (c failingCatalog) FindProductByName(context.Context, int64, string) (*models.Product, error) {
	return nil, c.err
}

func TestValidate_LookupFailureIsReturned(t *testing.T) {
	engine, err := pricing.NewEngine(decimal.RequireFromString("0.24"), "EUR")
	require.NoError(t, err)
	down := errors.New("connection refused")
	v := NewValidator(failingCatalog{err: down}, engine, logging.Nop())

	_, err = v.ValidateFile(context.Background(), models.RequestContext{TenantID: 1},
		[]models.LineItemRequest{{SKU: "PROD-001", Quantity: "1", SourceRowNumber: 2}}, &models.BusinessAccount{})
	assert.ErrorIs(t, err, down)
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"1", 1, true},
		{" 25 ", 25, true},
		{"10.0", 10, true},
		{"10000", 10000, true},
		{"10001", 0, false},
		{"0", 0, false},
		{"-3", 0, false},
		{"2.5", 0, false},
		{"", 0, false},
		{"ten", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseQuantity(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
