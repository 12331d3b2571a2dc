package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dixis-bulk-orders/app/middleware"
	"dixis-bulk-orders/config"
	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/metrics"
	"dixis-bulk-orders/models"
	"dixis-bulk-orders/repository/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type appFixture struct {
	app      *App
	store    *memory.Store
	account  models.BusinessAccount
	tomatoes models.Product
	basil    models.Product
}

func testConfig() *config.Config {
	return &config.Config{
		TaxRate:                  decimal.RequireFromString("0.24"),
		Currency:                 "EUR",
		OrderNumberPrefix:        "BULK",
		DefaultLowStockThreshold: 10,
		MaxImportRows:            1000,
		ReconcileMaxAttempts:     3,
		ForecastSchedule:         "0 0 6 * * *",
		ScheduledTenants:         []int64{1},
	}
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	store := memory.NewStore()
	account := store.AddAccount(models.BusinessAccount{
		TenantID:           1,
		BusinessName:       "Taverna Nikos",
		DiscountPercentage: decimal.NewFromInt(10),
		CreditLimit:        decimal.NewFromInt(10000),
	})
	tomatoes := store.AddProduct(models.Product{TenantID: 1, SKU: "PROD-001", Name: "Organic Tomatoes",
		Price: decimal.RequireFromString("2.50"), B2BAvailable: true, Stock: 100, IsActive: true})
	basil := store.AddProduct(models.Product{TenantID: 1, SKU: "PROD-002", Name: "Fresh Basil",
		Price: decimal.RequireFromString("4.00"), B2BAvailable: true, Stock: 12, IsActive: true})

	a, _, err := Build(testConfig(), Components{Store: store, Metrics: metrics.New("test")}, logging.Nop())
	require.NoError(t, err)

	return &appFixture{app: a, store: store, account: account, tomatoes: tomatoes, basil: basil}
}

func (f *appFixture) do(t *testing.T, method, path string, body []byte, contentType string, withAccount bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(middleware.HeaderTenantID, "1")
	if withAccount {
		req.Header.Set(middleware.HeaderAccountID, fmt.Sprint(f.account.ID))
	}
	w := httptest.NewRecorder()
	f.app.Router.ServeHTTP(w, req)
	return w
}

func (f *appFixture) createOrder(t *testing.T) models.BulkOrderResult {
	t.Helper()
	body := fmt.Sprintf(`{"products":[{"product_id":%d,"quantity":40},{"product_id":%d,"quantity":5}],"priority":"high","delivery_date":%q}`,
		f.tomatoes.ID, f.basil.ID, nextWeek())
	w := f.do(t, http.MethodPost, "/b2b/bulk-orders", []byte(body), "application/json", true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result models.BulkOrderResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result
}

func nextWeek() string {
	return time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.APIErrorResponse {
	t.Helper()
	var resp middleware.APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func multipartCSV(t *testing.T, filename, content string, fields map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestPing(t *testing.T) {
	f := newAppFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	f.app.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAppFixture(t)
	f.createOrder(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	f.app.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_bulk_orders_created_total{source="manual"} 1`)
}

func TestTenantHeadersAreRequired(t *testing.T) {
	f := newAppFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/b2b/bulk-orders/template", nil)
	w := httptest.NewRecorder()
	f.app.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)

	w = f.do(t, http.MethodGet, "/b2b/bulk-orders/template", nil, "", false)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// admin routes only need the tenant
	w = f.do(t, http.MethodGet, "/admin/inventory/alerts", nil, "", false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTemplateDownload(t *testing.T) {
	f := newAppFixture(t)

	w := f.do(t, http.MethodGet, "/b2b/bulk-orders/template", nil, "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "bulk_order_template.csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "product_sku,product_name,quantity,custom_price,notes\n"))
}

func TestCreateFromProducts(t *testing.T) {
	f := newAppFixture(t)

	result := f.createOrder(t)
	require.NotNil(t, result.Order)
	assert.True(t, strings.HasPrefix(result.Order.OrderNumber, "BULK-"))
	assert.Equal(t, models.PriorityHigh, result.Order.Priority)
	// 40 * 2.25 + 5 * 3.60 = 108.00, tax 25.92
	assert.True(t, result.Summary.Subtotal.Equal(decimal.RequireFromString("108.00")), result.Summary.Subtotal.String())
	assert.True(t, result.Summary.TotalAmount.Equal(decimal.RequireFromString("133.92")), result.Summary.TotalAmount.String())
}

func TestCreateFromProducts_InvalidBody(t *testing.T) {
	f := newAppFixture(t)

	w := f.do(t, http.MethodPost, "/b2b/bulk-orders", []byte(`{"products":`), "application/json", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/b2b/bulk-orders", []byte(`{"products":[],"priority":"asap"}`), "application/json", true)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Contains(t, resp.Details, "priority")
	assert.NotEmpty(t, resp.RequestID)
}

func TestImportCSV(t *testing.T) {
	f := newAppFixture(t)

	body, contentType := multipartCSV(t, "october.csv",
		"product_sku,quantity,notes\nPROD-001,40,Extra ripe\nPROD-002,20\nPROD-002,5,\n",
		map[string]string{"priority": "urgent", "delivery_date": nextWeek()})
	w := f.do(t, http.MethodPost, "/b2b/bulk-orders/csv", body, contentType, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result models.BulkOrderResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotNil(t, result.Order.BulkDetail)
	assert.Equal(t, models.SourceCSV, result.Order.BulkDetail.Source)
	assert.Equal(t, "october.csv", result.Order.BulkDetail.OriginalFilename)
	assert.Equal(t, models.PriorityUrgent, result.Order.Priority)
	require.Len(t, result.SkippedRows, 1)
	assert.Equal(t, 3, result.SkippedRows[0].RowNumber)
	assert.Len(t, result.Order.Items, 2)
}

func TestImportCSV_RejectsWholeFile(t *testing.T) {
	f := newAppFixture(t)

	body, contentType := multipartCSV(t, "bad.csv", "product_sku,quantity\nPROD-001,10\nPROD-999,1\n", nil)
	w := f.do(t, http.MethodPost, "/b2b/bulk-orders/csv", body, contentType, true)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, "IMPORT_VALIDATION_ERROR", resp.Code)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, 3, resp.Rows[0].RowNumber)

	orders, _, _ := f.store.Counts()
	assert.Zero(t, orders)
}

func TestImportCSV_MissingFile(t *testing.T) {
	f := newAppFixture(t)

	w := f.do(t, http.MethodPost, "/b2b/bulk-orders/csv", []byte(`{}`), "application/json", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "IMPORT_FORMAT_ERROR", decodeError(t, w).Code)
}

func TestValidatePreview(t *testing.T) {
	f := newAppFixture(t)

	body, contentType := multipartCSV(t, "preview.csv", "product_sku,quantity\nPROD-001,10\nPROD-002,50\n", nil)
	w := f.do(t, http.MethodPost, "/b2b/bulk-orders/validate", body, contentType, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report models.ValidationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.Valid)
	assert.Equal(t, []string{"Row 3: Insufficient stock for Fresh Basil (available: 12)"}, report.Warnings)

	jsonBody := fmt.Sprintf(`{"products":[{"product_id":%d,"quantity":10},{"product_id":9999,"quantity":1}]}`, f.tomatoes.ID)
	w = f.do(t, http.MethodPost, "/b2b/bulk-orders/validate", []byte(jsonBody), "application/json", true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.False(t, report.Valid)
	assert.Contains(t, report.Errors, "Product ID 9999 not found")

	orders, _, _ := f.store.Counts()
	assert.Zero(t, orders)
}

func TestDriveImportWithoutCredentials(t *testing.T) {
	f := newAppFixture(t)

	w := f.do(t, http.MethodPost, "/b2b/bulk-orders/drive", []byte(`{"file_id":"abc"}`), "application/json", true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, w).Code)
}

func TestGetAndCancelOrder(t *testing.T) {
	f := newAppFixture(t)
	result := f.createOrder(t)
	path := fmt.Sprintf("/b2b/orders/%d", result.Order.ID)

	w := f.do(t, http.MethodGet, path, nil, "", true)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, path+"/cancel", nil, "", true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, models.OrderStatusCancelled, order.Status)

	w = f.do(t, http.MethodPost, path+"/cancel", nil, "", true)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, fmt.Sprintf("/admin/orders/%d/fulfill", result.Order.ID), nil, "", false)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, "/b2b/orders/abc", nil, "", true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestConfirmation(t *testing.T) {
	f := newAppFixture(t)
	result := f.createOrder(t)
	path := fmt.Sprintf("/b2b/orders/%d/confirmation", result.Order.ID)

	w := f.do(t, http.MethodGet, path, nil, "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), result.Order.OrderNumber)

	// no PDF renderer configured
	w = f.do(t, http.MethodGet, path+"?format=pdf", nil, "", true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = f.do(t, http.MethodGet, path+"?format=docx", nil, "", true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestFulfillAndInventoryReports(t *testing.T) {
	f := newAppFixture(t)
	result := f.createOrder(t)

	w := f.do(t, http.MethodPost, fmt.Sprintf("/admin/orders/%d/fulfill", result.Order.ID), nil, "", false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var reconciled models.ReconciliationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reconciled))
	assert.Len(t, reconciled.Adjustments, 2)
	// basil 12 - 5 = 7 is under the default threshold of 10
	require.Len(t, reconciled.Signals, 1)
	assert.Equal(t, f.basil.ID, reconciled.Signals[0].ProductID)

	w = f.do(t, http.MethodPost, fmt.Sprintf("/admin/orders/%d/fulfill", result.Order.ID), nil, "", false)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, "/admin/inventory/alerts", nil, "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = f.do(t, http.MethodGet, "/admin/inventory/analytics", nil, "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var analytics models.InventoryAnalytics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analytics))
	assert.Equal(t, 2, analytics.TotalProducts)
	assert.Equal(t, 1, analytics.LowStockProducts)

	w = f.do(t, http.MethodGet, "/admin/inventory/reorder-suggestions", nil, "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var report models.ReorderReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, len(report.Suggestions), report.Summary.TotalSuggestions)
}

func TestBuild_InvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.ForecastSchedule = "every morning"

	_, _, err := Build(cfg, Components{Store: memory.NewStore()}, logging.Nop())
	assert.Error(t, err)
}
