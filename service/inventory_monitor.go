package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/models"
	"dixis-bulk-orders/repository"
)

// TopSellingLimit is the number of products listed in analytics
const TopSellingLimit = 10

// InventoryMonitor reports stock alerts and inventory analytics
type InventoryMonitor struct {
	store            repository.ReaderInterface
	logger           *logging.Logger
	now              func() time.Time
	defaultThreshold int
}

// Ensure InventoryMonitor implements InventoryMonitorInterface
var _ InventoryMonitorInterface = (*InventoryMonitor)(nil)

// NewInventoryMonitor creates a new InventoryMonitor instance
func NewInventoryMonitor(store repository.ReaderInterface, defaultThreshold int, logger *logging.Logger, now func() time.Time) *InventoryMonitor {
	if logger == nil {
		logger = logging.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &InventoryMonitor{
		store:            store,
		logger:           logger.WithComponent("inventory_monitor"),
		now:              now,
		defaultThreshold: defaultThreshold,
	}
}

// MonitorStockLevels lists low-stock warnings and out-of-stock criticals for active
// products. A product at zero stock gets both alerts.
func (m *InventoryMonitor) MonitorStockLevels(ctx context.Context, rc models.RequestContext) ([]models.StockAlert, error) {
	products, err := m.store.ListActiveProducts(ctx, rc.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	var lowStock, outOfStock []models.StockAlert
	for _, p := range products {
		threshold := p.Threshold(m.defaultThreshold)
		if p.Stock <= threshold {
			lowStock = append(lowStock, models.StockAlert{
				Type:         models.AlertLowStock,
				Severity:     models.SeverityWarning,
				ProductID:    p.ID,
				SKU:          p.SKU,
				Name:         p.Name,
				CurrentStock: p.Stock,
				Threshold:    threshold,
				Message:      fmt.Sprintf("%s is low on stock (%d left, threshold %d)", p.Name, p.Stock, threshold),
			})
		}
		if p.Stock <= 0 {
			outOfStock = append(outOfStock, models.StockAlert{
				Type:         models.AlertOutOfStock,
				Severity:     models.SeverityCritical,
				ProductID:    p.ID,
				SKU:          p.SKU,
				Name:         p.Name,
				CurrentStock: p.Stock,
				Threshold:    threshold,
				Message:      fmt.Sprintf("%s is out of stock", p.Name),
			})
		}
	}

	alerts := append(lowStock, outOfStock...)
	if alerts == nil {
		alerts = []models.StockAlert{}
	}

	m.logger.WithOperation("monitor_stock_levels").Info("📦 Stock levels checked",
		"tenantId", rc.TenantID,
		"lowStock", len(lowStock),
		"outOfStock", len(outOfStock),
	)
	return alerts, nil
}

// Analytics summarizes stock health and the best sellers of the last 30 days
func (m *InventoryMonitor) Analytics(ctx context.Context, rc models.RequestContext) (*models.InventoryAnalytics, error) {
	products, err := m.store.ListActiveProducts(ctx, rc.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	sold, err := m.store.UnitsSoldSince(ctx, rc.TenantID, m.now().UTC().AddDate(0, 0, -SalesWindowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to load sales history: %w", err)
	}

	analytics := &models.InventoryAnalytics{
		TotalProducts:         len(products),
		StockHealthPercentage: decimal.Zero,
		TotalInventoryValue:   decimal.Zero,
		TopSellingProducts:    []models.ProductSales{},
	}
	for _, p := range products {
		if p.Stock <= p.Threshold(m.defaultThreshold) {
			analytics.LowStockProducts++
		}
		if p.Stock <= 0 {
			analytics.OutOfStockProducts++
		}
		if p.Stock > 0 {
			analytics.TotalInventoryValue = analytics.TotalInventoryValue.Add(p.Price.Mul(decimal.NewFromInt(int64(p.Stock))))
		}
		if units := sold[p.ID]; units > 0 {
			analytics.TopSellingProducts = append(analytics.TopSellingProducts, models.ProductSales{
				ProductID: p.ID,
				SKU:       p.SKU,
				Name:      p.Name,
				UnitsSold: units,
			})
		}
	}

	if len(products) > 0 {
		healthy := len(products) - analytics.LowStockProducts
		analytics.StockHealthPercentage = decimal.NewFromInt(int64(healthy)).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(int64(len(products))), 2)
	}
	analytics.TotalInventoryValue = analytics.TotalInventoryValue.Round(2)

	sort.SliceStable(analytics.TopSellingProducts, func(i, j int) bool {
		a, b := analytics.TopSellingProducts[i], analytics.TopSellingProducts[j]
		if a.UnitsSold != b.UnitsSold {
			return a.UnitsSold > b.UnitsSold
		}
		return a.ProductID < b.ProductID
	})
	if len(analytics.TopSellingProducts) > TopSellingLimit {
		analytics.TopSellingProducts = analytics.TopSellingProducts[:TopSellingLimit]
	}
	return analytics, nil
}
