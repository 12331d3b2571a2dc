package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/metrics"
	"dixis-bulk-orders/models"
	"dixis-bulk-orders/repository"
)

// Forecast parameters
const (
	SalesWindowDays      = 30
	SafetyStockDays      = 7
	ForecastHorizonDays  = 14
	HighPriorityDays     = 7
	MinReorderQuantity   = 10
	NoStockoutDays       = 999 // sentinel when nothing sold in the window
	salesVelocityDecimal = 4
)

// ReorderForecaster suggests reorders for products that will run out within
// the forecast horizon. It only reads order history and stock.
type ReorderForecaster struct {
	store   repository.ReaderInterface
	metrics *metrics.Metrics
	logger  *logging.Logger
	now     func() time.Time
}

// Ensure ReorderForecaster implements ReorderForecasterInterface
var _ ReorderForecasterInterface = (*ReorderForecaster)(nil)

// NewReorderForecaster creates a new ReorderForecaster instance
func NewReorderForecaster(store repository.ReaderInterface, m *metrics.Metrics, logger *logging.Logger, now func() time.Time) *ReorderForecaster {
	if logger == nil {
		logger = logging.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &ReorderForecaster{
		store:   store,
		metrics: m,
		logger:  logger.WithComponent("reorder_forecaster"),
		now:     now,
	}
}

// Forecast computes suggestions for every active product of the tenant,
// high priority first, then by days until stockout
func (f *ReorderForecaster) Forecast(ctx context.Context, rc models.RequestContext) (*models.ReorderReport, error) {
	now := f.now().UTC()
	logger := f.logger.WithOperation("forecast").WithFields(map[string]any{"tenantId": rc.TenantID})

	products, err := f.store.ListActiveProducts(ctx, rc.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	sold, err := f.store.UnitsSoldSince(ctx, rc.TenantID, now.AddDate(0, 0, -SalesWindowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to load sales history: %w", err)
	}

	report := &models.ReorderReport{
		Suggestions: []models.ReorderSuggestion{},
		GeneratedAt: now,
	}
	var ranked []rankedSuggestion
	for _, p := range products {
		suggestion, ok := ComputeSuggestion(p, sold[p.ID])
		if !ok {
			continue
		}
		ranked = append(ranked, rankedSuggestion{suggestion: suggestion, unitsSold: sold[p.ID]})
		if suggestion.Priority == models.ReorderPriorityHigh {
			report.Summary.HighPriority++
		} else {
			report.Summary.MediumPriority++
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].before(ranked[j])
	})
	for _, r := range ranked {
		report.Suggestions = append(report.Suggestions, r.suggestion)
	}
	report.Summary.TotalSuggestions = len(report.Suggestions)

	f.metrics.SetReorderSuggestions(report.Summary.HighPriority, report.Summary.MediumPriority)
	logger.Info("✓ Reorder forecast computed",
		"products", len(products),
		"suggestions", report.Summary.TotalSuggestions,
		"highPriority", report.Summary.HighPriority,
	)
	return report, nil
}

type rankedSuggestion struct {
	suggestion models.ReorderSuggestion
	unitsSold  int
}

// before orders high priority first, then by the exact stock/velocity ratio.
// DaysUntilStockout is rounded up and cannot separate 7.2 from 7.8 days.
func (r rankedSuggestion) before(other rankedSuggestion) bool {
	if r.suggestion.Priority != other.suggestion.Priority {
		return r.suggestion.Priority == models.ReorderPriorityHigh
	}
	// stock/sold < otherStock/otherSold, both sold counts are positive here
	return r.suggestion.CurrentStock*other.unitsSold < other.suggestion.CurrentStock*r.unitsSold
}

// ComputeSuggestion derives the suggestion for one product from the units sold
// in the sales window. ok is false when the product does not need a reorder.
func ComputeSuggestion(p models.Product, unitsSold int) (models.ReorderSuggestion, bool) {
	days := DaysUntilStockout(p.Stock, unitsSold)
	if days <= 0 || days > ForecastHorizonDays {
		return models.ReorderSuggestion{}, false
	}

	priority := models.ReorderPriorityMedium
	if days <= HighPriorityDays {
		priority = models.ReorderPriorityHigh
	}

	return models.ReorderSuggestion{
		ProductID:         p.ID,
		SKU:               p.SKU,
		Name:              p.Name,
		CurrentStock:      p.Stock,
		SalesVelocity:     decimal.NewFromInt(int64(unitsSold)).DivRound(decimal.NewFromInt(SalesWindowDays), salesVelocityDecimal),
		DaysUntilStockout: days,
		SuggestedQuantity: SuggestedQuantity(unitsSold),
		Priority:          priority,
	}, true
}

// DaysUntilStockout is ceil(stock / velocity) with velocity = unitsSold / 30,
// or NoStockoutDays when nothing was sold
func DaysUntilStockout(stock, unitsSold int) int {
	if unitsSold <= 0 {
		return NoStockoutDays
	}
	if stock <= 0 {
		return 0
	}
	return ceilDiv(stock*SalesWindowDays, unitsSold)
}

// SuggestedQuantity covers 30 days plus 7 days of safety stock, at least MinReorderQuantity
func SuggestedQuantity(unitsSold int) int {
	qty := ceilDiv(unitsSold*(SalesWindowDays+SafetyStockDays), SalesWindowDays)
	if qty < MinReorderQuantity {
		return MinReorderQuantity
	}
	return qty
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
