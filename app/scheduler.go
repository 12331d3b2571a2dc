package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron"

	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/models"
	"dixis-bulk-orders/service"
)

const scheduledRunTimeout = 2 * time.Minute

// Scheduler runs the reorder forecast and the stock monitor on a cron schedule
type Scheduler struct {
	cron       *cron.Cron
	forecaster service.ReorderForecasterInterface
	monitor    service.InventoryMonitorInterface
	tenants    []int64
	logger     *logging.Logger
}

// NewScheduler registers the inventory job. spec uses the six-field format with seconds.
func NewScheduler(spec string, tenants []int64, forecaster service.ReorderForecasterInterface, monitor service.InventoryMonitorInterface, logger *logging.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(),
		forecaster: forecaster,
		monitor:    monitor,
		tenants:    tenants,
		logger:     logger.WithComponent("scheduler"),
	}
	if err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid forecast schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start starts the cron loop in its own goroutine
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler", "tenants", len(s.tenants))
	s.cron.Start()
}

// Stop stops scheduling new runs; a run in progress is not interrupted
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce forecasts reorders and checks stock levels for every scheduled tenant
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledRunTimeout)
	defer cancel()

	for _, tenantID := range s.tenants {
		rc := models.RequestContext{TenantID: tenantID, RequestID: uuid.NewString(), ActorID: "scheduler"}
		logger := s.logger.WithFields(map[string]any{"tenantId": tenantID, "requestId": rc.RequestID})

		report, err := s.forecaster.Forecast(ctx, rc)
		if err != nil {
			logger.Error("❌ Error running reorder forecast", "error", err)
		} else {
			logger.Info("📦 Reorder forecast completed",
				"suggestions", report.Summary.TotalSuggestions,
				"high", report.Summary.HighPriority,
				"medium", report.Summary.MediumPriority,
			)
		}

		alerts, err := s.monitor.MonitorStockLevels(ctx, rc)
		if err != nil {
			logger.Error("❌ Error monitoring stock levels", "error", err)
			continue
		}
		if len(alerts) > 0 {
			logger.Warn("⚠️ Stock alerts raised", "alerts", len(alerts))
		}
	}
}
