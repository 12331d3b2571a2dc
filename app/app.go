package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"dixis-bulk-orders/app/controller"
	"dixis-bulk-orders/app/router"
	"dixis-bulk-orders/config"
	"dixis-bulk-orders/db"
	"dixis-bulk-orders/document"
	"dixis-bulk-orders/events"
	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/metrics"
	"dixis-bulk-orders/pricing"
	"dixis-bulk-orders/repository"
	"dixis-bulk-orders/service"
)

// App holds the wired application
type App struct {
	Router *gin.Engine

	logger    *logging.Logger
	conn      *sql.DB
	producer  *events.Producer
	consumer  *events.FulfillmentConsumer
	scheduler *Scheduler
	wg        sync.WaitGroup
}

// Components are the collaborators Build wires together.
// Drive and PDF are optional.
type Components struct {
	Store    repository.StoreInterface
	Drive    service.DriveServiceInterface
	PDF      document.PDFRenderer
	Audit    service.AuditSink
	Notifier service.LowStockNotifier
	Metrics  *metrics.Metrics
}

// Initialize connects to the database and the optional external services and wires the application
func Initialize(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	conn, err := db.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	m := metrics.New("bulk_orders")
	comps := Components{
		Store:   repository.NewPostgresStore(conn, cfg.StoreTimeout, logger),
		PDF:     document.NewChromeRenderer(cfg.ChromePath, 0),
		Metrics: m,
	}

	if cfg.GoogleCredentialsPath != "" {
		driveService, err := service.NewDriveService(ctx, cfg.GoogleCredentialsPath)
		if err != nil {
			conn.Close()
			return nil, err
		}
		comps.Drive = driveService
	} else {
		logger.Warn("⚠️ GOOGLE_APPLICATION_CREDENTIALS is not set, Drive import is disabled")
	}

	var producer *events.Producer
	if cfg.Kafka.Enabled() {
		producer = events.NewProducer(cfg.Kafka, m, logger)
		comps.Audit = producer
		comps.Notifier = producer
	} else {
		logger.Warn("⚠️ KAFKA_BROKERS is not set, audit entries and low-stock signals are only logged")
	}

	a, reconciler, err := Build(cfg, comps, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	a.conn = conn
	a.producer = producer
	if cfg.Kafka.Enabled() {
		a.consumer = events.NewFulfillmentConsumer(cfg.Kafka, reconciler, logger)
	}
	return a, nil
}

// Build wires services, controllers, routes and the scheduler around the given components
func Build(cfg *config.Config, comps Components, logger *logging.Logger) (*App, service.InventoryReconcilerInterface, error) {
	engine, err := pricing.NewEngine(cfg.TaxRate, cfg.Currency)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pricing engine: %w", err)
	}

	bulkOrders := service.NewBulkOrderService(service.BulkOrderDeps{
		Store:             comps.Store,
		Pricing:           engine,
		Audit:             comps.Audit,
		Drive:             comps.Drive,
		Documents:         document.NewConfirmationService(comps.PDF, cfg.TaxRate),
		Metrics:           comps.Metrics,
		Logger:            logger,
		OrderNumberPrefix: cfg.OrderNumberPrefix,
		MaxImportRows:     cfg.MaxImportRows,
	})
	reconciler := service.NewInventoryReconciler(service.ReconcilerDeps{
		Store:                    comps.Store,
		Notifier:                 comps.Notifier,
		Metrics:                  comps.Metrics,
		Logger:                   logger,
		DefaultLowStockThreshold: cfg.DefaultLowStockThreshold,
		MaxAttempts:              cfg.ReconcileMaxAttempts,
	})
	forecaster := service.NewReorderForecaster(comps.Store, comps.Metrics, logger, nil)
	monitor := service.NewInventoryMonitor(comps.Store, cfg.DefaultLowStockThreshold, logger, nil)

	scheduler, err := NewScheduler(cfg.ForecastSchedule, cfg.ScheduledTenants, forecaster, monitor, logger)
	if err != nil {
		return nil, nil, err
	}

	controllers := &router.Controllers{
		BulkOrder: controller.NewBulkOrderController(bulkOrders, logger),
		Inventory: controller.NewInventoryController(reconciler, forecaster, monitor, logger),
	}

	var metricsHandler http.Handler
	if comps.Metrics != nil {
		metricsHandler = comps.Metrics.Handler()
	}

	return &App{
		Router:    router.SetupRoutes(controllers, metricsHandler, logger),
		logger:    logger,
		scheduler: scheduler,
	}, reconciler, nil
}

// Start runs the fulfillment consumer and the scheduler until ctx is cancelled
func (a *App) Start(ctx context.Context) {
	if a.consumer != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.consumer.Run(ctx); err != nil {
				a.logger.Error("❌ Fulfillment consumer stopped", "error", err)
			}
		}()
	}
	a.scheduler.Start()
}

// Close stops background work and releases connections
func (a *App) Close() error {
	a.scheduler.Stop()
	a.wg.Wait()

	var errs []error
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
