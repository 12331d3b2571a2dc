//go:build integration

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"dixis-bulk-orders/db"
	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/models"
)

type PostgresStoreIntegrationTestSuite struct {
	suite.Suite
	container testcontainers.Container
	conn      *sql.DB
	store     *PostgresStore
	ctx       context.Context
	accountID int64
	productID int64
}

func (s *PostgresStoreIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "bulk_orders",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	s.Require().NoError(err)
	s.container = container

	host, err := container.Host(s.ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(s.ctx, "5432")
	s.Require().NoError(err)

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/bulk_orders?sslmode=disable", host, port.Port())
	logger := logging.Nop()
	s.conn, err = db.Open(s.ctx, connStr, logger)
	s.Require().NoError(err)
	s.Require().NoError(db.Migrate(s.ctx, s.conn))

	s.store = NewPostgresStore(s.conn, 5*time.Second, logger)
}

func (s *PostgresStoreIntegrationTestSuite) TearDownSuite() {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresStoreIntegrationTestSuite) SetupTest() {
	_, err := s.conn.ExecContext(s.ctx, `
		TRUNCATE stock_adjustments, bulk_order_details, order_items, orders, products,
		         business_accounts, order_number_sequences RESTART IDENTITY CASCADE
	`)
	s.Require().NoError(err)

	s.Require().NoError(s.conn.QueryRowContext(s.ctx, `
		INSERT INTO business_accounts (tenant_id, business_name, discount_percentage, credit_limit)
		VALUES (1, 'Taverna Nikos', 10, 1000) RETURNING id
	`).Scan(&s.accountID))
	s.Require().NoError(s.conn.QueryRowContext(s.ctx, `
		INSERT INTO products (tenant_id, sku, name, price, b2b_available, stock)
		VALUES (1, 'PROD-001', 'Organic Tomatoes', 2.50, TRUE, 100) RETURNING id
	`).Scan(&s.productID))
}

func (s *PostgresStoreIntegrationTestSuite) TestLookups() {
	p, err := s.store.FindProductBySKU(s.ctx, 1, "PROD-001")
	s.Require().NoError(err)
	s.Equal(s.productID, p.ID)
	s.True(p.Price.Equal(decimal.RequireFromString("2.50")))
	s.Nil(p.LowStockThreshold)

	p, err = s.store.FindProductByName(s.ctx, 1, "TOMATO")
	s.Require().NoError(err)
	s.Equal(s.productID, p.ID)

	var cherryID int64
	s.Require().NoError(s.conn.QueryRowContext(s.ctx, `
		INSERT INTO products (tenant_id, sku, name, price, b2b_available, stock)
		VALUES (1, 'PROD-009', 'Cherry Tomatoes', 3.00, TRUE, 10) RETURNING id
	`).Scan(&cherryID))
	_, err = s.conn.ExecContext(s.ctx, `UPDATE products SET is_active = FALSE WHERE id = $1`, s.productID)
	s.Require().NoError(err)
	p, err = s.store.FindProductByName(s.ctx, 1, "tomatoes")
	s.Require().NoError(err)
	s.Equal(cherryID, p.ID)

	_, err = s.store.FindProductBySKU(s.ctx, 2, "PROD-001")
	s.ErrorIs(err, ErrNotFound)

	account, err := s.store.GetBusinessAccount(s.ctx, 1, s.accountID)
	s.Require().NoError(err)
	s.True(account.AvailableCredit().Equal(decimal.NewFromInt(1000)))
}

func (s *PostgresStoreIntegrationTestSuite) TestOrderRoundTripAndRollback() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	var orderID int64

	err := s.store.WithTx(s.ctx, func(tx TxInterface) error {
		seq, err := tx.NextOrderSequence(s.ctx, "BULK", now.Format("20060102"))
		if err != nil {
			return err
		}
		order := &models.Order{
			TenantID:          1,
			BusinessAccountID: s.accountID,
			OrderNumber:       fmt.Sprintf("BULK-%s-%04d", now.Format("20060102"), seq),
			Status:            models.OrderStatusPendingApproval,
			Subtotal:          decimal.RequireFromString("22.50"),
			TaxAmount:         decimal.RequireFromString("5.40"),
			TotalAmount:       decimal.RequireFromString("27.90"),
			Currency:          "EUR",
			IsBulkOrder:       true,
			Priority:          models.PriorityNormal,
			CreatedAt:         now,
		}
		if err := tx.InsertOrder(s.ctx, order); err != nil {
			return err
		}
		orderID = order.ID
		item := &models.OrderItem{OrderID: order.ID, ProductID: s.productID, Quantity: 10,
			UnitPrice: decimal.RequireFromString("2.25"), LineTotal: decimal.RequireFromString("22.50")}
		if err := tx.InsertOrderItem(s.ctx, item); err != nil {
			return err
		}
		return tx.InsertBulkOrderDetail(s.ctx, &models.BulkOrderDetail{OrderID: order.ID, Source: models.SourceManual,
			TotalProducts: 1, TotalQuantity: 10})
	})
	s.Require().NoError(err)

	order, err := s.store.GetOrder(s.ctx, 1, orderID)
	s.Require().NoError(err)
	s.Equal(fmt.Sprintf("BULK-%s-0001", now.Format("20060102")), order.OrderNumber)
	s.Require().Len(order.Items, 1)
	s.Equal("PROD-001", order.Items[0].ProductSKU)
	s.True(order.Items[0].LineTotal.Equal(order.Subtotal))
	s.Require().NotNil(order.BulkDetail)
	s.Equal(10, order.BulkDetail.TotalQuantity)

	// a failing insert rolls back the header and gives the sequence back
	err = s.store.WithTx(s.ctx, func(tx TxInterface) error {
		if _, err := tx.NextOrderSequence(s.ctx, "BULK", now.Format("20060102")); err != nil {
			return err
		}
		return tx.InsertOrderItem(s.ctx, &models.OrderItem{OrderID: 999999, ProductID: s.productID, Quantity: 1})
	})
	s.Error(err)

	var count int
	s.Require().NoError(s.conn.QueryRowContext(s.ctx, `SELECT COUNT(*) FROM orders`).Scan(&count))
	s.Equal(1, count)
	var last int
	s.Require().NoError(s.conn.QueryRowContext(s.ctx, `SELECT last_seq FROM order_number_sequences`).Scan(&last))
	s.Equal(1, last)
}

func (s *PostgresStoreIntegrationTestSuite) TestConcurrentSequencesAreDistinct() {
	const n = 10
	seqs := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.store.WithTx(s.ctx, func(tx TxInterface) error {
				var err error
				seqs[i], err = tx.NextOrderSequence(s.ctx, "BULK", "20261017")
				return err
			})
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, seq := range seqs {
		s.False(seen[seq], "duplicate sequence %d", seq)
		seen[seq] = true
	}
	s.Len(seen, n)
}

func (s *PostgresStoreIntegrationTestSuite) TestStockUpdateAndAdjustments() {
	now := time.Now().UTC()
	err := s.store.WithTx(s.ctx, func(tx TxInterface) error {
		p, err := tx.LockProduct(s.ctx, 1, s.productID)
		if err != nil {
			return err
		}
		if err := tx.UpdateProductStock(s.ctx, 1, p.ID, p.Stock-30); err != nil {
			return err
		}
		return tx.InsertStockAdjustment(s.ctx, &models.StockAdjustment{TenantID: 1, ProductID: p.ID,
			OldStock: p.Stock, NewStock: p.Stock - 30, Delta: -30, Reason: models.StockAdjustmentReasonFulfillment,
			CreatedAt: now})
	})
	s.Require().NoError(err)

	p, err := s.store.GetProduct(s.ctx, 1, s.productID)
	s.Require().NoError(err)
	s.Equal(70, p.Stock)

	adjustments, err := s.store.ListStockAdjustments(s.ctx, 1, s.productID)
	s.Require().NoError(err)
	s.Require().Len(adjustments, 1)
	s.Equal(-30, adjustments[0].Delta)
}

func TestPostgresStoreIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreIntegrationTestSuite))
}
