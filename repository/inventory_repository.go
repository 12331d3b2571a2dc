package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dixis-bulk-orders/models"
)

// InsertStockAdjustment appends a stock history entry and sets its ID
func (t *pgTx) InsertStockAdjustment(ctx context.Context, adj *models.StockAdjustment) error {
	query := `
		INSERT INTO stock_adjustments (tenant_id, product_id, old_stock, new_stock, delta, reason, related_order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var relatedOrder sql.NullInt64
	if adj.RelatedOrderID != nil {
		relatedOrder = sql.NullInt64{Int64: *adj.RelatedOrderID, Valid: true}
	}

	err := t.q.QueryRowContext(ctx, query,
		adj.TenantID,
		adj.ProductID,
		adj.OldStock,
		adj.NewStock,
		adj.Delta,
		adj.Reason,
		relatedOrder,
		adj.CreatedAt,
	).Scan(&adj.ID)
	if err != nil {
		t.logger.Error("❌ Error inserting stock adjustment", "productId", adj.ProductID, "error", err)
		return fmt.Errorf("failed to insert stock adjustment: %w", mapError(err))
	}
	return nil
}

// ListStockAdjustments lists a product's stock history, oldest first
func (r *queries) ListStockAdjustments(ctx context.Context, tenantID, productID int64) ([]models.StockAdjustment, error) {
	query := `
		SELECT id, tenant_id, product_id, old_stock, new_stock, delta, reason, related_order_id, created_at
		FROM stock_adjustments
		WHERE tenant_id = $1 AND product_id = $2
		ORDER BY id
	`
	rows, err := r.q.QueryContext(ctx, query, tenantID, productID)
	if err != nil {
		r.logger.Error("❌ Error listing stock adjustments", "productId", productID, "error", err)
		return nil, fmt.Errorf("failed to list stock adjustments: %w", mapError(err))
	}
	defer rows.Close()

	var adjustments []models.StockAdjustment
	for rows.Next() {
		var adj models.StockAdjustment
		var relatedOrder sql.NullInt64
		if err := rows.Scan(
			&adj.ID,
			&adj.TenantID,
			&adj.ProductID,
			&adj.OldStock,
			&adj.NewStock,
			&adj.Delta,
			&adj.Reason,
			&relatedOrder,
			&adj.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock adjustment: %w", err)
		}
		if relatedOrder.Valid {
			id := relatedOrder.Int64
			adj.RelatedOrderID = &id
		}
		adjustments = append(adjustments, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock adjustments: %w", err)
	}
	return adjustments, nil
}

// UnitsSoldSince sums order item quantities per product for non-cancelled orders
func (r *queries) UnitsSoldSince(ctx context.Context, tenantID int64, since time.Time) (map[int64]int, error) {
	query := `
		SELECT oi.product_id, SUM(oi.quantity)
		FROM order_items oi
		INNER JOIN orders o ON o.id = oi.order_id
		WHERE o.tenant_id = $1 AND o.created_at >= $2 AND o.status <> $3
		GROUP BY oi.product_id
	`
	rows, err := r.q.QueryContext(ctx, query, tenantID, since, models.OrderStatusCancelled)
	if err != nil {
		r.logger.Error("❌ Error summing units sold", "tenantId", tenantID, "error", err)
		return nil, fmt.Errorf("failed to sum units sold: %w", mapError(err))
	}
	defer rows.Close()

	sold := make(map[int64]int)
	for rows.Next() {
		var productID int64
		var units int
		if err := rows.Scan(&productID, &units); err != nil {
			return nil, fmt.Errorf("failed to scan units sold: %w", err)
		}
		sold[productID] = units
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating units sold: %w", err)
	}
	return sold, nil
}
