package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dixis-bulk-orders/models"
)

const selectOrder = `
	SELECT id, tenant_id, business_account_id, order_number, status, subtotal, tax_amount, total_amount,
	       currency, is_bulk_order, priority, delivery_date, notes, created_at, inventory_reconciled_at
	FROM orders
	WHERE tenant_id = $1 AND id = $2
`

// NextOrderSequence increments the per prefix+day counter. The upsert takes a
// row lock, so concurrent transactions for the same day are serialized and a
// rolled back transaction gives its number back.
func (t *pgTx) NextOrderSequence(ctx context.Context, prefix, day string) (int, error) {
	query := `
		INSERT INTO order_number_sequences (prefix, day, last_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, day)
		DO UPDATE SET last_seq = order_number_sequences.last_seq + 1
		RETURNING last_seq
	`
	var seq int
	if err := t.q.QueryRowContext(ctx, query, prefix, day).Scan(&seq); err != nil {
		t.logger.Error("❌ Error generating order sequence", "prefix", prefix, "day", day, "error", err)
		return 0, fmt.Errorf("failed to generate order sequence: %w", mapError(err))
	}
	return seq, nil
}

// InsertOrder inserts the order header and sets its ID
func (t *pgTx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (tenant_id, business_account_id, order_number, status, subtotal, tax_amount,
		                    total_amount, currency, is_bulk_order, priority, delivery_date, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	var deliveryDate sql.NullTime
	if order.DeliveryDate != nil {
		deliveryDate = sql.NullTime{Time: *order.DeliveryDate, Valid: true}
	}

	err := t.q.QueryRowContext(ctx, query,
		order.TenantID,
		order.BusinessAccountID,
		order.OrderNumber,
		order.Status,
		order.Subtotal,
		order.TaxAmount,
		order.TotalAmount,
		order.Currency,
		order.IsBulkOrder,
		order.Priority,
		deliveryDate,
		nullString(order.Notes),
		order.CreatedAt,
	).Scan(&order.ID)
	if err != nil {
		t.logger.Error("❌ Error inserting order", "orderNumber", order.OrderNumber, "error", err)
		if isUniqueViolation(err) {
			return fmt.Errorf("order number %s already taken: %w", order.OrderNumber, ErrSerialization)
		}
		return fmt.Errorf("failed to insert order: %w", mapError(err))
	}
	return nil
}

// InsertOrderItem inserts one line of an order and sets its ID
func (t *pgTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, line_total, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := t.q.QueryRowContext(ctx, query,
		item.OrderID,
		item.ProductID,
		item.Quantity,
		item.UnitPrice,
		item.LineTotal,
		nullString(item.Notes),
	).Scan(&item.ID)
	if err != nil {
		t.logger.Error("❌ Error inserting order item", "orderId", item.OrderID, "productId", item.ProductID, "error", err)
		return fmt.Errorf("failed to insert order item: %w", mapError(err))
	}
	return nil
}

// InsertBulkOrderDetail inserts the 1:1 bulk detail of an order and sets its ID
func (t *pgTx) InsertBulkOrderDetail(ctx context.Context, detail *models.BulkOrderDetail) error {
	query := `
		INSERT INTO bulk_order_details (order_id, source, original_filename, total_products, total_quantity, processing_notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := t.q.QueryRowContext(ctx, query,
		detail.OrderID,
		detail.Source,
		nullString(detail.OriginalFilename),
		detail.TotalProducts,
		detail.TotalQuantity,
		nullString(detail.ProcessingNotes),
	).Scan(&detail.ID)
	if err != nil {
		t.logger.Error("❌ Error inserting bulk order detail", "orderId", detail.OrderID, "error", err)
		return fmt.Errorf("failed to insert bulk order detail: %w", mapError(err))
	}
	return nil
}

// GetOrder retrieves an order with its items and bulk detail
func (r *queries) GetOrder(ctx context.Context, tenantID, orderID int64) (*models.Order, error) {
	return r.getOrder(ctx, selectOrder, tenantID, orderID)
}

// LockOrder reads an order under FOR UPDATE, with its items and bulk detail
func (t *pgTx) LockOrder(ctx context.Context, tenantID, orderID int64) (*models.Order, error) {
	return t.getOrder(ctx, selectOrder+" FOR UPDATE", tenantID, orderID)
}

func (r *queries) getOrder(ctx context.Context, query string, tenantID, orderID int64) (*models.Order, error) {
	var order models.Order
	var deliveryDate, reconciledAt sql.NullTime
	var notes sql.NullString

	err := r.q.QueryRowContext(ctx, query, tenantID, orderID).Scan(
		&order.ID,
		&order.TenantID,
		&order.BusinessAccountID,
		&order.OrderNumber,
		&order.Status,
		&order.Subtotal,
		&order.TaxAmount,
		&order.TotalAmount,
		&order.Currency,
		&order.IsBulkOrder,
		&order.Priority,
		&deliveryDate,
		&notes,
		&order.CreatedAt,
		&reconciledAt,
	)
	if err != nil {
		err = mapError(err)
		if !errors.Is(err, ErrNotFound) {
			r.logger.Error("❌ Error fetching order", "orderId", orderID, "error", err)
		}
		return nil, fmt.Errorf("failed to get order %d: %w", orderID, err)
	}

	if deliveryDate.Valid {
		order.DeliveryDate = &deliveryDate.Time
	}
	if reconciledAt.Valid {
		order.InventoryReconciledAt = &reconciledAt.Time
	}
	order.Notes = notes.String

	if order.Items, err = r.listOrderItems(ctx, order.ID); err != nil {
		return nil, err
	}
	if order.BulkDetail, err = r.getBulkOrderDetail(ctx, order.ID); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *queries) listOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, p.sku, p.name, oi.quantity, oi.unit_price, oi.line_total,
		       COALESCE(oi.notes, '')
		FROM order_items oi
		INNER JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`
	rows, err := r.q.QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("❌ Error fetching order items", "orderId", orderID, "error", err)
		return nil, fmt.Errorf("failed to get order items: %w", mapError(err))
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductSKU,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
			&item.LineTotal,
			&item.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return items, nil
}

func (r *queries) getBulkOrderDetail(ctx context.Context, orderID int64) (*models.BulkOrderDetail, error) {
	query := `
		SELECT id, order_id, source, COALESCE(original_filename, ''), total_products, total_quantity,
		       COALESCE(processing_notes, '')
		FROM bulk_order_details
		WHERE order_id = $1
	`
	var detail models.BulkOrderDetail
	err := r.q.QueryRowContext(ctx, query, orderID).Scan(
		&detail.ID,
		&detail.OrderID,
		&detail.Source,
		&detail.OriginalFilename,
		&detail.TotalProducts,
		&detail.TotalQuantity,
		&detail.ProcessingNotes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bulk order detail: %w", mapError(err))
	}
	return &detail, nil
}

// UpdateOrderStatus sets the status of a locked order
func (t *pgTx) UpdateOrderStatus(ctx context.Context, tenantID, orderID int64, status string) error {
	query := `UPDATE orders SET status = $3 WHERE tenant_id = $1 AND id = $2`
	res, err := t.q.ExecContext(ctx, query, tenantID, orderID, status)
	if err != nil {
		t.logger.Error("❌ Error updating order status", "orderId", orderID, "status", status, "error", err)
		return fmt.Errorf("failed to update order status: %w", mapError(err))
	}
	return requireOneRow(res, "order")
}

// MarkOrderReconciled records when the order's stock was decremented
func (t *pgTx) MarkOrderReconciled(ctx context.Context, tenantID, orderID int64, at time.Time) error {
	query := `UPDATE orders SET inventory_reconciled_at = $3 WHERE tenant_id = $1 AND id = $2`
	res, err := t.q.ExecContext(ctx, query, tenantID, orderID, at)
	if err != nil {
		t.logger.Error("❌ Error marking order reconciled", "orderId", orderID, "error", err)
		return fmt.Errorf("failed to mark order reconciled: %w", mapError(err))
	}
	return requireOneRow(res, "order")
}
