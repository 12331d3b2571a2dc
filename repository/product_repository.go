package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dixis-bulk-orders/models"
)

const productColumns = `id, tenant_id, sku, name, price, b2b_available, stock, low_stock_threshold, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var threshold sql.NullInt64
	if err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.SKU,
		&p.Name,
		&p.Price,
		&p.B2BAvailable,
		&p.Stock,
		&threshold,
		&p.IsActive,
	); err != nil {
		return nil, err
	}
	if threshold.Valid {
		v := int(threshold.Int64)
		p.LowStockThreshold = &v
	}
	return &p, nil
}

func (r *queries) getProduct(ctx context.Context, query string, args ...any) (*models.Product, error) {
	p, err := scanProduct(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		err = mapError(err)
		if !errors.Is(err, ErrNotFound) {
			r.logger.Error("❌ Error fetching product", "error", err)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// GetProduct retrieves a product by id
func (r *queries) GetProduct(ctx context.Context, tenantID, productID int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1 AND id = $2`
	return r.getProduct(ctx, query, tenantID, productID)
}

// FindProductBySKU retrieves a product by exact SKU
func (r *queries) FindProductBySKU(ctx context.Context, tenantID int64, sku string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1 AND sku = $2`
	return r.getProduct(ctx, query, tenantID, sku)
}

// FindProductByName retrieves the first active product whose name contains name, ignoring case
func (r *queries) FindProductByName(ctx context.Context, tenantID int64, name string) (*models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE tenant_id = $1 AND is_active = TRUE AND name ILIKE '%' || $2 || '%' ESCAPE '\'
		ORDER BY id
		LIMIT 1
	`
	return r.getProduct(ctx, query, tenantID, escapeLike(name))
}

// ListActiveProducts lists active products ordered by id
func (r *queries) ListActiveProducts(ctx context.Context, tenantID int64) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1 AND is_active = TRUE ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query, tenantID)
	if err != nil {
		r.logger.Error("❌ Error listing products", "tenantId", tenantID, "error", err)
		return nil, fmt.Errorf("failed to list products: %w", mapError(err))
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

// LockProduct reads a product under FOR UPDATE
func (t *pgTx) LockProduct(ctx context.Context, tenantID, productID int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	return t.getProduct(ctx, query, tenantID, productID)
}

// UpdateProductStock sets the stock of a locked product
func (t *pgTx) UpdateProductStock(ctx context.Context, tenantID, productID int64, stock int) error {
	query := `UPDATE products SET stock = $3 WHERE tenant_id = $1 AND id = $2`
	res, err := t.q.ExecContext(ctx, query, tenantID, productID, stock)
	if err != nil {
		t.logger.Error("❌ Error updating stock", "productId", productID, "error", err)
		return fmt.Errorf("failed to update stock: %w", mapError(err))
	}
	return requireOneRow(res, "product")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func requireOneRow(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", resource, ErrNotFound)
	}
	return nil
}
