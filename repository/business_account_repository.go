package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"dixis-bulk-orders/models"
)

const selectBusinessAccount = `
	SELECT id, tenant_id, business_name, discount_percentage, credit_limit, outstanding_balance
	FROM business_accounts
	WHERE tenant_id = $1 AND id = $2
`

// GetBusinessAccount retrieves an account without locking it
func (r *queries) GetBusinessAccount(ctx context.Context, tenantID, accountID int64) (*models.BusinessAccount, error) {
	return r.getBusinessAccount(ctx, selectBusinessAccount, tenantID, accountID)
}

// LockBusinessAccount reads the account under FOR UPDATE so concurrent orders
// for the same account serialize on its credit
func (t *pgTx) LockBusinessAccount(ctx context.Context, tenantID, accountID int64) (*models.BusinessAccount, error) {
	return t.getBusinessAccount(ctx, selectBusinessAccount+" FOR UPDATE", tenantID, accountID)
}

func (r *queries) getBusinessAccount(ctx context.Context, query string, tenantID, accountID int64) (*models.BusinessAccount, error) {
	var account models.BusinessAccount
	err := r.q.QueryRowContext(ctx, query, tenantID, accountID).Scan(
		&account.ID,
		&account.TenantID,
		&account.BusinessName,
		&account.DiscountPercentage,
		&account.CreditLimit,
		&account.OutstandingBalance,
	)
	if err != nil {
		err = mapError(err)
		if !errors.Is(err, ErrNotFound) {
			r.logger.Error("❌ Error fetching business account", "accountId", accountID, "error", err)
		}
		return nil, fmt.Errorf("failed to get business account %d: %w", accountID, err)
	}
	return &account, nil
}

// UpdateOutstandingBalance sets the account balance. Callers hold the row lock.
func (t *pgTx) UpdateOutstandingBalance(ctx context.Context, tenantID, accountID int64, balance decimal.Decimal) error {
	query := `
		UPDATE business_accounts
		SET outstanding_balance = $3
		WHERE tenant_id = $1 AND id = $2
	`
	res, err := t.q.ExecContext(ctx, query, tenantID, accountID, balance)
	if err != nil {
		t.logger.Error("❌ Error updating outstanding balance", "accountId", accountID, "error", err)
		return fmt.Errorf("failed to update outstanding balance: %w", mapError(err))
	}
	return requireOneRow(res, "business account")
}
