package credit

import (
	"strconv"

	"github.com/shopspring/decimal"

	"dixis-bulk-orders/apperrors"
	"dixis-bulk-orders/models"
)

// Check fails with CreditLimitExceeded when total is above the account's available credit.
// Callers committing an order must pass an account read under a row lock.
func Check(total decimal.Decimal, account *models.BusinessAccount) error {
	available := account.AvailableCredit()
	if total.GreaterThan(available) {
		return apperrors.CreditLimitExceeded(total.StringFixed(2), available.StringFixed(2)).
			WithDetail("accountId", strconv.FormatInt(account.ID, 10))
	}
	return nil
}

// Reserve returns the outstanding balance after a committed order of total
func Reserve(account *models.BusinessAccount, total decimal.Decimal) decimal.Decimal {
	return account.OutstandingBalance.Add(total)
}

// Release returns the outstanding balance after cancelling an order of total, floored at zero
func Release(account *models.BusinessAccount, total decimal.Decimal) decimal.Decimal {
	balance := account.OutstandingBalance.Sub(total)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}
