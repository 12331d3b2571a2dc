package models

import "github.com/shopspring/decimal"

// BusinessAccount represents a wholesale buyer. Read-only to the order pipeline
// except for the outstanding balance, which order commit and cancellation adjust.
type BusinessAccount struct {
	ID                 int64           `json:"id"`
	TenantID           int64           `json:"tenant_id"`
	BusinessName       string          `json:"business_name"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"` // 0-100
	CreditLimit        decimal.Decimal `json:"credit_limit"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
}

// AvailableCredit returns the remaining headroom, never below zero
func (a *BusinessAccount) AvailableCredit() decimal.Decimal {
	available := a.CreditLimit.Sub(a.OutstandingBalance)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}
