package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      string
		status    int
		retryable bool
	}{
		{"import format", ImportFormat("missing header"), CodeImportFormat, http.StatusBadRequest, false},
		{"validation", Validation("bad"), CodeValidation, http.StatusUnprocessableEntity, false},
		{"credit", CreditLimitExceeded("150.00", "100.00"), CodeCreditLimitExceeded, http.StatusPaymentRequired, false},
		{"transaction", TransactionFailure(errors.New("deadlock")), CodeTransactionFailure, http.StatusServiceUnavailable, true},
		{"reconciliation", ReconciliationFailure(7, errors.New("timeout"), true), CodeReconciliationFailure, http.StatusServiceUnavailable, true},
		{"not found", NotFound("order"), CodeNotFound, http.StatusNotFound, false},
		{"conflict", Conflict("already cancelled"), CodeConflict, http.StatusConflict, false},
		{"unavailable", ServiceUnavailable("google drive import"), CodeServiceUnavailable, http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestCreditLimitExceeded_Details(t *testing.T) {
	err := CreditLimitExceeded("150.00", "100.00")
	assert.Equal(t, map[string]string{"total": "150.00", "availableCredit": "100.00"}, err.Details)
}

func TestImportValidation_AggregatesRows(t *testing.T) {
	err := ImportValidation([]RowError{
		{RowNumber: 3, Reason: "not found", Message: "Row 3: Product not found (X)"},
		{RowNumber: 5, Reason: "invalid quantity", Message: "Row 5: Invalid quantity \"0\" for Basil"},
	})

	assert.Len(t, err.Rows, 2)
	assert.Contains(t, err.Message, "Row 3: Product not found (X), Row 5")
}

func TestTransactionFailure_HidesCause(t *testing.T) {
	cause := errors.New("pq: duplicate key value violates unique constraint")
	err := TransactionFailure(cause)

	assert.NotContains(t, err.Message, "duplicate key")
	assert.ErrorIs(t, err, cause)
}

func TestAsAndIsCode_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("failed to commit: %w", Conflict("order is cancelled"))

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeConflict, appErr.Code)
	assert.True(t, IsCode(wrapped, CodeConflict))
	assert.False(t, IsCode(wrapped, CodeNotFound))

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestError_IncludesCause(t *testing.T) {
	err := NotFound("order").Wrap(errors.New("sql: no rows"))
	assert.Equal(t, "RESOURCE_NOT_FOUND: order not found: sql: no rows", err.Error())
	assert.Equal(t, "CONFLICT: busy", Conflict("busy").Error())
}
