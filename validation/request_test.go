package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dixis-bulk-orders/apperrors"
	"dixis-bulk-orders/models"
)

func TestCheckStruct(t *testing.T) {
	v := NewRequestValidator()

	t.Run("valid request", func(t *testing.T) {
		req := models.BulkOrderRequest{
			Products:       []models.ProductLineRequest{{ProductID: 1, Quantity: 5}},
			SubmissionMeta: models.SubmissionMeta{Priority: models.PriorityHigh, DeliveryDate: "2026-10-24"},
		}
		assert.NoError(t, CheckStruct(v, req))
	})

	t.Run("missing products", func(t *testing.T) {
		err := CheckStruct(v, models.BulkOrderRequest{})
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeValidation, appErr.Code)
		assert.Equal(t, "is required", appErr.Details["products"])
	})

	t.Run("field paths", func(t *testing.T) {
		req := models.BulkOrderRequest{
			Products: []models.ProductLineRequest{{ProductID: 1, Quantity: 1}, {Quantity: 20000}},
			SubmissionMeta: models.SubmissionMeta{
				Priority:     "asap",
				DeliveryDate: "24/10/2026",
			},
		}
		err := CheckStruct(v, req)
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, "is required", appErr.Details["products[1].product_id"])
		assert.Equal(t, "must be at most 10000", appErr.Details["products[1].quantity"])
		assert.Equal(t, "must be one of: normal high urgent", appErr.Details["priority"])
		assert.Equal(t, "must be a date in the format YYYY-MM-DD", appErr.Details["delivery_date"])
	})
}
