package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dixis-bulk-orders/apperrors"
	"dixis-bulk-orders/logging"
)

// APIErrorResponse is the body of every error response
type APIErrorResponse struct {
	Code      string               `json:"code"`
	Message   string               `json:"message"`
	Details   map[string]string    `json:"details,omitempty"`
	Rows      []apperrors.RowError `json:"rows,omitempty"`
	Retryable bool                 `json:"retryable"`
	RequestID string               `json:"requestId,omitempty"`
	Timestamp string               `json:"timestamp"`
	Path      string               `json:"path"`
}

// RespondWithError writes err as an APIErrorResponse.
// Errors that are not AppErrors become a generic 500 and their cause is only logged.
func RespondWithError(c *gin.Context, logger *logging.Logger, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = internalError()
	}

	logger = logger.WithContext(c.Request.Context()).WithError(err)
	attrs := []any{
		"code", appErr.Code,
		"status", appErr.HTTPStatus,
		"path", c.Request.URL.Path,
		"requestId", c.GetString(ContextKeyRequestID),
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error("❌ Request failed", attrs...)
	} else {
		logger.Warn("⚠️ Request rejected", attrs...)
	}

	c.JSON(appErr.HTTPStatus, newErrorResponse(c, appErr))
}

func newErrorResponse(c *gin.Context, appErr *apperrors.AppError) APIErrorResponse {
	return APIErrorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
		Rows:      appErr.Rows,
		Retryable: appErr.Retryable,
		RequestID: c.GetString(ContextKeyRequestID),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      c.Request.URL.Path,
	}
}

func internalError() *apperrors.AppError {
	return apperrors.NewAppError("INTERNAL_ERROR", "An unexpected error occurred", http.StatusInternalServerError)
}
