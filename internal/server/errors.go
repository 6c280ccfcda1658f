package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	coursedomain "github.com/opencampus/campuspay/internal/course/domain"
	enrollmentdomain "github.com/opencampus/campuspay/internal/enrollment/domain"
	invoicedomain "github.com/opencampus/campuspay/internal/invoice/domain"
	memberdomain "github.com/opencampus/campuspay/internal/member/domain"
	paymentdomain "github.com/opencampus/campuspay/internal/payment/domain"
	"github.com/opencampus/campuspay/internal/payment/gateway"
	pkgdb "github.com/opencampus/campuspay/pkg/db"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, gateway.ErrEmptyBody),
		errors.Is(err, gateway.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidCurrency),
		errors.Is(err, paymentdomain.ErrMissingBuyerEmail),
		errors.Is(err, paymentdomain.ErrMissingTarget):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}

	case errors.Is(err, gateway.ErrInvalidSignature),
		errors.Is(err, gateway.ErrSignatureRequired):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: err.Error(),
		}

	case errors.Is(err, memberdomain.ErrMemberNotFound),
		errors.Is(err, coursedomain.ErrCourseNotFound),
		errors.Is(err, coursedomain.ErrBatchNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, enrollmentdomain.ErrEnrollmentNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	}

	var invalidTransition *invoicedomain.InvalidTransitionError
	if errors.As(err, &invalidTransition) {
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: invalidTransition.Error(),
		}
	}
	if pkgdb.IsDuplicateKeyErr(err) {
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "resource already exists",
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}
