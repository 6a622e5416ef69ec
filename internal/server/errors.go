package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	balancedomain "github.com/graindesk/millbook/internal/balance/domain"
	commoditydomain "github.com/graindesk/millbook/internal/commodity/domain"
	dodomain "github.com/graindesk/millbook/internal/deliveryorder/domain"
	ledgerdomain "github.com/graindesk/millbook/internal/ledger/domain"
	millingdomain "github.com/graindesk/millbook/internal/milling/domain"
	"gorm.io/gorm"
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

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
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

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, millingdomain.ErrBatchRejected):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "milling_batch_rejected",
			Message: "milling batch rejected",
		}
	case errors.Is(err, dodomain.ErrDOCancelled):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "delivery_order_cancelled",
			Message: "delivery order cancelled",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isCommodityValidationError(err),
		isLedgerValidationError(err),
		isBalanceValidationError(err),
		isDeliveryOrderValidationError(err),
		isMillingValidationError(err):
		return true
	default:
		return false
	}
}

func isCommodityValidationError(err error) bool {
	switch {
	case errors.Is(err, commoditydomain.ErrInvalidName),
		errors.Is(err, commoditydomain.ErrInvalidCategory),
		errors.Is(err, commoditydomain.ErrInvalidUnit),
		errors.Is(err, commoditydomain.ErrInvalidCommodity):
		return true
	default:
		return false
	}
}

func isLedgerValidationError(err error) bool {
	switch {
	case errors.Is(err, ledgerdomain.ErrInvalidMill),
		errors.Is(err, ledgerdomain.ErrInvalidQuantity),
		errors.Is(err, ledgerdomain.ErrInvalidDirection),
		errors.Is(err, ledgerdomain.ErrInvalidSourceType),
		errors.Is(err, ledgerdomain.ErrInvalidSourceRef),
		errors.Is(err, ledgerdomain.ErrInvalidEntryDate),
		errors.Is(err, ledgerdomain.ErrDirectionMismatch),
		errors.Is(err, ledgerdomain.ErrEmptyBatch):
		return true
	default:
		return false
	}
}

func isBalanceValidationError(err error) bool {
	switch {
	case errors.Is(err, balancedomain.ErrInvalidMill),
		errors.Is(err, balancedomain.ErrInvalidRange):
		return true
	default:
		return false
	}
}

func isDeliveryOrderValidationError(err error) bool {
	switch {
	case errors.Is(err, dodomain.ErrInvalidMill),
		errors.Is(err, dodomain.ErrInvalidDONumber),
		errors.Is(err, dodomain.ErrInvalidPartyRef),
		errors.Is(err, dodomain.ErrInvalidDirection),
		errors.Is(err, dodomain.ErrInvalidCommitted),
		errors.Is(err, dodomain.ErrInvalidIssueDate):
		return true
	default:
		return false
	}
}

func isMillingValidationError(err error) bool {
	switch {
	case errors.Is(err, millingdomain.ErrInvalidMill),
		errors.Is(err, millingdomain.ErrInvalidInput),
		errors.Is(err, millingdomain.ErrInvalidDate),
		errors.Is(err, millingdomain.ErrNoOutputs),
		errors.Is(err, millingdomain.ErrInvalidRef),
		errors.Is(err, millingdomain.ErrInvalidQuantity):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, commoditydomain.ErrDuplicateID),
		errors.Is(err, dodomain.ErrDuplicateDONumber):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, commoditydomain.ErrUnknownCommodity),
		errors.Is(err, dodomain.ErrUnknownDO),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case isValidationError(err):
		return "validation", err.Error()
	case isConflictError(err):
		return "conflict", err.Error()
	case isNotFoundError(err):
		return "not_found", err.Error()
	default:
		return "internal", err.Error()
	}
}
