package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/planix/internal/authorization"
	floorplandomain "github.com/smallbiznis/planix/internal/floorplan/domain"
	generationdomain "github.com/smallbiznis/planix/internal/generation/domain"
	paymentdomain "github.com/smallbiznis/planix/internal/payment/domain"
	quotadomain "github.com/smallbiznis/planix/internal/quota/domain"
	referraldomain "github.com/smallbiznis/planix/internal/referral/domain"
	subscriptiondomain "github.com/smallbiznis/planix/internal/subscription/domain"
	userdomain "github.com/smallbiznis/planix/internal/user/domain"
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
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
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
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, quotadomain.ErrQuotaExceeded):
		return http.StatusForbidden, errorPayload{
			Type:    "quota_exceeded",
			Message: "usage limit reached for the current plan",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, floorplandomain.ErrNotOwner):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, referraldomain.ErrAlreadyReferred):
		return http.StatusConflict, errorPayload{
			Type:    "already_referred",
			Message: "a referral code has already been applied",
		}
	case errors.Is(err, userdomain.ErrEmailExists):
		return http.StatusConflict, errorPayload{
			Type:    "email_exists",
			Message: "email is already registered",
		}
	case errors.Is(err, floorplandomain.ErrNotCompleted):
		return http.StatusConflict, errorPayload{
			Type:    "plan_not_completed",
			Message: "floor plan is not completed",
		}
	case errors.Is(err, generationdomain.ErrGenerationInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "generation_in_progress",
			Message: "a generation is already being admitted for this user",
		}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, paymentdomain.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code logged per request.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
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
	case isUserValidationError(err),
		isFloorPlanValidationError(err),
		isReferralValidationError(err),
		isSubscriptionValidationError(err),
		isPaymentValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, floorplandomain.ErrNotFound),
		errors.Is(err, referraldomain.ErrNotFound),
		errors.Is(err, quotadomain.ErrUserNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, paymentdomain.ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isUserValidationError(err error) bool {
	switch {
	case errors.Is(err, userdomain.ErrInvalidID),
		errors.Is(err, userdomain.ErrInvalidName),
		errors.Is(err, userdomain.ErrInvalidEmail),
		errors.Is(err, userdomain.ErrInvalidPhone),
		errors.Is(err, userdomain.ErrInvalidPassword),
		errors.Is(err, userdomain.ErrInvalidReferralCode):
		return true
	default:
		return false
	}
}

func isFloorPlanValidationError(err error) bool {
	switch {
	case errors.Is(err, floorplandomain.ErrInvalidID),
		errors.Is(err, floorplandomain.ErrInvalidUser),
		errors.Is(err, floorplandomain.ErrInvalidStatus),
		errors.Is(err, floorplandomain.ErrInvalidFormat),
		errors.Is(err, floorplandomain.ErrInvalidDescription),
		errors.Is(err, floorplandomain.ErrInvalidArea),
		errors.Is(err, floorplandomain.ErrInvalidRooms),
		errors.Is(err, floorplandomain.ErrInvalidBathrooms),
		errors.Is(err, floorplandomain.ErrInvalidBudget),
		errors.Is(err, floorplandomain.ErrInvalidFeatures),
		errors.Is(err, floorplandomain.ErrInvalidLocation),
		errors.Is(err, generationdomain.ErrInvalidUser):
		return true
	default:
		return false
	}
}

func isReferralValidationError(err error) bool {
	switch {
	case errors.Is(err, referraldomain.ErrInvalidUser),
		errors.Is(err, referraldomain.ErrInvalidCode),
		errors.Is(err, referraldomain.ErrSelfReferral),
		errors.Is(err, referraldomain.ErrCodeExhausted):
		return true
	default:
		return false
	}
}

func isSubscriptionValidationError(err error) bool {
	switch {
	case errors.Is(err, subscriptiondomain.ErrInvalidUser),
		errors.Is(err, subscriptiondomain.ErrInvalidTier),
		errors.Is(err, quotadomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isPaymentValidationError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidCurrency),
		errors.Is(err, paymentdomain.ErrInvalidTier),
		errors.Is(err, paymentdomain.ErrInvalidUser):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "self_referral", "referral_code_exhausted":
		return "referral_code"
	case "invalid_plan_tier":
		return "plan_tier"
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
	case "self_referral":
		return "users cannot apply their own referral code"
	case "invalid_referral_code":
		return "referral code does not exist"
	default:
		return "invalid value"
	}
}
