package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/partnerhub/internal/audit/domain"
	"github.com/smallbiznis/partnerhub/internal/authorization"
	leaddomain "github.com/smallbiznis/partnerhub/internal/lead/domain"
	notificationdomain "github.com/smallbiznis/partnerhub/internal/notification/domain"
	"github.com/smallbiznis/partnerhub/internal/notification/live"
	onboardingdomain "github.com/smallbiznis/partnerhub/internal/onboarding/domain"
	partnerdomain "github.com/smallbiznis/partnerhub/internal/partner/domain"
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
	Type          string            `json:"type"`
	Message       string            `json:"message"`
	Code          string            `json:"code,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	PartnerStatus string            `json:"partner_status,omitempty"`
	Errors        []ValidationError `json:"errors,omitempty"`
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

		var rateErr *leaddomain.RateLimitedError
		if errors.As(lastErr.Err, &rateErr) && rateErr.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rateErr.RetryAfter.Seconds()))))
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

	var notActive *partnerdomain.NotActiveError
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, partnerdomain.ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.As(err, &notActive):
		return http.StatusForbidden, errorPayload{
			Type:          "forbidden",
			Message:       "partner account is not active",
			Reason:        partnerdomain.ErrPartnerNotActive.Error(),
			PartnerStatus: string(notActive.Status),
		}
	case errors.Is(err, partnerdomain.ErrPartnerNotActive):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "partner account is not active",
			Reason:  partnerdomain.ErrPartnerNotActive.Error(),
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, leaddomain.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
			Reason:  err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
			Reason:  notFoundReason(err),
		}
	case isInvalidStateError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "invalid_state",
			Message: "action is not valid in the current state",
			Code:    err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
			Code:    conflictCode(err),
		}
	case errors.Is(err, leaddomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, live.ErrHubUnavailable):
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

// classifyErrorForLog returns the error type and code the request logger
// attaches to failed requests.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	switch {
	case payload.Code != "":
		return payload.Type, payload.Code
	case payload.Reason != "":
		return payload.Type, payload.Reason
	case len(payload.Errors) > 0:
		return payload.Type, payload.Errors[0].Code
	default:
		return payload.Type, ""
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
	case isPartnerValidationError(err),
		isLeadValidationError(err),
		isOnboardingValidationError(err),
		isNotificationValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isPartnerValidationError(err error) bool {
	switch {
	case errors.Is(err, partnerdomain.ErrInvalidCompanyName),
		errors.Is(err, partnerdomain.ErrInvalidEmail),
		errors.Is(err, partnerdomain.ErrInvalidTimezone),
		errors.Is(err, partnerdomain.ErrInvalidWebsite),
		errors.Is(err, partnerdomain.ErrInvalidID),
		errors.Is(err, partnerdomain.ErrInvalidStatus),
		errors.Is(err, partnerdomain.ErrInvalidCommissionRate),
		errors.Is(err, partnerdomain.ErrEmptyUpdate),
		errors.Is(err, partnerdomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func isLeadValidationError(err error) bool {
	switch {
	case errors.Is(err, leaddomain.ErrInvalidClientName),
		errors.Is(err, leaddomain.ErrInvalidClientEmail),
		errors.Is(err, leaddomain.ErrInvalidService),
		errors.Is(err, leaddomain.ErrInvalidAmount),
		errors.Is(err, leaddomain.ErrInvalidPageToken),
		errors.Is(err, leaddomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isOnboardingValidationError(err error) bool {
	switch {
	case errors.Is(err, onboardingdomain.ErrInvalidAgreement),
		errors.Is(err, onboardingdomain.ErrInvalidID),
		errors.Is(err, onboardingdomain.ErrPaymentNotConfirmed):
		return true
	default:
		return false
	}
}

func isNotificationValidationError(err error) bool {
	switch {
	case errors.Is(err, notificationdomain.ErrInvalidID),
		errors.Is(err, notificationdomain.ErrInvalidType),
		errors.Is(err, notificationdomain.ErrInvalidTitle),
		errors.Is(err, notificationdomain.ErrInvalidMessage),
		errors.Is(err, notificationdomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch {
	case errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, partnerdomain.ErrPartnerNotFound),
		errors.Is(err, partnerdomain.ErrApplicationNotFound),
		errors.Is(err, leaddomain.ErrNotFound),
		errors.Is(err, onboardingdomain.ErrAgreementNotFound),
		errors.Is(err, onboardingdomain.ErrAgreementNotSigned),
		errors.Is(err, notificationdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func notFoundReason(err error) string {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound.Error()
	}
	return err.Error()
}

func isInvalidStateError(err error) bool {
	switch {
	case errors.Is(err, leaddomain.ErrInvalidStatus),
		errors.Is(err, leaddomain.ErrTerminalStateViolation),
		errors.Is(err, leaddomain.ErrInvalidTransition),
		errors.Is(err, leaddomain.ErrCommissionNotEarned),
		errors.Is(err, onboardingdomain.ErrOnboardingStepSkipped),
		errors.Is(err, onboardingdomain.ErrAcknowledgmentRequired),
		errors.Is(err, partnerdomain.ErrInvalidStatusTransition),
		errors.Is(err, partnerdomain.ErrApplicationReviewed):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, leaddomain.ErrConcurrentModification),
		errors.Is(err, partnerdomain.ErrConcurrentModification),
		errors.Is(err, onboardingdomain.ErrConcurrentModification),
		errors.Is(err, partnerdomain.ErrApplicationExists),
		errors.Is(err, partnerdomain.ErrAlreadyPartner),
		errors.Is(err, onboardingdomain.ErrAgreementExists),
		errors.Is(err, gorm.ErrDuplicatedKey):
		return true
	default:
		return false
	}
}

func conflictCode(err error) string {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict.Error()
	}
	return err.Error()
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
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	switch code {
	case onboardingdomain.ErrPaymentNotConfirmed.Error():
		return "paymentConfirmed"
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case onboardingdomain.ErrPaymentNotConfirmed.Error():
		return "payment setup has not been confirmed"
	case partnerdomain.ErrEmptyUpdate.Error():
		return "no fields to update"
	default:
		return "invalid value"
	}
}
