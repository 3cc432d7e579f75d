package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallops/dealdesk/internal/apikey/domain"
	authdomain "github.com/smallops/dealdesk/internal/auth/domain"
	"github.com/smallops/dealdesk/internal/authorization"
	customerdomain "github.com/smallops/dealdesk/internal/customer/domain"
	invoicedomain "github.com/smallops/dealdesk/internal/invoice/domain"
	orgdomain "github.com/smallops/dealdesk/internal/organization/domain"
	productdomain "github.com/smallops/dealdesk/internal/product/domain"
	"github.com/smallops/dealdesk/internal/providers/pdf"
	quotedomain "github.com/smallops/dealdesk/internal/quote/domain"
	subscriptiondomain "github.com/smallops/dealdesk/internal/subscription/domain"
	"gorm.io/gorm"
)

// errorResponse is the body of every error reply: {"error": "..."}.
type errorResponse struct {
	Error string `json:"error"`
}

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrTooManyRequests = errors.New("too many requests")
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

		status, message := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: message})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// mapError translates domain errors to HTTP statuses. State and input
// errors keep their message verbatim; internal errors get a generic
// body with the detail logged server-side.
func mapError(err error) (int, string) {
	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, ErrUnauthorized.Error()
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, ErrForbidden.Error()
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, ErrTooManyRequests.Error()
	case isNotFoundError(err):
		return http.StatusNotFound, err.Error()
	case isStateOrInputError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, authdomain.ErrUserExists):
		return http.StatusConflict, "user already exists"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked),
		errors.Is(err, apikeydomain.ErrInvalidKey),
		errors.Is(err, apikeydomain.ErrRevoked):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, orgdomain.ErrNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, quotedomain.ErrNotFound),
		errors.Is(err, quotedomain.ErrCustomerNotFound),
		errors.Is(err, quotedomain.ErrPDFNotAvailable),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrPDFNotAvailable),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, apikeydomain.ErrNotFound),
		errors.Is(err, pdf.ErrArtifactMissing),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isStateOrInputError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, quotedomain.ErrNotDraft),
		errors.Is(err, quotedomain.ErrNotSent),
		errors.Is(err, quotedomain.ErrExpired),
		errors.Is(err, quotedomain.ErrInvalidAmounts),
		errors.Is(err, quotedomain.ErrInvalidCurrency),
		errors.Is(err, quotedomain.ErrEmptyItems),
		errors.Is(err, quotedomain.ErrInvalidDate),
		errors.Is(err, quotedomain.ErrDueBeforeIssue),
		errors.Is(err, quotedomain.ErrInvalidStatus),
		errors.Is(err, invoicedomain.ErrAlreadyFinalized),
		errors.Is(err, invoicedomain.ErrNotPayable),
		errors.Is(err, invoicedomain.ErrTerminal),
		errors.Is(err, invoicedomain.ErrInvalidStatus),
		errors.Is(err, customerdomain.ErrInvalidName),
		errors.Is(err, customerdomain.ErrInvalidEmail),
		errors.Is(err, customerdomain.ErrInvalidStatus),
		errors.Is(err, customerdomain.ErrInvalidID),
		errors.Is(err, apikeydomain.ErrInvalidName):
		return true
	default:
		return false
	}
}

// classifyErrorForLog feeds the request logger's error_type and
// error_code fields without leaking raw messages into logs.
func classifyErrorForLog(err error) (string, string) {
	status, _ := mapError(err)
	switch {
	case status == http.StatusUnauthorized:
		return "auth", "unauthorized"
	case status == http.StatusForbidden:
		return "auth", "forbidden"
	case status == http.StatusNotFound:
		return "client", "not_found"
	case status == http.StatusTooManyRequests:
		return "client", "rate_limited"
	case status >= 400 && status < 500:
		return "client", "invalid_request"
	default:
		return "server", "internal_error"
	}
}
