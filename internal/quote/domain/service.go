package domain

import (
	"context"
	"errors"
	"time"

	invoicedomain "github.com/smallops/dealdesk/internal/invoice/domain"
	"github.com/smallops/dealdesk/pkg/db/pagination"
)

// LineItemInput describes a quote line as submitted by the caller.
// Amounts are integer minor currency units.
type LineItemInput struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
}

type CreateQuoteRequest struct {
	CustomerID string          `json:"customer_id"`
	Currency   string          `json:"currency"`
	TaxAmount  int64           `json:"tax_amount"`
	Items      []LineItemInput `json:"items"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
}

type UpdateQuoteRequest struct {
	ID         string          `json:"-"`
	CustomerID *string         `json:"customer_id,omitempty"`
	Currency   *string         `json:"currency,omitempty"`
	TaxAmount  *int64          `json:"tax_amount,omitempty"`
	Items      []LineItemInput `json:"items,omitempty"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
}

// AcceptQuoteRequest carries the optional invoice dates as submitted.
// Dates accept RFC 3339 timestamps or bare YYYY-MM-DD dates.
type AcceptQuoteRequest struct {
	ID        string `json:"-"`
	IssueDate string `json:"issue_date,omitempty"`
	DueDate   string `json:"due_date,omitempty"`
}

// AcceptQuoteResult returns the converted quote together with the
// invoice it produced.
type AcceptQuoteResult struct {
	Quote   Quote                 `json:"quote"`
	Invoice invoicedomain.Invoice `json:"invoice"`
}

type ListQuoteRequest struct {
	pagination.Pagination
	Status     string
	CustomerID string
}

type ListQuoteResponse struct {
	pagination.PageInfo
	Quotes []Quote `json:"quotes"`
}

type Service interface {
	Create(ctx context.Context, req CreateQuoteRequest) (Quote, error)
	GetByID(ctx context.Context, id string) (Quote, error)
	List(ctx context.Context, req ListQuoteRequest) (ListQuoteResponse, error)
	Update(ctx context.Context, req UpdateQuoteRequest) (Quote, error)
	Delete(ctx context.Context, id string) error
	Send(ctx context.Context, id string) (Quote, error)
	Reject(ctx context.Context, id string) (Quote, error)
	Expire(ctx context.Context, id string) (Quote, error)
	Accept(ctx context.Context, req AcceptQuoteRequest) (AcceptQuoteResult, error)
	// RequestPDF re-enqueues PDF generation for a quote missing its artifact.
	RequestPDF(ctx context.Context, id string) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("quote not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrInvalidStatus       = errors.New("invalid_status")

	// Validation and state errors surface verbatim in API responses.
	ErrNotDraft        = errors.New("Quote is not in draft status")
	ErrNotSent         = errors.New("Quote is not in sent status")
	ErrExpired         = errors.New("Quote has expired")
	ErrInvalidAmounts  = errors.New("Amounts must be non-negative integers")
	ErrInvalidCurrency = errors.New("Currency is required")
	ErrEmptyItems      = errors.New("At least one line item is required")
	ErrInvalidDate     = errors.New("Invalid date format")
	ErrDueBeforeIssue  = errors.New("Due date must be on or after issue date")
	ErrPDFNotAvailable = errors.New("PDF not available for this quote")
)
