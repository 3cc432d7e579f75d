package domain

import (
	"context"
	"errors"

	"github.com/smallops/dealdesk/pkg/db/pagination"
)

type ListInvoiceRequest struct {
	pagination.Pagination
	Status     string
	CustomerID string
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	GetByToken(ctx context.Context, token string) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	Finalize(ctx context.Context, token string) (Invoice, error)
	Pay(ctx context.Context, token string) (Invoice, error)
	Void(ctx context.Context, token string) (Invoice, error)
	// RequestPDF re-enqueues PDF generation for an invoice missing its artifact.
	RequestPDF(ctx context.Context, token string) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("invoice not found")
	ErrInvalidStatus       = errors.New("invalid_status")

	// State transition errors surface verbatim in API responses.
	ErrAlreadyFinalized = errors.New("Invoice is already finalized")
	ErrNotPayable       = errors.New("Invoice must be finalized before payment")
	ErrTerminal         = errors.New("Invoice is in a terminal status")
	ErrPDFNotAvailable  = errors.New("PDF not available for this invoice")
)
