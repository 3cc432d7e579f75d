package domain

import (
	"context"
	"errors"

	"github.com/smallops/dealdesk/pkg/db/pagination"
)

type ListCustomerRequest struct {
	pagination.Pagination
	Search             string
	SubscriptionStatus string
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	AddressLine1       string  `json:"address_line1"`
	AddressLine2       string  `json:"address_line2"`
	City               string  `json:"city"`
	PostalCode         string  `json:"postal_code"`
	Country            string  `json:"country"`
	SubscriptionStatus *string `json:"subscription_status,omitempty"`
}

type UpdateCustomerRequest struct {
	ID                 string  `json:"-"`
	Name               *string `json:"name,omitempty"`
	Email              *string `json:"email,omitempty"`
	AddressLine1       *string `json:"address_line1,omitempty"`
	AddressLine2       *string `json:"address_line2,omitempty"`
	City               *string `json:"city,omitempty"`
	PostalCode         *string `json:"postal_code,omitempty"`
	Country            *string `json:"country,omitempty"`
	SubscriptionStatus *string `json:"subscription_status,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (Customer, error)
	Update(ctx context.Context, req UpdateCustomerRequest) (Customer, error)
	List(ctx context.Context, req ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(ctx context.Context, id string) (Customer, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidStatus       = errors.New("invalid_subscription_status")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
)

// ValidSubscriptionStatus reports whether value is an allowed status.
func ValidSubscriptionStatus(value string) bool {
	switch value {
	case SubscriptionTrialing, SubscriptionActive, SubscriptionPastDue, SubscriptionCanceled:
		return true
	default:
		return false
	}
}
