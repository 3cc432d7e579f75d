// Package domain contains types for tenant customer accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Subscription status values carried on a customer account.
const (
	SubscriptionTrialing = "trialing"
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// Customer is an account managed by a tenant: the tenant's own customer.
type Customer struct {
	ID                 snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID              snowflake.ID      `gorm:"not null;index" json:"organization_id"`
	Name               string            `gorm:"not null" json:"name"`
	Email              string            `gorm:"not null" json:"email"`
	AddressLine1       string            `gorm:"column:address_line1" json:"address_line1,omitempty"`
	AddressLine2       string            `gorm:"column:address_line2" json:"address_line2,omitempty"`
	City               string            `json:"city,omitempty"`
	PostalCode         string            `gorm:"column:postal_code" json:"postal_code,omitempty"`
	Country            string            `json:"country,omitempty"`
	SubscriptionStatus *string           `gorm:"column:subscription_status" json:"subscription_status,omitempty"`
	Metadata           datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
