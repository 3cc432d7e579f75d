// Package domain contains the subscription projection. Subscriptions
// are provisioned out of band; invoices may reference one.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

type Subscription struct {
	ID         snowflake.ID       `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID       `gorm:"not null;index" json:"organization_id"`
	CustomerID snowflake.ID       `gorm:"not null;index" json:"customer_id"`
	PlanID     snowflake.ID       `gorm:"not null;index" json:"plan_id"`
	Status     SubscriptionStatus `gorm:"type:text;not null" json:"status"`
	StartAt    time.Time          `gorm:"not null" json:"start_at"`
	EndAt      *time.Time         `json:"end_at,omitempty"`
	CanceledAt *time.Time         `json:"canceled_at,omitempty"`
	Metadata   datatypes.JSONMap  `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt  time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Subscription, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID) ([]Subscription, error)
}

type Service interface {
	GetByID(ctx context.Context, id string) (Subscription, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Subscription, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("subscription not found")
)
