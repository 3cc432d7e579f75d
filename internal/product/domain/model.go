// Package domain contains the product plan projection.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Plan is a priced offering an organization sells. Plans are managed
// out of band; this service only reads them.
type Plan struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_plans_org_code,priority:1" json:"organization_id"`
	Code        string            `gorm:"type:text;not null;uniqueIndex:ux_plans_org_code,priority:2" json:"code"`
	Name        string            `gorm:"type:text;not null" json:"name"`
	Description string            `gorm:"type:text" json:"description"`
	Interval    string            `gorm:"type:text;not null" json:"interval"`
	Amount      int64             `gorm:"not null" json:"amount"`
	Currency    string            `gorm:"type:text;not null" json:"currency"`
	IsActive    bool              `gorm:"not null;default:true" json:"is_active"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Plan) TableName() string { return "plans" }

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Plan, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, search string) ([]Plan, error)
}

type Service interface {
	GetByID(ctx context.Context, id string) (Plan, error)
	List(ctx context.Context, search string) ([]Plan, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("plan not found")
)
