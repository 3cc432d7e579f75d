package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallops/dealdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Search             string
	SubscriptionStatus string
	Cursor             *pagination.Cursor
	Limit              int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Customer, error)
	Update(ctx context.Context, db *gorm.DB, customer *Customer) error
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter) ([]*Customer, error)
}
