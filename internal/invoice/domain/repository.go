package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallops/dealdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status     InvoiceStatus
	CustomerID snowflake.ID
	Cursor     *pagination.Cursor
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByToken(ctx context.Context, db *gorm.DB, orgID snowflake.ID, token string) (*Invoice, error)
	FindByID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, id snowflake.ID) (*Invoice, error)
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter) ([]*Invoice, error)
}
