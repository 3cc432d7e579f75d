package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallops/dealdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status     QuoteStatus
	CustomerID snowflake.ID
	Cursor     *pagination.Cursor
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, quote *Quote) error
	FindByID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, id snowflake.ID) (*Quote, error)
	// FindByIDForUpdate locks the quote row for the duration of the
	// caller's transaction. Items are not preloaded.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, id snowflake.ID) (*Quote, error)
	FindItems(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) ([]QuoteItem, error)
	Update(ctx context.Context, db *gorm.DB, quote *Quote) error
	ReplaceItems(ctx context.Context, db *gorm.DB, quoteID snowflake.ID, items []QuoteItem) error
	Delete(ctx context.Context, db *gorm.DB, orgID snowflake.ID, id snowflake.ID) error
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter) ([]*Quote, error)
}
