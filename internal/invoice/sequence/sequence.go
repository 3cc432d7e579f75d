// Package sequence allocates per-organization document numbers.
//
// Numbers come from a counter row locked for the duration of the
// caller's transaction, so two concurrent allocations for the same
// organization serialize instead of racing a row count.
package sequence

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallops/dealdesk/internal/config"
	"github.com/smallops/dealdesk/internal/invoice/domain"
	"github.com/smallops/dealdesk/pkg/db"
	"gorm.io/gorm"
)

type Allocator struct {
	docs *config.DocumentsConfigHolder
}

func NewAllocator(docs *config.DocumentsConfigHolder) *Allocator {
	return &Allocator{docs: docs}
}

// NextInvoice returns the next invoice number for the organization.
// Must be called inside the transaction that persists the invoice.
func (a *Allocator) NextInvoice(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (int64, error) {
	return a.next(ctx, tx, orgID, "invoice_seq")
}

// NextQuote returns the next quote number for the organization.
func (a *Allocator) NextQuote(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (int64, error) {
	return a.next(ctx, tx, orgID, "quote_seq")
}

func (a *Allocator) next(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, column string) (int64, error) {
	seed := a.docs.Get().InvoiceNumberSeed

	var row domain.DocumentSequence
	err := db.ForUpdate(tx.WithContext(ctx)).
		Where("org_id = ?", orgID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = domain.DocumentSequence{
			OrgID:      orgID,
			InvoiceSeq: seed,
			QuoteSeq:   seed,
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			// Lost a create race with a concurrent transaction; take the lock
			// on the winner's row instead.
			if lockErr := db.ForUpdate(tx.WithContext(ctx)).
				Where("org_id = ?", orgID).
				First(&row).Error; lockErr != nil {
				return 0, err
			}
		}
	} else if err != nil {
		return 0, err
	}

	var next int64
	switch column {
	case "invoice_seq":
		next = row.InvoiceSeq + 1
	default:
		next = row.QuoteSeq + 1
	}

	if err := tx.WithContext(ctx).
		Model(&domain.DocumentSequence{}).
		Where("org_id = ?", orgID).
		Update(column, next).Error; err != nil {
		return 0, err
	}

	return next, nil
}
