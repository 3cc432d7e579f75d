// Package domain contains persistence models for quoting.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// QuoteStatus represents quote lifecycle states.
type QuoteStatus string

const (
	QuoteStatusDraft     QuoteStatus = "draft"
	QuoteStatusSent      QuoteStatus = "sent"
	QuoteStatusConverted QuoteStatus = "converted"
	QuoteStatusRejected  QuoteStatus = "rejected"
	QuoteStatusExpired   QuoteStatus = "expired"
)

// Terminal reports whether no further transition is allowed from s.
func (s QuoteStatus) Terminal() bool {
	switch s {
	case QuoteStatusConverted, QuoteStatusRejected, QuoteStatusExpired:
		return true
	}
	return false
}

// Quote represents a priced proposal that can convert into an invoice.
// Billing fields are empty until send time, when they snapshot the
// customer's contact details.
type Quote struct {
	ID                   snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID                snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_quotes_org_number,priority:1" json:"organization_id"`
	CustomerID           snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	QuoteNumber          string            `gorm:"column:quote_number;type:text;not null;uniqueIndex:ux_quotes_org_number,priority:2" json:"quote_number"`
	Status               QuoteStatus       `gorm:"type:text;not null;default:'draft'" json:"status"`
	Currency             string            `gorm:"type:text;not null" json:"currency"`
	SubtotalAmount       int64             `gorm:"not null;default:0" json:"subtotal_amount"`
	TaxAmount            int64             `gorm:"not null;default:0" json:"tax_amount"`
	TotalAmount          int64             `gorm:"not null;default:0" json:"total_amount"`
	BillingName          string            `gorm:"column:billing_name;type:text" json:"billing_name"`
	BillingEmail         string            `gorm:"column:billing_email;type:text" json:"billing_email"`
	BillingAddress       string            `gorm:"column:billing_address;type:text" json:"billing_address"`
	PDFPath              *string           `gorm:"column:pdf_path;type:text" json:"pdf_path,omitempty"`
	ConvertedToInvoiceID *string           `gorm:"column:converted_to_invoice_id;type:text" json:"converted_to_invoice_id,omitempty"`
	SentAt               *time.Time        `json:"sent_at,omitempty"`
	AcceptedAt           *time.Time        `json:"accepted_at,omitempty"`
	RejectedAt           *time.Time        `json:"rejected_at,omitempty"`
	ExpiresAt            *time.Time        `json:"expires_at,omitempty"`
	Metadata             datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	Items                []QuoteItem       `gorm:"foreignKey:QuoteID" json:"items,omitempty"`
	CreatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Quote) TableName() string { return "quotes" }

// QuoteItem represents a line on a quote.
type QuoteItem struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"-"`
	QuoteID     snowflake.ID `gorm:"not null;index" json:"-"`
	Position    int          `gorm:"not null" json:"position"`
	Description string       `gorm:"type:text" json:"description"`
	Quantity    int64        `gorm:"not null" json:"quantity"`
	UnitAmount  int64        `gorm:"not null" json:"unit_amount"`
	Amount      int64        `gorm:"not null" json:"amount"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

func (QuoteItem) TableName() string { return "quote_items" }
