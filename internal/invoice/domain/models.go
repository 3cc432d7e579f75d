// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusFinal InvoiceStatus = "final"
	InvoiceStatusPaid  InvoiceStatus = "paid"
	InvoiceStatusVoid  InvoiceStatus = "void"
)

// Invoice represents a billing document. Token is the opaque public
// identifier exposed on the API; the snowflake ID stays internal.
type Invoice struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"-"`
	Token          string            `gorm:"type:text;not null;uniqueIndex:ux_invoices_token" json:"id"`
	OrgID          snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_invoices_org_number,priority:1" json:"organization_id"`
	CustomerID     snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	SubscriptionID *snowflake.ID     `gorm:"index" json:"subscription_id,omitempty"`
	QuoteID        *snowflake.ID     `gorm:"index" json:"quote_id,omitempty"`
	InvoiceNumber  string            `gorm:"column:invoice_number;type:text;not null;uniqueIndex:ux_invoices_org_number,priority:2" json:"invoice_number"`
	Status         InvoiceStatus     `gorm:"type:text;not null;default:'draft'" json:"status"`
	Currency       string            `gorm:"type:text;not null" json:"currency"`
	SubtotalAmount int64             `gorm:"not null;default:0" json:"subtotal_amount"`
	TaxAmount      int64             `gorm:"not null;default:0" json:"tax_amount"`
	TotalAmount    int64             `gorm:"not null;default:0" json:"total_amount"`
	BillingName    string            `gorm:"column:billing_name;type:text" json:"billing_name"`
	BillingEmail   string            `gorm:"column:billing_email;type:text" json:"billing_email"`
	BillingAddress string            `gorm:"column:billing_address;type:text" json:"billing_address"`
	IssueDate      time.Time         `gorm:"column:issue_date;not null" json:"issue_date"`
	DueDate        time.Time         `gorm:"column:due_date;not null" json:"due_date"`
	FinalizedAt    *time.Time        `json:"finalized_at,omitempty"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	VoidedAt       *time.Time        `json:"voided_at,omitempty"`
	PDFPath        *string           `gorm:"column:pdf_path;type:text" json:"pdf_path,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	Items          []InvoiceItem     `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"-"`
	InvoiceID   snowflake.ID `gorm:"not null;index" json:"-"`
	Position    int          `gorm:"not null" json:"position"`
	Description string       `gorm:"type:text" json:"description"`
	Quantity    int64        `gorm:"not null" json:"quantity"`
	UnitAmount  int64        `gorm:"not null" json:"unit_amount"`
	Amount      int64        `gorm:"not null" json:"amount"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

func (InvoiceItem) TableName() string { return "invoice_items" }

// DocumentSequence holds per-organization monotonic counters for
// document numbering. The row is locked inside the allocating
// transaction so concurrent accepts cannot observe the same value.
type DocumentSequence struct {
	OrgID      snowflake.ID `gorm:"primaryKey" json:"org_id"`
	InvoiceSeq int64        `gorm:"column:invoice_seq;not null" json:"invoice_seq"`
	QuoteSeq   int64        `gorm:"column:quote_seq;not null" json:"quote_seq"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (DocumentSequence) TableName() string { return "document_sequences" }
