// Package pdf renders quote and invoice documents to PDF artifacts.
//
// Rendering runs on a background worker fed through a bounded queue;
// request handlers only enqueue and never block on generation.
package pdf

import "github.com/bwmarrin/snowflake"

// DocumentType identifies which renderer a job needs.
type DocumentType string

const (
	DocumentQuote   DocumentType = "quote"
	DocumentInvoice DocumentType = "invoice"
)

// Job references a document to render.
type Job struct {
	Type  DocumentType
	OrgID snowflake.ID
	DocID snowflake.ID
}

// Queue accepts rendering jobs. Enqueue reports false when the queue is
// full; callers treat a dropped job as retryable, not fatal.
type Queue interface {
	Enqueue(job Job) bool
}
