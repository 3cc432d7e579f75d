package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallops/dealdesk/internal/audit/domain"
	"github.com/smallops/dealdesk/internal/clock"
	"github.com/smallops/dealdesk/internal/invoice/domain"
	"github.com/smallops/dealdesk/internal/observability/metrics"
	"github.com/smallops/dealdesk/internal/orgcontext"
	"github.com/smallops/dealdesk/internal/providers/pdf"
	"github.com/smallops/dealdesk/pkg/db"
	"github.com/smallops/dealdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Audit   auditdomain.Service
	Metrics *metrics.Metrics
	PDFs    pdf.Queue
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	audit   auditdomain.Service
	metrics *metrics.Metrics
	pdfs    pdf.Queue
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invoice.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		audit:   p.Audit,
		metrics: p.Metrics,
		pdfs:    p.PDFs,
	}
}

func (s *Service) GetByToken(ctx context.Context, token string) (domain.Invoice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Invoice{}, domain.ErrInvalidOrganization
	}

	invoice, err := s.repo.FindByToken(ctx, s.db, orgID, strings.TrimSpace(token))
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return *invoice, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListInvoiceResponse{}, domain.ErrInvalidOrganization
	}

	var status domain.InvoiceStatus
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status = domain.InvoiceStatus(strings.ToLower(raw))
		switch status {
		case domain.InvoiceStatusDraft, domain.InvoiceStatusFinal, domain.InvoiceStatusPaid, domain.InvoiceStatusVoid:
		default:
			return domain.ListInvoiceResponse{}, domain.ErrInvalidStatus
		}
	}

	var customerID snowflake.ID
	if raw := strings.TrimSpace(req.CustomerID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.ListInvoiceResponse{}, domain.ErrNotFound
		}
		customerID = parsed
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	var cursor *pagination.Cursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListInvoiceResponse{}, domain.ErrInvalidStatus
		}
		cursor = decoded
	}

	items, err := s.repo.List(ctx, s.db, orgID, domain.ListFilter{
		Status:     status,
		CustomerID: customerID,
		Cursor:     cursor,
		Limit:      pageSize,
	})
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(invoice *domain.Invoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        invoice.ID.String(),
			CreatedAt: invoice.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	resp := domain.ListInvoiceResponse{Invoices: invoices}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Finalize(ctx context.Context, token string) (domain.Invoice, error) {
	return s.transition(ctx, token, "invoice.finalized", func(invoice *domain.Invoice, now time.Time) error {
		switch invoice.Status {
		case domain.InvoiceStatusDraft:
		case domain.InvoiceStatusFinal:
			return domain.ErrAlreadyFinalized
		default:
			return domain.ErrTerminal
		}
		invoice.Status = domain.InvoiceStatusFinal
		invoice.FinalizedAt = &now
		return nil
	})
}

func (s *Service) Pay(ctx context.Context, token string) (domain.Invoice, error) {
	return s.transition(ctx, token, "invoice.paid", func(invoice *domain.Invoice, now time.Time) error {
		switch invoice.Status {
		case domain.InvoiceStatusFinal:
		case domain.InvoiceStatusDraft:
			return domain.ErrNotPayable
		default:
			return domain.ErrTerminal
		}
		invoice.Status = domain.InvoiceStatusPaid
		invoice.PaidAt = &now
		return nil
	})
}

func (s *Service) Void(ctx context.Context, token string) (domain.Invoice, error) {
	return s.transition(ctx, token, "invoice.voided", func(invoice *domain.Invoice, now time.Time) error {
		switch invoice.Status {
		case domain.InvoiceStatusDraft, domain.InvoiceStatusFinal:
		default:
			return domain.ErrTerminal
		}
		invoice.Status = domain.InvoiceStatusVoid
		invoice.VoidedAt = &now
		return nil
	})
}

func (s *Service) RequestPDF(ctx context.Context, token string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}

	invoice, err := s.repo.FindByToken(ctx, s.db, orgID, strings.TrimSpace(token))
	if err != nil {
		return err
	}
	if invoice == nil {
		return domain.ErrNotFound
	}

	s.enqueuePDF(ctx, invoice)
	return nil
}

// transition loads the invoice under a row lock, applies the state
// change, and writes the audit entry in the same transaction.
func (s *Service) transition(ctx context.Context, token, action string, apply func(*domain.Invoice, time.Time) error) (domain.Invoice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Invoice{}, domain.ErrInvalidOrganization
	}

	var result domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice domain.Invoice
		err := db.ForUpdate(tx).
			Where("org_id = ? AND token = ?", orgID, strings.TrimSpace(token)).
			First(&invoice).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.ErrNotFound
			}
			return err
		}

		now := s.clock.Now()
		if err := apply(&invoice, now); err != nil {
			return err
		}
		invoice.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, &invoice); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:      orgID,
			Action:     action,
			TargetType: "invoice",
			TargetID:   invoice.Token,
			Metadata: map[string]any{
				"invoice_number": invoice.InvoiceNumber,
				"status":         string(invoice.Status),
			},
		}); err != nil {
			return err
		}

		result = invoice
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.metrics.RecordInvoiceTransition(ctx, string(result.Status))
	if result.Status == domain.InvoiceStatusFinal {
		s.enqueuePDF(ctx, &result)
	}

	s.log.Info("invoice transition",
		zap.String("invoice_number", result.InvoiceNumber),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

func (s *Service) enqueuePDF(ctx context.Context, invoice *domain.Invoice) {
	job := pdf.Job{
		Type:  pdf.DocumentInvoice,
		OrgID: invoice.OrgID,
		DocID: invoice.ID,
	}
	if !s.pdfs.Enqueue(job) {
		s.metrics.RecordPDFJob(ctx, string(pdf.DocumentInvoice), "dropped")
		s.log.Warn("pdf queue full, job dropped",
			zap.String("invoice_number", invoice.InvoiceNumber),
		)
		return
	}
	s.metrics.RecordPDFJob(ctx, string(pdf.DocumentInvoice), "enqueued")
}
