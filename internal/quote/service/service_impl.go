package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallops/dealdesk/internal/audit/domain"
	"github.com/smallops/dealdesk/internal/clock"
	"github.com/smallops/dealdesk/internal/config"
	customerdomain "github.com/smallops/dealdesk/internal/customer/domain"
	invoicedomain "github.com/smallops/dealdesk/internal/invoice/domain"
	"github.com/smallops/dealdesk/internal/invoice/sequence"
	"github.com/smallops/dealdesk/internal/observability/metrics"
	"github.com/smallops/dealdesk/internal/orgcontext"
	"github.com/smallops/dealdesk/internal/providers/pdf"
	"github.com/smallops/dealdesk/internal/quote/domain"
	"github.com/smallops/dealdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Docs      *config.DocumentsConfigHolder
	Repo      domain.Repository
	Customers customerdomain.Repository
	Invoices  invoicedomain.Repository
	Sequences *sequence.Allocator
	Audit     auditdomain.Service
	Metrics   *metrics.Metrics
	PDFs      pdf.Queue
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	docs      *config.DocumentsConfigHolder
	repo      domain.Repository
	customers customerdomain.Repository
	invoices  invoicedomain.Repository
	sequences *sequence.Allocator
	audit     auditdomain.Service
	metrics   *metrics.Metrics
	pdfs      pdf.Queue
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("quote.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		docs:      p.Docs,
		repo:      p.Repo,
		customers: p.Customers,
		invoices:  p.Invoices,
		sequences: p.Sequences,
		audit:     p.Audit,
		metrics:   p.Metrics,
		pdfs:      p.PDFs,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateQuoteRequest) (domain.Quote, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Quote{}, domain.ErrInvalidOrganization
	}
	slug, _ := orgcontext.OrgSlugFromContext(ctx)

	customerID, err := parseID(req.CustomerID)
	if err != nil {
		return domain.Quote{}, domain.ErrCustomerNotFound
	}
	customer, err := s.customers.FindByID(ctx, s.db, orgID, customerID)
	if err != nil {
		return domain.Quote{}, err
	}
	if customer == nil {
		return domain.Quote{}, domain.ErrCustomerNotFound
	}

	docs := s.docs.Get()
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = docs.DefaultCurrency
	}
	if currency == "" {
		return domain.Quote{}, domain.ErrInvalidCurrency
	}

	items, subtotal, err := buildItems(req.Items)
	if err != nil {
		return domain.Quote{}, err
	}
	if req.TaxAmount < 0 {
		return domain.Quote{}, domain.ErrInvalidAmounts
	}

	now := s.clock.Now()
	expiresAt := req.ExpiresAt
	if expiresAt == nil && docs.QuoteValidityDays > 0 {
		at := now.AddDate(0, 0, docs.QuoteValidityDays)
		expiresAt = &at
	}

	quote := domain.Quote{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		CustomerID:     customerID,
		Status:         domain.QuoteStatusDraft,
		Currency:       currency,
		SubtotalAmount: subtotal,
		TaxAmount:      req.TaxAmount,
		TotalAmount:    subtotal + req.TaxAmount,
		ExpiresAt:      expiresAt,
		Metadata:       datatypes.JSONMap{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i := range items {
		items[i].ID = s.genID.Generate()
		items[i].OrgID = orgID
		items[i].QuoteID = quote.ID
		items[i].CreatedAt = now
	}
	quote.Items = items

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := s.sequences.NextQuote(ctx, tx, orgID)
		if err != nil {
			return err
		}
		quote.QuoteNumber = documentNumber("QUO", slug, seq)

		if err := s.repo.Insert(ctx, tx, &quote); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:      orgID,
			Action:     "quote.created",
			TargetType: "quote",
			TargetID:   quote.ID.String(),
			Metadata:   map[string]any{"quote_number": quote.QuoteNumber},
		})
	})
	if err != nil {
		return domain.Quote{}, err
	}

	s.metrics.RecordQuoteTransition(ctx, string(domain.QuoteStatusDraft))
	return quote, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Quote, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Quote{}, domain.ErrInvalidOrganization
	}

	quoteID, err := parseID(id)
	if err != nil {
		return domain.Quote{}, domain.ErrNotFound
	}
	quote, err := s.repo.FindByID(ctx, s.db, orgID, quoteID)
	if err != nil {
		return domain.Quote{}, err
	}
	if quote == nil {
		return domain.Quote{}, domain.ErrNotFound
	}
	return *quote, nil
}

func (s *Service) List(ctx context.Context, req domain.ListQuoteRequest) (domain.ListQuoteResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListQuoteResponse{}, domain.ErrInvalidOrganization
	}

	var status domain.QuoteStatus
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status = domain.QuoteStatus(strings.ToLower(raw))
		switch status {
		case domain.QuoteStatusDraft, domain.QuoteStatusSent, domain.QuoteStatusConverted,
			domain.QuoteStatusRejected, domain.QuoteStatusExpired:
		default:
			return domain.ListQuoteResponse{}, domain.ErrInvalidStatus
		}
	}

	var customerID snowflake.ID
	if raw := strings.TrimSpace(req.CustomerID); raw != "" {
		parsed, err := parseID(raw)
		if err != nil {
			return domain.ListQuoteResponse{}, domain.ErrCustomerNotFound
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
			return domain.ListQuoteResponse{}, domain.ErrInvalidStatus
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
		return domain.ListQuoteResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(quote *domain.Quote) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        quote.ID.String(),
			CreatedAt: quote.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	quotes := make([]domain.Quote, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		quotes = append(quotes, *item)
	}

	resp := domain.ListQuoteResponse{Quotes: quotes}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateQuoteRequest) (domain.Quote, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Quote{}, domain.ErrInvalidOrganization
	}

	quoteID, err := parseID(req.ID)
	if err != nil {
		return domain.Quote{}, domain.ErrNotFound
	}

	var result domain.Quote
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quote, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, quoteID)
		if err != nil {
			return err
		}
		if quote == nil {
			return domain.ErrNotFound
		}
		if quote.Status != domain.QuoteStatusDraft {
			return domain.ErrNotDraft
		}

		if req.CustomerID != nil {
			customerID, err := parseID(*req.CustomerID)
			if err != nil {
				return domain.ErrCustomerNotFound
			}
			customer, err := s.customers.FindByID(ctx, tx, orgID, customerID)
			if err != nil {
				return err
			}
			if customer == nil {
				return domain.ErrCustomerNotFound
			}
			quote.CustomerID = customerID
		}
		if req.Currency != nil {
			currency := strings.ToUpper(strings.TrimSpace(*req.Currency))
			if currency == "" {
				return domain.ErrInvalidCurrency
			}
			quote.Currency = currency
		}
		if req.TaxAmount != nil {
			if *req.TaxAmount < 0 {
				return domain.ErrInvalidAmounts
			}
			quote.TaxAmount = *req.TaxAmount
		}
		if req.ExpiresAt != nil {
			quote.ExpiresAt = req.ExpiresAt
		}

		now := s.clock.Now()
		if req.Items != nil {
			items, subtotal, err := buildItems(req.Items)
			if err != nil {
				return err
			}
			for i := range items {
				items[i].ID = s.genID.Generate()
				items[i].OrgID = orgID
				items[i].QuoteID = quote.ID
				items[i].CreatedAt = now
			}
			if err := s.repo.ReplaceItems(ctx, tx, quote.ID, items); err != nil {
				return err
			}
			quote.SubtotalAmount = subtotal
			quote.Items = items
		}
		quote.TotalAmount = quote.SubtotalAmount + quote.TaxAmount
		quote.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, quote); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:      orgID,
			Action:     "quote.updated",
			TargetType: "quote",
			TargetID:   quote.ID.String(),
			Metadata:   map[string]any{"quote_number": quote.QuoteNumber},
		}); err != nil {
			return err
		}

		result = *quote
		return nil
	})
	if err != nil {
		return domain.Quote{}, err
	}

	if result.Items == nil {
		items, err := s.repo.FindItems(ctx, s.db, result.ID)
		if err == nil {
			result.Items = items
		}
	}
	return result, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}

	quoteID, err := parseID(id)
	if err != nil {
		return domain.ErrNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quote, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, quoteID)
		if err != nil {
			return err
		}
		if quote == nil {
			return domain.ErrNotFound
		}
		if quote.Status != domain.QuoteStatusDraft {
			return domain.ErrNotDraft
		}

		if err := s.repo.Delete(ctx, tx, orgID, quote.ID); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:      orgID,
			Action:     "quote.deleted",
			TargetType: "quote",
			TargetID:   quote.ID.String(),
			Metadata:   map[string]any{"quote_number": quote.QuoteNumber},
		})
	})
}

func (s *Service) Send(ctx context.Context, id string) (domain.Quote, error) {
	quote, err := s.transition(ctx, id, "quote.sent", func(tx *gorm.DB, quote *domain.Quote, now time.Time) error {
		if quote.Status != domain.QuoteStatusDraft {
			return domain.ErrNotDraft
		}

		customer, err := s.customers.FindByID(ctx, tx, quote.OrgID, quote.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return domain.ErrCustomerNotFound
		}

		quote.Status = domain.QuoteStatusSent
		quote.SentAt = &now
		quote.BillingName = customer.Name
		quote.BillingEmail = customer.Email
		quote.BillingAddress = formatAddress(customer)
		return nil
	})
	if err != nil {
		return domain.Quote{}, err
	}

	s.enqueuePDF(ctx, pdf.DocumentQuote, quote.OrgID, quote.ID, quote.QuoteNumber)
	return quote, nil
}

func (s *Service) Reject(ctx context.Context, id string) (domain.Quote, error) {
	return s.transition(ctx, id, "quote.rejected", func(tx *gorm.DB, quote *domain.Quote, now time.Time) error {
		if quote.Status != domain.QuoteStatusSent {
			return domain.ErrNotSent
		}
		quote.Status = domain.QuoteStatusRejected
		quote.RejectedAt = &now
		return nil
	})
}

func (s *Service) Expire(ctx context.Context, id string) (domain.Quote, error) {
	return s.transition(ctx, id, "quote.expired", func(tx *gorm.DB, quote *domain.Quote, now time.Time) error {
		if quote.Status != domain.QuoteStatusSent {
			return domain.ErrNotSent
		}
		quote.Status = domain.QuoteStatusExpired
		if quote.ExpiresAt == nil || quote.ExpiresAt.After(now) {
			quote.ExpiresAt = &now
		}
		return nil
	})
}

func (s *Service) Accept(ctx context.Context, req domain.AcceptQuoteRequest) (domain.AcceptQuoteResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.AcceptQuoteResult{}, domain.ErrInvalidOrganization
	}
	slug, _ := orgcontext.OrgSlugFromContext(ctx)

	quoteID, err := parseID(req.ID)
	if err != nil {
		return domain.AcceptQuoteResult{}, domain.ErrNotFound
	}

	now := s.clock.Now()
	issueDate := now
	if raw := strings.TrimSpace(req.IssueDate); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return domain.AcceptQuoteResult{}, domain.ErrInvalidDate
		}
		issueDate = parsed
	}
	dueDays := s.docs.Get().InvoiceDueDays
	if dueDays <= 0 {
		dueDays = 30
	}
	dueDate := issueDate.AddDate(0, 0, dueDays)
	if raw := strings.TrimSpace(req.DueDate); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return domain.AcceptQuoteResult{}, domain.ErrInvalidDate
		}
		dueDate = parsed
	}
	if dueDate.Before(issueDate) {
		return domain.AcceptQuoteResult{}, domain.ErrDueBeforeIssue
	}

	var result domain.AcceptQuoteResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quote, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, quoteID)
		if err != nil {
			return err
		}
		if quote == nil {
			return domain.ErrNotFound
		}
		if quote.Status != domain.QuoteStatusSent {
			return domain.ErrNotSent
		}
		if quote.ExpiresAt != nil && now.After(*quote.ExpiresAt) {
			return domain.ErrExpired
		}

		items, err := s.repo.FindItems(ctx, tx, quote.ID)
		if err != nil {
			return err
		}

		seq, err := s.sequences.NextInvoice(ctx, tx, orgID)
		if err != nil {
			return err
		}

		invoice := invoicedomain.Invoice{
			ID:             s.genID.Generate(),
			Token:          ulid.Make().String(),
			OrgID:          orgID,
			CustomerID:     quote.CustomerID,
			QuoteID:        &quote.ID,
			InvoiceNumber:  documentNumber("INV", slug, seq),
			Status:         invoicedomain.InvoiceStatusDraft,
			Currency:       quote.Currency,
			SubtotalAmount: quote.SubtotalAmount,
			TaxAmount:      quote.TaxAmount,
			TotalAmount:    quote.TotalAmount,
			BillingName:    quote.BillingName,
			BillingEmail:   quote.BillingEmail,
			BillingAddress: quote.BillingAddress,
			IssueDate:      issueDate,
			DueDate:        dueDate,
			Metadata:       datatypes.JSONMap{},
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		for _, item := range items {
			invoice.Items = append(invoice.Items, invoicedomain.InvoiceItem{
				ID:          s.genID.Generate(),
				OrgID:       orgID,
				InvoiceID:   invoice.ID,
				Position:    item.Position,
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitAmount:  item.UnitAmount,
				Amount:      item.Amount,
				CreatedAt:   now,
			})
		}

		if err := s.invoices.Insert(ctx, tx, &invoice); err != nil {
			return err
		}

		quote.Status = domain.QuoteStatusConverted
		quote.AcceptedAt = &now
		quote.ConvertedToInvoiceID = &invoice.Token
		quote.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, quote); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:      orgID,
			Action:     "quote.converted",
			TargetType: "quote",
			TargetID:   quote.ID.String(),
			Metadata: map[string]any{
				"quote_number":   quote.QuoteNumber,
				"invoice_id":     invoice.Token,
				"invoice_number": invoice.InvoiceNumber,
			},
		}); err != nil {
			return err
		}

		quote.Items = items
		result = domain.AcceptQuoteResult{Quote: *quote, Invoice: invoice}
		return nil
	})
	if err != nil {
		return domain.AcceptQuoteResult{}, err
	}

	s.metrics.RecordQuoteTransition(ctx, string(domain.QuoteStatusConverted))
	s.metrics.RecordQuoteConversion(ctx, result.Invoice.Currency)
	s.enqueuePDF(ctx, pdf.DocumentInvoice, result.Invoice.OrgID, result.Invoice.ID, result.Invoice.InvoiceNumber)

	s.log.Info("quote converted",
		zap.String("quote_number", result.Quote.QuoteNumber),
		zap.String("invoice_number", result.Invoice.InvoiceNumber),
	)
	return result, nil
}

func (s *Service) RequestPDF(ctx context.Context, id string) error {
	quote, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	s.enqueuePDF(ctx, pdf.DocumentQuote, quote.OrgID, quote.ID, quote.QuoteNumber)
	return nil
}

// transition loads the quote under a row lock, applies the state
// change, and writes the audit entry in the same transaction.
func (s *Service) transition(ctx context.Context, id, action string, apply func(*gorm.DB, *domain.Quote, time.Time) error) (domain.Quote, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Quote{}, domain.ErrInvalidOrganization
	}

	quoteID, err := parseID(id)
	if err != nil {
		return domain.Quote{}, domain.ErrNotFound
	}

	var result domain.Quote
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quote, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, quoteID)
		if err != nil {
			return err
		}
		if quote == nil {
			return domain.ErrNotFound
		}

		now := s.clock.Now()
		if err := apply(tx, quote, now); err != nil {
			return err
		}
		quote.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, quote); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:      orgID,
			Action:     action,
			TargetType: "quote",
			TargetID:   quote.ID.String(),
			Metadata: map[string]any{
				"quote_number": quote.QuoteNumber,
				"status":       string(quote.Status),
			},
		}); err != nil {
			return err
		}

		result = *quote
		return nil
	})
	if err != nil {
		return domain.Quote{}, err
	}

	s.metrics.RecordQuoteTransition(ctx, string(result.Status))
	return result, nil
}

func (s *Service) enqueuePDF(ctx context.Context, docType pdf.DocumentType, orgID, docID snowflake.ID, number string) {
	job := pdf.Job{Type: docType, OrgID: orgID, DocID: docID}
	if !s.pdfs.Enqueue(job) {
		s.metrics.RecordPDFJob(ctx, string(docType), "dropped")
		s.log.Warn("pdf queue full, job dropped", zap.String("document_number", number))
		return
	}
	s.metrics.RecordPDFJob(ctx, string(docType), "enqueued")
}

func buildItems(inputs []domain.LineItemInput) ([]domain.QuoteItem, int64, error) {
	if len(inputs) == 0 {
		return nil, 0, domain.ErrEmptyItems
	}

	items := make([]domain.QuoteItem, 0, len(inputs))
	var subtotal int64
	for i, input := range inputs {
		if input.Quantity <= 0 || input.UnitAmount < 0 {
			return nil, 0, domain.ErrInvalidAmounts
		}
		amount := input.Quantity * input.UnitAmount
		subtotal += amount
		items = append(items, domain.QuoteItem{
			Position:    i + 1,
			Description: strings.TrimSpace(input.Description),
			Quantity:    input.Quantity,
			UnitAmount:  input.UnitAmount,
			Amount:      amount,
		})
	}
	return items, subtotal, nil
}

func documentNumber(prefix, slug string, seq int64) string {
	slug = strings.ToUpper(strings.TrimSpace(slug))
	if slug == "" {
		slug = "ORG"
	}
	return prefix + "-" + slug + "-" + strconv.FormatInt(seq, 10)
}

func parseID(raw string) (snowflake.ID, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, domain.ErrNotFound
	}
	return snowflake.ParseString(value)
}

func parseDate(raw string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", raw)
}

func formatAddress(customer *customerdomain.Customer) string {
	parts := make([]string, 0, 4)
	for _, part := range []string{customer.AddressLine1, customer.AddressLine2, customer.City, customer.PostalCode, customer.Country} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, ", ")
}
