package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallops/dealdesk/internal/audit/domain"
	auditrepository "github.com/smallops/dealdesk/internal/audit/repository"
	auditservice "github.com/smallops/dealdesk/internal/audit/service"
	"github.com/smallops/dealdesk/internal/clock"
	"github.com/smallops/dealdesk/internal/invoice/domain"
	invoicerepository "github.com/smallops/dealdesk/internal/invoice/repository"
	"github.com/smallops/dealdesk/internal/orgcontext"
	"github.com/smallops/dealdesk/internal/providers/pdf"
	"github.com/smallops/dealdesk/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func pageRequest(size int, token string) pagination.Pagination {
	return pagination.Pagination{PageSize: size, PageToken: token}
}

type queueStub struct {
	mu   sync.Mutex
	jobs []pdf.Job
}

func (q *queueStub) Enqueue(job pdf.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return true
}

func (q *queueStub) Jobs() []pdf.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]pdf.Job(nil), q.jobs...)
}

type invoiceFixture struct {
	svc   domain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	queue *queueStub
	orgID snowflake.ID
}

func setupInvoiceService(t *testing.T) *invoiceFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(
		&domain.Invoice{},
		&domain.InvoiceItem{},
		&auditdomain.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	queue := &queueStub{}

	auditSvc := auditservice.New(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		Repo:  invoicerepository.Provide(),
		Audit: auditSvc,
		PDFs:  queue,
	})

	return &invoiceFixture{
		svc:   svc,
		db:    db,
		node:  node,
		clock: clk,
		queue: queue,
		orgID: node.Generate(),
	}
}

func (f *invoiceFixture) ctx() context.Context {
	return orgcontext.WithOrg(context.Background(), f.orgID, "northwind")
}

func (f *invoiceFixture) seedInvoice(t *testing.T, status domain.InvoiceStatus) domain.Invoice {
	t.Helper()

	now := f.clock.Now()
	invoice := domain.Invoice{
		ID:             f.node.Generate(),
		Token:          ulid.Make().String(),
		OrgID:          f.orgID,
		CustomerID:     f.node.Generate(),
		InvoiceNumber:  fmt.Sprintf("INV-NORTHWIND-%d", f.node.Generate()),
		Status:         status,
		Currency:       "USD",
		SubtotalAmount: 10000,
		TaxAmount:      2000,
		TotalAmount:    12000,
		BillingName:    "Northwind Traders",
		IssueDate:      now,
		DueDate:        now.AddDate(0, 0, 30),
		Metadata:       datatypes.JSONMap{},
		Items: []domain.InvoiceItem{
			{ID: f.node.Generate(), OrgID: f.orgID, Position: 1, Description: "Consulting", Quantity: 2, UnitAmount: 4000, Amount: 8000, CreatedAt: now},
			{ID: f.node.Generate(), OrgID: f.orgID, Position: 2, Description: "Support", Quantity: 1, UnitAmount: 2000, Amount: 2000, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i := range invoice.Items {
		invoice.Items[i].InvoiceID = invoice.ID
	}
	if err := f.db.Create(&invoice).Error; err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	return invoice
}

func TestGetByTokenScopedToOrg(t *testing.T) {
	f := setupInvoiceService(t)
	invoice := f.seedInvoice(t, domain.InvoiceStatusDraft)

	got, err := f.svc.GetByToken(f.ctx(), invoice.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got.Token != invoice.Token || len(got.Items) != 2 {
		t.Fatalf("unexpected invoice: %+v", got)
	}

	otherOrg := orgcontext.WithOrg(context.Background(), f.node.Generate(), "other")
	if _, err := f.svc.GetByToken(otherOrg, invoice.Token); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across orgs, got %v", err)
	}
}

func TestFinalizeDraftInvoice(t *testing.T) {
	f := setupInvoiceService(t)
	invoice := f.seedInvoice(t, domain.InvoiceStatusDraft)

	finalized, err := f.svc.Finalize(f.ctx(), invoice.Token)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if finalized.Status != domain.InvoiceStatusFinal || finalized.FinalizedAt == nil {
		t.Fatalf("unexpected invoice after finalize: %+v", finalized)
	}

	jobs := f.queue.Jobs()
	if len(jobs) != 1 || jobs[0].Type != pdf.DocumentInvoice {
		t.Fatalf("expected PDF job after finalize, got %+v", jobs)
	}
}

func TestFinalizeTwiceReturnsAlreadyFinalized(t *testing.T) {
	f := setupInvoiceService(t)
	invoice := f.seedInvoice(t, domain.InvoiceStatusDraft)

	if _, err := f.svc.Finalize(f.ctx(), invoice.Token); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	_, err := f.svc.Finalize(f.ctx(), invoice.Token)
	if !errors.Is(err, domain.ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
	if err.Error() != "Invoice is already finalized" {
		t.Fatalf("unexpected error message %q", err.Error())
	}
}

func TestFinalizeTerminalInvoice(t *testing.T) {
	f := setupInvoiceService(t)

	for _, status := range []domain.InvoiceStatus{domain.InvoiceStatusPaid, domain.InvoiceStatusVoid} {
		invoice := f.seedInvoice(t, status)
		if _, err := f.svc.Finalize(f.ctx(), invoice.Token); !errors.Is(err, domain.ErrTerminal) {
			t.Fatalf("status %s: expected ErrTerminal, got %v", status, err)
		}
	}
}

func TestPayRequiresFinal(t *testing.T) {
	f := setupInvoiceService(t)

	draft := f.seedInvoice(t, domain.InvoiceStatusDraft)
	if _, err := f.svc.Pay(f.ctx(), draft.Token); !errors.Is(err, domain.ErrNotPayable) {
		t.Fatalf("expected ErrNotPayable for draft, got %v", err)
	}

	final := f.seedInvoice(t, domain.InvoiceStatusFinal)
	paid, err := f.svc.Pay(f.ctx(), final.Token)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != domain.InvoiceStatusPaid || paid.PaidAt == nil {
		t.Fatalf("unexpected invoice after pay: %+v", paid)
	}

	if _, err := f.svc.Pay(f.ctx(), final.Token); !errors.Is(err, domain.ErrTerminal) {
		t.Fatalf("expected ErrTerminal paying paid invoice, got %v", err)
	}
}

func TestVoidFromDraftAndFinal(t *testing.T) {
	f := setupInvoiceService(t)

	for _, status := range []domain.InvoiceStatus{domain.InvoiceStatusDraft, domain.InvoiceStatusFinal} {
		invoice := f.seedInvoice(t, status)
		voided, err := f.svc.Void(f.ctx(), invoice.Token)
		if err != nil {
			t.Fatalf("void %s: %v", status, err)
		}
		if voided.Status != domain.InvoiceStatusVoid || voided.VoidedAt == nil {
			t.Fatalf("unexpected invoice after void: %+v", voided)
		}
	}

	paid := f.seedInvoice(t, domain.InvoiceStatusPaid)
	if _, err := f.svc.Void(f.ctx(), paid.Token); !errors.Is(err, domain.ErrTerminal) {
		t.Fatalf("expected ErrTerminal voiding paid invoice, got %v", err)
	}
}

func TestTransitionUnknownToken(t *testing.T) {
	f := setupInvoiceService(t)

	if _, err := f.svc.Finalize(f.ctx(), "missing-token"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListInvoicesStatusFilter(t *testing.T) {
	f := setupInvoiceService(t)
	f.seedInvoice(t, domain.InvoiceStatusDraft)
	f.seedInvoice(t, domain.InvoiceStatusFinal)

	resp, err := f.svc.List(f.ctx(), domain.ListInvoiceRequest{Status: "final"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.Invoices) != 1 || resp.Invoices[0].Status != domain.InvoiceStatusFinal {
		t.Fatalf("unexpected filtered result: %+v", resp.Invoices)
	}

	if _, err := f.svc.List(f.ctx(), domain.ListInvoiceRequest{Status: "unknown"}); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestListInvoicesPagination(t *testing.T) {
	f := setupInvoiceService(t)
	for i := 0; i < 5; i++ {
		f.seedInvoice(t, domain.InvoiceStatusDraft)
		f.clock.Advance(time.Minute)
	}

	first, err := f.svc.List(f.ctx(), domain.ListInvoiceRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Invoices) != 5 {
		t.Fatalf("expected 5 invoices, got %d", len(first.Invoices))
	}

	paged, err := f.svc.List(f.ctx(), domain.ListInvoiceRequest{
		Pagination: pageRequest(2, ""),
	})
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if len(paged.Invoices) != 2 || !paged.HasMore {
		t.Fatalf("expected 2 invoices with more pages, got %d (hasMore=%v)", len(paged.Invoices), paged.HasMore)
	}

	rest, err := f.svc.List(f.ctx(), domain.ListInvoiceRequest{
		Pagination: pageRequest(10, paged.NextPageToken),
	})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(rest.Invoices)+len(paged.Invoices) != 5 {
		t.Fatalf("pages do not cover all invoices: %d + %d", len(paged.Invoices), len(rest.Invoices))
	}
	for _, a := range paged.Invoices {
		for _, b := range rest.Invoices {
			if a.Token == b.Token {
				t.Fatalf("invoice %s appeared on both pages", a.Token)
			}
		}
	}
}

func TestRequestPDFEnqueues(t *testing.T) {
	f := setupInvoiceService(t)
	invoice := f.seedInvoice(t, domain.InvoiceStatusFinal)

	if err := f.svc.RequestPDF(f.ctx(), invoice.Token); err != nil {
		t.Fatalf("request pdf: %v", err)
	}

	jobs := f.queue.Jobs()
	if len(jobs) != 1 || jobs[0].DocID != invoice.ID {
		t.Fatalf("expected PDF job for %s, got %+v", invoice.ID, jobs)
	}
}

func TestTransitionsWriteAuditEntries(t *testing.T) {
	f := setupInvoiceService(t)
	invoice := f.seedInvoice(t, domain.InvoiceStatusDraft)

	if _, err := f.svc.Finalize(f.ctx(), invoice.Token); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	f.clock.Advance(time.Minute)
	if _, err := f.svc.Pay(f.ctx(), invoice.Token); err != nil {
		t.Fatalf("pay: %v", err)
	}

	var actions []string
	if err := f.db.Model(&auditdomain.AuditLog{}).
		Where("org_id = ? AND target_id = ?", f.orgID, invoice.Token).
		Order("created_at asc").
		Pluck("action", &actions).Error; err != nil {
		t.Fatalf("load audit actions: %v", err)
	}
	if len(actions) != 2 || actions[0] != "invoice.finalized" || actions[1] != "invoice.paid" {
		t.Fatalf("unexpected audit actions %v", actions)
	}
}
