package pdf

import (
	"context"
	"sync"

	"github.com/smallops/dealdesk/internal/config"
	invoicedomain "github.com/smallops/dealdesk/internal/invoice/domain"
	"github.com/smallops/dealdesk/internal/observability/metrics"
	orgrepository "github.com/smallops/dealdesk/internal/organization/repository"
	quotedomain "github.com/smallops/dealdesk/internal/quote/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type WorkerParams struct {
	fx.In

	Lc       fx.Lifecycle
	DB       *gorm.DB
	Log      *zap.Logger
	Docs     *config.DocumentsConfigHolder
	Renderer *Renderer
	Store    *Store
	Quotes   quotedomain.Repository
	Invoices invoicedomain.Repository
	Orgs     orgrepository.Repository
	Metrics  *metrics.Metrics
}

// Worker renders queued documents on a background goroutine and writes
// the artifact path back onto the document row. Failures are logged
// and swallowed; the document simply keeps a null pdf_path.
type Worker struct {
	db       *gorm.DB
	log      *zap.Logger
	renderer *Renderer
	store    *Store
	quotes   quotedomain.Repository
	invoices invoicedomain.Repository
	orgs     orgrepository.Repository
	metrics  *metrics.Metrics

	jobs   chan Job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(p WorkerParams) Queue {
	size := p.Docs.Get().PDFWorkerQueueSize
	if size <= 0 {
		size = 64
	}

	w := &Worker{
		db:       p.DB,
		log:      p.Log.Named("pdf.worker"),
		renderer: p.Renderer,
		store:    p.Store,
		quotes:   p.Quotes,
		invoices: p.Invoices,
		orgs:     p.Orgs,
		metrics:  p.Metrics,
		jobs:     make(chan Job, size),
	}

	p.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			w.cancel = cancel
			w.wg.Add(1)
			go w.run(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			w.cancel()
			done := make(chan struct{})
			go func() {
				w.wg.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})

	return w
}

func (w *Worker) Enqueue(job Job) bool {
	select {
	case w.jobs <- job:
		return true
	default:
		return false
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	var err error
	switch job.Type {
	case DocumentQuote:
		err = w.renderQuote(ctx, job)
	case DocumentInvoice:
		err = w.renderInvoice(ctx, job)
	}
	if err != nil {
		w.metrics.RecordPDFJob(ctx, string(job.Type), "failed")
		w.log.Warn("pdf generation failed",
			zap.String("document_type", string(job.Type)),
			zap.String("document_id", job.DocID.String()),
			zap.Error(err),
		)
		return
	}
	w.metrics.RecordPDFJob(ctx, string(job.Type), "rendered")
}

func (w *Worker) renderQuote(ctx context.Context, job Job) error {
	quote, err := w.quotes.FindByID(ctx, w.db, job.OrgID, job.DocID)
	if err != nil {
		return err
	}
	if quote == nil {
		return quotedomain.ErrNotFound
	}

	data := DocumentData{
		Title:         "Quote",
		Number:        quote.QuoteNumber,
		Status:        string(quote.Status),
		BillToName:    quote.BillingName,
		BillToEmail:   quote.BillingEmail,
		BillToAddress: quote.BillingAddress,
		Subtotal:      FormatAmount(quote.SubtotalAmount, quote.Currency),
		Tax:           FormatAmount(quote.TaxAmount, quote.Currency),
		Total:         FormatAmount(quote.TotalAmount, quote.Currency),
		Currency:      quote.Currency,
		IssueDate:     FormatDate(quote.CreatedAt),
	}
	if quote.ExpiresAt != nil {
		data.DueDate = FormatDate(*quote.ExpiresAt)
	}
	w.fillOrg(ctx, job, &data)
	for _, item := range quote.Items {
		data.Items = append(data.Items, DocumentItem{
			Description: item.Description,
			Qty:         item.Quantity,
			UnitPrice:   FormatAmount(item.UnitAmount, quote.Currency),
			Amount:      FormatAmount(item.Amount, quote.Currency),
		})
	}

	path, err := w.render(data)
	if err != nil {
		return err
	}
	return w.db.WithContext(ctx).
		Model(&quotedomain.Quote{}).
		Where("org_id = ? AND id = ?", job.OrgID, job.DocID).
		Update("pdf_path", path).Error
}

func (w *Worker) renderInvoice(ctx context.Context, job Job) error {
	invoice, err := w.invoices.FindByID(ctx, w.db, job.OrgID, job.DocID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return invoicedomain.ErrNotFound
	}

	data := DocumentData{
		Title:         "Invoice",
		Number:        invoice.InvoiceNumber,
		Status:        string(invoice.Status),
		BillToName:    invoice.BillingName,
		BillToEmail:   invoice.BillingEmail,
		BillToAddress: invoice.BillingAddress,
		Subtotal:      FormatAmount(invoice.SubtotalAmount, invoice.Currency),
		Tax:           FormatAmount(invoice.TaxAmount, invoice.Currency),
		Total:         FormatAmount(invoice.TotalAmount, invoice.Currency),
		Currency:      invoice.Currency,
		IssueDate:     FormatDate(invoice.IssueDate),
		DueDate:       FormatDate(invoice.DueDate),
	}
	w.fillOrg(ctx, job, &data)
	for _, item := range invoice.Items {
		data.Items = append(data.Items, DocumentItem{
			Description: item.Description,
			Qty:         item.Quantity,
			UnitPrice:   FormatAmount(item.UnitAmount, invoice.Currency),
			Amount:      FormatAmount(item.Amount, invoice.Currency),
		})
	}

	path, err := w.render(data)
	if err != nil {
		return err
	}
	return w.db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("org_id = ? AND id = ?", job.OrgID, job.DocID).
		Update("pdf_path", path).Error
}

func (w *Worker) fillOrg(ctx context.Context, job Job, data *DocumentData) {
	org, err := w.orgs.GetByID(ctx, job.OrgID)
	if err != nil || org == nil {
		return
	}
	data.OrgName = org.Name
	data.OrgEmail = org.SupportEmail
}

func (w *Worker) render(data DocumentData) (string, error) {
	raw, err := w.renderer.Render(data)
	if err != nil {
		return "", err
	}
	return w.store.Save(raw)
}
