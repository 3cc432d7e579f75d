package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallops/dealdesk/internal/apikey"
	apikeydomain "github.com/smallops/dealdesk/internal/apikey/domain"
	"github.com/smallops/dealdesk/internal/audit"
	auditdomain "github.com/smallops/dealdesk/internal/audit/domain"
	"github.com/smallops/dealdesk/internal/auth"
	authdomain "github.com/smallops/dealdesk/internal/auth/domain"
	"github.com/smallops/dealdesk/internal/auth/session"
	"github.com/smallops/dealdesk/internal/authorization"
	"github.com/smallops/dealdesk/internal/clock"
	"github.com/smallops/dealdesk/internal/config"
	"github.com/smallops/dealdesk/internal/customer"
	customerdomain "github.com/smallops/dealdesk/internal/customer/domain"
	"github.com/smallops/dealdesk/internal/invoice"
	invoicedomain "github.com/smallops/dealdesk/internal/invoice/domain"
	"github.com/smallops/dealdesk/internal/migration"
	"github.com/smallops/dealdesk/internal/observability"
	obsmiddleware "github.com/smallops/dealdesk/internal/observability/logger"
	obsmetrics "github.com/smallops/dealdesk/internal/observability/metrics"
	obstracing "github.com/smallops/dealdesk/internal/observability/tracing"
	"github.com/smallops/dealdesk/internal/organization"
	organizationdomain "github.com/smallops/dealdesk/internal/organization/domain"
	"github.com/smallops/dealdesk/internal/product"
	productdomain "github.com/smallops/dealdesk/internal/product/domain"
	"github.com/smallops/dealdesk/internal/providers/pdf"
	"github.com/smallops/dealdesk/internal/quote"
	quotedomain "github.com/smallops/dealdesk/internal/quote/domain"
	"github.com/smallops/dealdesk/internal/ratelimit"
	"github.com/smallops/dealdesk/internal/subscription"
	subscriptiondomain "github.com/smallops/dealdesk/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	auth.Module,
	session.Module,
	apikey.Module,
	customer.Module,
	organization.Module,
	product.Module,
	subscription.Module,
	quote.Module,
	invoice.Module,
	pdf.Module,
	ratelimit.Module,
	migration.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", httpMetrics.Handler())

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	sessions        *session.Manager
	authSvc         authdomain.Service
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	organizationSvc organizationdomain.Service
	customerSvc     customerdomain.Service
	quoteSvc        quotedomain.Service
	invoiceSvc      invoicedomain.Service
	productSvc      productdomain.Service
	subscriptionSvc subscriptiondomain.Service
	apiKeySvc       apikeydomain.Service
	pdfStore        *pdf.Store
	limiter         ratelimit.Limiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Sessions        *session.Manager
	AuthSvc         authdomain.Service
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	OrganizationSvc organizationdomain.Service
	CustomerSvc     customerdomain.Service
	QuoteSvc        quotedomain.Service
	InvoiceSvc      invoicedomain.Service
	ProductSvc      productdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	APIKeySvc       apikeydomain.Service
	PDFStore        *pdf.Store
	Limiter         ratelimit.Limiter
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("http.server"),
		genID:           p.GenID,
		clock:           p.Clock,
		sessions:        p.Sessions,
		authSvc:         p.AuthSvc,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		organizationSvc: p.OrganizationSvc,
		customerSvc:     p.CustomerSvc,
		quoteSvc:        p.QuoteSvc,
		invoiceSvc:      p.InvoiceSvc,
		productSvc:      p.ProductSvc,
		subscriptionSvc: p.SubscriptionSvc,
		apiKeySvc:       p.APIKeySvc,
		pdfStore:        p.PDFStore,
		limiter:         p.Limiter,
		obsMetrics:      p.ObsMetrics,
	}

	s.registerAuthRoutes()
	s.registerTenantRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.SessionRequired(), s.Me)
	auth.POST("/change-password", s.SessionRequired(), s.ChangePassword)
}

func (s *Server) registerTenantRoutes() {
	api := s.engine.Group("/api/tenant/:tenant", s.SessionRequired(), s.TenantContext())

	api.GET("/quotes", s.ListQuotes)
	api.POST("/quotes", s.CreateQuote)
	api.GET("/quotes/:quoteId", s.GetQuote)
	api.PUT("/quotes/:quoteId", s.UpdateQuote)
	api.DELETE("/quotes/:quoteId", s.DeleteQuote)
	api.POST("/quotes/:quoteId/send", s.SendQuote)
	api.POST("/quotes/:quoteId/accept", s.AcceptQuote)
	api.POST("/quotes/:quoteId/reject", s.RejectQuote)
	api.POST("/quotes/:quoteId/expire", s.ExpireQuote)
	api.GET("/quotes/:quoteId/pdf", s.DownloadQuotePDF)
	api.POST("/quotes/:quoteId/pdf", s.RateLimit("quote_pdf_regenerate", 0.2, 5), s.RegenerateQuotePDF)

	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:invoiceId", s.GetInvoice)
	api.POST("/invoices/:invoiceId/finalize", s.FinalizeInvoice)
	api.POST("/invoices/:invoiceId/pay", s.PayInvoice)
	api.POST("/invoices/:invoiceId/void", s.VoidInvoice)
	api.GET("/invoices/:invoiceId/pdf", s.DownloadInvoicePDF)
	api.POST("/invoices/:invoiceId/pdf", s.RateLimit("invoice_pdf_regenerate", 0.2, 5), s.RegenerateInvoicePDF)

	api.GET("/customers", s.ListCustomers)
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers/:customerId", s.GetCustomer)
	api.PUT("/customers/:customerId", s.UpdateCustomer)
	api.GET("/customers/:customerId/subscriptions", s.ListCustomerSubscriptions)

	api.GET("/users", s.ListMembers)
	api.GET("/members/:memberId/audit-logs",
		s.AuthorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView),
		s.ListMemberAuditLogs)

	api.GET("/plans", s.ListPlans)
	api.GET("/plans/:planId", s.GetPlan)

	api.GET("/api-keys",
		s.AuthorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyView),
		s.ListAPIKeys)
	api.POST("/api-keys",
		s.AuthorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyCreate),
		s.RateLimit("api_key_create", 0.1, 5),
		s.CreateAPIKey)
	api.DELETE("/api-keys/:keyId",
		s.AuthorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyRevoke),
		s.RevokeAPIKey)

	api.GET("/audit-logs",
		s.AuthorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView),
		s.ListAuditLogs)

	api.GET("/settings", s.GetSettings)
}
