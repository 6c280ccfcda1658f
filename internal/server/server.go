package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/opencampus/campuspay/internal/address"
	"github.com/opencampus/campuspay/internal/audit"
	auditdomain "github.com/opencampus/campuspay/internal/audit/domain"
	"github.com/opencampus/campuspay/internal/config"
	"github.com/opencampus/campuspay/internal/course"
	"github.com/opencampus/campuspay/internal/enrollment"
	enrollmentdomain "github.com/opencampus/campuspay/internal/enrollment/domain"
	"github.com/opencampus/campuspay/internal/invoice"
	invoicedomain "github.com/opencampus/campuspay/internal/invoice/domain"
	"github.com/opencampus/campuspay/internal/member"
	"github.com/opencampus/campuspay/internal/observability"
	"github.com/opencampus/campuspay/internal/payment"
	paymentdomain "github.com/opencampus/campuspay/internal/payment/domain"
	"github.com/opencampus/campuspay/internal/providers/email"
	"github.com/opencampus/campuspay/internal/providers/pdf"
	"github.com/opencampus/campuspay/internal/reconcile"
	reconciledomain "github.com/opencampus/campuspay/internal/reconcile/domain"
	"github.com/opencampus/campuspay/internal/report"
)

var Module = fx.Module("http.server",
	observability.Module,
	fx.Provide(registerGin),
	audit.Module,
	address.Module,
	member.Module,
	course.Module,
	payment.Module,
	invoice.Module,
	enrollment.Module,
	email.Module,
	pdf.Module,
	reconcile.Module,
	report.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(metrics *observability.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	return r
}

func registerGin(metrics *observability.Metrics) *gin.Engine {
	return NewEngine(metrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	auditSvc      auditdomain.Service
	paymentSvc    paymentdomain.Service
	invoiceSvc    invoicedomain.Service
	enrollmentSvc enrollmentdomain.Service
	reconcileSvc  reconciledomain.Service
	reportSvc     report.Service
	pdfProvider   pdf.Provider
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	AuditSvc      auditdomain.Service
	PaymentSvc    paymentdomain.Service
	InvoiceSvc    invoicedomain.Service
	EnrollmentSvc enrollmentdomain.Service
	ReconcileSvc  reconciledomain.Service
	ReportSvc     report.Service
	PDFProvider   pdf.Provider
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		log:           p.Log.Named("http.server"),
		genID:         p.GenID,
		auditSvc:      p.AuditSvc,
		paymentSvc:    p.PaymentSvc,
		invoiceSvc:    p.InvoiceSvc,
		enrollmentSvc: p.EnrollmentSvc,
		reconcileSvc:  p.ReconcileSvc,
		reportSvc:     p.ReportSvc,
		pdfProvider:   p.PDFProvider,
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Webhook routes are unauthenticated; gateways cannot log in. Signature
// verification in the classifier is the trust boundary.
func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/payments", s.HandlePaymentWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/reconcile", s.ReconcileUnprocessed)
	api.GET("/enrollments/:id", s.GetEnrollment)
	api.POST("/enrollments/:id/invoice", s.CreateInvoiceForEnrollment)
	api.GET("/invoices/:id", s.GetInvoice)
	api.GET("/invoices/:id/pdf", s.GetInvoicePDF)
	api.POST("/invoices/:id/cancel", s.CancelInvoice)
	api.GET("/reports/payments", s.PaymentsReport)
}
