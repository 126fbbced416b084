package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/khata/backend/internal/infrastructure/config"
	"github.com/khata/backend/internal/infrastructure/logger"
	"github.com/khata/backend/internal/interfaces/http/dto"
	"github.com/khata/backend/internal/interfaces/http/handler"
	"github.com/khata/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers of the ledger API
type Handlers struct {
	Debt       *handler.DebtHandler
	Payment    *handler.PaymentHandler
	Collection *handler.CollectionHandler
	Totals     *handler.TotalsHandler
	Attachment *handler.AttachmentHandler
	Health     *handler.HealthHandler
}

// Options configures the engine's middleware chain
type Options struct {
	HTTP        config.HTTPConfig
	ServiceName string
	Tracing     bool
	// Meter enables HTTP metrics when set
	Meter metric.Meter
	// RateLimiter is applied after tenant resolution when set
	RateLimiter *middleware.TenantRateLimiter
	Logger      *zap.Logger
}

// LedgerRoutes returns the /ledger route group
func LedgerRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("ledger", "/ledger")

	if h.Debt != nil {
		g.POST("/debts", h.Debt.Create)
		g.GET("/debts", h.Debt.List)
		g.GET("/debts/:id", h.Debt.GetByID)
		g.PUT("/debts/:id", h.Debt.Update)
		g.DELETE("/debts/:id", h.Debt.Delete)
		g.DELETE("/owners/:owner_id/debts", h.Debt.DeleteOwnerDebts)
	}

	if h.Payment != nil {
		g.GET("/debts/:id/payments", h.Payment.List)
		g.POST("/debts/:id/payments", h.Payment.Record)
		g.POST("/debts/:id/mark-paid", h.Payment.MarkFullyPaid)
		g.PUT("/debts/:id/payments/:payment_id", h.Payment.Edit)
		g.DELETE("/debts/:id/payments/:payment_id", h.Payment.Delete)
	}

	if h.Collection != nil {
		g.POST("/owners/:owner_id/collect", h.Collection.QuickCollect)
		g.POST("/owners/:owner_id/collect/preview", h.Collection.Preview)
	}

	if h.Totals != nil {
		g.GET("/owners/:owner_id/totals", h.Totals.PersonTotals)
		g.GET("/totals", h.Totals.GlobalTotals)
	}

	if h.Attachment != nil {
		g.POST("/attachments", h.Attachment.Upload)
		g.GET("/attachments/url", h.Attachment.DownloadURL)
	}

	return g
}

// NewEngine builds the gin engine with the full middleware chain and routes.
// Order: request ID, recovery, access log, tracing, metrics, CORS, tenant,
// rate limit, body limit.
func NewEngine(opts Options, h Handlers) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(opts.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(opts.HTTP.TrustedProxies); err != nil {
			log.Warn("invalid trusted proxies, ignoring", zap.Error(err))
		}
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
	)
	if opts.Tracing {
		engine.Use(
			middleware.Tracing(middleware.TracingConfig{ServiceName: opts.ServiceName, Enabled: true}),
			middleware.SpanErrorMarker(),
		)
	}
	if opts.Meter != nil {
		engine.Use(middleware.HTTPMetrics(opts.Meter))
	}
	engine.Use(middleware.CORS(opts.HTTP))

	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
	}

	tenantCfg := middleware.DefaultTenantConfig()
	tenantCfg.Logger = log
	ledgerGroup := LedgerRoutes(h).Use(middleware.Tenant(tenantCfg))
	if opts.Tracing {
		ledgerGroup.Use(middleware.TraceAttributes())
	}
	if opts.RateLimiter != nil {
		ledgerGroup.Use(opts.RateLimiter.Middleware())
	}
	ledgerGroup.Use(uploadAwareBodyLimit(opts.HTTP))

	r := NewRouter(engine)
	r.Register(ledgerGroup)
	r.Setup()

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(dto.ErrCodeNotFound, "Route not found", middleware.GetRequestID(c)))
	})
	return engine
}

// uploadAwareBodyLimit allows attachment uploads up to MaxUploadSize plus
// multipart overhead and every other body up to MaxBodySize
func uploadAwareBodyLimit(cfg config.HTTPConfig) gin.HandlerFunc {
	jsonLimit := middleware.BodyLimit(cfg.MaxBodySize)
	uploadLimit := middleware.BodyLimit(cfg.MaxUploadSize + 64<<10)
	if cfg.MaxUploadSize <= 0 {
		uploadLimit = jsonLimit
	}
	return func(c *gin.Context) {
		if c.FullPath() == "/api/v1/ledger/attachments" {
			uploadLimit(c)
			return
		}
		jsonLimit(c)
	}
}
