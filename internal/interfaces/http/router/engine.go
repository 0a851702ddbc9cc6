package router

import (
	"net/http"

	"github.com/erp/reconciliation/internal/infrastructure/config"
	"github.com/erp/reconciliation/internal/infrastructure/logger"
	"github.com/erp/reconciliation/internal/interfaces/http/dto"
	"github.com/erp/reconciliation/internal/interfaces/http/handler"
	"github.com/erp/reconciliation/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Options configures the engine
type Options struct {
	ServiceName string
	HTTP        config.HTTPConfig
	Logger      *zap.Logger

	// Meter and TracerProvider fall back to the otel globals when nil
	Meter          metric.Meter
	TracerProvider trace.TracerProvider
}

// Handlers are the endpoint groups mounted by NewEngine
type Handlers struct {
	Receptions *handler.ReceptionHandler
	Metrics    *handler.MetricsHandler
	Documents  *handler.DocumentHandler
	Health     *handler.HealthHandler
}

// NewEngine builds the gin engine with the full middleware chain and the
// /api/v1 routes. Writes require X-Actor-ID; reads do not.
func NewEngine(opts Options, h Handlers) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	meter := opts.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter("reconciliation/http")
	}
	tracerProvider := opts.TracerProvider
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if len(opts.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(opts.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	} else {
		_ = engine.SetTrustedProxies(nil)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = opts.HTTP.CORSOrigins

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Actor(),
		middleware.Tracing(opts.ServiceName, otelgin.WithTracerProvider(tracerProvider)),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
		middleware.HTTPMetrics(meter),
		middleware.Secure(),
		middleware.CORS(cors),
		middleware.BodyLimit(opts.HTTP.MaxBodySize),
	)

	if h.Health != nil {
		engine.GET("/health", h.Health.Check)
	}

	r := NewRouter(engine)
	writes := middleware.RequireActor()

	if h.Receptions != nil {
		r.Register(NewDomainGroup("orders", "/orders").
			POST("/:id/receptions", writes, h.Receptions.Submit).
			GET("/:id/receptions", h.Receptions.List).
			GET("/:id/ledger", h.Receptions.Ledger))
	}

	receptions := NewDomainGroup("receptions", "/receptions")
	if h.Metrics != nil {
		receptions.GET("/metrics", h.Metrics.Get)
	}
	if h.Receptions != nil {
		receptions.
			GET("/:id", h.Receptions.Get).
			POST("/:id/inspection", writes, h.Receptions.BeginInspection).
			PUT("/:id/lines/:lineId/inspection", writes, h.Receptions.ResolveLine)
	}
	r.Register(receptions)

	if h.Documents != nil {
		r.Register(NewDomainGroup("documents", "/documents").
			POST("/presign", writes, h.Documents.PresignUpload).
			GET("/presign", h.Documents.PresignDownload))
	}
	r.Setup()

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(dto.ErrCodeNotFound, "Route not found", middleware.GetRequestID(c)))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, dto.NewErrorResponseWithRequestID(dto.ErrCodeBadRequest, "Method not allowed", middleware.GetRequestID(c)))
	})
	return engine
}
