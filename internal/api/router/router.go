package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-court-reservation/internal/api/handler"
	"github.com/sanosuguru/go-court-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/metrics"
)

// Services はルーティング先のサービス群
type Services struct {
	Pricing      handler.PricingServiceInterface
	Availability handler.AvailabilityServiceInterface
	Booking      handler.BookingServiceInterface
	Ledger       handler.LedgerServiceInterface
	Recurring    handler.RecurringServiceInterface
}

// Options はルーティングの設定
type Options struct {
	JWTSecret    string
	WebhookToken string
	Metrics      *metrics.Metrics
	// MetricsAuth が有効なら /metrics にBasic認証をかける
	MetricsAuth    middleware.MetricsConfig
	MetricsHandler http.Handler
	HealthChecks   map[string]handler.HealthCheck
}

// RegisterRoutes はAPIのルートを登録する
func RegisterRoutes(e *echo.Echo, s Services, opts Options) {
	if opts.Metrics != nil {
		e.Use(middleware.PrometheusMiddleware(opts.Metrics))
	}

	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	e.GET("/metrics", echo.WrapHandler(metricsHandler), middleware.MetricsBasicAuth(opts.MetricsAuth))

	health := handler.NewHealthHandler(opts.HealthChecks)
	e.GET("/health", health.Check)

	quotes := handler.NewQuoteHandler(s.Pricing)
	availability := handler.NewAvailabilityHandler(s.Availability)
	reservations := handler.NewReservationHandler(s.Booking, s.Ledger)
	recurring := handler.NewRecurringHandler(s.Recurring)
	webhooks := handler.NewWebhookHandler(s.Ledger)

	v1 := e.Group("/api/v1")
	v1.GET("/health", health.Check)

	v1.POST("/webhooks/payments", webhooks.Payment, middleware.WebhookToken(opts.WebhookToken))

	authed := v1.Group("", middleware.JWTAuth(opts.JWTSecret))
	authed.POST("/quotes", quotes.Create)
	authed.GET("/resources/:id/availability", availability.Get)
	authed.POST("/reservations", reservations.Create)
	authed.GET("/reservations/:id", reservations.GetByID)

	staff := authed.Group("", middleware.RequireCapability(tariff.CapabilityStaff))
	staff.POST("/staff/reservations", reservations.CreateStaff)
	staff.POST("/reservations/:id/cancel", reservations.Cancel)
	staff.POST("/reservations/:id/payments", reservations.RecordPayment)

	staff.POST("/recurring-templates", recurring.Create)
	staff.POST("/recurring-templates/:id/regenerate", recurring.Regenerate)
	staff.POST("/recurring-templates/:id/deactivate", recurring.Deactivate)
	staff.POST("/recurring-templates/:id/reactivate", recurring.Reactivate)
	staff.PUT("/recurring-templates/:id/exceptions/:date", recurring.UpsertException)
}
