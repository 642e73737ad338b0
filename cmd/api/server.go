package main

import (
	"context"
	"net/http"
	"time"

	_ "github.com/jordanlanch/leaddesk/docs" // Swagger docs (generated)
	"github.com/jordanlanch/leaddesk/pkg/api/handlers"
	custommw "github.com/jordanlanch/leaddesk/pkg/api/middleware"
	"github.com/jordanlanch/leaddesk/pkg/auth"
	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/metrics"
	custommiddleware "github.com/jordanlanch/leaddesk/pkg/middleware"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// serverDeps is everything the HTTP layer needs.
type serverDeps struct {
	Log         logger.Logger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	RateLimiter *custommiddleware.RateLimiter
	JWTSecret   string
	CORSOrigins []string
	BodyLimit   string
	Health      func(ctx context.Context) map[string]string
	// Extra is installed before the routes, after Recover.
	Extra []echo.MiddlewareFunc

	Inbound       *handlers.InboundHandler
	Replies       *handlers.ReplyHandler
	Conversations *handlers.ConversationHandler
	Leads         *handlers.LeadHandler
	Audit         *handlers.AuditHandler
	Admin         *handlers.AdminHandler
}

func newServer(d serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(d.Extra...)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				d.Log.Warn("request failed", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "error", v.Error)
				return nil
			}
			d.Log.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	if d.BodyLimit != "" {
		e.Use(middleware.BodyLimit(d.BodyLimit))
	}
	e.Use(d.Metrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(d.CORSOrigins)))
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))

	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		if d.Health != nil {
			checks = d.Health(ctx)
		}
		status := http.StatusOK
		for _, v := range checks {
			if v != "up" {
				status = http.StatusServiceUnavailable
			}
		}
		body := map[string]any{"status": "healthy", "checks": checks}
		if status != http.StatusOK {
			body["status"] = "unhealthy"
		}
		return c.JSON(status, body)
	})

	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := e.Group("/api/v1")

	inbound := v1.Group("/inbound")
	if d.RateLimiter != nil {
		inbound.Use(d.RateLimiter.RateLimitMiddleware())
	}
	inbound.POST("/email", d.Inbound.Email)
	inbound.POST("/portal", d.Inbound.Portal)
	inbound.POST("/whatsapp", d.Inbound.WhatsApp)

	agent := v1.Group("", custommw.JWTMiddleware(d.JWTSecret))
	agent.POST("/replies/whatsapp", d.Replies.WhatsApp)
	agent.POST("/replies/email", d.Replies.Email)
	agent.GET("/conversations/:id", d.Conversations.Get)
	agent.GET("/conversations/:id/messages", d.Conversations.Messages)
	agent.POST("/conversations/:id/status", d.Conversations.SetStatus)
	agent.POST("/conversations/:id/read", d.Conversations.MarkRead)
	agent.GET("/leads/:id", d.Leads.Get)
	agent.POST("/leads/:id/assign", d.Leads.Assign)
	agent.GET("/audit/:entityType/:entityId", d.Audit.List)

	admin := agent.Group("/admin", custommw.RequireRole(auth.RoleAdmin))
	admin.POST("/sla/sweep", d.Admin.Sweep)
	admin.GET("/sla/report", d.Admin.SLAReport)

	return e
}
