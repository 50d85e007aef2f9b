package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/participation-api/internal/config"
	"github.com/noah-isme/participation-api/internal/handler"
	"github.com/noah-isme/participation-api/internal/middleware"
	"github.com/noah-isme/participation-api/internal/observability"
)

const (
	certificateRateLimit  = 10
	certificateRateWindow = time.Minute
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	LookupHandler        *handler.LookupHandler
	ParticipationHandler *handler.ParticipationHandler
	CertificateHandler   *handler.CertificateHandler
	AuditHandler         *handler.AuditHandler
	FeedHandler          *handler.FeedHandler
	HealthProbes         map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Writes and the audit trail need a teacher or admin once a secret is configured.
	var guards []fiber.Handler
	if cfg.AuthEnabled() {
		guards = append(guards,
			middleware.JWTProtected(cfg.JWTSecret),
			middleware.RequireRole(middleware.RoleAdmin, middleware.RoleTeacher),
		)
	}

	if deps.LookupHandler != nil {
		deps.LookupHandler.Register(api)
	}
	if deps.ParticipationHandler != nil {
		deps.ParticipationHandler.Register(api, guards...)
	}
	if deps.CertificateHandler != nil {
		certificateGuards := append(append([]fiber.Handler{}, guards...),
			middleware.RateLimit("certificates", certificateRateLimit, certificateRateWindow))
		deps.CertificateHandler.Register(api, certificateGuards...)
	}
	if deps.AuditHandler != nil {
		deps.AuditHandler.Register(api, guards...)
	}
	if deps.FeedHandler != nil {
		deps.FeedHandler.Register(api)
	}
}
