package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/kybernus/license-api/internal/api/handlers"
	"github.com/kybernus/license-api/internal/api/middleware"
	"github.com/kybernus/license-api/internal/config"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/pkg/metrics"
	"github.com/kybernus/license-api/internal/pkg/ratelimit"
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Device  *handlers.DeviceHandler
	License *handlers.LicenseHandler
	Billing *handlers.BillingHandler
}

// New builds the HTTP router. Background work started here stops with ctx.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, limiter *ratelimit.Limiter, h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	r.Use(middleware.DefaultCORS(cfg.Server.FrontendURL))
	r.Use(middleware.RateLimit(cfg.Server.GlobalRPS, cfg.Server.GlobalBurst, ctx.Done()))

	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/health", h.Health.Healthz)
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)

	registerLimit := middleware.RateLimitRule(limiter, rule("register", cfg.Device.RegisterLimit))
	checkoutLimit := middleware.RateLimitRule(limiter, rule("checkout", cfg.Device.CheckoutLimit))

	routes := func(r chi.Router) {
		r.Route("/device", func(r chi.Router) {
			r.Post("/code", h.Device.Code)
			r.Post("/poll", h.Device.Poll)
			r.Post("/complete", h.Device.Complete)
		})

		r.Route("/licenses", func(r chi.Router) {
			r.Post("/validate", h.License.Validate)
			r.Post("/consume", h.License.Consume)
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(registerLimit).Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Post("/logout", h.Auth.Logout)
			r.Get("/google/url", h.Auth.GoogleURL)
		})

		r.With(checkoutLimit).Post("/billing/checkout", h.Billing.Checkout)
		r.Post("/webhooks/billing", h.Billing.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
			r.Get("/account", h.Auth.Account)
		})
	}

	routes(r)
	// Versioned alias for clients that pin a prefix
	r.Route("/api/v1", routes)

	return r
}

func rule(scope string, l config.RateLimit) ratelimit.Rule {
	return ratelimit.Rule{Scope: scope, Limit: l.Limit, Window: l.Window}
}
