package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakibsarkar/docvia-backend/api/controllers"
	billingcontrollers "github.com/sakibsarkar/docvia-backend/api/controllers/billing"
	webhookcontrollers "github.com/sakibsarkar/docvia-backend/api/controllers/webhooks"
	"github.com/sakibsarkar/docvia-backend/api/middleware"
	"github.com/sakibsarkar/docvia-backend/internal/apps"
	"github.com/sakibsarkar/docvia-backend/internal/billing"
	checkoutsvc "github.com/sakibsarkar/docvia-backend/internal/checkout"
	"github.com/sakibsarkar/docvia-backend/internal/entitlements"
	"github.com/sakibsarkar/docvia-backend/internal/users"
	stripewebhook "github.com/sakibsarkar/docvia-backend/internal/webhooks/stripe"
	"github.com/sakibsarkar/docvia-backend/pkg/config"
	"github.com/sakibsarkar/docvia-backend/pkg/db"
	"github.com/sakibsarkar/docvia-backend/pkg/logger"
	"github.com/sakibsarkar/docvia-backend/pkg/redis"
	"github.com/sakibsarkar/docvia-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	usersService users.Service,
	appsService apps.Service,
	billingRepo billing.Repository,
	entitlementService entitlements.Service,
	checkoutService checkoutsvc.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.Register(usersService, logg))
		r.Post("/login", controllers.Login(usersService, logg))
	})

	// Checkout redirect landing page. Stripe sends the browser here, so the
	// route carries its own signed token instead of a bearer header.
	r.Get("/billing/confirm", billingcontrollers.ConfirmCheckout(checkoutService, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/billing", func(r chi.Router) {
			r.Get("/plans", billingcontrollers.ListPlans(billingRepo, logg))
			r.Get("/subscription", billingcontrollers.CurrentSubscription(entitlementService, logg))
			r.Post("/checkout", billingcontrollers.StartCheckout(checkoutService, logg))
		})

		r.Route("/apps", func(r chi.Router) {
			r.Post("/", controllers.CreateApp(appsService, logg))
			r.Get("/", controllers.ListApps(appsService, logg))
			r.Get("/{appID}", controllers.GetApp(appsService, logg))
			r.Post("/{appID}/activate", controllers.ActivateApp(appsService, logg))
			r.Post("/{appID}/deactivate", controllers.DeactivateApp(appsService, logg))
			r.Delete("/{appID}", controllers.DeleteApp(appsService, logg))
		})
	})

	return r
}
