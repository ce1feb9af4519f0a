package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nomasclub/nomas-backend/api/controllers"
	webhookcontrollers "github.com/nomasclub/nomas-backend/api/controllers/webhooks"
	"github.com/nomasclub/nomas-backend/api/middleware"
	"github.com/nomasclub/nomas-backend/pkg/config"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	"github.com/nomasclub/nomas-backend/pkg/logger"
	pkgredis "github.com/nomasclub/nomas-backend/pkg/redis"
)

// CacheStore is the redis surface the HTTP layer needs.
type CacheStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// StripeWebhookGuard dedupes Stripe deliveries by event id.
type StripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// SigningSecretProvider exposes the webhook endpoint secret.
type SigningSecretProvider interface {
	SigningSecret() string
}

// WebhookRecorder counts webhook outcomes.
type WebhookRecorder interface {
	Observe(eventType, outcome string)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	cache CacheStore,
	gatherer prometheus.Gatherer,
	bookingService controllers.BookingService,
	paymentService controllers.PaymentService,
	membershipService controllers.MembershipService,
	catalog controllers.PlanLister,
	sweeper controllers.ExpirySweeper,
	stripeClient SigningSecretProvider,
	stripeWebhookService webhookcontrollers.StripeWebhookService,
	stripeWebhookGuard StripeWebhookGuard,
	webhookRecorder WebhookRecorder,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	bookingPolicy := middleware.NewRateLimitPolicy("bookings", time.Minute, cfg.RateLimit.BookingsPerMinute)

	ready := map[string]controllers.Pinger{"db": dbP}
	if cache != nil {
		ready["redis"] = cache
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, webhookRecorder, logg))
	})

	r.Get("/api/v1/plans", controllers.ListPlans(catalog, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(cache, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(bookingPolicy, cache, logg))
			r.Post("/events/{eventId}/bookings", controllers.RequestBooking(bookingService, paymentService, logg))
			r.Delete("/events/{eventId}/bookings", controllers.CancelEventBooking(bookingService, logg))
			r.Delete("/bookings/{bookingId}", controllers.CancelBooking(bookingService, logg))
			r.Post("/payments/events/{eventId}/intent", controllers.CreateEventPaymentIntent(paymentService, logg))
		})

		r.Get("/bookings", controllers.ListBookings(bookingService, logg))
		r.Post("/payments/checkout", controllers.CreateCheckoutSession(paymentService, cfg.App, logg))
		r.Post("/payments/portal", controllers.CreatePortalSession(paymentService, cfg.App, logg))
		r.Get("/memberships/me", controllers.MembershipStatus(membershipService, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.Post("/memberships/expiry-sweep", controllers.AdminExpirySweep(sweeper, logg))
		})
	})

	return r
}
