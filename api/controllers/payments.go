package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nomasclub/nomas-backend/api/middleware"
	"github.com/nomasclub/nomas-backend/api/responses"
	"github.com/nomasclub/nomas-backend/api/validators"
	"github.com/nomasclub/nomas-backend/internal/payments"
	"github.com/nomasclub/nomas-backend/pkg/config"
	pkgerrors "github.com/nomasclub/nomas-backend/pkg/errors"
	"github.com/nomasclub/nomas-backend/pkg/logger"
)

// PaymentService covers the Stripe-backed payment flows exposed over HTTP.
type PaymentService interface {
	EventPaymentCreator
	CreateCheckoutSession(ctx context.Context, userID uuid.UUID, planID, origin string) (string, error)
	CreatePortalSession(ctx context.Context, userID uuid.UUID, origin string) (string, error)
}

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required,max=64"`
}

type redirectResponse struct {
	URL string `json:"url"`
}

func CreateEventPaymentIntent(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		eventID, err := uuidParam(r, "eventId", "event id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payment, err := svc.CreateEventPayment(ctx, userID, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

func CreateCheckoutSession(svc PaymentService, app config.AppConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		url, err := svc.CreateCheckoutSession(ctx, userID, body.Plan, redirectOrigin(r, app))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, redirectResponse{URL: url})
	}
}

func CreatePortalSession(svc PaymentService, app config.AppConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		url, err := svc.CreatePortalSession(ctx, userID, redirectOrigin(r, app))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, redirectResponse{URL: url})
	}
}

// redirectOrigin picks the base for Stripe return URLs. The request Origin is
// honoured only when it is an allowed CORS origin.
func redirectOrigin(r *http.Request, app config.AppConfig) string {
	origin := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/")
	if origin != "" {
		for _, allowed := range app.AllowedOrigins() {
			if strings.EqualFold(origin, strings.TrimRight(allowed, "/")) {
				return origin
			}
		}
	}
	return strings.TrimRight(strings.TrimSpace(app.PublicURL), "/")
}

var _ PaymentService = (*payments.Service)(nil)
