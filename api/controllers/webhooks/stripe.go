package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/nomasclub/nomas-backend/api/responses"
	stripewebhook "github.com/nomasclub/nomas-backend/internal/webhooks/stripe"
	pkgerrors "github.com/nomasclub/nomas-backend/pkg/errors"
	"github.com/nomasclub/nomas-backend/pkg/logger"
	"github.com/nomasclub/nomas-backend/pkg/metrics"
)

// maxPayloadBytes caps a delivery body. Larger bodies get 413 instead of a
// truncated read that would fail signature checks.
const maxPayloadBytes = int64(256 << 10)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

type deliveryRecorder interface {
	Observe(eventType, outcome string)
}

type received struct {
	Received bool `json:"received"`
}

// StripeWebhook verifies and applies Stripe deliveries. Only verified events
// reach the service; a failed event releases its idempotency key so Stripe's
// retry is processed.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, recorder deliveryRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}
		observe := func(eventType, outcome string) {
			if recorder != nil {
				recorder.Observe(eventType, outcome)
			}
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				observe("", metrics.WebhookOutcomeRejected)
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeTooLarge, err, "stripe payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			observe("", metrics.WebhookOutcomeRejected)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignature, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEventWithOptions(payload, sigHeader, client.SigningSecret(), webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			observe("", metrics.WebhookOutcomeRejected)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "verify signature"))
			return
		}
		eventType := string(event.Type)
		if logg != nil {
			ctx = logg.WithStripeEvent(ctx, event.ID, eventType)
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			observe(eventType, metrics.WebhookOutcomeDuplicate)
			responses.WriteSuccess(w, received{Received: true})
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if delErr := guard.Delete(ctx, event.ID); delErr != nil && logg != nil {
				logg.Error(ctx, "failed to release stripe idempotency key", delErr)
			}
			observe(eventType, metrics.WebhookOutcomeFailed)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "process stripe event"))
			return
		}

		if stripewebhook.IsHandled(event.Type) {
			observe(eventType, metrics.WebhookOutcomeProcessed)
		} else {
			observe(eventType, metrics.WebhookOutcomeIgnored)
		}
		if logg != nil {
			logg.Info(ctx, "stripe event processed")
		}
		responses.WriteSuccess(w, received{Received: true})
	}
}
