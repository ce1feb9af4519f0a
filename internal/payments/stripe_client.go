package payments

import (
	"context"

	"github.com/stripe/stripe-go/v82"

	pkgstripe "github.com/nomasclub/nomas-backend/pkg/stripe"
)

// StripeClient exposes the subset of Stripe calls payments needs.
type StripeClient interface {
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

type stripeClientWrapper struct {
	api *pkgstripe.Client
}

// NewStripeClient wraps the process-wide Stripe client so the service can be tested.
func NewStripeClient(api *pkgstripe.Client) StripeClient {
	if api == nil || api.API() == nil {
		return nil
	}
	return &stripeClientWrapper{api: api}
}

func (w *stripeClientWrapper) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = ctx
	return w.api.API().Customers.New(params)
}

func (w *stripeClientWrapper) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	return w.api.API().PaymentIntents.New(params)
}

func (w *stripeClientWrapper) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return w.api.API().PaymentIntents.Get(id, params)
}

func (w *stripeClientWrapper) CancelPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	if params == nil {
		params = &stripe.PaymentIntentCancelParams{}
	}
	params.Context = ctx
	return w.api.API().PaymentIntents.Cancel(id, params)
}

func (w *stripeClientWrapper) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return w.api.API().CheckoutSessions.New(params)
}

func (w *stripeClientWrapper) CreatePortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	params.Context = ctx
	return w.api.API().BillingPortalSessions.New(params)
}
