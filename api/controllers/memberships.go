package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nomasclub/nomas-backend/api/middleware"
	"github.com/nomasclub/nomas-backend/api/responses"
	"github.com/nomasclub/nomas-backend/internal/memberships"
	"github.com/nomasclub/nomas-backend/internal/plans"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	pkgerrors "github.com/nomasclub/nomas-backend/pkg/errors"
	"github.com/nomasclub/nomas-backend/pkg/logger"
)

type MembershipService interface {
	Status(ctx context.Context, userID uuid.UUID) (*memberships.StatusView, error)
}

type PlanLister interface {
	Active() []plans.Plan
}

// ExpirySweeper is the manual trigger for the membership expiry sweep.
type ExpirySweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (memberships.SweepResult, error)
}

type planResponse struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Tier             enums.MembershipTier `json:"tier"`
	IntervalMonths   int                  `json:"interval_months"`
	PriceAmount      string               `json:"price_amount"`
	PriceAmountCents int64                `json:"price_amount_cents"`
	MonthlyAmount    string               `json:"monthly_amount"`
	CurrencyCode     string               `json:"currency_code"`
	Features         []string             `json:"features"`
	IsDefault        bool                 `json:"is_default"`
}

type planListResponse struct {
	Plans []planResponse `json:"plans"`
}

type sweepResponse struct {
	Message    string                    `json:"message"`
	Processed  int                       `json:"processed"`
	Successful int                       `json:"successful"`
	Failed     int                       `json:"failed"`
	Details    []memberships.SweepDetail `json:"details"`
}

func MembershipStatus(svc MembershipService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		view, err := svc.Status(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func ListPlans(catalog PlanLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog unavailable"))
			return
		}
		active := catalog.Active()
		out := make([]planResponse, 0, len(active))
		for _, plan := range active {
			out = append(out, planToResponse(plan))
		}
		responses.WriteSuccess(w, planListResponse{Plans: out})
	}
}

// AdminExpirySweep runs the sweep on demand. Per-row failures are reported
// in the body with a 200; only a failed candidate query is an error.
func AdminExpirySweep(sweeper ExpirySweeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if sweeper == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "expiry sweeper unavailable"))
			return
		}

		result, err := sweeper.SweepExpired(ctx, time.Now())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		details := result.Details
		if details == nil {
			details = []memberships.SweepDetail{}
		}
		responses.WriteSuccess(w, sweepResponse{
			Message:    result.Summary(),
			Processed:  result.Processed,
			Successful: result.Succeeded,
			Failed:     result.Failed,
			Details:    details,
		})
	}
}

func planToResponse(plan plans.Plan) planResponse {
	monthly := plan.Price
	if plan.IntervalMonths > 1 {
		monthly = plan.Price.Div(decimal.NewFromInt(int64(plan.IntervalMonths)))
	}
	features := make([]string, len(plan.Features))
	copy(features, plan.Features)
	return planResponse{
		ID:               plan.ID,
		Name:             plan.Name,
		Tier:             plan.Tier,
		IntervalMonths:   plan.IntervalMonths,
		PriceAmount:      plan.Price.StringFixed(2),
		PriceAmountCents: plan.PriceCents(),
		MonthlyAmount:    monthly.StringFixed(2),
		CurrencyCode:     plan.Currency,
		Features:         features,
		IsDefault:        plan.IsDefault,
	}
}
