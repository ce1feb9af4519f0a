// Package plans resolves membership plans, Stripe prices and products to tiers.
// The catalog is read once at startup and is immutable afterwards.
package plans

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
)

// Plan is the catalog view of a membership_plans row.
type Plan struct {
	ID              string
	Name            string
	Tier            enums.MembershipTier
	Status          enums.PlanStatus
	IsDefault       bool
	StripePriceID   string
	StripeProductID string
	IntervalMonths  int
	Price           decimal.Decimal
	Currency        string
	Features        []string
	SortOrder       int
}

// IsPurchasable reports whether checkout may be started for the plan.
func (p Plan) IsPurchasable() bool {
	return p.Status == enums.PlanStatusActive && p.StripePriceID != ""
}

// PriceCents returns the plan price in minor units.
func (p Plan) PriceCents() int64 {
	return p.Price.Shift(2).IntPart()
}

// Catalog indexes plans by id, Stripe price and Stripe product.
type Catalog struct {
	plans     []Plan
	byID      map[string]Plan
	byPrice   map[string]Plan
	byProduct map[string]Plan
	def       Plan
}

// NewCatalog validates rows and builds the lookup tables. Exactly one default
// is chosen: the flagged row, else the first active plan by sort order.
func NewCatalog(rows []models.MembershipPlan) (*Catalog, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("membership plan catalog is empty")
	}

	c := &Catalog{
		byID:      make(map[string]Plan, len(rows)),
		byPrice:   make(map[string]Plan, len(rows)),
		byProduct: make(map[string]Plan, len(rows)),
	}
	for _, row := range rows {
		plan := fromModel(row)
		if plan.ID == "" {
			return nil, fmt.Errorf("membership plan with empty id")
		}
		if !plan.Tier.IsPaid() || !plan.Tier.IsValid() {
			return nil, fmt.Errorf("membership plan %s has invalid tier %q", plan.ID, plan.Tier)
		}
		if _, dup := c.byID[plan.ID]; dup {
			return nil, fmt.Errorf("duplicate membership plan %s", plan.ID)
		}
		c.byID[plan.ID] = plan
		if plan.StripePriceID != "" {
			c.byPrice[plan.StripePriceID] = plan
		}
		// Several prices may share one product; an active plan wins.
		if plan.StripeProductID != "" {
			existing, ok := c.byProduct[plan.StripeProductID]
			if !ok || (existing.Status != enums.PlanStatusActive && plan.Status == enums.PlanStatusActive) {
				c.byProduct[plan.StripeProductID] = plan
			}
		}
		c.plans = append(c.plans, plan)
	}

	sort.SliceStable(c.plans, func(i, j int) bool {
		if c.plans[i].SortOrder != c.plans[j].SortOrder {
			return c.plans[i].SortOrder < c.plans[j].SortOrder
		}
		return c.plans[i].ID < c.plans[j].ID
	})

	found := false
	for _, plan := range c.plans {
		if plan.IsDefault {
			if found {
				return nil, fmt.Errorf("more than one default membership plan")
			}
			c.def = plan
			found = true
		}
	}
	if !found {
		for _, plan := range c.plans {
			if plan.Status == enums.PlanStatusActive {
				c.def = plan
				found = true
				break
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("no active membership plan to use as default")
	}
	return c, nil
}

func fromModel(row models.MembershipPlan) Plan {
	features := make([]string, len(row.Features))
	copy(features, row.Features)
	return Plan{
		ID:              strings.TrimSpace(row.ID),
		Name:            row.Name,
		Tier:            row.Tier,
		Status:          row.Status,
		IsDefault:       row.IsDefault,
		StripePriceID:   strings.TrimSpace(row.StripePriceID),
		StripeProductID: strings.TrimSpace(row.StripeProductID),
		IntervalMonths:  row.IntervalMonths,
		Price:           row.PriceAmount,
		Currency:        strings.ToUpper(strings.TrimSpace(row.CurrencyCode)),
		Features:        features,
		SortOrder:       row.SortOrder,
	}
}

func (c *Catalog) ByID(id string) (Plan, bool) {
	plan, ok := c.byID[strings.TrimSpace(id)]
	return plan, ok
}

func (c *Catalog) ByPriceID(priceID string) (Plan, bool) {
	plan, ok := c.byPrice[strings.TrimSpace(priceID)]
	return plan, ok
}

func (c *Catalog) ByProductID(productID string) (Plan, bool) {
	plan, ok := c.byProduct[strings.TrimSpace(productID)]
	return plan, ok
}

// Default is the plan used when a checkout carries no recognizable plan.
func (c *Catalog) Default() Plan {
	return c.def
}

// Active lists purchasable plans in display order.
func (c *Catalog) Active() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, plan := range c.plans {
		if plan.Status == enums.PlanStatusActive {
			out = append(out, plan)
		}
	}
	return out
}
