package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/nomasclub/nomas-backend/pkg/enums"
)

// MembershipPlan maps a purchasable plan to its tier and Stripe identifiers.
type MembershipPlan struct {
	ID              string               `gorm:"column:id;primaryKey"`
	Name            string               `gorm:"column:name;not null"`
	Tier            enums.MembershipTier `gorm:"column:tier;type:membership_tier;not null"`
	Status          enums.PlanStatus     `gorm:"column:status;type:plan_status;not null"`
	IsDefault       bool                 `gorm:"column:is_default;not null;default:false"`
	StripePriceID   string               `gorm:"column:stripe_price_id;not null;uniqueIndex"`
	StripeProductID string               `gorm:"column:stripe_product_id;not null"`
	IntervalMonths  int                  `gorm:"column:interval_months;not null"`
	PriceAmount     decimal.Decimal      `gorm:"column:price_amount;type:numeric(12,2);not null"`
	CurrencyCode    string               `gorm:"column:currency_code;not null"`
	Features        pq.StringArray       `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	SortOrder       int                  `gorm:"column:sort_order;not null;default:0"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
