package profiles

import (
	"time"

	"github.com/nomasclub/nomas-backend/pkg/enums"
)

// SubscriptionPatch collects the subscription columns a webhook transition
// sets. Unset fields are left untouched; a set nil clears the column.
type SubscriptionPatch struct {
	columns map[string]any
}

func (p *SubscriptionPatch) set(column string, value any) *SubscriptionPatch {
	if p.columns == nil {
		p.columns = map[string]any{}
	}
	p.columns[column] = value
	return p
}

func (p *SubscriptionPatch) Tier(tier enums.MembershipTier) *SubscriptionPatch {
	return p.set("membership_tier", tier)
}

func (p *SubscriptionPatch) Status(status enums.SubscriptionStatus) *SubscriptionPatch {
	return p.set("subscription_status", status)
}

func (p *SubscriptionPatch) SubscriptionID(id *string) *SubscriptionPatch {
	if id == nil {
		return p.set("stripe_subscription_id", nil)
	}
	return p.set("stripe_subscription_id", *id)
}

func (p *SubscriptionPatch) ExpiresAt(at *time.Time) *SubscriptionPatch {
	if at == nil {
		return p.set("membership_expires_at", nil)
	}
	return p.set("membership_expires_at", at.UTC())
}

// Empty reports whether no column was set.
func (p SubscriptionPatch) Empty() bool {
	return len(p.columns) == 0
}

// Columns returns a copy of the patched columns keyed by column name.
func (p SubscriptionPatch) Columns() map[string]any {
	out := make(map[string]any, len(p.columns))
	for k, v := range p.columns {
		out[k] = v
	}
	return out
}

// Has reports whether the column is part of the patch.
func (p SubscriptionPatch) Has(column string) bool {
	_, ok := p.columns[column]
	return ok
}
