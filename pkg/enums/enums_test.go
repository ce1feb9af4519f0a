package enums

import "testing"

func TestParseMembershipTier(t *testing.T) {
	for _, raw := range []string{"free", "monthly", "quarterly", "semiannual"} {
		tier, err := ParseMembershipTier(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if tier.String() != raw {
			t.Fatalf("round trip mismatch for %q", raw)
		}
	}
	if _, err := ParseMembershipTier("premium"); err == nil {
		t.Fatalf("premium is not a tier")
	}
}

func TestMembershipTierIsPaid(t *testing.T) {
	if MembershipTierFree.IsPaid() {
		t.Fatalf("free tier is not paid")
	}
	if MembershipTier("").IsPaid() {
		t.Fatalf("empty tier is not paid")
	}
	if !MembershipTierQuarterly.IsPaid() {
		t.Fatalf("quarterly tier is paid")
	}
}

func TestSubscriptionStatusIncludesLocalStates(t *testing.T) {
	for _, status := range []SubscriptionStatus{SubscriptionStatusPaused, SubscriptionStatusExpired} {
		if !status.IsValid() {
			t.Fatalf("expected %s to be valid", status)
		}
	}
	if SubscriptionStatus("bogus").IsValid() {
		t.Fatalf("bogus should be invalid")
	}
}

func TestParseBookingAndPaymentStatus(t *testing.T) {
	if _, err := ParseBookingStatus("cancelled"); err == nil {
		t.Fatalf("cancelled is not a stored booking status")
	}
	if status, err := ParsePaymentStatus("not_required"); err != nil || status != PaymentStatusNotRequired {
		t.Fatalf("unexpected parse result %v %v", status, err)
	}
}

func TestOutboxEventTypes(t *testing.T) {
	if !EventBookingCancelled.IsValid() {
		t.Fatalf("booking_cancelled should be valid")
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatalf("unknown outbox event types must be rejected")
	}
	if _, err := ParseOutboxAggregateType("profile"); err != nil {
		t.Fatalf("profile aggregate should parse: %v", err)
	}
}
