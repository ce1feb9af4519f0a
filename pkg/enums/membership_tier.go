package enums

import "fmt"

// MembershipTier is the subscription tier projected onto a profile.
type MembershipTier string

const (
	MembershipTierFree       MembershipTier = "free"
	MembershipTierMonthly    MembershipTier = "monthly"
	MembershipTierQuarterly  MembershipTier = "quarterly"
	MembershipTierSemiannual MembershipTier = "semiannual"
)

var validMembershipTiers = []MembershipTier{
	MembershipTierFree,
	MembershipTierMonthly,
	MembershipTierQuarterly,
	MembershipTierSemiannual,
}

// String implements fmt.Stringer.
func (t MembershipTier) String() string {
	return string(t)
}

// IsValid reports whether the value is a known MembershipTier.
func (t MembershipTier) IsValid() bool {
	for _, candidate := range validMembershipTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsPaid reports whether the tier is anything other than free.
func (t MembershipTier) IsPaid() bool {
	return t != "" && t != MembershipTierFree
}

// ParseMembershipTier converts raw input into a MembershipTier.
func ParseMembershipTier(value string) (MembershipTier, error) {
	for _, candidate := range validMembershipTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid membership tier %q", value)
}
