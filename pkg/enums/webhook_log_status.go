package enums

// WebhookLogStatus records the outcome of a processed webhook or sweep.
type WebhookLogStatus string

const (
	WebhookLogStatusSuccess WebhookLogStatus = "success"
	WebhookLogStatusError   WebhookLogStatus = "error"
)

// String implements fmt.Stringer.
func (s WebhookLogStatus) String() string {
	return string(s)
}
