package stripewebhook

import (
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v82"

	pkgerrors "github.com/nomasclub/nomas-backend/pkg/errors"
)

func decodeObject(event *stripe.Event, out any) error {
	if event == nil || event.Data == nil || len(event.Data.Raw) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	if err := json.Unmarshal(event.Data.Raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode "+string(event.Type))
	}
	return nil
}

// legacyPeriod reads the subscription-level period end sent by API versions
// that predate per-item billing periods.
type legacyPeriod struct {
	CurrentPeriodEnd int64 `json:"current_period_end"`
}

// periodEnd returns the end of the subscription's current billing period.
func periodEnd(event *stripe.Event, sub *stripe.Subscription) *time.Time {
	var end int64
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.CurrentPeriodEnd > end {
				end = item.CurrentPeriodEnd
			}
		}
	}
	if end == 0 && event != nil && event.Data != nil {
		var legacy legacyPeriod
		if err := json.Unmarshal(event.Data.Raw, &legacy); err == nil {
			end = legacy.CurrentPeriodEnd
		}
	}
	if end == 0 {
		return nil
	}
	at := time.Unix(end, 0).UTC()
	return &at
}

// firstPrice returns the product and price of the subscription's first item.
func firstPrice(sub *stripe.Subscription) (productID, priceID string) {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0] == nil {
		return "", ""
	}
	price := sub.Items.Data[0].Price
	if price == nil {
		return "", ""
	}
	if price.Product != nil {
		productID = price.Product.ID
	}
	return productID, price.ID
}

func customerRef(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// invoiceSubscriptionID handles both the current parent.subscription_details
// shape and the older top-level subscription field.
func invoiceSubscriptionID(event *stripe.Event) string {
	if id := event.GetObjectValue("parent", "subscription_details", "subscription"); id != "" {
		return id
	}
	return event.GetObjectValue("subscription")
}

// objectID is the fallback audit key when no customer is attached.
func objectID(event *stripe.Event) string {
	if id := event.GetObjectValue("customer"); id != "" {
		return id
	}
	return event.GetObjectValue("id")
}
