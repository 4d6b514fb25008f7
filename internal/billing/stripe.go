package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// UsageReporter pushes one metered quantity to a subscription item.
type UsageReporter interface {
	ReportUsage(ctx context.Context, subscriptionItem string, quantity int64, at time.Time, idempotencyKey string) error
}

// StripeReporter reports usage records through the Stripe API.
type StripeReporter struct {
	api *client.API
}

// NewStripeReporter creates a reporter authenticated with apiKey. A non-empty
// apiBase points the client at another endpoint such as stripe-mock.
func NewStripeReporter(apiKey, apiBase string) (*StripeReporter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("billing: stripe API key is required")
	}

	var backends *stripe.Backends
	if apiBase != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL: stripe.String(apiBase),
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	api := &client.API{}
	api.Init(apiKey, backends)
	return &StripeReporter{api: api}, nil
}

// ReportUsage sets the usage quantity for the period ending at at. The
// idempotency key makes a repeated sync of the same window a no-op.
func (r *StripeReporter) ReportUsage(ctx context.Context, subscriptionItem string, quantity int64, at time.Time, idempotencyKey string) error {
	params := &stripe.UsageRecordParams{
		SubscriptionItem: stripe.String(subscriptionItem),
		Quantity:         stripe.Int64(quantity),
		Timestamp:        stripe.Int64(at.Unix()),
		Action:           stripe.String("set"),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	if _, err := r.api.UsageRecords.New(params); err != nil {
		return fmt.Errorf("billing: reporting usage for %s: %w", subscriptionItem, err)
	}
	return nil
}
