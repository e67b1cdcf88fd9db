package billing

import "context"

// Service reconciles provider events into account state
type Service interface {
	// HandleWebhook verifies and applies a raw webhook delivery
	HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error)

	// Apply processes an already verified event idempotently
	Apply(ctx context.Context, event *Event) (WebhookOutcome, error)

	// CreateCheckout opens a hosted checkout session
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// Provider is the payment provider seen by the reconciler
type Provider interface {
	// ParseWebhook verifies the signature and decodes the event
	ParseWebhook(payload []byte, signature string) (*Event, error)

	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}
