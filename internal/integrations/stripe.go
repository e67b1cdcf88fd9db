package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/kybernus/license-api/internal/config"
	"github.com/kybernus/license-api/internal/domain/billing"
)

// StripeProvider implements billing.Provider
type StripeProvider struct {
	webhookSecret string
	successURL    string
	cancelURL     string

	createCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewStripeProvider configures the Stripe SDK with the secret key
func NewStripeProvider(cfg config.StripeConfig) *StripeProvider {
	stripe.Key = strings.TrimSpace(cfg.SecretKey)
	return &StripeProvider{
		webhookSecret:         cfg.WebhookSecret,
		successURL:            cfg.SuccessURL,
		cancelURL:             cfg.CancelURL,
		createCheckoutSession: stripesession.New,
	}
}

// Event payloads, reduced to the fields we use
type stripeCheckoutSession struct {
	ID              string `json:"id"`
	Customer        string `json:"customer"`
	Subscription    string `json:"subscription"`
	CustomerEmail   string `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
}

type stripeInvoice struct {
	ID            string `json:"id"`
	Customer      string `json:"customer"`
	Subscription  string `json:"subscription"`
	BillingReason string `json:"billing_reason"`
	PeriodStart   int64  `json:"period_start"`
	PeriodEnd     int64  `json:"period_end"`
	// Newer API versions move the subscription here.
	Parent struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*billing.Event, error) {
	if strings.TrimSpace(p.webhookSecret) == "" {
		return nil, fmt.Errorf("webhook secret not configured")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	out := &billing.Event{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
	}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case billing.EventCheckoutCompleted:
		var s stripeCheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout.session: %w", err)
		}
		email := s.CustomerDetails.Email
		if email == "" {
			email = s.CustomerEmail
		}
		out.Checkout = &billing.CheckoutCompleted{
			SessionID:      s.ID,
			CustomerID:     s.Customer,
			CustomerEmail:  email,
			SubscriptionID: s.Subscription,
			Metadata:       s.Metadata,
		}

	case billing.EventSubscriptionDeleted:
		var s stripeSubscription
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		out.Deleted = &billing.SubscriptionDeleted{SubscriptionID: s.ID, CustomerID: s.Customer}

	case billing.EventInvoicePaymentFailed, billing.EventInvoicePaymentSucceed:
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		subID := inv.Subscription
		if subID == "" {
			subID = inv.Parent.SubscriptionDetails.Subscription
		}
		out.Invoice = &billing.Invoice{
			ID:             inv.ID,
			CustomerID:     inv.Customer,
			SubscriptionID: subID,
			BillingReason:  inv.BillingReason,
			PeriodStart:    unixOrZero(inv.PeriodStart),
			PeriodEnd:      unixOrZero(inv.PeriodEnd),
		}
	}

	return out, nil
}

// CreateCheckoutSession opens a hosted checkout page. The free tier is a
// monthly subscription and pro is a one-off lifetime payment.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	successURL := req.SuccessURL
	if successURL == "" {
		successURL = p.successURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = p.cancelURL
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx

	if req.Tier == "free" {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
	} else {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		params.CustomerCreation = stripe.String(string(stripe.CheckoutSessionCustomerCreationAlways))
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	params.AddMetadata(billing.MetaTier, req.Tier)
	params.AddMetadata(billing.MetaPriceID, req.PriceID)
	if req.LicenseKey != "" {
		params.AddMetadata(billing.MetaLicenseKey, req.LicenseKey)
	}
	if req.AccountID != "" {
		params.AddMetadata(billing.MetaAccountID, req.AccountID)
		params.ClientReferenceID = stripe.String(req.AccountID)
	}

	session, err := p.createCheckoutSession(params)
	if err != nil {
		return nil, err
	}
	return &billing.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func unixOrZero(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
