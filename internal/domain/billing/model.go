package billing

import "time"

// Subscription tracks a recurring plan at the payment provider
type Subscription struct {
	ID                     string    `json:"id"`
	AccountID              string    `json:"accountId"`
	ExternalSubscriptionID string    `json:"externalSubscriptionId"`
	PriceID                string    `json:"priceId"`
	Status                 string    `json:"status"`
	CurrentPeriodStart     time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd       time.Time `json:"currentPeriodEnd"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// Subscription statuses we write
const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionPastDue  = "past_due"
)

// Provider event types handled by the reconciler
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventSubscriptionDeleted   = "customer.subscription.deleted"
	EventInvoicePaymentFailed  = "invoice.payment_failed"
	EventInvoicePaymentSucceed = "invoice.payment_succeeded"
)

// BillingReasonCycle marks a renewal invoice
const BillingReasonCycle = "subscription_cycle"

// Event is a verified provider event reduced to the fields we act on.
// Exactly one of the payload pointers is set for handled types.
type Event struct {
	ID       string
	Type     string
	Created  time.Time
	Checkout *CheckoutCompleted
	Deleted  *SubscriptionDeleted
	Invoice  *Invoice
}

// CheckoutCompleted is the payload of checkout.session.completed
type CheckoutCompleted struct {
	SessionID      string
	CustomerID     string
	CustomerEmail  string
	SubscriptionID string
	Metadata       map[string]string
}

// SubscriptionDeleted is the payload of customer.subscription.deleted
type SubscriptionDeleted struct {
	SubscriptionID string
	CustomerID     string
}

// Invoice is the payload of invoice.payment_failed / payment_succeeded
type Invoice struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	BillingReason  string
	PeriodStart    time.Time
	PeriodEnd      time.Time
}

// Checkout metadata keys
const (
	MetaLicenseKey = "licenseKey"
	MetaTier       = "tier"
	MetaPriceID    = "priceId"
	MetaAccountID  = "accountId"
)

// CheckoutRequest asks the provider for a hosted checkout page
type CheckoutRequest struct {
	Tier          string // "free" (monthly) or "pro" (lifetime)
	PriceID       string
	CustomerEmail string
	LicenseKey    string
	AccountID     string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the provider's answer
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// WebhookOutcome is reported back for logging and metrics
type WebhookOutcome string

const (
	OutcomeProcessed WebhookOutcome = "processed"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeIgnored   WebhookOutcome = "ignored"
)
