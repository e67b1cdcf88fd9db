package dto

// CheckoutRequest opens a hosted checkout. With a license key the purchase
// upgrades that account in place; otherwise the email identifies the buyer.
type CheckoutRequest struct {
	LicenseKey string `json:"licenseKey,omitempty" validate:"omitempty,licensekey"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Tier       string `json:"tier,omitempty" validate:"omitempty,oneof=free pro"`
}

// WebhookResponse acknowledges a webhook delivery
type WebhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}
