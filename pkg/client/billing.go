package client

import "context"

// CheckoutRequest opens a hosted checkout
type CheckoutRequest struct {
	LicenseKey string `json:"licenseKey,omitempty"`
	Email      string `json:"email,omitempty"`
	Tier       string `json:"tier,omitempty"` // "free" or "pro"
}

// CheckoutSession is a hosted checkout page
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// BillingService opens checkout sessions
type BillingService struct {
	client *Client
}

// Checkout returns the URL of a hosted checkout page
func (s *BillingService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := s.client.doRequest(ctx, "POST", "/billing/checkout", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}
