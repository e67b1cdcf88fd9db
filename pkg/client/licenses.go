package client

import (
	"context"
	"encoding/json"
	"errors"
)

// Validation is the answer to a license check
type Validation struct {
	Valid   bool   `json:"valid"`
	Status  string `json:"status,omitempty"`
	Tier    string `json:"tier,omitempty"`
	Usage   int    `json:"usage"`
	Limit   int    `json:"limit"`
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

// Consumption is the answer to a quota request
type Consumption struct {
	Authorized bool   `json:"authorized"`
	Usage      int    `json:"usage"`
	Limit      int    `json:"limit"`
	Remaining  *int   `json:"remaining,omitempty"`
	Unlimited  bool   `json:"unlimited,omitempty"`
	Message    string `json:"message,omitempty"`
}

// LicenseService validates keys and consumes quota
type LicenseService struct {
	client *Client
}

// Validate checks a license key. An inactive license is not an error: the
// result has Valid false and the reason in Message. Forged or unknown keys
// return an *APIError.
func (s *LicenseService) Validate(ctx context.Context, licenseKey string) (*Validation, error) {
	var v Validation
	err := s.client.doRequest(ctx, "POST", "/licenses/validate", map[string]string{"licenseKey": licenseKey}, &v)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == CodeLicenseInactive {
			if jsonErr := json.Unmarshal(apiErr.Body, &v); jsonErr == nil {
				return &v, nil
			}
		}
		return nil, err
	}
	return &v, nil
}

// Consume uses one project of quota. On a denial the current counters are
// returned together with the *APIError.
func (s *LicenseService) Consume(ctx context.Context, licenseKey string) (*Consumption, error) {
	var c Consumption
	err := s.client.doRequest(ctx, "POST", "/licenses/consume", map[string]string{"licenseKey": licenseKey}, &c)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsForbidden() {
			if jsonErr := json.Unmarshal(apiErr.Body, &c); jsonErr == nil {
				return &c, err
			}
		}
		return nil, err
	}
	return &c, nil
}
