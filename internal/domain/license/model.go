package license

import "github.com/kybernus/license-api/internal/domain/account"

// Validation is the answer to "is this key valid"
type Validation struct {
	Valid   bool           `json:"valid"`
	Status  account.Status `json:"status,omitempty"`
	Tier    account.Tier   `json:"tier,omitempty"`
	Usage   int            `json:"usage"`
	Limit   int            `json:"limit"`
	Message string         `json:"message"`
	Email   string         `json:"email,omitempty"`
}

// Consumption is the answer to "may this key use one more project"
type Consumption struct {
	Authorized bool   `json:"authorized"`
	Usage      int    `json:"usage"`
	Limit      int    `json:"limit"`
	Remaining  *int   `json:"remaining,omitempty"`
	Unlimited  bool   `json:"unlimited,omitempty"`
	Message    string `json:"message,omitempty"`
}

// User-facing messages
const (
	MsgNotFound      = "License not found"
	MsgActive        = "License is active"
	MsgTrialExpired  = "Trial has expired. Please upgrade."
	MsgCancelled     = "License has been cancelled"
	MsgPastDue       = "Payment failed. Please update payment method."
	MsgInactive      = "License inactive or expired"
	MsgInvalidStatus = "Invalid license status"
)
