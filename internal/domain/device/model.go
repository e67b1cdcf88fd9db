package device

import "time"

// Status of a pairing session
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	// StatusExpired is never stored; it is what a poll reports for a session
	// that no longer exists.
	StatusExpired Status = "expired"
)

// Session is the transient state of one device pairing
type Session struct {
	DeviceCode  string     `json:"deviceCode"`
	UserCode    string     `json:"userCode"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	Email       string     `json:"email,omitempty"`
	LicenseKey  string     `json:"licenseKey,omitempty"`
	Tier        string     `json:"tier,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Code is returned to the CLI when a pairing starts
type Code struct {
	DeviceCode      string `json:"deviceCode"`
	UserCode        string `json:"userCode"`
	VerificationURL string `json:"verificationUrl"`
	ExpiresIn       int    `json:"expiresIn"`
	Interval        int    `json:"interval"`
}

// PollResult is what the CLI sees on each poll
type PollResult struct {
	Status     Status `json:"status"`
	Email      string `json:"email,omitempty"`
	LicenseKey string `json:"licenseKey,omitempty"`
	Tier       string `json:"tier,omitempty"`
}

// CompleteInput carries the browser side of a pairing
type CompleteInput struct {
	UserCode          string
	AuthorizationCode string
	State             string
	CookieState       string
	ClientIP          string
}

// CompleteResult is returned to the browser
type CompleteResult struct {
	Success    bool   `json:"success"`
	IsNewUser  bool   `json:"isNewUser"`
	AccountID  string `json:"-"`
	Email      string `json:"-"`
	LicenseKey string `json:"-"`
}
