package account

import "time"

// Account is the identity and entitlement record behind a license key
type Account struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	LicenseKey        string     `json:"licenseKey"`
	Tier              Tier       `json:"tier"`
	Status            Status     `json:"status"`
	QuotaUsage        int        `json:"usage"`
	QuotaLimit        int        `json:"limit"`
	PasswordHash      string     `json:"-"`
	IdentityProvider  string     `json:"-"`
	IdentitySubject   string     `json:"-"`
	PaymentCustomerID string     `json:"-"`
	AvatarURL         string     `json:"avatarUrl,omitempty"`
	BillingEventID    string     `json:"-"`
	TrialStartedAt    *time.Time `json:"trialStartedAt,omitempty"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`
	LastValidatedAt   *time.Time `json:"lastValidatedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Tier is the purchased plan
type Tier string

const (
	TierFree Tier = "FREE"
	TierPro  Tier = "PRO"
)

// Status is the entitlement state
type Status string

const (
	StatusTrial        Status = "TRIAL"
	StatusTrialExpired Status = "TRIAL_EXPIRED"
	StatusFreeActive   Status = "FREE_ACTIVE"
	StatusFreePastDue  Status = "FREE_PAST_DUE"
	StatusProActive    Status = "PRO_ACTIVE"
	StatusCancelled    Status = "CANCELLED"
)

// UnlimitedQuota marks paid accounts
const UnlimitedQuota = -1

// IdentityGoogle is the only identity provider wired today
const IdentityGoogle = "google"

// IsPaid reports whether the status is one of the paid active states
func (s Status) IsPaid() bool {
	return s == StatusFreeActive || s == StatusProActive
}

// ActiveStatusFor returns the paid active status for a tier
func ActiveStatusFor(t Tier) Status {
	if t == TierPro {
		return StatusProActive
	}
	return StatusFreeActive
}

// ParseTier maps checkout metadata ("free", "pro") to a Tier, defaulting to PRO
func ParseTier(s string) Tier {
	switch s {
	case "free", "FREE":
		return TierFree
	default:
		return TierPro
	}
}

// EffectiveTier is the capability tier. Trials get PRO features while the
// stored tier stays FREE.
func (a *Account) EffectiveTier() Tier {
	if a.Status == StatusTrial {
		return TierPro
	}
	return a.Tier
}

// Remaining returns the quota left, or UnlimitedQuota
func (a *Account) Remaining() int {
	if a.QuotaLimit == UnlimitedQuota {
		return UnlimitedQuota
	}
	if r := a.QuotaLimit - a.QuotaUsage; r > 0 {
		return r
	}
	return 0
}

// Identity is a verified profile from an external identity provider
type Identity struct {
	Provider  string
	Subject   string
	Email     string
	Name      string
	AvatarURL string
}
