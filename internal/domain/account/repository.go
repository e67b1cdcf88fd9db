package account

import (
	"context"
	"time"
)

// Repository defines the interface for account data access
type Repository interface {
	// Create inserts a new account; a duplicate email or key is a Conflict
	Create(ctx context.Context, account *Account) error

	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByLicenseKey(ctx context.Context, licenseKey string) (*Account, error)
	GetByIdentity(ctx context.Context, provider, subject string) (*Account, error)
	GetByPaymentCustomer(ctx context.Context, customerID string) (*Account, error)

	// GetByBillingEvent returns the account last provisioned or rotated by
	// the given billing event
	GetByBillingEvent(ctx context.Context, eventID string) (*Account, error)

	// Update writes profile fields (identity link, avatar, password, last login)
	Update(ctx context.Context, account *Account) error

	// TouchValidated records the last successful validation
	TouchValidated(ctx context.Context, id string, at time.Time) error

	// ConsumeTrialQuota increments usage for a TRIAL key only while usage is
	// below the limit, as one statement. ok is false when the limit is reached
	// or the key is not a trial.
	ConsumeTrialQuota(ctx context.Context, licenseKey string) (usage, limit int, ok bool, err error)

	// IncrementUsage increments usage for a paid key without a limit check
	IncrementUsage(ctx context.Context, licenseKey string) (usage int, ok bool, err error)

	// RotateLicense swaps the license key and applies the paid tier, only if
	// the account still holds oldKey. Reports whether the swap happened.
	RotateLicense(ctx context.Context, id, oldKey string, change Upgrade) (bool, error)

	// TransitionStatus sets status to `to` when the current status is one of
	// `from` (any status when from is empty). Reports whether a row changed.
	TransitionStatus(ctx context.Context, id string, from []Status, to Status) (bool, error)
}

// Upgrade describes a paid tier change applied by billing
type Upgrade struct {
	NewKey            string
	Tier              Tier
	Status            Status
	PaymentCustomerID string
	// EventID is the billing event applying the change
	EventID string
}
