package notification

import "context"

// Sender delivers a rendered message through one provider
type Sender interface {
	Send(ctx context.Context, msg *Message) error
	Name() string
}

// Service sends transactional license emails. Calls return immediately and
// delivery failures are logged, never surfaced.
type Service interface {
	SendWelcome(ctx context.Context, details LicenseDetails)
	SendLicenseKey(ctx context.Context, details LicenseDetails)
	SendUpgradeConfirmation(ctx context.Context, details LicenseDetails)
}
