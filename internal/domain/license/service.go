package license

import "context"

// Service validates license keys and meters project quota
type Service interface {
	// Validate checks signature, existence and status of a key
	Validate(ctx context.Context, licenseKey string) (*Validation, error)

	// Consume uses one unit of quota. A denied trial returns the current
	// counters together with a QuotaExceeded error.
	Consume(ctx context.Context, licenseKey string) (*Consumption, error)

	// Invalidate drops any cached validation for the keys
	Invalidate(ctx context.Context, licenseKeys ...string)
}
