package account

import "context"

// Service defines the interface for account business logic
type Service interface {
	// Register creates a TRIAL account with a freshly signed key
	Register(ctx context.Context, email, password string) (*Account, error)

	// Login checks a password and returns the account
	Login(ctx context.Context, email, password string) (*Account, error)

	// GetByID retrieves an account by ID
	GetByID(ctx context.Context, id string) (*Account, error)

	// ResolveIdentity finds the account for a verified identity, by subject
	// and then by email, linking or creating it as needed. created reports
	// whether a new trial account was opened.
	ResolveIdentity(ctx context.Context, identity Identity) (acct *Account, created bool, err error)
}

// IdentityProvider exchanges an OAuth2 authorization code for a verified
// profile
type IdentityProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}
