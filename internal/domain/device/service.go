package device

import "context"

// Service defines the device pairing flow
type Service interface {
	// IssueCode starts a pairing for a CLI
	IssueCode(ctx context.Context, clientIP string) (*Code, error)

	// Poll reports the pairing state; a complete result is delivered once
	Poll(ctx context.Context, deviceCode string) (*PollResult, error)

	// Complete finishes a pairing from the browser
	Complete(ctx context.Context, in CompleteInput) (*CompleteResult, error)

	// IssueState creates a CSRF state token for the identity provider redirect
	IssueState(ctx context.Context) (string, error)
}
