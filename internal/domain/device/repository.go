package device

import (
	"context"
	"time"
)

// Repository stores pairing sessions under two lookup paths, the device code
// and the user code. Both entries expire on their own.
type Repository interface {
	// Create stores a pending session. It returns false without writing
	// anything when the user code is already held by a live session.
	Create(ctx context.Context, session *Session, ttl time.Duration) (bool, error)

	// GetByDeviceCode returns the session or errors.NotFound
	GetByDeviceCode(ctx context.Context, deviceCode string) (*Session, error)

	// ResolveUserCode returns the device code a user code points at
	ResolveUserCode(ctx context.Context, userCode string) (string, error)

	// ReleaseUserCode deletes the user code mapping and reports whether this
	// call removed it. Only one caller can win.
	ReleaseUserCode(ctx context.Context, userCode string) (bool, error)

	// SaveCompleted overwrites the session with its completed state
	SaveCompleted(ctx context.Context, session *Session, ttl time.Duration) error

	// TakeCompleted atomically removes the session and returns it. Only one
	// caller gets the session; the rest see errors.NotFound.
	TakeCompleted(ctx context.Context, deviceCode string) (*Session, error)
}

// StateStore holds single-use CSRF state tokens for the browser step
type StateStore interface {
	Save(ctx context.Context, state string, ttl time.Duration) error
	// Consume removes the state and reports whether it existed
	Consume(ctx context.Context, state string) (bool, error)
}
