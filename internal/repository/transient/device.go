// Package transient stores short-lived device flow state in the kv store.
package transient

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/kybernus/license-api/internal/domain/device"
	"github.com/kybernus/license-api/internal/kv"
	"github.com/kybernus/license-api/internal/pkg/errors"
)

const (
	deviceKeyPrefix   = "device:"
	userCodeKeyPrefix = "device-user:"
	stateKeyPrefix    = "oauth-state:"
)

// DeviceRepository implements device.Repository
type DeviceRepository struct {
	store kv.Store
}

// NewDeviceRepository creates a new device session repository
func NewDeviceRepository(store kv.Store) device.Repository {
	return &DeviceRepository{store: store}
}

// Create reserves the user code first so two live sessions can never share it
func (r *DeviceRepository) Create(ctx context.Context, s *device.Session, ttl time.Duration) (bool, error) {
	ok, err := r.store.SetNX(ctx, userCodeKeyPrefix+s.UserCode, s.DeviceCode, ttl)
	if err != nil {
		return false, errors.Internal("Failed to reserve user code", err)
	}
	if !ok {
		return false, nil
	}

	if err := r.put(ctx, s, ttl); err != nil {
		_, _ = r.store.Delete(ctx, userCodeKeyPrefix+s.UserCode)
		return false, err
	}
	return true, nil
}

// GetByDeviceCode loads a session
func (r *DeviceRepository) GetByDeviceCode(ctx context.Context, deviceCode string) (*device.Session, error) {
	raw, err := r.store.Get(ctx, deviceKeyPrefix+deviceCode)
	if stderrors.Is(err, kv.ErrNotFound) {
		return nil, errors.NotFound("Device session")
	}
	if err != nil {
		return nil, errors.Internal("Failed to load device session", err)
	}

	var s device.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, errors.Internal("Corrupt device session", err)
	}
	return &s, nil
}

// ResolveUserCode follows the reverse mapping
func (r *DeviceRepository) ResolveUserCode(ctx context.Context, userCode string) (string, error) {
	deviceCode, err := r.store.Get(ctx, userCodeKeyPrefix+userCode)
	if stderrors.Is(err, kv.ErrNotFound) {
		return "", errors.NotFound("User code")
	}
	if err != nil {
		return "", errors.Internal("Failed to resolve user code", err)
	}
	return deviceCode, nil
}

// ReleaseUserCode deletes the reverse mapping; only one caller sees true
func (r *DeviceRepository) ReleaseUserCode(ctx context.Context, userCode string) (bool, error) {
	n, err := r.store.Delete(ctx, userCodeKeyPrefix+userCode)
	if err != nil {
		return false, errors.Internal("Failed to release user code", err)
	}
	return n == 1, nil
}

// SaveCompleted rewrites the session with its residual TTL
func (r *DeviceRepository) SaveCompleted(ctx context.Context, s *device.Session, ttl time.Duration) error {
	return r.put(ctx, s, ttl)
}

// TakeCompleted removes the session and returns what was stored. Concurrent
// callers race on a single GETDEL, so at most one receives the session.
func (r *DeviceRepository) TakeCompleted(ctx context.Context, deviceCode string) (*device.Session, error) {
	raw, err := r.store.GetDel(ctx, deviceKeyPrefix+deviceCode)
	if stderrors.Is(err, kv.ErrNotFound) {
		return nil, errors.NotFound("Device session")
	}
	if err != nil {
		return nil, errors.Internal("Failed to take device session", err)
	}

	var s device.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, errors.Internal("Corrupt device session", err)
	}
	_, _ = r.store.Delete(ctx, userCodeKeyPrefix+s.UserCode)
	return &s, nil
}

func (r *DeviceRepository) put(ctx context.Context, s *device.Session, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return errors.Internal("Failed to encode device session", err)
	}
	if err := r.store.Set(ctx, deviceKeyPrefix+s.DeviceCode, string(raw), ttl); err != nil {
		return errors.Internal("Failed to save device session", err)
	}
	return nil
}

// StateRepository implements device.StateStore
type StateRepository struct {
	store kv.Store
}

// NewStateRepository creates a CSRF state store
func NewStateRepository(store kv.Store) device.StateStore {
	return &StateRepository{store: store}
}

// Save records a state token
func (r *StateRepository) Save(ctx context.Context, state string, ttl time.Duration) error {
	if err := r.store.Set(ctx, stateKeyPrefix+state, "1", ttl); err != nil {
		return errors.Internal("Failed to save OAuth state", err)
	}
	return nil
}

// Consume deletes the token; a second call reports false
func (r *StateRepository) Consume(ctx context.Context, state string) (bool, error) {
	_, err := r.store.GetDel(ctx, stateKeyPrefix+state)
	if stderrors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Internal("Failed to consume OAuth state", err)
	}
	return true, nil
}
