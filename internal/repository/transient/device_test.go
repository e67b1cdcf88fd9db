package transient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kybernus/license-api/internal/domain/device"
	"github.com/kybernus/license-api/internal/kv"
	"github.com/kybernus/license-api/internal/pkg/errors"
)

func TestDeviceRepository_Lifecycle(t *testing.T) {
	store := kv.NewMemoryStore()
	repo := NewDeviceRepository(store)
	ctx := context.Background()

	s := &device.Session{DeviceCode: "dc-1", UserCode: "ABCD-2345", Status: device.StatusPending, CreatedAt: time.Now()}
	ok, err := repo.Create(ctx, s, 10*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A second session cannot take the same user code.
	ok, err = repo.Create(ctx, &device.Session{DeviceCode: "dc-2", UserCode: "ABCD-2345"}, 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = repo.GetByDeviceCode(ctx, "dc-2")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	deviceCode, err := repo.ResolveUserCode(ctx, "ABCD-2345")
	require.NoError(t, err)
	assert.Equal(t, "dc-1", deviceCode)

	released, err := repo.ReleaseUserCode(ctx, "ABCD-2345")
	require.NoError(t, err)
	assert.True(t, released)
	released, err = repo.ReleaseUserCode(ctx, "ABCD-2345")
	require.NoError(t, err)
	assert.False(t, released)

	s.Status = device.StatusComplete
	s.LicenseKey = "KYB-TRIAL-X"
	require.NoError(t, repo.SaveCompleted(ctx, s, 5*time.Minute))

	got, err := repo.GetByDeviceCode(ctx, "dc-1")
	require.NoError(t, err)
	assert.Equal(t, device.StatusComplete, got.Status)
	assert.Equal(t, "KYB-TRIAL-X", got.LicenseKey)

	taken, err := repo.TakeCompleted(ctx, "dc-1")
	require.NoError(t, err)
	assert.Equal(t, "KYB-TRIAL-X", taken.LicenseKey)
	_, err = repo.GetByDeviceCode(ctx, "dc-1")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = repo.TakeCompleted(ctx, "dc-1")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestStateRepository_SingleUse(t *testing.T) {
	repo := NewStateRepository(kv.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "state-1", time.Minute))

	ok, err := repo.Consume(ctx, "state-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Consume(ctx, "state-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
