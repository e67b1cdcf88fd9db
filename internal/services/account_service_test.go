package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kybernus/license-api/internal/domain/account"
	"github.com/kybernus/license-api/internal/domain/notification"
	"github.com/kybernus/license-api/internal/pkg/errors"
)

func TestAccountService_Register(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	acct, err := h.accountSvc.Register(ctx, "  Dev@Example.com ", "hunter22")
	require.NoError(t, err)

	assert.Equal(t, "dev@example.com", acct.Email)
	assert.Equal(t, account.StatusTrial, acct.Status)
	assert.Equal(t, account.TierFree, acct.Tier)
	assert.Equal(t, 3, acct.QuotaLimit)
	assert.True(t, strings.HasPrefix(acct.LicenseKey, "KYB-TRIAL-"))
	assert.True(t, h.codec.Verify(acct.LicenseKey).Valid)
	assert.NotEmpty(t, acct.PasswordHash)
	assert.NotEqual(t, "hunter22", acct.PasswordHash)
	assert.Equal(t, []notification.Kind{notification.KindWelcome}, h.notifier.Kinds())

	_, err = h.accountSvc.Register(ctx, "dev@example.com", "")
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestAccountService_Login(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.accountSvc.Register(ctx, "dev@example.com", "hunter22")
	require.NoError(t, err)
	_, err = h.accountSvc.Register(ctx, "nopass@example.com", "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  bool
	}{
		{"correct password", "dev@example.com", "hunter22", false},
		{"email case ignored", "DEV@example.com", "hunter22", false},
		{"wrong password", "dev@example.com", "hunter23", true},
		{"unknown email", "who@example.com", "hunter22", true},
		{"account without password", "nopass@example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct, err := h.accountSvc.Login(ctx, tt.email, tt.password)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeUnauthorized, errors.As(err).Code)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, acct.LastLoginAt)
		})
	}
}

func TestAccountService_ResolveIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	identity := account.Identity{
		Provider:  account.IdentityGoogle,
		Subject:   "sub-1",
		Email:     "dev@example.com",
		AvatarURL: "https://example.com/a.png",
	}

	created, isNew, err := h.accountSvc.ResolveIdentity(ctx, identity)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, account.StatusTrial, created.Status)

	again, isNew, err := h.accountSvc.ResolveIdentity(ctx, identity)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, created.LicenseKey, again.LicenseKey)

	// Only the first sign-in sends the welcome mail.
	assert.Len(t, h.notifier.Kinds(), 1)

	_, _, err = h.accountSvc.ResolveIdentity(ctx, account.Identity{Provider: account.IdentityGoogle})
	assert.ErrorIs(t, err, errors.ErrUpstreamAuth)
}
