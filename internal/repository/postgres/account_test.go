package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kybernus/license-api/internal/domain/account"
	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/testutil"
)

func newTrial(email, key string, limit int) *account.Account {
	now := time.Now()
	return &account.Account{
		ID:             uuid.NewString(),
		Email:          email,
		LicenseKey:     key,
		Tier:           account.TierFree,
		Status:         account.StatusTrial,
		QuotaLimit:     limit,
		TrialStartedAt: &now,
	}
}

func TestDialectRebind(t *testing.T) {
	q := "UPDATE accounts SET status = ? WHERE id = ? AND status IN (?, ?)"
	assert.Equal(t, q, DialectSQLite.Rebind(q))
	assert.Equal(t, "UPDATE accounts SET status = $1 WHERE id = $2 AND status IN ($3, $4)", DialectPostgres.Rebind(q))
}

func TestAccountRepository_CreateAndGet(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAccountRepository(db, DialectSQLite)
	ctx := context.Background()

	a := newTrial("dev@example.com", "KYB-TRIAL-AAAA-BBBB-CCCC-11111111", 3)
	a.IdentityProvider = account.IdentityGoogle
	a.IdentitySubject = "google-123"
	require.NoError(t, repo.Create(ctx, a))

	tests := []struct {
		name string
		get  func() (*account.Account, error)
	}{
		{"by id", func() (*account.Account, error) { return repo.GetByID(ctx, a.ID) }},
		{"by email", func() (*account.Account, error) { return repo.GetByEmail(ctx, "DEV@example.com") }},
		{"by key", func() (*account.Account, error) { return repo.GetByLicenseKey(ctx, a.LicenseKey) }},
		{"by identity", func() (*account.Account, error) {
			return repo.GetByIdentity(ctx, account.IdentityGoogle, "google-123")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.get()
			require.NoError(t, err)
			assert.Equal(t, a.ID, got.ID)
			assert.Equal(t, account.StatusTrial, got.Status)
			assert.Equal(t, 3, got.QuotaLimit)
			require.NotNil(t, got.TrialStartedAt)
			assert.Nil(t, got.LastValidatedAt)
		})
	}

	_, err := repo.GetByLicenseKey(ctx, "KYB-PRO-0000-0000-0000-00000000")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestAccountRepository_CreateDuplicateEmail(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAccountRepository(db, DialectSQLite)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTrial("dup@example.com", "KYB-TRIAL-1", 3)))
	err := repo.Create(ctx, newTrial("dup@example.com", "KYB-TRIAL-2", 3))
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestAccountRepository_ConsumeTrialQuotaConcurrent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAccountRepository(db, DialectSQLite)
	ctx := context.Background()

	a := newTrial("race@example.com", "KYB-TRIAL-RACE", 3)
	require.NoError(t, repo.Create(ctx, a))

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted, denied := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, ok, err := repo.ConsumeTrialQuota(ctx, a.LicenseKey)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				t.Errorf("ConsumeTrialQuota() error = %v", err)
				return
			}
			if ok {
				granted++
			} else {
				denied++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, granted)
	assert.Equal(t, 7, denied)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.QuotaUsage)
}

func TestAccountRepository_ConsumeTrialQuotaRules(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAccountRepository(db, DialectSQLite)
	ctx := context.Background()

	a := newTrial("rules@example.com", "KYB-TRIAL-RULES", 1)
	require.NoError(t, repo.Create(ctx, a))

	usage, limit, ok, err := repo.ConsumeTrialQuota(ctx, a.LicenseKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, usage)
	assert.Equal(t, 1, limit)

	usage, limit, ok, err = repo.ConsumeTrialQuota(ctx, a.LicenseKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, usage)
	assert.Equal(t, 1, limit)

	_, _, _, err = repo.ConsumeTrialQuota(ctx, "KYB-TRIAL-MISSING")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// Paid keys are not metered by the trial path.
	_, ok, err = repo.IncrementUsage(ctx, a.LicenseKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccountRepository_RotateLicense(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAccountRepository(db, DialectSQLite)
	ctx := context.Background()

	a := newTrial("rotate@example.com", "KYB-TRIAL-OLD", 3)
	require.NoError(t, repo.Create(ctx, a))

	change := account.Upgrade{
		NewKey:            "KYB-PRO-NEW",
		Tier:              account.TierPro,
		Status:            account.StatusProActive,
		PaymentCustomerID: "cus_123",
		EventID:           "evt_checkout",
	}
	ok, err := repo.RotateLicense(ctx, a.ID, "KYB-TRIAL-OLD", change)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second rotation against the stale key is a no-op.
	change.NewKey = "KYB-PRO-NEWER"
	ok, err = repo.RotateLicense(ctx, a.ID, "KYB-TRIAL-OLD", change)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.GetByLicenseKey(ctx, "KYB-TRIAL-OLD")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	got, err := repo.GetByPaymentCustomer(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, "KYB-PRO-NEW", got.LicenseKey)
	assert.Equal(t, account.StatusProActive, got.Status)
	assert.Equal(t, account.UnlimitedQuota, got.QuotaLimit)

	byEvent, err := repo.GetByBillingEvent(ctx, "evt_checkout")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byEvent.ID)
	_, err = repo.GetByBillingEvent(ctx, "")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	usage, ok, err := repo.IncrementUsage(ctx, "KYB-PRO-NEW")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, usage)
}

func TestAccountRepository_TransitionStatus(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAccountRepository(db, DialectSQLite)
	ctx := context.Background()

	a := newTrial("status@example.com", "KYB-TRIAL-STATUS", 3)
	a.Status = account.StatusFreeActive
	require.NoError(t, repo.Create(ctx, a))

	tests := []struct {
		name    string
		from    []account.Status
		to      account.Status
		changed bool
	}{
		{"past due from active", []account.Status{account.StatusFreeActive, account.StatusProActive}, account.StatusFreePastDue, true},
		{"same status is a no-op", nil, account.StatusFreePastDue, false},
		{"guard not met", []account.Status{account.StatusProActive}, account.StatusCancelled, false},
		{"unconditional cancel", nil, account.StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, err := repo.TransitionStatus(ctx, a.ID, tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
		})
	}

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusCancelled, got.Status)
}

func TestAccountRepository_UpdateAndTouch(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAccountRepository(db, DialectSQLite)
	ctx := context.Background()

	a := newTrial("profile@example.com", "KYB-TRIAL-PROFILE", 3)
	require.NoError(t, repo.Create(ctx, a))

	now := time.Now().Truncate(time.Second)
	a.IdentityProvider = account.IdentityGoogle
	a.IdentitySubject = "sub-1"
	a.LastLoginAt = &now
	require.NoError(t, repo.Update(ctx, a))
	require.NoError(t, repo.TouchValidated(ctx, a.ID, now))

	got, err := repo.GetByIdentity(ctx, account.IdentityGoogle, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	require.NotNil(t, got.LastValidatedAt)
	assert.Equal(t, now.Unix(), got.LastValidatedAt.Unix())
}
