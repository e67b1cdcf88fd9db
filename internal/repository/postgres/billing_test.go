package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kybernus/license-api/internal/domain/billing"
	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/testutil"
	"github.com/kybernus/license-api/migrations"
)

func TestBillingRepository_ClaimEvent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewBillingRepository(db, DialectSQLite)
	ctx := context.Background()
	now := time.Now()
	stale := now.Add(-10 * time.Minute)

	ok, err := repo.ClaimEvent(ctx, "evt_1", billing.EventCheckoutCompleted, now, stale)
	require.NoError(t, err)
	assert.True(t, ok, "first claim wins")

	ok, err = repo.ClaimEvent(ctx, "evt_1", billing.EventCheckoutCompleted, now, stale)
	require.NoError(t, err)
	assert.False(t, ok, "in-flight claim blocks a duplicate")

	// Released claims can be retried.
	require.NoError(t, repo.ReleaseEvent(ctx, "evt_1"))
	ok, err = repo.ClaimEvent(ctx, "evt_1", billing.EventCheckoutCompleted, now, stale)
	require.NoError(t, err)
	assert.True(t, ok)

	// Processed events are never reclaimed, even when old.
	require.NoError(t, repo.MarkEventProcessed(ctx, "evt_1", now))
	later := now.Add(time.Hour)
	ok, err = repo.ClaimEvent(ctx, "evt_1", billing.EventCheckoutCompleted, later, later.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, repo.ReleaseEvent(ctx, "evt_1"))
	ok, err = repo.ClaimEvent(ctx, "evt_1", billing.EventCheckoutCompleted, later, later.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "release must not drop a processed event")
}

func TestBillingRepository_ClaimEventTakesOverStaleClaim(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewBillingRepository(db, DialectSQLite)
	ctx := context.Background()
	start := time.Now().Add(-time.Hour)

	ok, err := repo.ClaimEvent(ctx, "evt_stale", billing.EventInvoicePaymentFailed, start, start.Add(-10*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	now := time.Now()
	ok, err = repo.ClaimEvent(ctx, "evt_stale", billing.EventInvoicePaymentFailed, now, now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBillingRepository_UpsertSubscription(t *testing.T) {
	db := testutil.NewTestDB(t)
	accounts := NewAccountRepository(db, DialectSQLite)
	repo := NewBillingRepository(db, DialectSQLite)
	ctx := context.Background()

	a := newTrial("subs@example.com", "KYB-TRIAL-SUBS", 3)
	require.NoError(t, accounts.Create(ctx, a))

	start := time.Now().Truncate(time.Second)
	sub := &billing.Subscription{
		AccountID:              a.ID,
		ExternalSubscriptionID: "sub_1",
		PriceID:                "price_free",
		Status:                 billing.SubscriptionActive,
		CurrentPeriodStart:     start,
		CurrentPeriodEnd:       start.Add(30 * 24 * time.Hour),
	}
	require.NoError(t, repo.UpsertSubscription(ctx, sub))

	again := *sub
	again.ID = ""
	again.PriceID = "price_free_v2"
	require.NoError(t, repo.UpsertSubscription(ctx, &again))

	subs, err := repo.ListSubscriptions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "price_free_v2", subs[0].PriceID)

	end := start.Add(60 * 24 * time.Hour)
	require.NoError(t, repo.UpdateSubscriptionPeriod(ctx, "sub_1", start.Add(30*24*time.Hour), end, billing.SubscriptionActive))
	got, err := repo.GetSubscriptionByExternalID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, end.Unix(), got.CurrentPeriodEnd.Unix())

	require.NoError(t, repo.SetSubscriptionStatus(ctx, "sub_1", billing.SubscriptionCanceled))
	got, err = repo.GetSubscriptionByExternalID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, billing.SubscriptionCanceled, got.Status)

	_, err = repo.GetSubscriptionByExternalID(ctx, "sub_missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateSubscriptionPeriod(ctx, "sub_missing", start, end, billing.SubscriptionActive), errors.ErrNotFound)
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { testutil.CleanupDB(db) })

	// Every file is recorded once; 004 alters a table and cannot run twice.
	applied, err := RunMigrations(db, DialectSQLite, migrations.GetFS())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"001_accounts.sql",
		"002_subscriptions.sql",
		"003_billing_events.sql",
		"004_account_billing_event.sql",
	}, applied)

	applied, err = RunMigrations(db, DialectSQLite, migrations.GetFS())
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestBillingRepository_PruneEvents(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewBillingRepository(db, DialectSQLite)
	ctx := context.Background()
	now := time.Now()
	old := now.Add(-40 * 24 * time.Hour)
	stale := now.Add(-10 * time.Minute)

	for _, id := range []string{"evt_old", "evt_new", "evt_open"} {
		ok, err := repo.ClaimEvent(ctx, id, billing.EventCheckoutCompleted, old, stale.Add(-time.Hour*24*60))
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, repo.MarkEventProcessed(ctx, "evt_old", old))
	require.NoError(t, repo.MarkEventProcessed(ctx, "evt_new", now))

	n, err := repo.PruneEvents(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// A pruned id is claimable again; the others are not.
	ok, err := repo.ClaimEvent(ctx, "evt_old", billing.EventCheckoutCompleted, now, stale)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.ClaimEvent(ctx, "evt_new", billing.EventCheckoutCompleted, now, stale)
	require.NoError(t, err)
	assert.False(t, ok)
}
