package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kybernus/license-api/internal/domain/account"
	"github.com/kybernus/license-api/internal/domain/billing"
	"github.com/kybernus/license-api/internal/domain/notification"
	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/pkg/logger"
)

func checkoutEvent(id string, c billing.CheckoutCompleted) *billing.Event {
	return &billing.Event{ID: id, Type: billing.EventCheckoutCompleted, Created: time.Now(), Checkout: &c}
}

func invoiceEvent(id, eventType string, inv billing.Invoice) *billing.Event {
	return &billing.Event{ID: id, Type: eventType, Created: time.Now(), Invoice: &inv}
}

func TestBillingService_CheckoutUpgradesInPlace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.register(t, "dev@example.com")
	oldKey := acct.LicenseKey

	ev := checkoutEvent("evt_1", billing.CheckoutCompleted{
		SessionID:      "cs_1",
		CustomerID:     "cus_1",
		CustomerEmail:  "dev@example.com",
		SubscriptionID: "sub_1",
		Metadata:       map[string]string{billing.MetaLicenseKey: oldKey, billing.MetaTier: "pro"},
	})

	outcome, err := h.billingSvc.Apply(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, billing.OutcomeProcessed, outcome)

	// The old key stops working and the new one is PRO.
	_, err = h.licenseSvc.Validate(ctx, oldKey)
	require.ErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, http.StatusUnauthorized, errors.As(err).StatusCode)

	upgraded, err := h.accounts.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, upgraded.LicenseKey)
	assert.True(t, h.codec.Verify(upgraded.LicenseKey).Valid)
	assert.Equal(t, account.StatusProActive, upgraded.Status)
	assert.Equal(t, account.TierPro, upgraded.Tier)
	assert.Equal(t, "cus_1", upgraded.PaymentCustomerID)

	v, err := h.licenseSvc.Validate(ctx, upgraded.LicenseKey)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, account.TierPro, v.Tier)

	subs, err := h.billingRepo.ListSubscriptions(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "price_pro", subs[0].PriceID)

	assert.Equal(t, []notification.Kind{notification.KindWelcome, notification.KindUpgrade}, h.notifier.Kinds())
}

func TestBillingService_ReplayIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.register(t, "dev@example.com")

	ev := checkoutEvent("evt_replay", billing.CheckoutCompleted{
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Metadata:       map[string]string{billing.MetaLicenseKey: acct.LicenseKey},
	})

	outcome, err := h.billingSvc.Apply(ctx, ev)
	require.NoError(t, err)
	require.Equal(t, billing.OutcomeProcessed, outcome)

	first, err := h.accounts.GetByID(ctx, acct.ID)
	require.NoError(t, err)

	outcome, err = h.billingSvc.Apply(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, billing.OutcomeDuplicate, outcome)

	second, err := h.accounts.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, first.LicenseKey, second.LicenseKey, "replay must not rotate the key again")
	assert.Equal(t, first.Status, second.Status)

	subs, err := h.billingRepo.ListSubscriptions(ctx, acct.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestBillingService_CheckoutWithoutKey(t *testing.T) {
	t.Run("new customer gets a paid account", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		_, err := h.billingSvc.Apply(ctx, checkoutEvent("evt_1", billing.CheckoutCompleted{
			CustomerID:    "cus_new",
			CustomerEmail: "Buyer@Example.com",
			Metadata:      map[string]string{billing.MetaTier: "free"},
		}))
		require.NoError(t, err)

		acct, err := h.accounts.GetByEmail(ctx, "buyer@example.com")
		require.NoError(t, err)
		assert.Equal(t, account.StatusFreeActive, acct.Status)
		assert.Equal(t, account.TierFree, acct.Tier)
		assert.Equal(t, account.UnlimitedQuota, acct.QuotaLimit)
		assert.True(t, h.codec.Verify(acct.LicenseKey).Valid)
		assert.Equal(t, []notification.Kind{notification.KindLicense}, h.notifier.Kinds())
	})

	t.Run("existing customer found by email", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		acct := h.register(t, "dev@example.com")

		_, err := h.billingSvc.Apply(ctx, checkoutEvent("evt_1", billing.CheckoutCompleted{
			CustomerID:    "cus_1",
			CustomerEmail: "dev@example.com",
		}))
		require.NoError(t, err)

		upgraded, err := h.accounts.GetByID(ctx, acct.ID)
		require.NoError(t, err)
		assert.Equal(t, account.StatusProActive, upgraded.Status)
		assert.NotEqual(t, acct.LicenseKey, upgraded.LicenseKey)
	})
}

func TestBillingService_StatusEvents(t *testing.T) {
	setup := func(t *testing.T) (*harness, *account.Account) {
		h := newHarness(t)
		acct := h.register(t, "dev@example.com")
		_, err := h.billingSvc.Apply(context.Background(), checkoutEvent("evt_checkout", billing.CheckoutCompleted{
			CustomerID:     "cus_1",
			SubscriptionID: "sub_1",
			Metadata:       map[string]string{billing.MetaLicenseKey: acct.LicenseKey, billing.MetaTier: "free"},
		}))
		require.NoError(t, err)
		acct, err = h.accounts.GetByID(context.Background(), acct.ID)
		require.NoError(t, err)
		require.Equal(t, account.StatusFreeActive, acct.Status)
		return h, acct
	}

	status := func(t *testing.T, h *harness, id string) account.Status {
		acct, err := h.accounts.GetByID(context.Background(), id)
		require.NoError(t, err)
		return acct.Status
	}

	t.Run("payment failed then renewed", func(t *testing.T) {
		h, acct := setup(t)
		ctx := context.Background()

		_, err := h.billingSvc.Apply(ctx, invoiceEvent("evt_fail", billing.EventInvoicePaymentFailed, billing.Invoice{
			CustomerID: "cus_1", SubscriptionID: "sub_1",
		}))
		require.NoError(t, err)
		assert.Equal(t, account.StatusFreePastDue, status(t, h, acct.ID))

		v, err := h.licenseSvc.Validate(ctx, acct.LicenseKey)
		require.NoError(t, err)
		assert.False(t, v.Valid)

		start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
		end := start.Add(30 * 24 * time.Hour)
		_, err = h.billingSvc.Apply(ctx, invoiceEvent("evt_paid", billing.EventInvoicePaymentSucceed, billing.Invoice{
			CustomerID:     "cus_1",
			SubscriptionID: "sub_1",
			BillingReason:  billing.BillingReasonCycle,
			PeriodStart:    start,
			PeriodEnd:      end,
		}))
		require.NoError(t, err)
		assert.Equal(t, account.StatusFreeActive, status(t, h, acct.ID))

		sub, err := h.billingRepo.GetSubscriptionByExternalID(ctx, "sub_1")
		require.NoError(t, err)
		assert.Equal(t, start.Unix(), sub.CurrentPeriodStart.Unix())
		assert.Equal(t, end.Unix(), sub.CurrentPeriodEnd.Unix())
		assert.Equal(t, billing.SubscriptionActive, sub.Status)
	})

	t.Run("subscription deleted cancels", func(t *testing.T) {
		h, acct := setup(t)
		ctx := context.Background()

		_, err := h.billingSvc.Apply(ctx, &billing.Event{
			ID:      "evt_del",
			Type:    billing.EventSubscriptionDeleted,
			Deleted: &billing.SubscriptionDeleted{SubscriptionID: "sub_1", CustomerID: "cus_1"},
		})
		require.NoError(t, err)
		assert.Equal(t, account.StatusCancelled, status(t, h, acct.ID))

		// A late failure must not move a cancelled account.
		_, err = h.billingSvc.Apply(ctx, invoiceEvent("evt_late", billing.EventInvoicePaymentFailed, billing.Invoice{
			CustomerID: "cus_1",
		}))
		require.NoError(t, err)
		assert.Equal(t, account.StatusCancelled, status(t, h, acct.ID))
	})

	t.Run("non cycle invoice is a no-op", func(t *testing.T) {
		h, acct := setup(t)
		_, err := h.billingSvc.Apply(context.Background(), invoiceEvent("evt_other", billing.EventInvoicePaymentSucceed, billing.Invoice{
			CustomerID: "cus_1", SubscriptionID: "sub_1", BillingReason: "subscription_create",
		}))
		require.NoError(t, err)
		assert.Equal(t, account.StatusFreeActive, status(t, h, acct.ID))
	})
}

func TestBillingService_FailedEventCanBeRetried(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Subscription that points at an account we have not created yet.
	require.NoError(t, h.billingRepo.UpsertSubscription(ctx, &billing.Subscription{
		AccountID:              "acct-later",
		ExternalSubscriptionID: "sub_x",
		Status:                 billing.SubscriptionPastDue,
		CurrentPeriodStart:     time.Now(),
		CurrentPeriodEnd:       time.Now().Add(time.Hour),
	}))

	ev := invoiceEvent("evt_retry", billing.EventInvoicePaymentSucceed, billing.Invoice{
		SubscriptionID: "sub_x",
		BillingReason:  billing.BillingReasonCycle,
	})

	_, err := h.billingSvc.Apply(ctx, ev)
	require.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, h.accounts.Create(ctx, &account.Account{
		ID:         "acct-later",
		Email:      "later@example.com",
		LicenseKey: "KYB-FREE-AAAA-BBBB-CCCC",
		Tier:       account.TierFree,
		Status:     account.StatusFreePastDue,
		QuotaLimit: account.UnlimitedQuota,
	}))

	outcome, err := h.billingSvc.Apply(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, billing.OutcomeProcessed, outcome)

	acct, err := h.accounts.GetByID(ctx, "acct-later")
	require.NoError(t, err)
	assert.Equal(t, account.StatusFreeActive, acct.Status)
}

// flakySubscriptions fails the first UpsertSubscription call
type flakySubscriptions struct {
	billing.Repository
	failed bool
}

func (f *flakySubscriptions) UpsertSubscription(ctx context.Context, sub *billing.Subscription) error {
	if !f.failed {
		f.failed = true
		return errors.DatabaseError("Failed to upsert subscription", fmt.Errorf("connection reset"))
	}
	return f.Repository.UpsertSubscription(ctx, sub)
}

func TestBillingService_CheckoutRetryAfterPartialFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.register(t, "dev@example.com")

	repo := &flakySubscriptions{Repository: h.billingRepo}
	svc := NewBillingService(repo, h.accounts, h.licenseSvc, h.codec, h.payments, h.notifier,
		Prices{Free: "price_free", Pro: "price_pro"}, logger.Nop())

	ev := checkoutEvent("evt_x", billing.CheckoutCompleted{
		CustomerID:     "cus_1",
		CustomerEmail:  "dev@example.com",
		SubscriptionID: "sub_1",
		Metadata:       map[string]string{billing.MetaLicenseKey: acct.LicenseKey, billing.MetaTier: "pro"},
	})

	_, err := svc.Apply(ctx, ev)
	require.Error(t, err)

	rotated, err := h.accounts.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	require.NotEqual(t, acct.LicenseKey, rotated.LicenseKey)

	// The provider redelivers. The old key is gone, so the retry must not
	// fall back to email and rotate a second time.
	outcome, err := svc.Apply(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, billing.OutcomeProcessed, outcome)

	final, err := h.accounts.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, rotated.LicenseKey, final.LicenseKey)
	assert.Equal(t, account.StatusProActive, final.Status)

	subs, err := h.billingRepo.ListSubscriptions(ctx, acct.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
	assert.Equal(t, []notification.Kind{notification.KindWelcome, notification.KindUpgrade}, h.notifier.Kinds())
}

func TestBillingService_NewBuyerRetryAfterPartialFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	repo := &flakySubscriptions{Repository: h.billingRepo}
	svc := NewBillingService(repo, h.accounts, h.licenseSvc, h.codec, h.payments, h.notifier,
		Prices{Free: "price_free", Pro: "price_pro"}, logger.Nop())

	ev := checkoutEvent("evt_new", billing.CheckoutCompleted{
		CustomerID:     "cus_new",
		CustomerEmail:  "buyer@example.com",
		SubscriptionID: "sub_new",
		Metadata:       map[string]string{billing.MetaTier: "pro"},
	})

	_, err := svc.Apply(ctx, ev)
	require.Error(t, err)
	created, err := h.accounts.GetByEmail(ctx, "buyer@example.com")
	require.NoError(t, err)

	_, err = svc.Apply(ctx, ev)
	require.NoError(t, err)

	final, err := h.accounts.GetByEmail(ctx, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.LicenseKey, final.LicenseKey)
	assert.Equal(t, "evt_new", final.BillingEventID)
	assert.Equal(t, []notification.Kind{notification.KindLicense}, h.notifier.Kinds())
}

func TestBillingService_HandleWebhook(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.payments.Events["good-sig"] = &billing.Event{ID: "evt_ping", Type: "customer.created"}

	tests := []struct {
		name      string
		signature string
		want      billing.WebhookOutcome
		wantErr   error
	}{
		{"missing signature", "", "", errors.ErrWebhookSignatureInvalid},
		{"bad signature", "forged", "", errors.ErrWebhookSignatureInvalid},
		{"unhandled type", "good-sig", billing.OutcomeIgnored, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := h.billingSvc.HandleWebhook(ctx, []byte(`{}`), tt.signature)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, http.StatusBadRequest, errors.As(err).StatusCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, outcome)
		})
	}
}

func TestBillingService_CreateCheckout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.register(t, "dev@example.com")

	session, err := h.billingSvc.CreateCheckout(ctx, billing.CheckoutRequest{Tier: "free", LicenseKey: acct.LicenseKey})
	require.NoError(t, err)
	assert.NotEmpty(t, session.URL)

	require.Len(t, h.payments.Checkouts, 1)
	req := h.payments.Checkouts[0]
	assert.Equal(t, "price_free", req.PriceID)
	assert.Equal(t, acct.ID, req.AccountID)
	assert.Equal(t, "dev@example.com", req.CustomerEmail)

	_, err = h.billingSvc.CreateCheckout(ctx, billing.CheckoutRequest{Tier: "enterprise"})
	assert.Equal(t, errors.ErrCodeBadRequest, errors.As(err).Code)

	_, err = h.billingSvc.CreateCheckout(ctx, billing.CheckoutRequest{Tier: "pro", LicenseKey: "KYB-PRO-AAAA-BBBB-CCCC-00000000"})
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)

	h.payments.Err = fmt.Errorf("stripe down")
	_, err = h.billingSvc.CreateCheckout(ctx, billing.CheckoutRequest{Tier: "pro"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, errors.As(err).StatusCode)
}
