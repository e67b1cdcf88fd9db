package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kybernus/license-api/internal/config"
	"github.com/kybernus/license-api/internal/domain/account"
	"github.com/kybernus/license-api/internal/domain/billing"
	"github.com/kybernus/license-api/internal/domain/device"
	"github.com/kybernus/license-api/internal/kv"
	"github.com/kybernus/license-api/internal/licensekey"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/pkg/ratelimit"
	"github.com/kybernus/license-api/internal/repository/postgres"
	"github.com/kybernus/license-api/internal/repository/transient"
	"github.com/kybernus/license-api/internal/testutil"
)

const testSecret = "test-license-secret"

type harness struct {
	store       *kv.MemoryStore
	codec       *licensekey.Codec
	accounts    account.Repository
	billingRepo billing.Repository
	notifier    *testutil.RecordingNotifier
	identity    *testutil.FakeIdentityProvider
	payments    *testutil.FakePaymentProvider
	bg          *Background

	accountSvc *AccountService
	licenseSvc *LicenseService
	deviceSvc  *DeviceService
	billingSvc *BillingService
}

func testDeviceConfig() config.DeviceConfig {
	return config.DeviceConfig{
		CodeTTL:         10 * time.Minute,
		CompletedTTL:    5 * time.Minute,
		PollInterval:    5 * time.Second,
		VerificationURL: "https://kybernus.test/device",
		StateTTL:        10 * time.Minute,
		IssueLimit:      config.RateLimit{Limit: 5, Window: time.Minute},
		PollLimit:       config.RateLimit{Limit: 12, Window: time.Minute},
		CompleteLimit:   config.RateLimit{Limit: 10, Window: time.Minute},
	}
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, testDeviceConfig())
}

func newHarnessWith(t *testing.T, deviceCfg config.DeviceConfig) *harness {
	t.Helper()

	db := testutil.NewTestDB(t)
	log := logger.Nop()

	codec, err := licensekey.NewCodec(testSecret, "KYB")
	require.NoError(t, err)

	h := &harness{
		store:       kv.NewMemoryStore(),
		codec:       codec,
		accounts:    postgres.NewAccountRepository(db, postgres.DialectSQLite),
		billingRepo: postgres.NewBillingRepository(db, postgres.DialectSQLite),
		notifier:    testutil.NewRecordingNotifier(),
		identity:    testutil.NewFakeIdentityProvider(),
		payments:    testutil.NewFakePaymentProvider(),
		bg:          NewBackground(log, time.Second),
	}
	t.Cleanup(func() { _ = h.bg.Wait(context.Background()) })

	limiter := ratelimit.New(h.store, log)

	h.accountSvc = NewAccountService(h.accounts, codec, h.notifier, log, AccountOptions{
		TrialQuota: 3,
		BCryptCost: 4,
	})
	h.licenseSvc = NewLicenseService(h.accounts, codec, h.store, 5*time.Minute, h.bg, log)
	h.deviceSvc = NewDeviceService(
		transient.NewDeviceRepository(h.store),
		transient.NewStateRepository(h.store),
		h.accountSvc,
		h.identity,
		limiter,
		deviceCfg,
		time.Second,
		log,
	)
	h.billingSvc = NewBillingService(
		h.billingRepo,
		h.accounts,
		h.licenseSvc,
		codec,
		h.payments,
		h.notifier,
		Prices{Free: "price_free", Pro: "price_pro"},
		log,
	)
	return h
}

// completeInput builds a browser completion with a freshly issued state
func (h *harness) completeInput(t *testing.T, userCode, authCode string) device.CompleteInput {
	t.Helper()
	state, err := h.deviceSvc.IssueState(context.Background())
	require.NoError(t, err)
	return device.CompleteInput{
		UserCode:          userCode,
		AuthorizationCode: authCode,
		State:             state,
		CookieState:       state,
		ClientIP:          "203.0.113.7",
	}
}
