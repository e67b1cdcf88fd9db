package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kybernus/license-api/internal/domain/account"
	"github.com/kybernus/license-api/internal/domain/billing"
	"github.com/kybernus/license-api/internal/domain/license"
	"github.com/kybernus/license-api/internal/domain/notification"
	"github.com/kybernus/license-api/internal/licensekey"
	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/pkg/metrics"
)

const (
	staleClaimAfter     = 10 * time.Minute
	defaultPeriodLength = 30 * 24 * time.Hour
)

// Prices maps tiers to provider price ids
type Prices struct {
	Free string
	Pro  string
}

func (p Prices) forTier(t account.Tier) string {
	if t == account.TierFree {
		return p.Free
	}
	return p.Pro
}

// BillingService implements billing.Service
type BillingService struct {
	repo     billing.Repository
	accounts account.Repository
	licenses license.Service
	codec    *licensekey.Codec
	provider billing.Provider
	notifier notification.Service
	prices   Prices
	logger   *logger.Logger
	now      func() time.Time
}

// NewBillingService creates a new billing reconciler
func NewBillingService(
	repo billing.Repository,
	accounts account.Repository,
	licenses license.Service,
	codec *licensekey.Codec,
	provider billing.Provider,
	notifier notification.Service,
	prices Prices,
	log *logger.Logger,
) *BillingService {
	return &BillingService{
		repo:     repo,
		accounts: accounts,
		licenses: licenses,
		codec:    codec,
		provider: provider,
		notifier: notifier,
		prices:   prices,
		logger:   log,
		now:      time.Now,
	}
}

// HandleWebhook verifies and applies a raw webhook delivery
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) (billing.WebhookOutcome, error) {
	if signature == "" {
		metrics.RecordWebhook("unknown", "invalid_signature")
		return "", errors.WebhookSignatureInvalid(nil)
	}

	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		metrics.RecordWebhook("unknown", "invalid_signature")
		s.logger.WithError(err).Warn("Rejected billing webhook")
		return "", errors.WebhookSignatureInvalid(err)
	}

	return s.Apply(ctx, event)
}

// Apply processes a verified event at most once per event id. A failed event
// releases its claim so the provider retry can run it again.
func (s *BillingService) Apply(ctx context.Context, event *billing.Event) (billing.WebhookOutcome, error) {
	log := s.logger.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	if !handled(event) {
		metrics.RecordWebhook(event.Type, string(billing.OutcomeIgnored))
		log.Debug("Ignoring billing event")
		return billing.OutcomeIgnored, nil
	}

	now := s.now().UTC()
	claimed, err := s.repo.ClaimEvent(ctx, event.ID, event.Type, now, now.Add(-staleClaimAfter))
	if err != nil {
		return "", err
	}
	if !claimed {
		metrics.RecordWebhook(event.Type, string(billing.OutcomeDuplicate))
		log.Info("Duplicate billing event")
		return billing.OutcomeDuplicate, nil
	}

	if err := s.dispatch(ctx, event); err != nil {
		if relErr := s.repo.ReleaseEvent(ctx, event.ID); relErr != nil {
			log.ErrorWithErr(relErr, "Failed to release billing event claim")
		}
		metrics.RecordWebhook(event.Type, "failed")
		log.ErrorWithErr(err, "Billing event failed")
		return "", err
	}

	if err := s.repo.MarkEventProcessed(ctx, event.ID, s.now().UTC()); err != nil {
		return "", err
	}

	metrics.RecordWebhook(event.Type, string(billing.OutcomeProcessed))
	log.Info("Billing event processed")
	return billing.OutcomeProcessed, nil
}

func handled(e *billing.Event) bool {
	switch e.Type {
	case billing.EventCheckoutCompleted:
		return e.Checkout != nil
	case billing.EventSubscriptionDeleted:
		return e.Deleted != nil
	case billing.EventInvoicePaymentFailed, billing.EventInvoicePaymentSucceed:
		return e.Invoice != nil
	default:
		return false
	}
}

func (s *BillingService) dispatch(ctx context.Context, e *billing.Event) error {
	switch e.Type {
	case billing.EventCheckoutCompleted:
		return s.checkoutCompleted(ctx, e.ID, e.Checkout)
	case billing.EventSubscriptionDeleted:
		return s.subscriptionDeleted(ctx, e.Deleted)
	case billing.EventInvoicePaymentFailed:
		return s.paymentFailed(ctx, e.Invoice)
	case billing.EventInvoicePaymentSucceed:
		return s.paymentSucceeded(ctx, e.Invoice)
	}
	return nil
}

// checkoutCompleted provisions or upgrades the buyer, then records the
// subscription. An account already stamped with eventID was handled by an
// earlier attempt of this event, so only the remaining steps run.
func (s *BillingService) checkoutCompleted(ctx context.Context, eventID string, c *billing.CheckoutCompleted) error {
	tier := account.ParseTier(c.Metadata[billing.MetaTier])

	acct, err := s.accounts.GetByBillingEvent(ctx, eventID)
	switch {
	case err == nil:
		s.logger.WithFields(map[string]interface{}{
			"event_id":   eventID,
			"account_id": acct.ID,
		}).Info("Checkout already applied, resuming")
	case errors.Is(err, errors.ErrNotFound):
		if acct, err = s.provision(ctx, eventID, tier, c); err != nil {
			return err
		}
		if acct == nil {
			return nil
		}
	default:
		return err
	}

	if c.SubscriptionID == "" {
		return nil
	}

	priceID := c.Metadata[billing.MetaPriceID]
	if priceID == "" {
		priceID = s.prices.forTier(tier)
	}
	now := s.now().UTC()
	return s.repo.UpsertSubscription(ctx, &billing.Subscription{
		AccountID:              acct.ID,
		ExternalSubscriptionID: c.SubscriptionID,
		PriceID:                priceID,
		Status:                 billing.SubscriptionActive,
		CurrentPeriodStart:     now,
		CurrentPeriodEnd:       now.Add(defaultPeriodLength),
	})
}

// provision finds the buyer by license key, then by email, and upgrades or
// creates the account. It returns nil when the checkout names nobody.
func (s *BillingService) provision(ctx context.Context, eventID string, tier account.Tier, c *billing.CheckoutCompleted) (*account.Account, error) {
	if key := c.Metadata[billing.MetaLicenseKey]; key != "" {
		existing, err := s.accounts.GetByLicenseKey(ctx, key)
		switch {
		case err == nil:
			acct, err := s.upgrade(ctx, existing, tier, c.CustomerID, eventID)
			if err != nil {
				return nil, err
			}
			s.notifier.SendUpgradeConfirmation(ctx, licenseDetails(acct))
			return acct, nil
		case errors.Is(err, errors.ErrNotFound):
			s.logger.With("license", logger.MaskKey(key)).Warn("Checkout references unknown license, falling back to email")
		default:
			return nil, err
		}
	}

	email := normalizeEmail(c.CustomerEmail)
	if email == "" {
		s.logger.With("session_id", c.SessionID).Warn("Checkout completed without license key or email")
		return nil, nil
	}

	existing, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		acct, err := s.upgrade(ctx, existing, tier, c.CustomerID, eventID)
		if err != nil {
			return nil, err
		}
		s.notifier.SendUpgradeConfirmation(ctx, licenseDetails(acct))
		return acct, nil
	case errors.Is(err, errors.ErrNotFound):
		acct, err := s.createPaid(ctx, email, tier, c.CustomerID, eventID)
		if err != nil {
			return nil, err
		}
		s.notifier.SendLicenseKey(ctx, licenseDetails(acct))
		return acct, nil
	default:
		return nil, err
	}
}

// upgrade rotates the key of acct and applies the paid tier. The swap only
// happens while the account still holds the key we read.
func (s *BillingService) upgrade(ctx context.Context, acct *account.Account, tier account.Tier, customerID, eventID string) (*account.Account, error) {
	newKey, err := s.codec.Generate(prefixFor(tier))
	if err != nil {
		return nil, errors.Internal("Failed to generate license key", err)
	}

	oldKey := acct.LicenseKey
	change := account.Upgrade{
		NewKey:            newKey,
		Tier:              tier,
		Status:            account.ActiveStatusFor(tier),
		PaymentCustomerID: customerID,
		EventID:           eventID,
	}

	swapped, err := s.accounts.RotateLicense(ctx, acct.ID, oldKey, change)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, errors.Conflict("License changed during upgrade")
	}
	s.licenses.Invalidate(ctx, oldKey, newKey)

	acct.LicenseKey = newKey
	acct.Tier = tier
	acct.Status = change.Status
	acct.QuotaLimit = account.UnlimitedQuota
	acct.BillingEventID = eventID
	if customerID != "" {
		acct.PaymentCustomerID = customerID
	}

	s.logger.WithFields(map[string]interface{}{
		"account_id": acct.ID,
		"tier":       tier,
		"old":        logger.MaskKey(oldKey),
		"new":        logger.MaskKey(newKey),
	}).Info("License upgraded")
	return acct, nil
}

func (s *BillingService) createPaid(ctx context.Context, email string, tier account.Tier, customerID, eventID string) (*account.Account, error) {
	key, err := s.codec.Generate(prefixFor(tier))
	if err != nil {
		return nil, errors.Internal("Failed to generate license key", err)
	}

	acct := &account.Account{
		ID:                uuid.NewString(),
		Email:             email,
		LicenseKey:        key,
		Tier:              tier,
		Status:            account.ActiveStatusFor(tier),
		QuotaLimit:        account.UnlimitedQuota,
		PaymentCustomerID: customerID,
		BillingEventID:    eventID,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"account_id": acct.ID,
		"tier":       tier,
	}).Info("Paid account created from checkout")
	return acct, nil
}

func (s *BillingService) subscriptionDeleted(ctx context.Context, d *billing.SubscriptionDeleted) error {
	if d.SubscriptionID != "" {
		if err := s.repo.SetSubscriptionStatus(ctx, d.SubscriptionID, billing.SubscriptionCanceled); err != nil {
			return err
		}
	}
	return s.transitionByCustomer(ctx, d.CustomerID, nil, account.StatusCancelled)
}

// paymentFailed only moves active accounts, so a late failure cannot revive a
// cancelled one
func (s *BillingService) paymentFailed(ctx context.Context, inv *billing.Invoice) error {
	if inv.SubscriptionID != "" {
		if err := s.repo.SetSubscriptionStatus(ctx, inv.SubscriptionID, billing.SubscriptionPastDue); err != nil {
			return err
		}
	}
	from := []account.Status{account.StatusFreeActive, account.StatusProActive}
	return s.transitionByCustomer(ctx, inv.CustomerID, from, account.StatusFreePastDue)
}

func (s *BillingService) paymentSucceeded(ctx context.Context, inv *billing.Invoice) error {
	if inv.BillingReason != billing.BillingReasonCycle || inv.SubscriptionID == "" {
		return nil
	}

	sub, err := s.repo.GetSubscriptionByExternalID(ctx, inv.SubscriptionID)
	if errors.Is(err, errors.ErrNotFound) {
		s.logger.With("subscription", inv.SubscriptionID).Warn("Renewal for unknown subscription")
		return nil
	}
	if err != nil {
		return err
	}

	start, end := inv.PeriodStart, inv.PeriodEnd
	if start.IsZero() || end.IsZero() {
		start = s.now().UTC()
		end = start.Add(defaultPeriodLength)
	}
	if err := s.repo.UpdateSubscriptionPeriod(ctx, sub.ExternalSubscriptionID, start, end, billing.SubscriptionActive); err != nil {
		return err
	}

	acct, err := s.accounts.GetByID(ctx, sub.AccountID)
	if err != nil {
		return err
	}
	return s.transition(ctx, acct, []account.Status{account.StatusFreePastDue}, account.StatusFreeActive)
}

func (s *BillingService) transitionByCustomer(ctx context.Context, customerID string, from []account.Status, to account.Status) error {
	if customerID == "" {
		return nil
	}
	acct, err := s.accounts.GetByPaymentCustomer(ctx, customerID)
	if errors.Is(err, errors.ErrNotFound) {
		s.logger.With("customer", customerID).Warn("Billing event for unknown customer")
		return nil
	}
	if err != nil {
		return err
	}
	return s.transition(ctx, acct, from, to)
}

func (s *BillingService) transition(ctx context.Context, acct *account.Account, from []account.Status, to account.Status) error {
	changed, err := s.accounts.TransitionStatus(ctx, acct.ID, from, to)
	if err != nil {
		return err
	}
	if changed {
		s.licenses.Invalidate(ctx, acct.LicenseKey)
		s.logger.WithFields(map[string]interface{}{
			"account_id": acct.ID,
			"from":       acct.Status,
			"to":         to,
		}).Info("Account status changed")
	}
	return nil
}

// CreateCheckout opens a hosted checkout session
func (s *BillingService) CreateCheckout(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	switch req.Tier {
	case "", "pro":
		req.Tier = "pro"
	case "free":
	default:
		return nil, errors.BadRequest("Tier must be free or pro")
	}

	if req.LicenseKey != "" {
		if !s.codec.Verify(req.LicenseKey).Valid {
			return nil, errors.InvalidSignature()
		}
		acct, err := s.accounts.GetByLicenseKey(ctx, req.LicenseKey)
		if err != nil {
			return nil, err
		}
		req.AccountID = acct.ID
		if req.CustomerEmail == "" {
			req.CustomerEmail = acct.Email
		}
	}

	if req.PriceID == "" {
		req.PriceID = s.prices.forTier(account.ParseTier(req.Tier))
	}
	if req.PriceID == "" {
		return nil, errors.ServiceUnavailable("Checkout is not configured")
	}

	session, err := s.provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, errors.UpstreamAPIFailure("Stripe", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"session_id": session.ID,
		"tier":       req.Tier,
	}).Info("Checkout session created")
	return session, nil
}

func prefixFor(t account.Tier) licensekey.Prefix {
	if t == account.TierFree {
		return licensekey.PrefixFree
	}
	return licensekey.PrefixPro
}

func licenseDetails(acct *account.Account) notification.LicenseDetails {
	return notification.LicenseDetails{
		Email:      acct.Email,
		LicenseKey: acct.LicenseKey,
		Tier:       string(acct.Tier),
	}
}
