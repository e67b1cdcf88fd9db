package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kybernus/license-api/internal/domain/account"
	"github.com/kybernus/license-api/internal/domain/notification"
	"github.com/kybernus/license-api/internal/licensekey"
	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/pkg/logger"
)

// AccountService implements account.Service
type AccountService struct {
	repo       account.Repository
	codec      *licensekey.Codec
	notifier   notification.Service
	logger     *logger.Logger
	trialQuota int
	bcryptCost int
}

// AccountOptions holds the tunables of AccountService
type AccountOptions struct {
	TrialQuota int
	BCryptCost int
}

// NewAccountService creates a new account service
func NewAccountService(
	repo account.Repository,
	codec *licensekey.Codec,
	notifier notification.Service,
	log *logger.Logger,
	opts AccountOptions,
) *AccountService {
	if opts.BCryptCost == 0 {
		opts.BCryptCost = bcrypt.DefaultCost
	}
	return &AccountService{
		repo:       repo,
		codec:      codec,
		notifier:   notifier,
		logger:     log,
		trialQuota: opts.TrialQuota,
		bcryptCost: opts.BCryptCost,
	}
}

// Register creates a TRIAL account with a freshly signed key
func (s *AccountService) Register(ctx context.Context, email, password string) (*account.Account, error) {
	email = normalizeEmail(email)

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, errors.Conflict("An account with this email already exists")
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	acct, err := s.newTrialAccount(email)
	if err != nil {
		return nil, err
	}

	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
		if err != nil {
			return nil, errors.Internal("Failed to hash password", err)
		}
		acct.PasswordHash = string(hash)
	}

	if err := s.repo.Create(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"account_id": acct.ID,
		"license":    logger.MaskKey(acct.LicenseKey),
	}).Info("Trial account registered")

	s.notifier.SendWelcome(ctx, s.details(acct))
	return acct, nil
}

// Login checks a password and returns the account
func (s *AccountService) Login(ctx context.Context, email, password string) (*account.Account, error) {
	invalid := errors.Unauthorized("Invalid email or password")

	acct, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, errors.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}

	if acct.PasswordHash == "" {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}

	now := time.Now().UTC()
	acct.LastLoginAt = &now
	if err := s.repo.Update(ctx, acct); err != nil {
		s.logger.ErrorWithErr(err, "Failed to record login")
	}
	return acct, nil
}

// GetByID retrieves an account by ID
func (s *AccountService) GetByID(ctx context.Context, id string) (*account.Account, error) {
	return s.repo.GetByID(ctx, id)
}

// ResolveIdentity finds the account for a verified identity, linking or
// creating it as needed
func (s *AccountService) ResolveIdentity(ctx context.Context, identity account.Identity) (*account.Account, bool, error) {
	if identity.Subject == "" || identity.Email == "" {
		return nil, false, errors.UpstreamAuthFailure(identity.Provider, nil)
	}
	email := normalizeEmail(identity.Email)
	now := time.Now().UTC()

	acct, err := s.repo.GetByIdentity(ctx, identity.Provider, identity.Subject)
	if err == nil {
		acct.LastLoginAt = &now
		if identity.AvatarURL != "" {
			acct.AvatarURL = identity.AvatarURL
		}
		if err := s.repo.Update(ctx, acct); err != nil {
			return nil, false, err
		}
		return acct, false, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, false, err
	}

	// Same person signing in with an identity for the first time.
	acct, err = s.repo.GetByEmail(ctx, email)
	if err == nil {
		acct.IdentityProvider = identity.Provider
		acct.IdentitySubject = identity.Subject
		acct.AvatarURL = identity.AvatarURL
		acct.LastLoginAt = &now
		if err := s.repo.Update(ctx, acct); err != nil {
			return nil, false, err
		}
		s.logger.With("account_id", acct.ID).Info("Identity linked to existing account")
		return acct, false, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, false, err
	}

	acct, err = s.newTrialAccount(email)
	if err != nil {
		return nil, false, err
	}
	acct.IdentityProvider = identity.Provider
	acct.IdentitySubject = identity.Subject
	acct.AvatarURL = identity.AvatarURL
	acct.LastLoginAt = &now

	if err := s.repo.Create(ctx, acct); err != nil {
		// A concurrent sign-in created the same email first.
		if errors.Is(err, errors.ErrConflict) {
			existing, getErr := s.repo.GetByEmail(ctx, email)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	s.logger.WithFields(map[string]interface{}{
		"account_id": acct.ID,
		"provider":   identity.Provider,
		"license":    logger.MaskKey(acct.LicenseKey),
	}).Info("Trial account created from identity")

	s.notifier.SendWelcome(ctx, s.details(acct))
	return acct, true, nil
}

func (s *AccountService) newTrialAccount(email string) (*account.Account, error) {
	key, err := s.codec.Generate(licensekey.PrefixTrial)
	if err != nil {
		return nil, errors.Internal("Failed to generate license key", err)
	}

	now := time.Now().UTC()
	return &account.Account{
		ID:             uuid.NewString(),
		Email:          email,
		LicenseKey:     key,
		Tier:           account.TierFree,
		Status:         account.StatusTrial,
		QuotaLimit:     s.trialQuota,
		TrialStartedAt: &now,
	}, nil
}

func (s *AccountService) details(acct *account.Account) notification.LicenseDetails {
	return notification.LicenseDetails{
		Email:      acct.Email,
		LicenseKey: acct.LicenseKey,
		Tier:       string(acct.EffectiveTier()),
		TrialLimit: acct.QuotaLimit,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
