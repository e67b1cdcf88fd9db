package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kybernus/license-api/internal/domain/account"
	"github.com/kybernus/license-api/internal/domain/license"
	"github.com/kybernus/license-api/internal/kv"
	"github.com/kybernus/license-api/internal/licensekey"
	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/pkg/metrics"
)

const (
	licenseCachePrefix = "license:"
	licenseGenPrefix   = "license-gen:"

	// generationTTL outlives any cache entry written by a lookup that
	// started before the bump.
	generationTTL = 24 * time.Hour
)

// LicenseService implements license.Service
type LicenseService struct {
	repo       account.Repository
	codec      *licensekey.Codec
	cache      kv.Store
	cacheTTL   time.Duration
	background *Background
	logger     *logger.Logger
}

// cachedValidation is what sits in the kv store; the account id lets a cache
// hit still record last-validated. Generation is the key's invalidation count
// when the lookup began; an entry from an older generation is ignored.
type cachedValidation struct {
	AccountID  string             `json:"accountId"`
	Generation int64              `json:"gen"`
	Validation license.Validation `json:"validation"`
}

// NewLicenseService creates a new license service. A zero cacheTTL disables
// the validation cache.
func NewLicenseService(
	repo account.Repository,
	codec *licensekey.Codec,
	cache kv.Store,
	cacheTTL time.Duration,
	background *Background,
	log *logger.Logger,
) *LicenseService {
	return &LicenseService{
		repo:       repo,
		codec:      codec,
		cache:      cache,
		cacheTTL:   cacheTTL,
		background: background,
		logger:     log,
	}
}

// Validate checks signature, existence and status of a key
func (s *LicenseService) Validate(ctx context.Context, licenseKey string) (*license.Validation, error) {
	if !s.codec.Verify(licenseKey).Valid {
		metrics.RecordValidation("invalid_signature", false)
		return nil, errors.InvalidSignature()
	}

	gen := s.generation(ctx, licenseKey)
	if cached, ok := s.cached(ctx, licenseKey); ok && cached.Generation == gen {
		v := cached.Validation
		if v.Valid {
			s.touch(cached.AccountID)
		}
		metrics.RecordValidation(string(v.Status), v.Valid)
		return &v, nil
	}

	acct, err := s.repo.GetByLicenseKey(ctx, licenseKey)
	if errors.Is(err, errors.ErrNotFound) {
		metrics.RecordValidation("not_found", false)
		return nil, errors.New(errors.ErrCodeNotFound, license.MsgNotFound, http.StatusUnauthorized)
	}
	if err != nil {
		return nil, err
	}

	v := validationFor(acct)
	if v.Valid {
		s.touch(acct.ID)
	}
	s.store(ctx, licenseKey, cachedValidation{AccountID: acct.ID, Generation: gen, Validation: *v})

	metrics.RecordValidation(string(v.Status), v.Valid)
	return v, nil
}

func validationFor(acct *account.Account) *license.Validation {
	v := &license.Validation{
		Status: acct.Status,
		Tier:   acct.EffectiveTier(),
		Usage:  acct.QuotaUsage,
		Limit:  acct.QuotaLimit,
		Email:  acct.Email,
	}

	switch acct.Status {
	case account.StatusTrial:
		v.Valid = true
		v.Message = fmt.Sprintf("Trial Active: %d/%d projects used", acct.QuotaUsage, acct.QuotaLimit)
	case account.StatusFreeActive, account.StatusProActive:
		v.Valid = true
		v.Message = license.MsgActive
	case account.StatusTrialExpired:
		v.Message = license.MsgTrialExpired
	case account.StatusCancelled:
		v.Message = license.MsgCancelled
	case account.StatusFreePastDue:
		v.Message = license.MsgPastDue
	default:
		v.Message = license.MsgInvalidStatus
	}
	return v
}

// Consume uses one unit of quota for a key
func (s *LicenseService) Consume(ctx context.Context, licenseKey string) (*license.Consumption, error) {
	if !s.codec.Verify(licenseKey).Valid {
		metrics.RecordConsumption("invalid_signature")
		return nil, errors.InvalidSignature()
	}

	acct, err := s.repo.GetByLicenseKey(ctx, licenseKey)
	if errors.Is(err, errors.ErrNotFound) {
		metrics.RecordConsumption("not_found")
		return &license.Consumption{Message: license.MsgNotFound},
			errors.New(errors.ErrCodeNotFound, license.MsgNotFound, http.StatusForbidden)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case acct.Status == account.StatusTrial:
		return s.consumeTrial(ctx, licenseKey)
	case acct.Status.IsPaid():
		return s.consumePaid(ctx, licenseKey)
	default:
		metrics.RecordConsumption("inactive")
		return &license.Consumption{
			Usage:   acct.QuotaUsage,
			Limit:   acct.QuotaLimit,
			Message: license.MsgInactive,
		}, errors.Forbidden(license.MsgInactive)
	}
}

func (s *LicenseService) consumeTrial(ctx context.Context, licenseKey string) (*license.Consumption, error) {
	usage, limit, ok, err := s.repo.ConsumeTrialQuota(ctx, licenseKey)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, licenseKey)

	remaining := limit - usage
	if remaining < 0 {
		remaining = 0
	}
	c := &license.Consumption{
		Authorized: ok,
		Usage:      usage,
		Limit:      limit,
		Remaining:  &remaining,
	}

	if !ok {
		c.Message = fmt.Sprintf("Trial limit reached (%d/%d projects created). Please upgrade to continue.", limit, limit)
		metrics.RecordConsumption("quota_exceeded")
		return c, errors.QuotaExceeded(c.Message)
	}

	metrics.RecordConsumption("trial")
	s.logger.WithFields(map[string]interface{}{
		"license": logger.MaskKey(licenseKey),
		"usage":   usage,
		"limit":   limit,
	}).Debug("Trial quota consumed")
	return c, nil
}

func (s *LicenseService) consumePaid(ctx context.Context, licenseKey string) (*license.Consumption, error) {
	usage, ok, err := s.repo.IncrementUsage(ctx, licenseKey)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, licenseKey)

	// Status moved away from paid between the read and the update.
	if !ok {
		metrics.RecordConsumption("inactive")
		return &license.Consumption{Message: license.MsgInactive}, errors.Forbidden(license.MsgInactive)
	}

	remaining := account.UnlimitedQuota
	metrics.RecordConsumption("paid")
	return &license.Consumption{
		Authorized: true,
		Usage:      usage,
		Limit:      account.UnlimitedQuota,
		Remaining:  &remaining,
		Unlimited:  true,
	}, nil
}

// Invalidate drops cached validations and bumps each key's generation, so a
// lookup that read the account before the change cannot cache its stale
// answer. Failures are logged; the entry still expires with its TTL.
func (s *LicenseService) Invalidate(ctx context.Context, licenseKeys ...string) {
	if s.cache == nil || len(licenseKeys) == 0 {
		return
	}
	keys := make([]string, 0, len(licenseKeys))
	for _, k := range licenseKeys {
		if k == "" {
			continue
		}
		if _, err := s.cache.Incr(ctx, licenseGenPrefix+k, generationTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to bump license cache generation")
		}
		keys = append(keys, licenseCachePrefix+k)
	}
	if len(keys) == 0 {
		return
	}
	if _, err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate license cache")
	}
}

// generation returns how often licenseKey was invalidated, or -1 when the
// counter cannot be read, which matches no entry.
func (s *LicenseService) generation(ctx context.Context, licenseKey string) int64 {
	if s.cache == nil || s.cacheTTL <= 0 {
		return 0
	}
	raw, err := s.cache.Get(ctx, licenseGenPrefix+licenseKey)
	if errors.Is(err, kv.ErrNotFound) {
		return 0
	}
	if err != nil {
		s.logger.WithError(err).Warn("License cache generation read failed")
		return -1
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

func (s *LicenseService) cached(ctx context.Context, licenseKey string) (*cachedValidation, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, licenseCachePrefix+licenseKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.WithError(err).Warn("License cache read failed")
		}
		return nil, false
	}

	var c cachedValidation
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, false
	}
	return &c, true
}

func (s *LicenseService) store(ctx context.Context, licenseKey string, c cachedValidation) {
	if s.cache == nil || s.cacheTTL <= 0 || c.Generation < 0 {
		return
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, licenseCachePrefix+licenseKey, string(raw), s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("License cache write failed")
	}
}

func (s *LicenseService) touch(accountID string) {
	s.background.Go("touch_validated", func(ctx context.Context) error {
		return s.repo.TouchValidated(ctx, accountID, time.Now().UTC())
	})
}
