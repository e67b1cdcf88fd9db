package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/kybernus/license-api/internal/config"
	"github.com/kybernus/license-api/internal/domain/account"
	"github.com/kybernus/license-api/internal/domain/device"
	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/pkg/metrics"
	"github.com/kybernus/license-api/internal/pkg/ratelimit"
)

const (
	userCodeLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	userCodeDigits  = "23456789"
	maxCodeAttempts = 5
)

var userCodePattern = regexp.MustCompile(`^[A-Z]{4}-[0-9]{4}$`)

// DeviceService implements device.Service
type DeviceService struct {
	repo            device.Repository
	states          device.StateStore
	accounts        account.Service
	identity        account.IdentityProvider
	limiter         *ratelimit.Limiter
	cfg             config.DeviceConfig
	exchangeTimeout time.Duration
	logger          *logger.Logger
}

// NewDeviceService creates a new device pairing service
func NewDeviceService(
	repo device.Repository,
	states device.StateStore,
	accounts account.Service,
	identity account.IdentityProvider,
	limiter *ratelimit.Limiter,
	cfg config.DeviceConfig,
	exchangeTimeout time.Duration,
	log *logger.Logger,
) *DeviceService {
	if exchangeTimeout <= 0 {
		exchangeTimeout = 10 * time.Second
	}
	return &DeviceService{
		repo:            repo,
		states:          states,
		accounts:        accounts,
		identity:        identity,
		limiter:         limiter,
		cfg:             cfg,
		exchangeTimeout: exchangeTimeout,
		logger:          log,
	}
}

// IssueCode starts a pairing for a CLI
func (s *DeviceService) IssueCode(ctx context.Context, clientIP string) (*device.Code, error) {
	if !s.limiter.Allow(ctx, s.rule("device_code", s.cfg.IssueLimit), clientIP) {
		return nil, errors.RateLimited("Too many device code requests, try again later")
	}

	deviceCode, err := randomHex(32)
	if err != nil {
		return nil, errors.Internal("Failed to generate device code", err)
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		userCode, err := generateUserCode()
		if err != nil {
			return nil, errors.Internal("Failed to generate user code", err)
		}

		session := &device.Session{
			DeviceCode: deviceCode,
			UserCode:   userCode,
			Status:     device.StatusPending,
			CreatedAt:  time.Now().UTC(),
		}
		created, err := s.repo.Create(ctx, session, s.cfg.CodeTTL)
		if err != nil {
			return nil, err
		}
		if !created {
			continue
		}

		metrics.RecordDeviceCodeIssued()
		s.logger.WithFields(map[string]interface{}{
			"user_code": userCode,
			"client_ip": clientIP,
		}).Info("Device code issued")

		return &device.Code{
			DeviceCode:      deviceCode,
			UserCode:        userCode,
			VerificationURL: s.cfg.VerificationURL,
			ExpiresIn:       int(s.cfg.CodeTTL.Seconds()),
			Interval:        int(s.cfg.PollInterval.Seconds()),
		}, nil
	}

	return nil, errors.ServiceUnavailable("Could not allocate a user code, try again")
}

// Poll reports the pairing state. A complete session is taken out of the
// store in one step, so the license key is handed out exactly once even to
// racing pollers.
func (s *DeviceService) Poll(ctx context.Context, deviceCode string) (*device.PollResult, error) {
	if deviceCode == "" {
		return nil, errors.BadRequest("Device code is required")
	}

	if !s.limiter.Allow(ctx, s.rule("device_poll", s.cfg.PollLimit), deviceCode) {
		metrics.RecordDevicePoll("slow_down")
		return nil, errors.SlowDown()
	}

	session, err := s.repo.GetByDeviceCode(ctx, deviceCode)
	if errors.Is(err, errors.ErrNotFound) {
		metrics.RecordDevicePoll("expired")
		return nil, errors.Expired("Device code expired or not found")
	}
	if err != nil {
		return nil, err
	}

	if session.Status != device.StatusComplete {
		metrics.RecordDevicePoll("pending")
		return &device.PollResult{Status: device.StatusPending}, nil
	}

	// Completed is terminal, so whatever GETDEL returns is the same session.
	session, err = s.repo.TakeCompleted(ctx, deviceCode)
	if errors.Is(err, errors.ErrNotFound) {
		metrics.RecordDevicePoll("expired")
		return nil, errors.Expired("Device code expired or not found")
	}
	if err != nil {
		return nil, err
	}

	metrics.RecordDevicePoll("complete")
	return &device.PollResult{
		Status:     device.StatusComplete,
		Email:      session.Email,
		LicenseKey: session.LicenseKey,
		Tier:       session.Tier,
	}, nil
}

// Complete finishes a pairing from the browser
func (s *DeviceService) Complete(ctx context.Context, in device.CompleteInput) (*device.CompleteResult, error) {
	res, err := s.complete(ctx, in)
	if err != nil {
		metrics.RecordDeviceCompletion(errors.As(err).Code)
		return nil, err
	}
	metrics.RecordDeviceCompletion("success")
	return res, nil
}

func (s *DeviceService) complete(ctx context.Context, in device.CompleteInput) (*device.CompleteResult, error) {
	if !s.limiter.Allow(ctx, s.rule("device_complete", s.cfg.CompleteLimit), in.ClientIP) {
		return nil, errors.RateLimited("Too many attempts, try again later")
	}

	if in.State == "" || subtle.ConstantTimeCompare([]byte(in.State), []byte(in.CookieState)) != 1 {
		s.logger.With("client_ip", in.ClientIP).Warn("OAuth state mismatch during device completion")
		return nil, errors.BadRequest("Invalid state parameter. Please try again.")
	}
	if err := s.ConsumeState(ctx, in.State); err != nil {
		return nil, err
	}

	if in.AuthorizationCode == "" {
		return nil, errors.BadRequest("Authorization code is required")
	}

	userCode, ok := NormalizeUserCode(in.UserCode)
	if !ok {
		return nil, errors.BadRequest("Invalid code format")
	}

	deviceCode, err := s.repo.ResolveUserCode(ctx, userCode)
	if errors.Is(err, errors.ErrNotFound) {
		// Slow down guessing of live user codes.
		sleepCtx(ctx, s.cfg.InvalidCodeDelay)
		return nil, errors.NotFound("Invalid or expired code")
	}
	if err != nil {
		return nil, err
	}

	session, err := s.repo.GetByDeviceCode(ctx, deviceCode)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Expired("Device session expired")
	}
	if err != nil {
		return nil, err
	}
	if session.Status == device.StatusComplete {
		return nil, errors.AlreadyConsumed("Code already used")
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, s.exchangeTimeout)
	identity, err := s.identity.Exchange(exchangeCtx, in.AuthorizationCode)
	cancel()
	if err != nil {
		return nil, errors.UpstreamAuthFailure(s.identity.Name(), err)
	}

	acct, created, err := s.accounts.ResolveIdentity(ctx, *identity)
	if err != nil {
		return nil, err
	}

	// Only one completion can remove the mapping.
	released, err := s.repo.ReleaseUserCode(ctx, userCode)
	if err != nil {
		return nil, err
	}
	if !released {
		return nil, errors.AlreadyConsumed("Code already used")
	}

	now := time.Now().UTC()
	session.Status = device.StatusComplete
	session.Email = acct.Email
	session.LicenseKey = acct.LicenseKey
	session.Tier = string(acct.EffectiveTier())
	session.CompletedAt = &now
	if err := s.repo.SaveCompleted(ctx, session, s.cfg.CompletedTTL); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"account_id": acct.ID,
		"user_code":  userCode,
		"new_user":   created,
	}).Info("Device pairing completed")

	return &device.CompleteResult{
		Success:    true,
		IsNewUser:  created,
		AccountID:  acct.ID,
		Email:      acct.Email,
		LicenseKey: acct.LicenseKey,
	}, nil
}

// IssueState creates a CSRF state token for the identity provider redirect
func (s *DeviceService) IssueState(ctx context.Context) (string, error) {
	state, err := randomHex(32)
	if err != nil {
		return "", errors.Internal("Failed to generate state", err)
	}
	if err := s.states.Save(ctx, state, s.cfg.StateTTL); err != nil {
		return "", err
	}
	return state, nil
}

// ConsumeState removes a state token; a missing or used token is Expired
func (s *DeviceService) ConsumeState(ctx context.Context, state string) error {
	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Expired("Sign-in session expired. Please try again.")
	}
	return nil
}

// AuthCodeURL returns the identity provider consent URL for state
func (s *DeviceService) AuthCodeURL(state string) string {
	return s.identity.AuthCodeURL(state)
}

func (s *DeviceService) rule(scope string, l config.RateLimit) ratelimit.Rule {
	return ratelimit.Rule{Scope: scope, Limit: l.Limit, Window: l.Window}
}

// NormalizeUserCode trims, upper-cases and inserts the dash, then checks the
// AAAA-9999 shape
func NormalizeUserCode(raw string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) == 8 && !strings.Contains(code, "-") {
		code = code[:4] + "-" + code[4:]
	}
	return code, userCodePattern.MatchString(code)
}

func generateUserCode() (string, error) {
	letters, err := randomFrom(userCodeLetters, 4)
	if err != nil {
		return "", err
	}
	digits, err := randomFrom(userCodeDigits, 4)
	if err != nil {
		return "", err
	}
	return letters + "-" + digits, nil
}

func randomFrom(alphabet string, n int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
