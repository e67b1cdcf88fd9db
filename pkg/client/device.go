package client

import (
	"context"
	"errors"
	"time"
)

const (
	maxPollAttempts = 120
	maxPollInterval = 10 * time.Second
	maxWait         = 10 * time.Minute
)

// ErrAuthorizationTimeout is returned when the user never completes pairing
var ErrAuthorizationTimeout = errors.New("device authorization timed out")

// DeviceCode starts a pairing
type DeviceCode struct {
	DeviceCode      string `json:"deviceCode"`
	UserCode        string `json:"userCode"`
	VerificationURL string `json:"verificationUrl"`
	ExpiresIn       int    `json:"expiresIn"`
	Interval        int    `json:"interval"`
}

// DevicePoll is one poll answer
type DevicePoll struct {
	Status     string `json:"status"`
	Email      string `json:"email,omitempty"`
	LicenseKey string `json:"licenseKey,omitempty"`
	Tier       string `json:"tier,omitempty"`
}

// DeviceService drives the device pairing flow
type DeviceService struct {
	client *Client
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

// RequestCode starts a pairing
func (s *DeviceService) RequestCode(ctx context.Context) (*DeviceCode, error) {
	var code DeviceCode
	if err := s.client.doRequest(ctx, "POST", "/device/code", nil, &code); err != nil {
		return nil, err
	}
	return &code, nil
}

// Poll checks the pairing once
func (s *DeviceService) Poll(ctx context.Context, deviceCode string) (*DevicePoll, error) {
	var poll DevicePoll
	err := s.client.doRequest(ctx, "POST", "/device/poll", map[string]string{"deviceCode": deviceCode}, &poll)
	if err != nil {
		return nil, err
	}
	return &poll, nil
}

// WaitForAuthorization polls until the pairing completes. slow_down adds a
// second to the interval (capped at ten); expired_token and any other API
// error end the wait. The wait never outlasts the code's expiresIn, nor ten
// minutes.
func (s *DeviceService) WaitForAuthorization(ctx context.Context, code *DeviceCode) (*DevicePoll, error) {
	interval := time.Duration(code.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	limit := maxWait
	if ttl := time.Duration(code.ExpiresIn) * time.Second; ttl > 0 && ttl < limit {
		limit = ttl
	}
	deadline := s.now().Add(limit)

	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		if err := s.sleep(ctx, interval); err != nil {
			return nil, err
		}
		if s.now().After(deadline) {
			return nil, ErrAuthorizationTimeout
		}

		poll, err := s.Poll(ctx, code.DeviceCode)
		if err != nil {
			if ErrorCode(err) == CodeSlowDown {
				interval += time.Second
				if interval > maxPollInterval {
					interval = maxPollInterval
				}
				continue
			}
			return nil, err
		}

		if poll.Status == "complete" {
			return poll, nil
		}
	}
	return nil, ErrAuthorizationTimeout
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
