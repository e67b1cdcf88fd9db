package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kybernus/license-api/internal/domain/notification"
	"github.com/kybernus/license-api/internal/pkg/logger"
)

type captureSender struct {
	mu   sync.Mutex
	msgs []*notification.Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg *notification.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return c.err
}

func (c *captureSender) Name() string { return "capture" }

func TestNotificationService_Templates(t *testing.T) {
	sender := &captureSender{}
	bg := NewBackground(logger.Nop(), time.Second)
	svc := NewNotificationService(sender, bg, logger.Nop(), "https://kybernus.test")
	ctx := context.Background()

	details := notification.LicenseDetails{
		Email:      "dev@example.com",
		LicenseKey: "KYB-PRO-1A2B-3C4D-5E6F-89ABCDEF",
		Tier:       "PRO",
		TrialLimit: 3,
	}

	svc.SendWelcome(ctx, details)
	svc.SendLicenseKey(ctx, details)
	svc.SendUpgradeConfirmation(ctx, details)
	svc.SendWelcome(ctx, notification.LicenseDetails{})
	require.NoError(t, bg.Wait(ctx))

	require.Len(t, sender.msgs, 3)
	kinds := map[notification.Kind]*notification.Message{}
	for _, m := range sender.msgs {
		kinds[m.Kind] = m
		assert.Equal(t, "dev@example.com", m.To)
		assert.Contains(t, m.HTML, details.LicenseKey)
		assert.Contains(t, m.Text, details.LicenseKey)
	}

	assert.Contains(t, kinds[notification.KindWelcome].HTML, "up to 3 projects")
	assert.Equal(t, "ACCESS GRANTED: Kybernus PRO License", kinds[notification.KindLicense].Subject)
	assert.Contains(t, kinds[notification.KindUpgrade].HTML, "https://kybernus.test")
}

func TestNotificationService_FailuresAreSwallowed(t *testing.T) {
	sender := &captureSender{err: fmt.Errorf("provider down")}
	bg := NewBackground(logger.Nop(), time.Second)
	svc := NewNotificationService(sender, bg, logger.Nop(), "")

	svc.SendLicenseKey(context.Background(), notification.LicenseDetails{Email: "dev@example.com", LicenseKey: "k"})
	require.NoError(t, bg.Wait(context.Background()))
	assert.Len(t, sender.msgs, 1)
}

func TestBackground_WaitHonoursContext(t *testing.T) {
	bg := NewBackground(logger.Nop(), time.Second)
	release := make(chan struct{})
	bg.Go("blocked", func(ctx context.Context) error {
		<-release
		return nil
	})
	bg.Go("panics", func(ctx context.Context) error {
		panic("boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bg.Wait(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, bg.Wait(context.Background()))
}
