package integrations

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/kybernus/license-api/internal/domain/notification"
	"github.com/kybernus/license-api/internal/pkg/logger"
)

// ResendSender delivers email through Resend
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a Resend-backed sender
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// Name returns the sender name
func (s *ResendSender) Name() string {
	return "resend"
}

// Send delivers msg
func (s *ResendSender) Send(ctx context.Context, msg *notification.Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send %s email: %w", msg.Kind, err)
	}
	if sent == nil || sent.Id == "" {
		return fmt.Errorf("send %s email: empty response", msg.Kind)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. It is used
// when no email provider is configured.
type LogSender struct {
	logger *logger.Logger
}

// NewLogSender creates a log-only sender
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{logger: log}
}

// Name returns the sender name
func (s *LogSender) Name() string {
	return "log"
}

// Send logs msg without the license key
func (s *LogSender) Send(_ context.Context, msg *notification.Message) error {
	s.logger.WithFields(map[string]interface{}{
		"kind":    msg.Kind,
		"subject": msg.Subject,
	}).Info("Email delivery disabled, message not sent")
	return nil
}
