package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/kybernus/license-api/internal/domain/notification"
	"github.com/kybernus/license-api/internal/pkg/logger"
)

var emailTemplates = template.Must(template.New("email").Parse(`
{{define "layout"}}<div style="font-family: monospace; background: #09090b; color: #e4e4e7; padding: 32px;">
<h1 style="letter-spacing: 4px;">KYBERNUS{{if .Badge}} <span style="color: #a855f7;">{{.Badge}}</span>{{end}}</h1>
<p>{{.Intro}}</p>
<div style="border: 1px solid #27272a; padding: 16px; margin: 24px 0;">
<p style="font-size: 10px; color: #52525b; text-transform: uppercase;">{{.KeyLabel}}</p>
<code style="font-size: 16px; color: #22c55e;">{{.LicenseKey}}</code>
</div>
<p>Activate it with <code>kybernus login --key {{.LicenseKey}}</code> or run <code>kybernus login</code>.</p>
{{if .AppURL}}<p><a href="{{.AppURL}}" style="color: #a855f7;">Open dashboard</a></p>{{end}}
</div>{{end}}`))

type emailView struct {
	Badge      string
	Intro      string
	KeyLabel   string
	LicenseKey string
	AppURL     string
}

// NotificationService implements notification.Service on top of one Sender.
// Sends run on the background runner and failures are only logged.
type NotificationService struct {
	sender     notification.Sender
	background *Background
	logger     *logger.Logger
	appURL     string
}

// NewNotificationService creates a new notification service
func NewNotificationService(
	sender notification.Sender,
	background *Background,
	log *logger.Logger,
	appURL string,
) *NotificationService {
	return &NotificationService{
		sender:     sender,
		background: background,
		logger:     log,
		appURL:     appURL,
	}
}

// SendWelcome sends the trial welcome email
func (s *NotificationService) SendWelcome(ctx context.Context, d notification.LicenseDetails) {
	s.dispatch(notification.KindWelcome, d.Email, "TRIAL INITIALIZED: Welcome to Kybernus", emailView{
		Intro:      fmt.Sprintf("Your trial is active. It includes PRO features for up to %d projects.", d.TrialLimit),
		KeyLabel:   "Trial License Key",
		LicenseKey: d.LicenseKey,
	})
}

// SendLicenseKey sends a newly purchased license key
func (s *NotificationService) SendLicenseKey(ctx context.Context, d notification.LicenseDetails) {
	s.dispatch(notification.KindLicense, d.Email, fmt.Sprintf("ACCESS GRANTED: Kybernus %s License", d.Tier), emailView{
		Badge:      d.Tier,
		Intro:      "Thanks for your purchase. Your license is ready.",
		KeyLabel:   "License Key",
		LicenseKey: d.LicenseKey,
	})
}

// SendUpgradeConfirmation sends the rotated key after an in-place upgrade
func (s *NotificationService) SendUpgradeConfirmation(ctx context.Context, d notification.LicenseDetails) {
	s.dispatch(notification.KindUpgrade, d.Email, "UPGRADE COMPLETE: Level Up", emailView{
		Badge:      d.Tier,
		Intro:      fmt.Sprintf("Your account is now on %s. Your previous key no longer works; use the new one below.", d.Tier),
		KeyLabel:   "New License Credentials",
		LicenseKey: d.LicenseKey,
	})
}

func (s *NotificationService) dispatch(kind notification.Kind, to, subject string, view emailView) {
	if to == "" {
		return
	}
	view.AppURL = s.appURL

	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, "layout", view); err != nil {
		s.logger.ErrorWithErr(err, "Failed to render email")
		return
	}

	msg := &notification.Message{
		Kind:    kind,
		To:      to,
		Subject: subject,
		HTML:    buf.String(),
		Text:    fmt.Sprintf("%s\n\n%s: %s\n", view.Intro, view.KeyLabel, view.LicenseKey),
	}

	s.background.Go("email_"+string(kind), func(ctx context.Context) error {
		if err := s.sender.Send(ctx, msg); err != nil {
			return fmt.Errorf("%s: %w", s.sender.Name(), err)
		}
		s.logger.WithFields(map[string]interface{}{
			"kind":   kind,
			"sender": s.sender.Name(),
		}).Info("Email sent")
		return nil
	})
}
