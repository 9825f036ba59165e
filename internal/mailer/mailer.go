package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// Mailer delivers transactional email.
type Mailer interface {
	SendVerification(ctx context.Context, to, link string) error
}

// New returns a Resend-backed mailer, or a LogMailer when no API key is set.
func New(apiKey, from string, log *zap.Logger) Mailer {
	if apiKey == "" {
		log.Warn("RESEND_API_KEY not set, verification links will only be logged")
		return NewLogMailer(log)
	}
	return NewResendMailer(resend.NewClient(apiKey), from, log)
}

type ResendMailer struct {
	client *resend.Client
	from   string
	log    *zap.Logger
}

func NewResendMailer(client *resend.Client, from string, log *zap.Logger) *ResendMailer {
	return &ResendMailer{client: client, from: from, log: log}
}

func (m *ResendMailer) SendVerification(ctx context.Context, to, link string) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: "Verify your AI Form Reply email",
		Html:    verificationHTML(link),
	}

	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.log.Info("verification email sent", zap.String("email_id", sent.Id), zap.String("to", to))
	return nil
}

// LogMailer writes the link to the log instead of sending it. Used in development.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendVerification(_ context.Context, to, link string) error {
	m.log.Info("[dev mode] verification link", zap.String("to", to), zap.String("link", link))
	return nil
}

func verificationHTML(link string) string {
	return fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto; padding: 24px;">
			<h2 style="color: #333;">Welcome to AI Form Reply</h2>
			<p>Confirm your email address to finish setting up your account:</p>
			<a href="%s" style="display: inline-block; background: #0097FB; color: white; padding: 12px 24px; border-radius: 8px; text-decoration: none; font-weight: 600;">
				Verify email
			</a>
			<p style="color: #aaa; font-size: 12px; margin-top: 16px;">
				If you didn't create an account, you can safely ignore this email.
			</p>
		</div>
	`, link)
}
