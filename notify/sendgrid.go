// Package notify delivers consent invites and operator mail
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when mail is requested without an API key
var ErrNotConfigured = errors.New("email delivery is not configured")

// Mailer sends a single html email
type Mailer interface {
	SendEmail(ctx context.Context, toEmail, toName, subject, plainText, htmlContent string) error
}

// sendClient is the part of *sendgrid.Client we use
type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGrid is a Mailer backed by the SendGrid v3 API
type SendGrid struct {
	client sendClient
	from   *mail.Email
}

// NewSendGrid returns a Mailer, or nil when apiKey is empty so callers can fall
// back to logging
func NewSendGrid(apiKey, fromEmail, fromName string) *SendGrid {
	if apiKey == "" {
		return nil
	}
	return &SendGrid{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
	}
}

// SendEmail sends one message and treats any 4xx/5xx reply as a failure
func (s *SendGrid) SendEmail(ctx context.Context, toEmail, toName, subject, plainText, htmlContent string) error {
	if s == nil || s.client == nil {
		return ErrNotConfigured
	}
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(s.from, subject, to, plainText, htmlContent)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		zap.S().Errorw("failed to send email", "error", err, "to", toEmail)
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", toEmail)
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}
	zap.S().Infow("email sent successfully", "to", toEmail, "subject", subject)
	return nil
}
