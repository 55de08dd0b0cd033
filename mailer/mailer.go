// Package mailer sends reminder emails through SendGrid.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ErrNotConfigured is returned by Send when the transport is missing its
// API key or addresses.  The rest of the application keeps working without
// email; only send attempts fail.
var ErrNotConfigured = errors.New("email transport is not configured (SendGrid key, from, and to are required)")

// SendGrid sends single-recipient plain-text mail through the SendGrid API.
type SendGrid struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	toEmail   string
	toName    string
}

// NewSendGrid builds a SendGrid mailer.  A nil client or empty addresses
// produce a mailer whose sends fail with ErrNotConfigured.
func NewSendGrid(client *sendgrid.Client, fromEmail, fromName, toEmail, toName string) *SendGrid {
	return &SendGrid{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
		toEmail:   toEmail,
		toName:    toName,
	}
}

// Send delivers one plain-text email.
func (s *SendGrid) Send(ctx context.Context, subject, body string) error {
	if s.client == nil || s.fromEmail == "" || s.toEmail == "" {
		return ErrNotConfigured
	}

	message := mail.NewV3Mail()
	message.From = mail.NewEmail(s.fromName, s.fromEmail)
	message.Subject = subject

	personalization := mail.NewPersonalization()
	personalization.To = append(personalization.To, mail.NewEmail(s.toName, s.toEmail))
	message.Personalizations = append(message.Personalizations, personalization)

	message.Content = append(message.Content, mail.NewContent("text/plain", body))

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("while sending mail through SendGrid: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2XX response while sending mail through SendGrid: %d %s", resp.StatusCode, resp.Body)
	}

	slog.InfoContext(ctx, "Sent email", slog.String("subject", subject))
	return nil
}
