// Package mail sends transactional email over SMTP.
package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// Sender delivers account emails. Implementations must be safe for
// concurrent use; tests substitute a fake.
type Sender interface {
	SendConfirmation(ctx context.Context, to, username, confirmURL string) error
}

// SMTPConfig holds connection settings for the SMTP sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends email through an SMTP relay using go-mail.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

// NewSMTPSender creates an SMTP sender. The connection is dialed per
// message; the client only holds configuration.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithSSLPort(false),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPSender{client: client, from: cfg.From}, nil
}

// SendConfirmation emails the address-verification link.
func (s *SMTPSender) SendConfirmation(ctx context.Context, to, username, confirmURL string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}

	msg.Subject("Confirm your email")
	msg.SetBodyString(gomail.TypeTextHTML, confirmationBody(username, confirmURL))

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}
	return nil
}

func confirmationBody(username, confirmURL string) string {
	return fmt.Sprintf(`<html><body>
<p>Hi %s,</p>
<p>Please confirm your email address by following the link below. The link is valid for 24 hours.</p>
<p><a href=%q>Confirm email</a></p>
<p>If you did not create an account, ignore this message.</p>
</body></html>`, username, confirmURL)
}

// NopSender discards email. Used when SMTP is not configured
// (development environments).
type NopSender struct{}

// SendConfirmation implements Sender.
func (NopSender) SendConfirmation(context.Context, string, string, string) error { return nil }
