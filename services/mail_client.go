package services

import (
	"fmt"
	"os"
	"strconv"

	"github.com/wneessen/go-mail"
)

// MailClient wraps the SMTP transport for the email channel. A nil client
// (SMTP not configured) disables the channel without failing startup.
type MailClient struct {
	client *mail.Client
	from   string
}

// NewMailClientFromEnv builds the SMTP client from SMTP_* env vars.
// Returns (nil, nil) when SMTP_HOST is unset: email delivery is optional.
func NewMailClientFromEnv() (*MailClient, error) {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return nil, nil
	}
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		return nil, fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}

	port := 587
	if p := os.Getenv("SMTP_PORT"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT %q: %w", p, err)
		}
		port = n
	}

	opts := []mail.Option{mail.WithPort(port)}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(user),
			mail.WithPassword(os.Getenv("SMTP_PASSWORD")),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build SMTP client: %w", err)
	}

	return &MailClient{client: client, from: from}, nil
}

// Send delivers one plain-text message.
func (m *MailClient) Send(to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}
