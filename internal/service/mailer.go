package service

import (
	"context"
	"log/slog"
)

// Mailer delivers a rendered message to a single recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject string, htmlBody []byte) error
}

// DevMailer logs messages instead of sending them. Used when
// EMAIL_DRIVER=log, typically in local development.
type DevMailer struct {
	logger *slog.Logger
}

func NewDevMailer(logger *slog.Logger) *DevMailer {
	return &DevMailer{logger: logger}
}

func (m *DevMailer) Send(ctx context.Context, to, subject string, htmlBody []byte) error {
	m.logger.InfoContext(ctx, "outgoing email (log driver)",
		"to", to,
		"subject", subject,
		"body", string(htmlBody),
	)
	return nil
}
