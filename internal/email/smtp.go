package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"regexp"
	"time"

	"github.com/knadh/smtppool"

	"github.com/urbanloom/storefront/internal/config"
)

// http://www.golangprograms.com/regular-expression-to-validate-email-address.html
var reMail = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

// SMTPMailer sends transactional mail through a pooled SMTP connection.
type SMTPMailer struct {
	from string
	pool *smtppool.Pool
}

func NewSMTPMailer(cfg *config.Config) (*SMTPMailer, error) {
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}

	opt := smtppool.Opt{
		Host:            cfg.SMTPHost,
		Port:            cfg.SMTPPort,
		MaxConns:        cfg.SMTPMaxConns,
		IdleTimeout:     10 * time.Second,
		PoolWaitTimeout: cfg.SMTPTimeout,
		Auth:            auth,
	}

	switch cfg.SMTPTLS {
	case "starttls":
		opt.TLSConfig = &tls.Config{ServerName: cfg.SMTPHost}
	case "tls":
		opt.TLSConfig = &tls.Config{ServerName: cfg.SMTPHost}
		opt.SSL = true
	case "none":
	default:
		return nil, fmt.Errorf("unknown SMTP TLS mode %q", cfg.SMTPTLS)
	}

	pool, err := smtppool.New(opt)
	if err != nil {
		return nil, err
	}

	from := cfg.SMTPFromEmail
	if cfg.SMTPFromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.SMTPFromName, cfg.SMTPFromEmail)
	}

	return &SMTPMailer{from: from, pool: pool}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject string, htmlBody []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !reMail.MatchString(to) {
		return errors.New("invalid e-mail address")
	}
	return m.pool.Send(smtppool.Email{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
	})
}

func (m *SMTPMailer) Close() {
	m.pool.Close()
}
