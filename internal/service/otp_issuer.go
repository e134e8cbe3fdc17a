package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urbanloom/storefront/internal/config"
	"github.com/urbanloom/storefront/internal/domain"
	"github.com/urbanloom/storefront/internal/observability"
	"github.com/urbanloom/storefront/internal/repository"
	"github.com/urbanloom/storefront/internal/security"
)

// Flow names which workflow an OTP belongs to. It steers both the purge
// policy on issue and the message copy.
type Flow string

const (
	FlowRegistration Flow = "registration"
	FlowReset        Flow = "reset"
)

// OTPIssuer mints single-use email codes and hands them to the mailer.
// A fresh code supersedes the caller's earlier ones: only the newest
// row for an address can ever win verification.
type OTPIssuer struct {
	cfg     *config.Config
	otpRepo repository.OTPRepository
	mailer  Mailer
	logger  *slog.Logger
	now     func() time.Time
}

func NewOTPIssuer(cfg *config.Config, otpRepo repository.OTPRepository, mailer Mailer, logger *slog.Logger) *OTPIssuer {
	return &OTPIssuer{cfg: cfg, otpRepo: otpRepo, mailer: mailer, logger: logger, now: time.Now}
}

// Issue generates a numeric code, persists it, and emails it. The row is
// committed before the send; a failed send surfaces ErrDeliveryFailed and
// leaves the row behind for the validity window.
func (s *OTPIssuer) Issue(ctx context.Context, email string, flow Flow) (*domain.EmailOTP, error) {
	code, err := security.NewNumericCode(s.cfg.OTPCodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	otp := &domain.EmailOTP{
		Email:  email,
		Code:   code,
		Expiry: s.now().Add(s.cfg.OTPValidity),
	}

	// Registration re-sends must not disturb rows a completed flow may
	// still be referencing; reset starts from a clean slate.
	unverifiedOnly := flow == FlowRegistration
	if err := s.otpRepo.Replace(otp, unverifiedOnly); err != nil {
		return nil, fmt.Errorf("persist code: %w", err)
	}

	subject, body := s.render(code, flow)
	if err := s.mailer.Send(ctx, email, subject, body); err != nil {
		s.logger.ErrorContext(ctx, "otp delivery failed", "email", email, "flow", string(flow), "error", err)
		observability.RecordOTPIssued(ctx, string(flow), "delivery_failed")
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	observability.RecordOTPIssued(ctx, string(flow), "sent")
	s.logger.InfoContext(ctx, "otp issued", "email", email, "flow", string(flow), "expires_at", otp.Expiry)
	return otp, nil
}

func (s *OTPIssuer) render(code string, flow Flow) (subject string, body []byte) {
	switch flow {
	case FlowReset:
		subject = "Your UrbanLoom password reset code"
	default:
		subject = "Your UrbanLoom verification code"
	}
	minutes := int(s.cfg.OTPValidity.Minutes())
	body = []byte(fmt.Sprintf(
		`<p>Your one-time code is <strong>%s</strong>.</p><p>It expires in %d minutes. If you did not request it, you can ignore this email.</p>`,
		code, minutes,
	))
	return subject, body
}
