package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/urbanloom/storefront/internal/domain"
	"github.com/urbanloom/storefront/internal/observability"
	"github.com/urbanloom/storefront/internal/repository"
)

// Mode is the workflow a code confirmation belongs to, resolved once at
// entry and carried through dispatch.
type Mode string

const (
	ModeRegistration Mode = "registration"
	ModeReset        Mode = "reset"
)

// VerifyOutcome reports what a successful confirmation did. User is set
// when the flow ends in a sign-in (registration); for reset the caller
// proceeds to the password-entry step.
type VerifyOutcome struct {
	Mode Mode
	User *domain.User
}

// VerificationService drives the OTP confirmation state machine and the
// reset finalizer on top of the staged session state.
type VerificationService struct {
	otpRepo   repository.OTPRepository
	directory *DirectoryService
	logger    *slog.Logger
	now       func() time.Time
}

func NewVerificationService(otpRepo repository.OTPRepository, directory *DirectoryService, logger *slog.Logger) *VerificationService {
	return &VerificationService{otpRepo: otpRepo, directory: directory, logger: logger, now: time.Now}
}

// ResolveMode fixes the workflow for a confirmation request. An explicit
// "reset" wins; anything else falls back to reset only when a reset
// address is staged, otherwise registration.
func (s *VerificationService) ResolveMode(ctx context.Context, stage *PendingCredentialStage, requested string) (Mode, error) {
	if requested == string(ModeReset) {
		return ModeReset, nil
	}
	if requested == "" {
		resetEmail, err := stage.ResetEmail(ctx)
		if err != nil {
			return "", err
		}
		if resetEmail != "" {
			return ModeReset, nil
		}
	}
	return ModeRegistration, nil
}

// Verify confirms a submitted code for the resolved mode. All code
// failures collapse into ErrInvalidOrExpiredCode; a missing staged
// address is ErrSessionExpired.
func (s *VerificationService) Verify(ctx context.Context, stage *PendingCredentialStage, mode Mode, code string) (*VerifyOutcome, error) {
	email, err := s.stagedEmail(ctx, stage, mode)
	if err != nil {
		return nil, err
	}

	otp, err := s.otpRepo.FindLatestUnverified(email)
	if errors.Is(err, repository.ErrOTPNotFound) {
		observability.RecordOTPVerification(ctx, string(mode), "no_code")
		return nil, ErrInvalidOrExpiredCode
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	codeMatches := subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) == 1
	if !codeMatches || !otp.Live(now) {
		observability.RecordOTPVerification(ctx, string(mode), "rejected")
		return nil, ErrInvalidOrExpiredCode
	}

	// Winner gate: only one concurrent submission flips the row.
	if err := s.otpRepo.ConsumeAndPurgeSiblings(otp.ID, email, now); err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			observability.RecordOTPVerification(ctx, string(mode), "lost_race")
			return nil, ErrInvalidOrExpiredCode
		}
		return nil, err
	}

	switch mode {
	case ModeReset:
		return s.finalizeReset(ctx, stage, email)
	default:
		return s.finalizeRegistration(ctx, stage, email)
	}
}

func (s *VerificationService) stagedEmail(ctx context.Context, stage *PendingCredentialStage, mode Mode) (string, error) {
	var (
		email string
		err   error
	)
	if mode == ModeReset {
		email, err = stage.ResetEmail(ctx)
	} else {
		email, err = stage.RegistrationEmail(ctx)
	}
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", ErrSessionExpired
	}
	return email, nil
}

func (s *VerificationService) finalizeRegistration(ctx context.Context, stage *PendingCredentialStage, email string) (*VerifyOutcome, error) {
	// Re-check the directory: another request may have claimed the
	// address while the code was in flight.
	if existing, err := s.directory.FindByIdentifier(email); err != nil {
		return nil, err
	} else if existing != nil {
		_ = stage.ClearRegistration(ctx)
		observability.RecordOTPVerification(ctx, string(ModeRegistration), "already_registered")
		return nil, ErrAlreadyRegistered
	}

	password, err := stage.StagedPassword(ctx)
	if err != nil {
		return nil, err
	}
	if password == "" {
		observability.RecordOTPVerification(ctx, string(ModeRegistration), "stage_expired")
		return nil, ErrCredentialSessionExpired
	}

	// Username is the address, matching the directory's login fallback.
	user, err := s.directory.Create(email, email, password)
	if err != nil {
		return nil, err
	}

	if err := stage.ClearRegistration(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to clear staged registration", "email", email, "error", err)
	}

	observability.RecordOTPVerification(ctx, string(ModeRegistration), "confirmed")
	s.logger.InfoContext(ctx, "registration confirmed", "user_id", user.ID, "email", email)
	return &VerifyOutcome{Mode: ModeRegistration, User: user}, nil
}

func (s *VerificationService) finalizeReset(ctx context.Context, stage *PendingCredentialStage, email string) (*VerifyOutcome, error) {
	// Same name fallback as the registration re-check: accounts can be
	// resolvable only through the display name.
	user, err := s.directory.FindByIdentifier(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		observability.RecordOTPVerification(ctx, string(ModeReset), "no_account")
		return nil, ErrAccountNotFound
	}

	if err := stage.MarkResetVerified(ctx); err != nil {
		return nil, err
	}

	observability.RecordOTPVerification(ctx, string(ModeReset), "confirmed")
	s.logger.InfoContext(ctx, "reset code confirmed", "user_id", user.ID, "email", email)
	return &VerifyOutcome{Mode: ModeReset}, nil
}

// StageAlive reports whether either flow is still staged in the session.
// The confirmation page uses it to bounce stale visitors.
func (s *VerificationService) StageAlive(ctx context.Context, stage *PendingCredentialStage) (bool, Mode, error) {
	if email, err := stage.ResetEmail(ctx); err != nil {
		return false, "", err
	} else if email != "" {
		return true, ModeReset, nil
	}
	if email, err := stage.RegistrationEmail(ctx); err != nil {
		return false, "", err
	} else if email != "" {
		return true, ModeRegistration, nil
	}
	return false, "", nil
}

// ResetPassword finalizes a verified reset. The staged address and the
// verified marker must both be present; policy violations keep the stage
// intact so the caller may retry.
func (s *VerificationService) ResetPassword(ctx context.Context, stage *PendingCredentialStage, newPassword string) (*domain.User, error) {
	email, err := stage.ResetEmail(ctx)
	if err != nil {
		return nil, err
	}
	verified, err := stage.ResetVerified(ctx)
	if err != nil {
		return nil, err
	}
	if email == "" || !verified {
		return nil, ErrResetSessionExpired
	}

	user, err := s.directory.FindByIdentifier(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrAccountNotFound
	}

	// The directory owns the reset handshake: it mints the token and
	// validates it when the new password is presented.
	token := s.directory.GenerateResetToken(user)
	if err := s.directory.ResetPassword(user, token, newPassword); err != nil {
		var fe FieldErrors
		if errors.As(err, &fe) {
			return nil, fe
		}
		if errors.Is(err, ErrInvalidResetToken) {
			return nil, err
		}
		return nil, fmt.Errorf("apply new password: %w", err)
	}

	if err := stage.ClearReset(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to clear staged reset", "email", email, "error", err)
	}

	observability.RecordPasswordReset(ctx, "completed")
	s.logger.InfoContext(ctx, "password reset completed", "user_id", user.ID, "email", email)
	return user, nil
}
