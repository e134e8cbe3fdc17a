package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/urbanloom/storefront/internal/domain"
	"github.com/urbanloom/storefront/internal/observability"
	"github.com/urbanloom/storefront/internal/repository"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// AccountService starts the two OTP-gated flows and handles plain
// password logins. Finalization lives in VerificationService.
type AccountService struct {
	directory *DirectoryService
	issuer    *OTPIssuer
	userRepo  repository.UserRepository
	logger    *slog.Logger
	now       func() time.Time
}

func NewAccountService(directory *DirectoryService, issuer *OTPIssuer, userRepo repository.UserRepository, logger *slog.Logger) *AccountService {
	return &AccountService{directory: directory, issuer: issuer, userRepo: userRepo, logger: logger, now: time.Now}
}

// BeginRegistration validates the submitted credentials, refuses taken
// addresses before any code leaves the building, then issues a
// registration code and stages the credentials in the session.
func (s *AccountService) BeginRegistration(ctx context.Context, stage *PendingCredentialStage, email, password, confirm string) error {
	email = NormalizeEmail(email)

	fieldErrs := FieldErrors{}
	if err := validateEmail(email); err != nil {
		fieldErrs["email"] = err.Error()
	}
	if err := validatePassword(password); err != nil {
		fieldErrs["password"] = err.Error()
	}
	if password != confirm {
		fieldErrs["confirm_password"] = "the password and confirmation password do not match"
	}
	if len(fieldErrs) > 0 {
		return fieldErrs
	}

	if existing, err := s.directory.FindByIdentifier(email); err != nil {
		return err
	} else if existing != nil {
		return ErrAlreadyRegistered
	}

	if _, err := s.issuer.Issue(ctx, email, FlowRegistration); err != nil {
		return err
	}
	return stage.StageRegistration(ctx, email, password)
}

// BeginReset issues a reset code for an existing account and stages the
// address. Unknown addresses are reported, matching the storefront's
// original behavior.
func (s *AccountService) BeginReset(ctx context.Context, stage *PendingCredentialStage, email string) error {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return FieldErrors{"email": err.Error()}
	}

	user, err := s.directory.FindByIdentifier(email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrAccountNotFound
	}

	if _, err := s.issuer.Issue(ctx, email, FlowReset); err != nil {
		return err
	}
	return stage.StageReset(ctx, email)
}

// Login checks an identifier/password pair. Both unknown accounts and
// wrong passwords collapse into ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, identifier, password string) (*domain.User, error) {
	user, err := s.directory.FindByIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		observability.RecordLogin(ctx, "unknown_account")
		return nil, ErrInvalidCredentials
	}

	ok, err := s.directory.VerifyPassword(user.ID, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		observability.RecordLogin(ctx, "bad_password")
		return nil, ErrInvalidCredentials
	}

	if err := s.userRepo.TouchLastLogin(user.ID, s.now().UTC()); err != nil {
		s.logger.WarnContext(ctx, "failed to record login time", "user_id", user.ID, "error", err)
	}

	observability.RecordLogin(ctx, "success")
	s.logger.InfoContext(ctx, "login succeeded", "user_id", user.ID)
	return user, nil
}
