package service

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"

	"gorm.io/gorm"

	"github.com/urbanloom/storefront/internal/config"
	"github.com/urbanloom/storefront/internal/domain"
	"github.com/urbanloom/storefront/internal/repository"
	"github.com/urbanloom/storefront/internal/security"
)

// DirectoryService is the account directory: lookups, account creation
// and password custody for storefront customers.
type DirectoryService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	credRepo repository.LocalCredentialRepository
}

func NewDirectoryService(cfg *config.Config, userRepo repository.UserRepository, credRepo repository.LocalCredentialRepository) *DirectoryService {
	return &DirectoryService{cfg: cfg, userRepo: userRepo, credRepo: credRepo}
}

// NormalizeEmail is the canonical address form used everywhere an email
// keys a lookup or an OTP row.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByEmail returns the account for an address, or nil when none exists.
// Lookup errors other than not-found are returned as-is.
func (s *DirectoryService) FindByEmail(email string) (*domain.User, error) {
	u, err := s.userRepo.FindByEmail(NormalizeEmail(email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// FindByIdentifier resolves a login identifier, trying the address first
// and falling back to the display name.
func (s *DirectoryService) FindByIdentifier(identifier string) (*domain.User, error) {
	u, err := s.FindByEmail(identifier)
	if err != nil || u != nil {
		return u, err
	}
	u, err = s.userRepo.FindByName(strings.TrimSpace(identifier))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create validates and provisions a confirmed account with a local
// credential. Validation failures come back as FieldErrors; a duplicate
// address as ErrAlreadyRegistered.
func (s *DirectoryService) Create(name, email, password string) (*domain.User, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)

	fieldErrs := FieldErrors{}
	if name == "" {
		fieldErrs["name"] = "name is required"
	}
	if err := validateEmail(email); err != nil {
		fieldErrs["email"] = err.Error()
	}
	if err := validatePassword(password); err != nil {
		fieldErrs["password"] = err.Error()
	}
	if len(fieldErrs) > 0 {
		return nil, fieldErrs
	}

	if existing, err := s.FindByEmail(email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrAlreadyRegistered
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// The email was proven reachable before this point, so the account
	// is born confirmed. Account and credential land in one transaction.
	user := &domain.User{Email: email, Name: name, EmailConfirmed: true}
	if err := s.userRepo.CreateWithCredential(user, &domain.LocalCredential{PasswordHash: hash}); err != nil {
		return nil, err
	}
	return user, nil
}

// GenerateResetToken mints the short-lived token a caller must present
// back to ResetPassword to change an account's password.
func (s *DirectoryService) GenerateResetToken(user *domain.User) string {
	return security.NewResetToken(user.ID, user.Email, s.cfg.ResetTokenSecret, s.cfg.ResetTokenTTL)
}

// ResetPassword applies a new password once the presented token checks
// out. Tampered, expired, or wrong-account tokens are rejected with
// ErrInvalidResetToken; policy violations come back as FieldErrors.
func (s *DirectoryService) ResetPassword(user *domain.User, token, newPassword string) error {
	if !security.VerifyResetToken(token, user.ID, user.Email, s.cfg.ResetTokenSecret) {
		return ErrInvalidResetToken
	}
	return s.SetPassword(user.ID, newPassword)
}

// VerifyPassword checks a candidate password against the stored hash.
func (s *DirectoryService) VerifyPassword(userID uint, password string) (bool, error) {
	cred, err := s.credRepo.FindByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return security.VerifyPassword(cred.PasswordHash, password)
}

// SetPassword replaces an account's password after policy validation.
func (s *DirectoryService) SetPassword(userID uint, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return FieldErrors{"password": err.Error()}
	}
	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if _, err := s.credRepo.FindByUserID(userID); errors.Is(err, gorm.ErrRecordNotFound) {
		return s.credRepo.Create(&domain.LocalCredential{UserID: userID, PasswordHash: hash})
	} else if err != nil {
		return err
	}
	return s.credRepo.UpdatePassword(userID, hash)
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("invalid email")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return errors.New("password must contain at least one letter and one digit")
	}
	return nil
}
