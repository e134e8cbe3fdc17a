package service

import (
	"time"

	"github.com/urbanloom/storefront/internal/domain"
	"github.com/urbanloom/storefront/internal/security"
)

// SignInResult carries everything the HTTP layer needs to set cookies.
type SignInResult struct {
	AccessToken string
	CSRFToken   string
	TTL         time.Duration
	ExpiresAt   time.Time
}

// TokenService mints the access JWT and CSRF token for a signed-in user.
// Persistent sign-ins stretch the TTL to the remember-me window.
type TokenService struct {
	jwtMgr      *security.JWTManager
	accessTTL   time.Duration
	rememberTTL time.Duration
}

func NewTokenService(jwtMgr *security.JWTManager, accessTTL, rememberTTL time.Duration) *TokenService {
	return &TokenService{jwtMgr: jwtMgr, accessTTL: accessTTL, rememberTTL: rememberTTL}
}

func (s *TokenService) SignIn(user *domain.User, persistent bool) (*SignInResult, error) {
	ttl := s.accessTTL
	if persistent {
		ttl = s.rememberTTL
	}
	access, err := s.jwtMgr.SignAccessToken(user.ID, user.Email, ttl)
	if err != nil {
		return nil, err
	}
	csrf, err := security.NewCSRFToken()
	if err != nil {
		return nil, err
	}
	return &SignInResult{
		AccessToken: access,
		CSRFToken:   csrf,
		TTL:         ttl,
		ExpiresAt:   time.Now().Add(ttl),
	}, nil
}

func (s *TokenService) Parse(raw string) (*security.Claims, error) {
	return s.jwtMgr.ParseAccessToken(raw)
}
