package service

import (
	"context"

	"github.com/urbanloom/storefront/internal/domain"
	"github.com/urbanloom/storefront/internal/security"
)

type AccountFlows interface {
	BeginRegistration(ctx context.Context, stage *PendingCredentialStage, email, password, confirm string) error
	BeginReset(ctx context.Context, stage *PendingCredentialStage, email string) error
	Login(ctx context.Context, identifier, password string) (*domain.User, error)
}

type Verifier interface {
	ResolveMode(ctx context.Context, stage *PendingCredentialStage, requested string) (Mode, error)
	Verify(ctx context.Context, stage *PendingCredentialStage, mode Mode, code string) (*VerifyOutcome, error)
	StageAlive(ctx context.Context, stage *PendingCredentialStage) (bool, Mode, error)
	ResetPassword(ctx context.Context, stage *PendingCredentialStage, newPassword string) (*domain.User, error)
}

type SignInIssuer interface {
	SignIn(user *domain.User, persistent bool) (*SignInResult, error)
	Parse(raw string) (*security.Claims, error)
}
