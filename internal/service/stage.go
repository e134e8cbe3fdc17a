package service

import (
	"context"

	"github.com/urbanloom/storefront/internal/session"
)

// Session staging keys. Registration stages both the address and the
// plaintext password until the code is confirmed; reset stages the
// address and a verified marker.
const (
	stageKeyOTPEmail      = "otp_email"
	stageKeyOTPPassword   = "otp_password"
	stageKeyResetEmail    = "reset_email"
	stageKeyResetVerified = "reset_verified"
)

// PendingCredentialStage parks in-flight signup and reset state in the
// caller's server-side session. Nothing here touches the database; rows
// only appear once the flow finalizes.
type PendingCredentialStage struct {
	sess *session.Session
}

func NewPendingCredentialStage(sess *session.Session) *PendingCredentialStage {
	return &PendingCredentialStage{sess: sess}
}

func (p *PendingCredentialStage) SessionID() string { return p.sess.ID() }

func (p *PendingCredentialStage) StageRegistration(ctx context.Context, email, password string) error {
	if err := p.sess.Set(ctx, stageKeyOTPEmail, email); err != nil {
		return err
	}
	return p.sess.Set(ctx, stageKeyOTPPassword, password)
}

func (p *PendingCredentialStage) StageReset(ctx context.Context, email string) error {
	if err := p.sess.Remove(ctx, stageKeyResetVerified); err != nil {
		return err
	}
	return p.sess.Set(ctx, stageKeyResetEmail, email)
}

func (p *PendingCredentialStage) RegistrationEmail(ctx context.Context) (string, error) {
	return p.sess.Get(ctx, stageKeyOTPEmail)
}

func (p *PendingCredentialStage) StagedPassword(ctx context.Context) (string, error) {
	return p.sess.Get(ctx, stageKeyOTPPassword)
}

func (p *PendingCredentialStage) ResetEmail(ctx context.Context) (string, error) {
	return p.sess.Get(ctx, stageKeyResetEmail)
}

func (p *PendingCredentialStage) MarkResetVerified(ctx context.Context) error {
	return p.sess.Set(ctx, stageKeyResetVerified, "true")
}

func (p *PendingCredentialStage) ResetVerified(ctx context.Context) (bool, error) {
	v, err := p.sess.Get(ctx, stageKeyResetVerified)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (p *PendingCredentialStage) ClearRegistration(ctx context.Context) error {
	if err := p.sess.Remove(ctx, stageKeyOTPEmail); err != nil {
		return err
	}
	return p.sess.Remove(ctx, stageKeyOTPPassword)
}

func (p *PendingCredentialStage) ClearReset(ctx context.Context) error {
	if err := p.sess.Remove(ctx, stageKeyResetEmail); err != nil {
		return err
	}
	return p.sess.Remove(ctx, stageKeyResetVerified)
}
