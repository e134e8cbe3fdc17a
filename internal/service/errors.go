package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidOrExpiredCode     = errors.New("invalid or expired code")
	ErrSessionExpired           = errors.New("verification session expired")
	ErrCredentialSessionExpired = errors.New("staged credentials no longer available")
	ErrResetSessionExpired      = errors.New("reset session expired")
	ErrAlreadyRegistered        = errors.New("email already registered")
	ErrAccountNotFound          = errors.New("no account for that email")
	ErrDeliveryFailed           = errors.New("could not deliver verification code")
	ErrInvalidResetToken        = errors.New("invalid or expired reset token")
)

// FieldErrors carries per-field validation failures from the account
// directory back to the caller without collapsing them into one string.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return strings.Join(parts, "; ")
}

func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
