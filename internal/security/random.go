package security

import (
	"crypto/rand"
	"encoding/base64"
)

const numChars = "0123456789"

// NewRandomString returns a URL-safe random string carrying n bytes of
// entropy.
func NewRandomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewNumericCode returns a numeric code of the given length with each digit
// drawn independently from a cryptographically strong source.
func NewNumericCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = numChars[b%byte(len(numChars))]
	}
	return string(buf), nil
}

func NewCSRFToken() (string, error) {
	return NewRandomString(24)
}
