package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NewResetToken mints an HMAC-signed, expiring token binding a password
// reset to one account. Stateless: verification recomputes the signature,
// so no token row has to be stored.
func NewResetToken(userID uint, email, secret string, ttl time.Duration) string {
	expires := time.Now().Add(ttl).Unix()
	// Email goes last: it may itself contain separator characters.
	payload := fmt.Sprintf("%d.%d.%s", expires, userID, email)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + signResetPayload(payload, secret)
}

// VerifyResetToken checks the signature and expiry and confirms the token
// was minted for the given account.
func VerifyResetToken(token string, userID uint, email, secret string) bool {
	dot := strings.LastIndex(token, ".")
	if dot <= 0 {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token[:dot])
	if err != nil {
		return false
	}
	payload := string(raw)
	if !hmac.Equal([]byte(signResetPayload(payload, secret)), []byte(token[dot+1:])) {
		return false
	}
	parts := strings.SplitN(payload, ".", 3)
	if len(parts) != 3 {
		return false
	}
	expires, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || time.Now().Unix() >= expires {
		return false
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || uint(id) != userID {
		return false
	}
	return parts[2] == email
}

func signResetPayload(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
