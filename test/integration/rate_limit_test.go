package integration

import (
	"net/http"
	"testing"
)

func TestAuthRateLimitRejectsBurst(t *testing.T) {
	env := newCredentialTestServerWithOptions(t, serverOptions{authRateLimitPerMin: 3})

	var last int
	for i := 0; i < 5; i++ {
		resp, _ := env.post(t, "/api/v1/auth/login", `{"email":"nobody@example.com","password":"wrong"}`, nil)
		last = resp.StatusCode
		if last == http.StatusTooManyRequests {
			break
		}
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", last)
	}
}

func TestHealthEndpointsBypassAuthLimits(t *testing.T) {
	env := newCredentialTestServerWithOptions(t, serverOptions{authRateLimitPerMin: 1})

	for i := 0; i < 5; i++ {
		resp, _ := env.get(t, "/health/live")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("liveness request %d status = %d", i, resp.StatusCode)
		}
	}
}
