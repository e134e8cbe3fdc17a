package integration

import (
	"net/http"
	"testing"
)

// registerAccount walks a fresh browser through registration so reset
// tests start from a confirmed account. Returns the CSRF token of the
// resulting signed-in state.
func registerAccount(t *testing.T, env *testEnv, email, password string) string {
	t.Helper()
	resp, _ := env.post(t, "/api/v1/auth/register",
		`{"email":"`+email+`","password":"`+password+`","confirm_password":"`+password+`"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	code := latestCode(t, env.db, email)
	resp, body := env.post(t, "/api/v1/auth/verify-otp", `{"code":"`+code+`"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d, error %#v", resp.StatusCode, body.Error)
	}
	return dataField(t, body, "csrf_token")
}

func TestPasswordResetLifecycle(t *testing.T) {
	env := newCredentialTestServer(t)
	csrf := registerAccount(t, env, "felter@example.com", "needlework9")

	resp, _ := env.post(t, "/api/v1/auth/logout", "", map[string]string{"X-CSRF-Token": csrf})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	resp, body := env.post(t, "/api/v1/auth/password/forgot", `{"email":"felter@example.com"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("forgot status = %d, error %#v", resp.StatusCode, body.Error)
	}
	if got := dataField(t, body, "redirect"); got != "/verify-otp?mode=reset" {
		t.Fatalf("forgot redirect = %q", got)
	}

	code := latestCode(t, env.db, "felter@example.com")
	resp, body = env.post(t, "/api/v1/auth/verify-otp?mode=reset", `{"code":"`+code+`"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d, error %#v", resp.StatusCode, body.Error)
	}
	if got := dataField(t, body, "redirect"); got != "/reset-password" {
		t.Fatalf("verify redirect = %q", got)
	}

	resp, body = env.post(t, "/api/v1/auth/password/reset",
		`{"password":"embroidery23","confirm_password":"embroidery23"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d, error %#v", resp.StatusCode, body.Error)
	}
	csrf = dataField(t, body, "csrf_token")

	resp, _ = env.post(t, "/api/v1/auth/logout", "", map[string]string{"X-CSRF-Token": csrf})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	// the old secret is gone, the new one signs in
	resp, body = env.post(t, "/api/v1/auth/login", `{"email":"felter@example.com","password":"needlework9"}`, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old password status = %d", resp.StatusCode)
	}
	resp, body = env.post(t, "/api/v1/auth/login", `{"email":"felter@example.com","password":"embroidery23"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new password status = %d, error %#v", resp.StatusCode, body.Error)
	}
}

func TestForgotPasswordUnknownAddress(t *testing.T) {
	env := newCredentialTestServer(t)

	resp, body := env.post(t, "/api/v1/auth/password/forgot", `{"email":"stranger@example.com"}`, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != "ACCOUNT_NOT_FOUND" {
		t.Fatalf("error = %#v", body.Error)
	}
	if env.mailer.count() != 0 {
		t.Fatalf("unknown address must not trigger email, got %d", env.mailer.count())
	}
}

func TestResetWithoutConfirmedCode(t *testing.T) {
	env := newCredentialTestServer(t)
	csrf := registerAccount(t, env, "carder@example.com", "lanolinwax7")
	env.post(t, "/api/v1/auth/logout", "", map[string]string{"X-CSRF-Token": csrf})

	env.post(t, "/api/v1/auth/password/forgot", `{"email":"carder@example.com"}`, nil)

	// skipping the code confirmation step must not allow a reset
	resp, body := env.post(t, "/api/v1/auth/password/reset",
		`{"password":"sneakypass11","confirm_password":"sneakypass11"}`, nil)
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != "RESET_SESSION_EXPIRED" {
		t.Fatalf("error = %#v", body.Error)
	}
}
