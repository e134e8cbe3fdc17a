package integration

import (
	"net/http"
	"testing"

	"github.com/urbanloom/storefront/internal/domain"
)

func TestRegistrationLifecycle(t *testing.T) {
	env := newCredentialTestServer(t)

	resp, body := env.post(t, "/api/v1/auth/register",
		`{"email":"weaver@example.com","password":"chunkyknit8","confirm_password":"chunkyknit8"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register status = %d, error %#v", resp.StatusCode, body.Error)
	}
	if got := dataField(t, body, "redirect"); got != "/verify-otp" {
		t.Fatalf("register redirect = %q", got)
	}
	if env.mailer.count() != 1 {
		t.Fatalf("expected one code email, got %d", env.mailer.count())
	}

	// the account does not exist until the code is confirmed
	var users int64
	env.db.Model(&domain.User{}).Count(&users)
	if users != 0 {
		t.Fatalf("expected no account before confirmation, found %d", users)
	}

	resp, body = env.get(t, "/api/v1/auth/verify-otp")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stage status = %d", resp.StatusCode)
	}

	code := latestCode(t, env.db, "weaver@example.com")
	resp, body = env.post(t, "/api/v1/auth/verify-otp", `{"code":"`+code+`"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d, error %#v", resp.StatusCode, body.Error)
	}
	if got := dataField(t, body, "redirect"); got != "/" {
		t.Fatalf("verify redirect = %q", got)
	}
	csrf := dataField(t, body, "csrf_token")
	if csrf == "" {
		t.Fatal("expected csrf token after sign-in")
	}

	env.db.Model(&domain.User{}).Count(&users)
	if users != 1 {
		t.Fatalf("expected one account after confirmation, found %d", users)
	}

	resp, body = env.get(t, "/api/v1/me")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d, error %#v", resp.StatusCode, body.Error)
	}

	resp, _ = env.post(t, "/api/v1/auth/logout", "", map[string]string{"X-CSRF-Token": csrf})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	resp, _ = env.get(t, "/api/v1/me")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestRegistrationWrongCodeThenReissue(t *testing.T) {
	env := newCredentialTestServer(t)

	env.post(t, "/api/v1/auth/register",
		`{"email":"spinner@example.com","password":"merinoyarn4","confirm_password":"merinoyarn4"}`, nil)

	resp, body := env.post(t, "/api/v1/auth/verify-otp", `{"code":"000000"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong code status = %d", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != "INVALID_OR_EXPIRED_CODE" {
		t.Fatalf("wrong code error = %#v", body.Error)
	}

	firstCode := latestCode(t, env.db, "spinner@example.com")
	env.post(t, "/api/v1/auth/register",
		`{"email":"spinner@example.com","password":"merinoyarn4","confirm_password":"merinoyarn4"}`, nil)
	freshCode := latestCode(t, env.db, "spinner@example.com")

	// the earlier code is dead once a fresh one is issued
	if freshCode != firstCode {
		resp, body = env.post(t, "/api/v1/auth/verify-otp", `{"code":"`+firstCode+`"}`, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("superseded code status = %d", resp.StatusCode)
		}
	}

	resp, body = env.post(t, "/api/v1/auth/verify-otp", `{"code":"`+freshCode+`"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fresh code status = %d, error %#v", resp.StatusCode, body.Error)
	}
}

func TestVerifyWithoutStagedFlow(t *testing.T) {
	env := newCredentialTestServer(t)

	resp, body := env.post(t, "/api/v1/auth/verify-otp", `{"code":"123456"}`, nil)
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != "SESSION_EXPIRED" {
		t.Fatalf("error = %#v", body.Error)
	}
}

func TestRegisterTakenAddressConflicts(t *testing.T) {
	env := newCredentialTestServer(t)

	env.post(t, "/api/v1/auth/register",
		`{"email":"dyer@example.com","password":"indigovat55","confirm_password":"indigovat55"}`, nil)
	code := latestCode(t, env.db, "dyer@example.com")
	_, verified := env.post(t, "/api/v1/auth/verify-otp", `{"code":"`+code+`"}`, nil)
	csrf := dataField(t, verified, "csrf_token")

	// the browser is signed in now, so the mutating request carries its token
	resp, body := env.post(t, "/api/v1/auth/register",
		`{"email":"dyer@example.com","password":"indigovat55","confirm_password":"indigovat55"}`,
		map[string]string{"X-CSRF-Token": csrf})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != "ALREADY_REGISTERED" {
		t.Fatalf("error = %#v", body.Error)
	}
	if env.mailer.count() != 1 {
		t.Fatalf("taken address must not trigger another email, got %d", env.mailer.count())
	}
}
