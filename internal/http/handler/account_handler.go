package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/urbanloom/storefront/internal/domain"
	"github.com/urbanloom/storefront/internal/http/middleware"
	"github.com/urbanloom/storefront/internal/http/response"
	"github.com/urbanloom/storefront/internal/observability"
	"github.com/urbanloom/storefront/internal/repository"
	"github.com/urbanloom/storefront/internal/security"
	"github.com/urbanloom/storefront/internal/service"
)

// AccountHandler exposes the OTP-gated credential workflows: register,
// forgot password, code confirmation, reset finalization, plus plain
// login/logout and the profile endpoint.
type AccountHandler struct {
	flows     service.AccountFlows
	verifier  service.Verifier
	tokens    service.SignInIssuer
	userRepo  repository.UserRepository
	cookieMgr *security.CookieManager
	abuse     service.AuthAbuseGuard
}

func NewAccountHandler(flows service.AccountFlows, verifier service.Verifier, tokens service.SignInIssuer, userRepo repository.UserRepository, cookieMgr *security.CookieManager, abuse service.AuthAbuseGuard) *AccountHandler {
	if abuse == nil {
		abuse = service.NewNoopAuthAbuseGuard()
	}
	return &AccountHandler{flows: flows, verifier: verifier, tokens: tokens, userRepo: userRepo, cookieMgr: cookieMgr, abuse: abuse}
}

// cooledDown checks the abuse guard and writes a 429 when the caller is
// still in a cooldown window. Guard backend errors fail open.
func (h *AccountHandler) cooledDown(w http.ResponseWriter, r *http.Request, scope service.AuthAbuseScope, identity string) bool {
	retry, err := h.abuse.Check(r.Context(), scope, identity, clientIP(r))
	if err != nil {
		observability.Audit(r, "auth.abuse_guard.unavailable", "scope", string(scope), "error", err.Error())
		return false
	}
	if retry <= 0 {
		return false
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second).Seconds())))
	response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "Too many attempts. Please wait before retrying.", nil)
	return true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "register", status, time.Since(start))
	}()

	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if !decodeBody(w, r, &req) {
		status = "failure"
		return
	}

	if h.cooledDown(w, r, service.AuthAbuseScopeForgot, req.Email) {
		status = "failure"
		return
	}

	stage, ok := h.stage(w, r)
	if !ok {
		status = "failure"
		return
	}

	if err := h.flows.BeginRegistration(r.Context(), stage, req.Email, req.Password, req.ConfirmPassword); err != nil {
		status = "failure"
		observability.Audit(r, "auth.register.rejected", "reason", flowErrorReason(err))
		h.writeFlowError(w, r, err, false)
		return
	}

	// every send counts toward the issuance cooldown
	_, _ = h.abuse.RegisterFailure(r.Context(), service.AuthAbuseScopeForgot, req.Email, clientIP(r))
	observability.Audit(r, "auth.register.code_sent")
	response.JSON(w, r, http.StatusOK, map[string]any{"redirect": "/verify-otp"})
}

func (h *AccountHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "forgot_password", status, time.Since(start))
	}()

	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		status = "failure"
		return
	}

	if h.cooledDown(w, r, service.AuthAbuseScopeForgot, req.Email) {
		status = "failure"
		return
	}

	stage, ok := h.stage(w, r)
	if !ok {
		status = "failure"
		return
	}

	if err := h.flows.BeginReset(r.Context(), stage, req.Email); err != nil {
		status = "failure"
		observability.Audit(r, "auth.password_reset.rejected", "reason", flowErrorReason(err))
		h.writeFlowError(w, r, err, false)
		return
	}

	_, _ = h.abuse.RegisterFailure(r.Context(), service.AuthAbuseScopeForgot, req.Email, clientIP(r))
	observability.Audit(r, "auth.password_reset.code_sent")
	response.JSON(w, r, http.StatusOK, map[string]any{"redirect": "/verify-otp?mode=reset"})
}

// VerifyOTPStatus tells a returning browser whether a staged flow is
// still alive, so stale tabs land back on the start of the flow.
func (h *AccountHandler) VerifyOTPStatus(w http.ResponseWriter, r *http.Request) {
	stage, ok := h.stage(w, r)
	if !ok {
		return
	}

	alive, mode, err := h.verifier.StageAlive(r.Context(), stage)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "session lookup failed", nil)
		return
	}
	if !alive {
		response.Error(w, r, http.StatusGone, "SESSION_EXPIRED", "Session expired. Please start again.", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"active": true, "mode": string(mode)})
}

func (h *AccountHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "verify_otp", status, time.Since(start))
	}()

	var req struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		status = "failure"
		return
	}

	stage, ok := h.stage(w, r)
	if !ok {
		status = "failure"
		return
	}
	if h.cooledDown(w, r, service.AuthAbuseScopeVerify, stage.SessionID()) {
		status = "failure"
		return
	}

	mode, err := h.verifier.ResolveMode(r.Context(), stage, r.URL.Query().Get("mode"))
	if err != nil {
		status = "failure"
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "session lookup failed", nil)
		return
	}

	outcome, err := h.verifier.Verify(r.Context(), stage, mode, req.Code)
	if err != nil {
		status = "failure"
		if errors.Is(err, service.ErrInvalidOrExpiredCode) {
			_, _ = h.abuse.RegisterFailure(r.Context(), service.AuthAbuseScopeVerify, stage.SessionID(), clientIP(r))
		}
		observability.Audit(r, "auth.otp.rejected", "mode", string(mode), "reason", flowErrorReason(err))
		h.writeFlowError(w, r, err, true)
		return
	}
	_ = h.abuse.Reset(r.Context(), service.AuthAbuseScopeVerify, stage.SessionID(), clientIP(r))

	if outcome.Mode == service.ModeReset {
		observability.Audit(r, "auth.otp.confirmed", "mode", "reset")
		response.JSON(w, r, http.StatusOK, map[string]any{"redirect": "/reset-password"})
		return
	}

	result, err := h.signIn(w, r, outcome.User, false)
	if err != nil {
		status = "failure"
		return
	}
	observability.Audit(r, "auth.otp.confirmed", "mode", "registration", "user_id", outcome.User.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"redirect":   "/",
		"user":       outcome.User,
		"csrf_token": result.CSRFToken,
		"expires_at": result.ExpiresAt,
	})
}

func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "reset_password", status, time.Since(start))
	}()

	var req struct {
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if !decodeBody(w, r, &req) {
		status = "failure"
		return
	}
	if req.Password != req.ConfirmPassword {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "VALIDATION", "validation failed",
			map[string]string{"confirm_password": "the password and confirmation password do not match"})
		return
	}

	stage, ok := h.stage(w, r)
	if !ok {
		status = "failure"
		return
	}

	user, err := h.verifier.ResetPassword(r.Context(), stage, req.Password)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.password_reset.rejected", "reason", flowErrorReason(err))
		h.writeFlowError(w, r, err, true)
		return
	}

	result, err := h.signIn(w, r, user, false)
	if err != nil {
		status = "failure"
		return
	}
	observability.Audit(r, "auth.password_reset.completed", "user_id", user.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"redirect":   "/",
		"user":       user,
		"csrf_token": result.CSRFToken,
		"expires_at": result.ExpiresAt,
	})
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", status, time.Since(start))
	}()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Remember bool   `json:"remember"`
	}
	if !decodeBody(w, r, &req) {
		status = "failure"
		return
	}

	if h.cooledDown(w, r, service.AuthAbuseScopeLogin, req.Email) {
		status = "failure"
		return
	}

	user, err := h.flows.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		status = "failure"
		if errors.Is(err, service.ErrInvalidCredentials) {
			_, _ = h.abuse.RegisterFailure(r.Context(), service.AuthAbuseScopeLogin, req.Email, clientIP(r))
			observability.Audit(r, "auth.login.failed", "reason", "invalid_credentials")
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "login failed", nil)
		return
	}
	_ = h.abuse.Reset(r.Context(), service.AuthAbuseScopeLogin, req.Email, clientIP(r))

	result, err := h.signIn(w, r, user, req.Remember)
	if err != nil {
		status = "failure"
		return
	}
	observability.Audit(r, "auth.login.success", "user_id", user.ID, "persistent", req.Remember)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":       user,
		"csrf_token": result.CSRFToken,
		"expires_at": result.ExpiresAt,
	})
}

func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "logout", status, time.Since(start))
	}()

	if sess, ok := middleware.SessionFromContext(r.Context()); ok {
		if err := sess.Destroy(r.Context()); err != nil {
			observability.Audit(r, "auth.logout.session_destroy_failed", "error", err.Error())
		}
	}
	h.cookieMgr.ClearAuthCookies(w)
	observability.Audit(r, "auth.logout.success")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid subject", nil)
		return
	}
	user, err := h.userRepo.FindByID(uint(userID))
	if err != nil {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"user": user})
}

func (h *AccountHandler) stage(w http.ResponseWriter, r *http.Request) (*service.PendingCredentialStage, bool) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "session unavailable", nil)
		return nil, false
	}
	return service.NewPendingCredentialStage(sess), true
}

func (h *AccountHandler) signIn(w http.ResponseWriter, r *http.Request, user *domain.User, persistent bool) (*service.SignInResult, error) {
	result, err := h.tokens.SignIn(user, persistent)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to issue tokens", nil)
		return nil, err
	}
	h.cookieMgr.SetAuthCookies(w, result.AccessToken, result.CSRFToken, result.TTL)
	return result, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return false
	}
	return true
}

// writeFlowError maps workflow errors onto the response taxonomy. The
// finalize flag splits field errors: request validation versus directory
// rejection during finalization.
func (h *AccountHandler) writeFlowError(w http.ResponseWriter, r *http.Request, err error, finalize bool) {
	if fe, ok := service.AsFieldErrors(err); ok {
		if finalize {
			response.Error(w, r, http.StatusUnprocessableEntity, "DIRECTORY_REJECTED", "account directory rejected the request", fe)
			return
		}
		response.Error(w, r, http.StatusBadRequest, "VALIDATION", "validation failed", fe)
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		response.Error(w, r, http.StatusBadRequest, "INVALID_OR_EXPIRED_CODE", "Invalid or expired OTP", nil)
	case errors.Is(err, service.ErrAlreadyRegistered):
		response.Error(w, r, http.StatusConflict, "ALREADY_REGISTERED", "This email is already registered. Please log in or reset your password.", nil)
	case errors.Is(err, service.ErrAccountNotFound):
		response.Error(w, r, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "No account found for that email.", nil)
	case errors.Is(err, service.ErrSessionExpired):
		response.Error(w, r, http.StatusGone, "SESSION_EXPIRED", "Session expired. Please start again.", nil)
	case errors.Is(err, service.ErrCredentialSessionExpired):
		response.Error(w, r, http.StatusGone, "CREDENTIAL_SESSION_EXPIRED", "Session expired. Please register again.", nil)
	case errors.Is(err, service.ErrResetSessionExpired), errors.Is(err, service.ErrInvalidResetToken):
		response.Error(w, r, http.StatusGone, "RESET_SESSION_EXPIRED", "Reset session expired. Please start again.", nil)
	case errors.Is(err, service.ErrDeliveryFailed):
		response.Error(w, r, http.StatusBadGateway, "DELIVERY_FAILED", "Could not send the verification code. Please try again.", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}

func flowErrorReason(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		return "invalid_or_expired_code"
	case errors.Is(err, service.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, service.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, service.ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, service.ErrCredentialSessionExpired):
		return "credential_session_expired"
	case errors.Is(err, service.ErrResetSessionExpired):
		return "reset_session_expired"
	case errors.Is(err, service.ErrDeliveryFailed):
		return "delivery_failed"
	default:
		if _, ok := service.AsFieldErrors(err); ok {
			return "validation"
		}
		return "internal"
	}
}
