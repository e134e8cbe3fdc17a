package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/urbanloom/storefront/internal/config"
	"github.com/urbanloom/storefront/internal/database"
	"github.com/urbanloom/storefront/internal/domain"
	"github.com/urbanloom/storefront/internal/http/handler"
	"github.com/urbanloom/storefront/internal/http/middleware"
	"github.com/urbanloom/storefront/internal/http/router"
	"github.com/urbanloom/storefront/internal/observability"
	"github.com/urbanloom/storefront/internal/repository"
	"github.com/urbanloom/storefront/internal/security"
	"github.com/urbanloom/storefront/internal/service"
	"github.com/urbanloom/storefront/internal/session"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type capturedMail struct {
	To      string
	Subject string
	Body    string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []capturedMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject string, htmlBody []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, capturedMail{To: to, Subject: subject, Body: string(htmlBody)})
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type serverOptions struct {
	authRateLimitPerMin int
	cfgOverride         func(*config.Config)
}

type testEnv struct {
	baseURL string
	client  *http.Client
	db      *gorm.DB
	mailer  *recordingMailer
}

func newCredentialTestServer(t *testing.T) *testEnv {
	return newCredentialTestServerWithOptions(t, serverOptions{})
}

func newCredentialTestServerWithOptions(t *testing.T, opts serverOptions) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	store := session.NewStore(redisClient, "session", 30*time.Minute)

	cfg := &config.Config{
		OTPValidity:      10 * time.Minute,
		OTPCodeLength:    6,
		ResetTokenSecret: "reset-secret-12345",
		ResetTokenTTL:    15 * time.Minute,
	}
	if opts.cfgOverride != nil {
		opts.cfgOverride(cfg)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	observability.InstrumentRedisClient(redisClient, log)

	userRepo := repository.NewUserRepository(db)
	credRepo := repository.NewLocalCredentialRepository(db)
	otpRepo := repository.NewOTPRepository(db)

	mailer := &recordingMailer{}
	directory := service.NewDirectoryService(cfg, userRepo, credRepo)
	issuer := service.NewOTPIssuer(cfg, otpRepo, mailer, log)
	verifier := service.NewVerificationService(otpRepo, directory, log)
	account := service.NewAccountService(directory, issuer, userRepo, log)

	jwtMgr := security.NewJWTManager("test-issuer", "test-audience", "abcdefghijklmnopqrstuvwxyz123456")
	tokens := service.NewTokenService(jwtMgr, 15*time.Minute, 720*time.Hour)
	cookieMgr := security.NewCookieManager("", false, "lax")
	abuse := service.NewInMemoryAuthAbuseGuard(service.AuthAbusePolicy{
		FreeAttempts: 20,
		BaseDelay:    time.Second,
		Multiplier:   2,
		MaxDelay:     time.Minute,
		ResetWindow:  time.Hour,
	})

	h := handler.NewAccountHandler(account, verifier, tokens, userRepo, cookieMgr, abuse)

	dep := router.Dependencies{
		AccountHandler: h,
		JWTManager:     jwtMgr,
		SessionStore:   store,
		CookieManager:  cookieMgr,
		CORSOrigins:    []string{"http://localhost:3000"},
	}
	if opts.authRateLimitPerMin > 0 {
		dep.AuthRateLimiter = middleware.NewRateLimiter(opts.authRateLimitPerMin, time.Minute).Middleware()
	}

	srv := httptest.NewServer(router.NewRouter(dep))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &testEnv{
		baseURL: srv.URL,
		client:  &http.Client{Jar: jar},
		db:      db,
		mailer:  mailer,
	}
}

func (e *testEnv) post(t *testing.T, path, body string, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.baseURL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return e.do(t, req)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.baseURL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return e.do(t, req)
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, envelope) {
	t.Helper()
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode envelope %q: %v", raw, err)
		}
	}
	return resp, env
}

// latestCode reads the active verification code straight from storage,
// standing in for the email the user would receive.
func latestCode(t *testing.T, db *gorm.DB, email string) string {
	t.Helper()
	var otp domain.EmailOTP
	if err := db.Where("email = ?", email).Order("expiry DESC").First(&otp).Error; err != nil {
		t.Fatalf("load verification code for %s: %v", email, err)
	}
	return otp.Code
}

func dataField(t *testing.T, env envelope, key string) string {
	t.Helper()
	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data %q: %v", env.Data, err)
	}
	v, _ := data[key].(string)
	return v
}
