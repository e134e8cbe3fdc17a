package di

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/urbanloom/storefront/internal/config"
	"github.com/urbanloom/storefront/internal/database"
	"github.com/urbanloom/storefront/internal/service"
)

func newDIUnitTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:di_test?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newDIUnitTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestProvideHTTPServer(t *testing.T) {
	cfg := &config.Config{HTTPPort: "9090"}
	srv := provideHTTPServer(cfg, http.NewServeMux())
	if srv.Addr != ":9090" {
		t.Fatalf("expected :9090, got %s", srv.Addr)
	}
	if srv.ReadHeaderTimeout == 0 {
		t.Fatal("expected non-zero read header timeout")
	}
}

func TestProvideMailerLogDriver(t *testing.T) {
	cfg := &config.Config{EmailDriver: "log"}
	m, err := provideMailer(cfg, slog.Default())
	if err != nil {
		t.Fatalf("provideMailer: %v", err)
	}
	if _, ok := m.(*service.DevMailer); !ok {
		t.Fatalf("expected DevMailer, got %T", m)
	}
}

func TestProvideReadinessProbeRunner(t *testing.T) {
	cfg := &config.Config{ReadinessProbeTimeout: time.Second}
	runner := provideReadinessProbeRunner(cfg, newDIUnitTestDB(t), newDIUnitTestRedis(t))
	ready, results := runner.Ready(context.Background())
	if !ready {
		t.Fatalf("expected ready, got results %+v", results)
	}
	if len(results) != 2 {
		t.Fatalf("expected db and redis checks, got %d", len(results))
	}
}

func TestProvideRouterDependencies(t *testing.T) {
	cfg := &config.Config{
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		OTELMetricsEnabled: true,
	}
	jwtMgr := provideJWTManager(&config.Config{
		JWTIssuer:       "test-issuer",
		JWTAudience:     "test-audience",
		JWTAccessSecret: "0123456789abcdef0123456789abcdef",
	})
	cookieMgr := provideCookieManager(&config.Config{CookieSameSite: "lax"})
	store := provideSessionStore(&config.Config{SessionIdleTTL: 30 * time.Minute}, newDIUnitTestRedis(t))

	dep := provideRouterDependencies(nil, jwtMgr, store, cookieMgr, nil, nil, nil, cfg)
	if !dep.EnableOTelHTTP {
		t.Fatal("expected otel http enabled")
	}
	if len(dep.CORSOrigins) != 1 {
		t.Fatalf("unexpected cors origins: %v", dep.CORSOrigins)
	}
	if dep.SessionStore != store || dep.JWTManager != jwtMgr {
		t.Fatal("dependencies not threaded through")
	}
}
