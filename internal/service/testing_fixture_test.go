package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
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
	"github.com/urbanloom/storefront/internal/repository"
	"github.com/urbanloom/storefront/internal/session"
)

var serviceDBSeq atomic.Int64

type sentMail struct {
	to      string
	subject string
	body    string
}

type stubMailer struct {
	sent    []sentMail
	failErr error
}

func (m *stubMailer) Send(_ context.Context, to, subject string, htmlBody []byte) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: string(htmlBody)})
	return nil
}

type fixture struct {
	t  *testing.T
	db *gorm.DB

	cfg       *config.Config
	otpRepo   repository.OTPRepository
	userRepo  repository.UserRepository
	credRepo  repository.LocalCredentialRepository
	directory *DirectoryService
	mailer    *stubMailer
	issuer    *OTPIssuer
	verifier  *VerificationService
	account   *AccountService
	redis     *miniredis.Miniredis
	stage     *PendingCredentialStage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", serviceDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(client, "session", 30*time.Minute)

	cfg := &config.Config{
		OTPValidity:      10 * time.Minute,
		OTPCodeLength:    6,
		ResetTokenSecret: "reset-secret-12345",
		ResetTokenTTL:    15 * time.Minute,
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	otpRepo := repository.NewOTPRepository(db)
	userRepo := repository.NewUserRepository(db)
	credRepo := repository.NewLocalCredentialRepository(db)
	directory := NewDirectoryService(cfg, userRepo, credRepo)
	mailer := &stubMailer{}
	issuer := NewOTPIssuer(cfg, otpRepo, mailer, log)

	return &fixture{
		t:         t,
		db:        db,
		cfg:       cfg,
		otpRepo:   otpRepo,
		userRepo:  userRepo,
		credRepo:  credRepo,
		directory: directory,
		mailer:    mailer,
		issuer:    issuer,
		verifier:  NewVerificationService(otpRepo, directory, log),
		account:   NewAccountService(directory, issuer, userRepo, log),
		redis:     mr,
		stage:     NewPendingCredentialStage(store.Session(store.NewID())),
	}
}

func (fx *fixture) freezeTime(at time.Time) {
	fx.issuer.now = func() time.Time { return at }
	fx.verifier.now = func() time.Time { return at }
	fx.account.now = func() time.Time { return at }
}

func (fx *fixture) seedAccount(email, password string) *domain.User {
	fx.t.Helper()
	user, err := fx.directory.Create(email, email, password)
	if err != nil {
		fx.t.Fatalf("seed account %s: %v", email, err)
	}
	return user
}

func (fx *fixture) latestCode(email string) string {
	fx.t.Helper()
	otp, err := fx.otpRepo.FindLatestUnverified(email)
	if err != nil {
		fx.t.Fatalf("latest code for %s: %v", email, err)
	}
	return otp.Code
}
