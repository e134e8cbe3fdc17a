package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/urbanloom/storefront/internal/domain"
)

func newOTPRepoForTest(t *testing.T) OTPRepository {
	t.Helper()
	db := newRepositoryDBForTest(t)
	if err := db.AutoMigrate(&domain.EmailOTP{}); err != nil {
		t.Fatalf("migrate email otp: %v", err)
	}
	return NewOTPRepository(db)
}

func TestOTPRepositoryReplaceKeepsSingleUnverifiedRow(t *testing.T) {
	repo := newOTPRepoForTest(t)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		otp := &domain.EmailOTP{
			Email:  "a@x.com",
			Code:   fmt.Sprintf("%06d", 100000+i),
			Expiry: now.Add(time.Duration(i+1) * time.Minute),
		}
		if err := repo.Replace(otp, true); err != nil {
			t.Fatalf("replace %d: %v", i, err)
		}
	}

	latest, err := repo.FindLatestUnverified("a@x.com")
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if latest.Code != "100002" {
		t.Fatalf("expected last issued code to survive, got %q", latest.Code)
	}

	// Only the last row should remain at all.
	if err := repo.ConsumeAndPurgeSiblings(latest.ID, "a@x.com", now); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := repo.FindLatestUnverified("a@x.com"); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("expected ErrOTPNotFound after consume, got %v", err)
	}
}

func TestOTPRepositoryReplaceUnverifiedOnlySparesVerifiedRow(t *testing.T) {
	repo := newOTPRepoForTest(t)
	now := time.Now().UTC()

	first := &domain.EmailOTP{Email: "b@x.com", Code: "111111", Expiry: now.Add(time.Minute)}
	if err := repo.Replace(first, true); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := repo.ConsumeAndPurgeSiblings(first.ID, "b@x.com", now); err != nil {
		t.Fatalf("consume: %v", err)
	}

	second := &domain.EmailOTP{Email: "b@x.com", Code: "222222", Expiry: now.Add(2 * time.Minute)}
	if err := repo.Replace(second, true); err != nil {
		t.Fatalf("replace second: %v", err)
	}

	latest, err := repo.FindLatestUnverified("b@x.com")
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if latest.Code != "222222" {
		t.Fatalf("expected new code selectable, got %q", latest.Code)
	}
}

func TestOTPRepositoryFindLatestUnverifiedPicksNewestExpiry(t *testing.T) {
	repo := newOTPRepoForTest(t)
	db := repo.(*GormOTPRepository).db
	now := time.Now().UTC()

	// Seed divergent rows directly, bypassing Replace, to exercise the
	// selection rule on its own.
	rows := []domain.EmailOTP{
		{Email: "c@x.com", Code: "333333", Expiry: now.Add(1 * time.Minute)},
		{Email: "c@x.com", Code: "444444", Expiry: now.Add(5 * time.Minute)},
		{Email: "c@x.com", Code: "555555", Expiry: now.Add(3 * time.Minute), Verified: true},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed row %d: %v", i, err)
		}
	}

	latest, err := repo.FindLatestUnverified("c@x.com")
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if latest.Code != "444444" {
		t.Fatalf("expected newest unverified row, got %q", latest.Code)
	}
}

func TestOTPRepositoryConsumeIsWinnerGated(t *testing.T) {
	repo := newOTPRepoForTest(t)
	now := time.Now().UTC()

	otp := &domain.EmailOTP{Email: "d@x.com", Code: "666666", Expiry: now.Add(time.Minute)}
	if err := repo.Replace(otp, true); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if err := repo.ConsumeAndPurgeSiblings(otp.ID, "d@x.com", now); err != nil {
		t.Fatalf("first consume should win: %v", err)
	}
	if err := repo.ConsumeAndPurgeSiblings(otp.ID, "d@x.com", now); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("second consume should lose, got %v", err)
	}
}

func TestOTPRepositoryCleanupExpired(t *testing.T) {
	repo := newOTPRepoForTest(t)
	db := repo.(*GormOTPRepository).db
	now := time.Now().UTC()

	stale := domain.EmailOTP{Email: "e@x.com", Code: "777777", Expiry: now.Add(-time.Minute)}
	live := domain.EmailOTP{Email: "f@x.com", Code: "888888", Expiry: now.Add(time.Minute)}
	for _, row := range []*domain.EmailOTP{&stale, &live} {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	removed, err := repo.CleanupExpired(now)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 row removed, got %d", removed)
	}
	if _, err := repo.FindLatestUnverified("f@x.com"); err != nil {
		t.Fatalf("live row should survive cleanup: %v", err)
	}
}
