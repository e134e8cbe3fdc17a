package repository

import (
	"errors"
	"time"

	"github.com/urbanloom/storefront/internal/domain"

	"gorm.io/gorm"
)

var ErrOTPNotFound = errors.New("otp record not found")

type OTPRepository interface {
	// Replace purges existing rows for the email and inserts the new record
	// as one transaction. With unverifiedOnly, verified rows survive the
	// purge; either way at most one unverified row exists afterwards.
	Replace(otp *domain.EmailOTP, unverifiedOnly bool) error

	// FindLatestUnverified returns the unverified row with the most recent
	// expiry for the email, or ErrOTPNotFound.
	FindLatestUnverified(email string) (*domain.EmailOTP, error)

	// ConsumeAndPurgeSiblings flips verified on the given row and deletes
	// every other row for the email, as one transaction. The flip is
	// conditional on verified=false, so of two concurrent verifiers only
	// one wins; the loser gets ErrOTPNotFound.
	ConsumeAndPurgeSiblings(id uint, email string, now time.Time) error

	CleanupExpired(now time.Time) (int64, error)
}

type GormOTPRepository struct{ db *gorm.DB }

func NewOTPRepository(db *gorm.DB) OTPRepository { return &GormOTPRepository{db: db} }

func (r *GormOTPRepository) Replace(otp *domain.EmailOTP, unverifiedOnly bool) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		purge := tx.Where("email = ?", otp.Email)
		if unverifiedOnly {
			purge = purge.Where("verified = ?", false)
		}
		if err := purge.Delete(&domain.EmailOTP{}).Error; err != nil {
			return err
		}
		return tx.Create(otp).Error
	})
}

func (r *GormOTPRepository) FindLatestUnverified(email string) (*domain.EmailOTP, error) {
	var otp domain.EmailOTP
	err := r.db.Where("email = ? AND verified = ?", email, false).
		Order("expiry DESC").
		First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOTPNotFound
		}
		return nil, err
	}
	return &otp, nil
}

func (r *GormOTPRepository) ConsumeAndPurgeSiblings(id uint, email string, now time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.EmailOTP{}).
			Where("id = ? AND verified = ?", id, false).
			Update("verified", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrOTPNotFound
		}
		return tx.Where("email = ? AND id <> ?", email, id).
			Delete(&domain.EmailOTP{}).Error
	})
}

func (r *GormOTPRepository) CleanupExpired(now time.Time) (int64, error) {
	res := r.db.Where("expiry <= ?", now).Delete(&domain.EmailOTP{})
	return res.RowsAffected, res.Error
}
