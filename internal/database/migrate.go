package database

import (
	"github.com/urbanloom/storefront/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.LocalCredential{},
		&domain.EmailOTP{},
	)
}
