package domain

import "time"

// EmailOTP is a one-time numeric code mailed to an address to prove
// control of it. Multiple historical rows per email can exist transiently;
// issuance and verification both collapse them back to at most one.
type EmailOTP struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Email    string    `gorm:"size:255;not null;index:idx_email_otps_email" json:"email"`
	Code     string    `gorm:"size:6;not null" json:"-"`
	Expiry   time.Time `gorm:"not null" json:"expiry"`
	Verified bool      `gorm:"not null;default:false" json:"verified"`
}

// Live reports whether the code is still acceptable at the given instant.
// A code is unusable at or after its expiry.
func (o *EmailOTP) Live(now time.Time) bool {
	return !o.Verified && now.Before(o.Expiry)
}
