package model

import (
	"time"
)

// User is a confirmed account. In the token-carried registration design
// a row only exists once the email code has been confirmed, so Verified
// is true for every row this backend creates. Unverified rows may still
// exist from older deployments that persisted pending registrations;
// they never block a verified registration and are deleted when a
// verified account claims their username or email.
type User struct {
	ID           uint   `gorm:"primarykey" json:"id"`
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"` // stored lowercase
	PasswordHash string `gorm:"not null" json:"-"`
	Verified     bool   `gorm:"default:false" json:"verified"`

	// Password reset intent. At most one active per account; issuing a
	// new one overwrites the previous.
	ResetCode      *string    `gorm:"size:6" json:"-"`
	ResetExpiresAt *time.Time `json:"-"`

	// Email-change intent bound to the candidate address.
	PendingEmail         *string    `json:"-"`
	EmailChangeCode      *string    `gorm:"size:6" json:"-"`
	EmailChangeExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// ClearResetIntent unsets the reset code and expiry (single-use codes).
func (u *User) ClearResetIntent() {
	u.ResetCode = nil
	u.ResetExpiresAt = nil
}

// ClearEmailChangeIntent unsets the pending email, code and expiry.
func (u *User) ClearEmailChangeIntent() {
	u.PendingEmail = nil
	u.EmailChangeCode = nil
	u.EmailChangeExpiresAt = nil
}
