// Package models contains domain entities and business models for the storefront backend
package models

import (
	"time"

	"github.com/google/uuid"
)

// OTPSession is a single one-time-code session for a phone number. The code
// itself is never stored; only its bcrypt hash is persisted.
type OTPSession struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	SessionID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_otp_session_id" json:"session_id"`
	Phone       string     `gorm:"size:15;not null;index:idx_otp_phone" json:"phone"` // canonical 94XXXXXXXXX
	OTPHash     string     `gorm:"size:255;not null" json:"-"`
	Attempts    int        `gorm:"default:0" json:"attempts"`
	MaxAttempts int        `gorm:"default:5" json:"max_attempts"`
	Verified    bool       `gorm:"default:false;index:idx_otp_verified" json:"verified"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	ExpiresAt   time.Time  `gorm:"not null;index:idx_otp_expires_at" json:"expires_at"`
	CreatedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP;index:idx_otp_created_at" json:"created_at"`
}

func (OTPSession) TableName() string {
	return "otp_sessions"
}

// OTPSessionFilter represents filter criteria for OTP session queries
type OTPSessionFilter struct {
	ID            *uint
	SessionID     *uuid.UUID
	Phone         *string
	Verified      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	ExpiresAfter  *time.Time
	IsActive      *bool // unverified and unexpired
}

func (s *OTPSession) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// AttemptsRemaining is how many wrong guesses are left, floored at zero.
func (s *OTPSession) AttemptsRemaining() int {
	remaining := s.MaxAttempts - s.Attempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *OTPSession) CanAttempt() bool {
	return s.Attempts < s.MaxAttempts && !s.IsExpired() && !s.Verified
}
