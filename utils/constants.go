package utils

import (
	"time"
)

// Token and OTP time constants
const (
	// AdminTokenTTL is the time-to-live for admin access tokens (12 hours)
	AdminTokenTTL = 12 * time.Hour

	// PhoneTokenTTL is the time-to-live for phone-verification tokens (30 minutes)
	PhoneTokenTTL = 30 * time.Minute

	// DefaultOTPTTL is the default time-to-live for OTP codes (10 minutes)
	DefaultOTPTTL = 10 * time.Minute

	// DefaultOTPResendCooldown is the minimum wait between OTP sends for one phone
	DefaultOTPResendCooldown = 60 * time.Second

	// DefaultOTPMaxAttempts is the default number of wrong guesses before lockout
	DefaultOTPMaxAttempts = 5

	// DefaultOTPHourlySendCap is the maximum OTP sends per phone per rolling hour
	DefaultOTPHourlySendCap = 3

	// DefaultCancellationWindow is how long after ordering a customer may cancel
	DefaultCancellationWindow = 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// ContextKey is the type for request-scoped context values
type ContextKey string

// Context keys for request metadata
const (
	RequestIDKey ContextKey = "request_id"
	UserAgentKey ContextKey = "user_agent"
	IPAddressKey ContextKey = "ip_address"
	EndpointKey  ContextKey = "endpoint"
)
