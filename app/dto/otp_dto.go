// Package dto contains Data Transfer Objects for API request and response structures
package dto

// SendOTPRequest represents the request payload for issuing an OTP. The
// session id is optional; a fresh one is generated when the client has none yet.
type SendOTPRequest struct {
	Phone     string `json:"phone" validate:"required,phone_lk" example:"0771234567"`
	SessionID string `json:"session_id" validate:"omitempty,uuid4" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// SendOTPResponse represents the successful OTP issuance response
type SendOTPResponse struct {
	SessionID   string `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	MaskedPhone string `json:"masked_phone" example:"94771****567"`
	ExpiresIn   int    `json:"expires_in" example:"600"`
	ExpiresAt   string `json:"expires_at" example:"2025-08-01T10:40:00Z"`
}

// VerifyOTPRequest represents the request payload for verifying an OTP
type VerifyOTPRequest struct {
	Phone     string `json:"phone" validate:"required,phone_lk" example:"0771234567"`
	SessionID string `json:"session_id" validate:"required,uuid4" example:"550e8400-e29b-41d4-a716-446655440000"`
	Code      string `json:"code" validate:"required,len=6,numeric" example:"123456"`
}

// VerifyOTPResponse represents the successful OTP verification response
type VerifyOTPResponse struct {
	Phone      string `json:"phone" example:"94771234567"`
	VerifiedAt string `json:"verified_at" example:"2025-08-01T10:30:00Z"`
	PhoneToken string `json:"phone_token,omitempty" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// OTPRateLimitDetail carries retry hints on 429 responses
type OTPRateLimitDetail struct {
	CooldownRemaining int `json:"cooldown_remaining,omitempty" example:"42"`
	AttemptsRemaining int `json:"attempts_remaining,omitempty" example:"2"`
}
