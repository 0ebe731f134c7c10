// Package dto contains Data Transfer Objects for API request and response structures
package dto

// AdminLoginRequest represents the admin dashboard login payload
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64" example:"admin"`
	Password string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
}

// AdminLoginResponse represents the successful admin login response
type AdminLoginResponse struct {
	AccessToken string `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType   string `json:"token_type" example:"Bearer"`
	ExpiresIn   int    `json:"expires_in" example:"43200"`
}
