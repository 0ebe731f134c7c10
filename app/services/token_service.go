// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kitkade/kitkade-backend/utils"
)

// Token service error constants
var (
	ErrTokenInvalid      = errors.New("token is invalid")
	ErrTokenExpired      = errors.New("token has expired")
	ErrUnexpectedSubject = errors.New("token subject is not of the expected kind")
	ErrSecretKeyMissing  = errors.New("jwt secret key is not configured")
)

// Token subject kinds
const (
	TokenKindAdmin = "admin"
	TokenKindPhone = "phone"
)

// TokenService issues and validates the two token kinds the API uses: admin
// access tokens and short-lived phone-verification tokens handed out after a
// successful OTP check.
type TokenService interface {
	GenerateAdminToken(username string) (string, error)
	ValidateAdminToken(token string) (string, error)
	GeneratePhoneToken(phone string) (string, error)
	ValidatePhoneToken(token string) (string, error)
}

// TokenServiceImpl implements TokenService with HMAC-signed JWTs
type TokenServiceImpl struct {
	secretKey     []byte
	issuer        string
	adminTokenTTL time.Duration
	phoneTokenTTL time.Duration
}

type tokenClaims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// NewTokenService creates a new token service instance
func NewTokenService(secretKey, issuer string, adminTokenTTL, phoneTokenTTL time.Duration) (TokenService, error) {
	if secretKey == "" {
		return nil, ErrSecretKeyMissing
	}
	if adminTokenTTL <= 0 {
		adminTokenTTL = utils.AdminTokenTTL
	}
	if phoneTokenTTL <= 0 {
		phoneTokenTTL = utils.PhoneTokenTTL
	}

	return &TokenServiceImpl{
		secretKey:     []byte(secretKey),
		issuer:        issuer,
		adminTokenTTL: adminTokenTTL,
		phoneTokenTTL: phoneTokenTTL,
	}, nil
}

// GenerateAdminToken issues an access token for the admin dashboard
func (s *TokenServiceImpl) GenerateAdminToken(username string) (string, error) {
	return s.generate(TokenKindAdmin, username, s.adminTokenTTL)
}

// ValidateAdminToken validates an admin token and returns the username
func (s *TokenServiceImpl) ValidateAdminToken(token string) (string, error) {
	return s.validate(token, TokenKindAdmin)
}

// GeneratePhoneToken issues a token proving ownership of a verified phone
func (s *TokenServiceImpl) GeneratePhoneToken(phone string) (string, error) {
	return s.generate(TokenKindPhone, phone, s.phoneTokenTTL)
}

// ValidatePhoneToken validates a phone-verification token and returns the phone
func (s *TokenServiceImpl) ValidatePhoneToken(token string) (string, error) {
	return s.validate(token, TokenKindPhone)
}

func (s *TokenServiceImpl) generate(kind, subject string, ttl time.Duration) (string, error) {
	now := utils.UTCNow()
	claims := tokenClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

func (s *TokenServiceImpl) validate(tokenString, kind string) (string, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if !token.Valid {
		return "", ErrTokenInvalid
	}
	if claims.Kind != kind {
		return "", ErrUnexpectedSubject
	}

	return claims.Subject, nil
}
