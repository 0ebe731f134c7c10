// Package businessflow contains the core business logic and use cases for OTP and order workflows
package businessflow

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/kitkade/kitkade-backend/app/dto"
	"github.com/kitkade/kitkade-backend/app/services"
	"github.com/kitkade/kitkade-backend/models"
	"github.com/kitkade/kitkade-backend/repository"
	"github.com/kitkade/kitkade-backend/utils"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthFlow handles dashboard authentication
type AdminAuthFlow interface {
	Login(ctx context.Context, request *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error)
}

// AdminAuthConfig holds the single admin credential pair. The password is
// stored as a bcrypt hash in configuration, never in the database.
type AdminAuthConfig struct {
	Username     string
	PasswordHash string
	TokenTTL     time.Duration
}

// AdminAuthFlowImpl implements the admin authentication flow
type AdminAuthFlowImpl struct {
	auditRepo    repository.AuditLogRepository
	tokenService services.TokenService
	cfg          AdminAuthConfig
}

// NewAdminAuthFlow creates a new admin auth flow instance
func NewAdminAuthFlow(
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	cfg AdminAuthConfig,
) AdminAuthFlow {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = utils.AdminTokenTTL
	}

	return &AdminAuthFlowImpl{
		auditRepo:    auditRepo,
		tokenService: tokenService,
		cfg:          cfg,
	}
}

// Login checks the credentials against configuration and issues an admin token
func (af *AdminAuthFlowImpl) Login(ctx context.Context, request *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error) {
	usernameOK := subtle.ConstantTimeCompare([]byte(request.Username), []byte(af.cfg.Username)) == 1
	passwordErr := bcrypt.CompareHashAndPassword([]byte(af.cfg.PasswordHash), []byte(request.Password))

	if !usernameOK || passwordErr != nil {
		errMsg := "invalid credentials"
		_ = af.logAdminAudit(ctx, models.AuditActionAdminLoginFailed, fmt.Sprintf("Admin login failed for %q", request.Username), false, &errMsg, metadata)
		return nil, NewBusinessError("ADMIN_CREDENTIALS_INVALID", "Invalid credentials", ErrAdminCredentialsInvalid)
	}

	token, err := af.tokenService.GenerateAdminToken(request.Username)
	if err != nil {
		return nil, NewBusinessError("ADMIN_LOGIN_FAILED", "Failed to issue token", err)
	}

	_ = af.logAdminAudit(ctx, models.AuditActionAdminLogin, "Admin logged in", true, nil, metadata)

	return &dto.AdminLoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(af.cfg.TokenTTL.Seconds()),
	}, nil
}

func (af *AdminAuthFlowImpl) logAdminAudit(ctx context.Context, action, description string, success bool, errMsg *string, metadata *ClientMetadata) error {
	log := &models.AuditLog{
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		ErrorMessage: errMsg,
		CreatedAt:    utils.UTCNow(),
	}
	if metadata != nil {
		if metadata.IPAddress != "" {
			log.IPAddress = &metadata.IPAddress
		}
		if metadata.UserAgent != "" {
			log.UserAgent = &metadata.UserAgent
		}
		if metadata.RequestID != "" {
			log.RequestID = &metadata.RequestID
		}
	}

	if err := af.auditRepo.Save(ctx, log); err != nil {
		return fmt.Errorf("failed to save audit log: %w", err)
	}
	return nil
}
