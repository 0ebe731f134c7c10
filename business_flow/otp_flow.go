// Package businessflow contains the core business logic and use cases for OTP and order workflows
package businessflow

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/kitkade/kitkade-backend/app/dto"
	"github.com/kitkade/kitkade-backend/app/services"
	"github.com/kitkade/kitkade-backend/models"
	"github.com/kitkade/kitkade-backend/repository"
	"github.com/kitkade/kitkade-backend/utils"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// OTPFlow handles issuing and verifying one-time codes for checkout
type OTPFlow interface {
	SendOTP(ctx context.Context, request *dto.SendOTPRequest, metadata *ClientMetadata) (*dto.SendOTPResponse, error)
	VerifyOTP(ctx context.Context, request *dto.VerifyOTPRequest, metadata *ClientMetadata) (*dto.VerifyOTPResponse, error)
}

// OTPConfig holds the tunable limits of the OTP flow
type OTPConfig struct {
	TTL            time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
	HourlySendCap  int
}

// DefaultOTPConfig returns the production defaults
func DefaultOTPConfig() OTPConfig {
	return OTPConfig{
		TTL:            utils.DefaultOTPTTL,
		ResendCooldown: utils.DefaultOTPResendCooldown,
		MaxAttempts:    utils.DefaultOTPMaxAttempts,
		HourlySendCap:  utils.DefaultOTPHourlySendCap,
	}
}

// OTPFlowImpl implements the OTP business flow
type OTPFlowImpl struct {
	otpRepo      repository.OTPSessionRepository
	customerRepo repository.CustomerRepository
	auditRepo    repository.AuditLogRepository
	smsService   services.SMSService
	tokenService services.TokenService
	cfg          OTPConfig
	db           *gorm.DB
	rc           *redis.Client
}

// NewOTPFlow creates a new OTP flow instance. rc may be nil; the database is
// authoritative for rate limits and redis only serves as a fast path.
func NewOTPFlow(
	otpRepo repository.OTPSessionRepository,
	customerRepo repository.CustomerRepository,
	auditRepo repository.AuditLogRepository,
	smsService services.SMSService,
	tokenService services.TokenService,
	cfg OTPConfig,
	db *gorm.DB,
	rc *redis.Client,
) OTPFlow {
	if cfg.TTL <= 0 {
		cfg.TTL = utils.DefaultOTPTTL
	}
	if cfg.ResendCooldown <= 0 {
		cfg.ResendCooldown = utils.DefaultOTPResendCooldown
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = utils.DefaultOTPMaxAttempts
	}
	if cfg.HourlySendCap <= 0 {
		cfg.HourlySendCap = utils.DefaultOTPHourlySendCap
	}

	return &OTPFlowImpl{
		otpRepo:      otpRepo,
		customerRepo: customerRepo,
		auditRepo:    auditRepo,
		smsService:   smsService,
		tokenService: tokenService,
		cfg:          cfg,
		db:           db,
		rc:           rc,
	}
}

// SendOTP issues a fresh code for a phone/session pair and dispatches it via SMS
func (of *OTPFlowImpl) SendOTP(ctx context.Context, request *dto.SendOTPRequest, metadata *ClientMetadata) (*dto.SendOTPResponse, error) {
	phone, err := utils.NormalizePhone(request.Phone)
	if err != nil {
		return nil, NewBusinessError("INVALID_PHONE", "Phone number format is invalid", ErrInvalidPhone)
	}

	sessionID := uuid.New()
	if request.SessionID != "" {
		sessionID, err = uuid.Parse(request.SessionID)
		if err != nil {
			return nil, NewBusinessError("INVALID_SESSION_ID", "Session ID is not a valid UUID", err)
		}
	}

	if err := of.checkSendLimits(ctx, phone); err != nil {
		return nil, NewBusinessError("OTP_RATE_LIMITED", "OTP send limits reached", err)
	}

	code, err := GenerateOTP()
	if err != nil {
		return nil, NewBusinessError("OTP_GENERATION_FAILED", "Failed to generate OTP", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewBusinessError("OTP_GENERATION_FAILED", "Failed to hash OTP", err)
	}

	now := utils.UTCNow()
	session := &models.OTPSession{
		SessionID:   sessionID,
		Phone:       phone,
		OTPHash:     string(hash),
		MaxAttempts: of.cfg.MaxAttempts,
		ExpiresAt:   now.Add(of.cfg.TTL),
		CreatedAt:   now,
	}

	err = repository.WithTransaction(ctx, of.db, func(txCtx context.Context) error {
		return of.otpRepo.Save(txCtx, session)
	})
	if err != nil {
		return nil, NewBusinessError("OTP_SEND_FAILED", "Failed to persist OTP session", err)
	}

	message := fmt.Sprintf("Your KitKade verification code is %s. It expires in %d minutes.", code, int(of.cfg.TTL.Minutes()))
	if err := of.smsService.SendOTP(ctx, phone, message); err != nil {
		// The session must not survive a failed dispatch, otherwise the
		// cooldown would lock the customer out without a code in hand.
		_ = of.otpRepo.Delete(ctx, session.ID)

		errMsg := fmt.Sprintf("SMS dispatch failed: %s", err.Error())
		_ = of.logOTPAudit(ctx, phone, models.AuditActionOTPSendFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("SMS_DISPATCH_FAILED", "Failed to send OTP", ErrSMSDispatchFailed)
	}

	of.setCooldownMarker(ctx, phone)

	msg := fmt.Sprintf("OTP sent to %s", utils.MaskPhone(phone))
	_ = of.logOTPAudit(ctx, phone, models.AuditActionOTPSent, msg, true, nil, metadata)

	return &dto.SendOTPResponse{
		SessionID:   sessionID.String(),
		MaskedPhone: utils.MaskPhone(phone),
		ExpiresIn:   int(of.cfg.TTL.Seconds()),
		ExpiresAt:   session.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// VerifyOTP checks a submitted code against the latest active session for the
// phone/session pair
func (of *OTPFlowImpl) VerifyOTP(ctx context.Context, request *dto.VerifyOTPRequest, metadata *ClientMetadata) (*dto.VerifyOTPResponse, error) {
	phone, err := utils.NormalizePhone(request.Phone)
	if err != nil {
		return nil, NewBusinessError("INVALID_PHONE", "Phone number format is invalid", ErrInvalidPhone)
	}

	sessionID, err := uuid.Parse(request.SessionID)
	if err != nil {
		return nil, NewBusinessError("INVALID_SESSION_ID", "Session ID is not a valid UUID", err)
	}

	session, err := of.otpRepo.LatestActive(ctx, phone, sessionID)
	if err != nil {
		return nil, NewBusinessError("OTP_VERIFY_FAILED", "Failed to look up OTP session", err)
	}
	if session == nil {
		errMsg := "no active OTP session"
		_ = of.logOTPAudit(ctx, phone, models.AuditActionOTPVerifyFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("OTP_NOT_FOUND", "No active OTP found", ErrOTPNotFoundOrExpired)
	}

	if !session.CanAttempt() {
		errMsg := "attempts exceeded"
		_ = of.logOTPAudit(ctx, phone, models.AuditActionOTPVerifyFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("OTP_ATTEMPTS_EXCEEDED", "Maximum verification attempts exceeded", ErrOTPAttemptsExceeded)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(session.OTPHash), []byte(request.Code)); err != nil {
		// The attempt counter only moves on a wrong guess, and the guard in
		// the update keeps it from racing past the cap.
		updated, incErr := of.otpRepo.IncrementAttempts(ctx, session.ID)
		if incErr != nil {
			return nil, NewBusinessError("OTP_VERIFY_FAILED", "Failed to record attempt", incErr)
		}

		errMsg := "invalid code"
		_ = of.logOTPAudit(ctx, phone, models.AuditActionOTPVerifyFailed, errMsg, false, &errMsg, metadata)

		// A mismatch always reports InvalidCode, even when it burns the last
		// attempt; only subsequent attempts see AttemptsExceeded via the
		// CanAttempt guard above.
		remaining := 0
		if updated != nil {
			remaining = updated.AttemptsRemaining()
		}
		return nil, NewBusinessError("INVALID_OTP_CODE", "Invalid OTP code", &AttemptsError{Remaining: remaining})
	}

	verifiedAt := utils.UTCNow()
	err = repository.WithTransaction(ctx, of.db, func(txCtx context.Context) error {
		if err := of.otpRepo.MarkVerified(txCtx, session.ID, verifiedAt); err != nil {
			return err
		}

		customer, err := of.customerRepo.ByPhone(txCtx, phone)
		if err != nil {
			return err
		}
		if customer != nil && !utils.IsTrue(customer.IsPhoneVerified) {
			return of.customerRepo.MarkPhoneVerified(txCtx, customer.ID, verifiedAt)
		}
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("OTP_VERIFY_FAILED", "Failed to mark OTP verified", err)
	}

	phoneToken, err := of.tokenService.GeneratePhoneToken(phone)
	if err != nil {
		return nil, NewBusinessError("OTP_VERIFY_FAILED", "Failed to issue phone token", err)
	}

	msg := fmt.Sprintf("OTP verified for %s", utils.MaskPhone(phone))
	_ = of.logOTPAudit(ctx, phone, models.AuditActionOTPVerified, msg, true, nil, metadata)

	return &dto.VerifyOTPResponse{
		Phone:      phone,
		VerifiedAt: verifiedAt.Format(time.RFC3339),
		PhoneToken: phoneToken,
	}, nil
}

// checkSendLimits enforces the resend cooldown and the hourly cap. Redis is
// only a shortcut; the database decides.
func (of *OTPFlowImpl) checkSendLimits(ctx context.Context, phone string) error {
	if of.rc != nil {
		ttl, err := of.rc.TTL(ctx, cooldownKey(phone)).Result()
		if err == nil && ttl > 0 {
			return &CooldownError{Remaining: ceilSeconds(ttl)}
		}
	}

	latest, err := of.otpRepo.LatestByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if latest != nil {
		elapsed := utils.UTCNow().Sub(latest.CreatedAt)
		if elapsed < of.cfg.ResendCooldown {
			return &CooldownError{Remaining: ceilSeconds(of.cfg.ResendCooldown - elapsed)}
		}
	}

	count, err := of.otpRepo.CountCreatedSince(ctx, phone, utils.UTCNow().Add(-time.Hour))
	if err != nil {
		return err
	}
	if count >= int64(of.cfg.HourlySendCap) {
		return ErrOTPHourlyCapExceeded
	}

	return nil
}

func (of *OTPFlowImpl) setCooldownMarker(ctx context.Context, phone string) {
	if of.rc == nil {
		return
	}
	_ = of.rc.Set(ctx, cooldownKey(phone), "1", of.cfg.ResendCooldown).Err()
}

func cooldownKey(phone string) string {
	return fmt.Sprintf("otp:cooldown:%s", phone)
}

// ceilSeconds rounds a duration up to whole seconds so a cooldown never
// reports zero while it is still in force.
func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// GenerateOTP returns a secure 6-digit numeric code in [100000, 999999]
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func (of *OTPFlowImpl) logOTPAudit(ctx context.Context, phone, action, description string, success bool, errMsg *string, metadata *ClientMetadata) error {
	var customerID *uint
	if customer, err := of.customerRepo.ByPhone(ctx, phone); err == nil && customer != nil {
		customerID = &customer.ID
	}

	meta, _ := json.Marshal(map[string]string{"phone": utils.MaskPhone(phone)})

	log := &models.AuditLog{
		CustomerID:   customerID,
		Action:       action,
		Description:  &description,
		Metadata:     meta,
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

	if err := of.auditRepo.Save(ctx, log); err != nil {
		return fmt.Errorf("failed to save audit log: %w", err)
	}
	return nil
}
