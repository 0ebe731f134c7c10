// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/kitkade/kitkade-backend/app/dto"
	"github.com/kitkade/kitkade-backend/app/middleware"
	businessflow "github.com/kitkade/kitkade-backend/business_flow"
	"github.com/kitkade/kitkade-backend/utils"
)

// OTPHandlerInterface defines the contract for OTP handlers
type OTPHandlerInterface interface {
	SendOTP(c fiber.Ctx) error
	VerifyOTP(c fiber.Ctx) error
}

// OTPHandler handles OTP-related HTTP requests
type OTPHandler struct {
	otpFlow   businessflow.OTPFlow
	validator *validator.Validate
}

// NewOTPHandler creates a new OTP handler
func NewOTPHandler(otpFlow businessflow.OTPFlow) *OTPHandler {
	handler := &OTPHandler{
		otpFlow:   otpFlow,
		validator: validator.New(),
	}

	registerCustomValidations(handler.validator)

	return handler
}

func (h *OTPHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: &dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *OTPHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SendOTP issues a one-time code for checkout phone verification
// @Summary Send OTP
// @Description Send a verification code to a Sri Lankan mobile number
// @Tags OTP
// @Accept json
// @Produce json
// @Param request body dto.SendOTPRequest true "Phone and checkout session"
// @Success 200 {object} dto.APIResponse{data=dto.SendOTPResponse} "OTP sent"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 429 {object} dto.APIResponse "Rate limited"
// @Failure 502 {object} dto.APIResponse "SMS gateway failure"
// @Router /api/v1/otp/send [post]
func (h *OTPHandler) SendOTP(c fiber.Ctx) error {
	var req dto.SendOTPRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(c.Get(businessflow.RequestIDKey))

	result, err := h.otpFlow.SendOTP(h.createRequestContext(c, "/api/v1/otp/send"), &req, metadata)
	if err != nil {
		if businessflow.IsInvalidPhone(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Phone number format is invalid", "INVALID_PHONE", nil)
		}
		if businessflow.IsOTPCooldownActive(err) {
			middleware.RecordOTPSend("rate_limited")
			var cooldown *businessflow.CooldownError
			detail := dto.OTPRateLimitDetail{}
			if errors.As(err, &cooldown) {
				detail.CooldownRemaining = cooldown.Remaining
			}
			return h.ErrorResponse(c, fiber.StatusTooManyRequests, "An OTP was sent recently", "OTP_COOLDOWN_ACTIVE", detail)
		}
		if businessflow.IsOTPHourlyCapExceeded(err) {
			middleware.RecordOTPSend("rate_limited")
			return h.ErrorResponse(c, fiber.StatusTooManyRequests, "Too many OTP requests for this number", "OTP_HOURLY_CAP_EXCEEDED", nil)
		}
		if businessflow.IsSMSDispatchFailed(err) {
			middleware.RecordOTPSend("dispatch_failed")
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Failed to send OTP, try again", "SMS_DISPATCH_FAILED", nil)
		}

		middleware.RecordOTPSend("error")
		log.Println("Send OTP failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to send OTP", "OTP_SEND_FAILED", nil)
	}

	middleware.RecordOTPSend("sent")
	return h.SuccessResponse(c, fiber.StatusOK, "OTP sent", result)
}

// VerifyOTP checks a submitted code
// @Summary Verify OTP
// @Description Verify the code sent to the customer's mobile number
// @Tags OTP
// @Accept json
// @Produce json
// @Param request body dto.VerifyOTPRequest true "Phone, session and code"
// @Success 200 {object} dto.APIResponse{data=dto.VerifyOTPResponse} "OTP verified"
// @Failure 400 {object} dto.APIResponse "Invalid code"
// @Failure 404 {object} dto.APIResponse "No active OTP"
// @Failure 429 {object} dto.APIResponse "Attempts exceeded"
// @Router /api/v1/otp/verify [post]
func (h *OTPHandler) VerifyOTP(c fiber.Ctx) error {
	var req dto.VerifyOTPRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(c.Get(businessflow.RequestIDKey))

	result, err := h.otpFlow.VerifyOTP(h.createRequestContext(c, "/api/v1/otp/verify"), &req, metadata)
	if err != nil {
		if businessflow.IsInvalidPhone(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Phone number format is invalid", "INVALID_PHONE", nil)
		}
		if businessflow.IsOTPNotFoundOrExpired(err) {
			middleware.RecordOTPVerification("not_found")
			return h.ErrorResponse(c, fiber.StatusNotFound, "No active OTP found for this number", "OTP_NOT_FOUND", nil)
		}
		if businessflow.IsOTPAttemptsExceeded(err) {
			middleware.RecordOTPVerification("attempts_exceeded")
			return h.ErrorResponse(c, fiber.StatusTooManyRequests, "Maximum verification attempts exceeded", "OTP_ATTEMPTS_EXCEEDED", nil)
		}
		if businessflow.IsInvalidOTPCode(err) {
			middleware.RecordOTPVerification("invalid_code")
			var attempts *businessflow.AttemptsError
			detail := dto.OTPRateLimitDetail{}
			if errors.As(err, &attempts) {
				detail.AttemptsRemaining = attempts.Remaining
			}
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid OTP code", "INVALID_OTP_CODE", detail)
		}

		middleware.RecordOTPVerification("error")
		log.Println("Verify OTP failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to verify OTP", "OTP_VERIFY_FAILED", nil)
	}

	middleware.RecordOTPVerification("verified")
	return h.SuccessResponse(c, fiber.StatusOK, "OTP verified", result)
}

func (h *OTPHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	return ctx
}
