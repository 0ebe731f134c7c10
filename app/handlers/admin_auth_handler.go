// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/kitkade/kitkade-backend/app/dto"
	businessflow "github.com/kitkade/kitkade-backend/business_flow"
	"github.com/kitkade/kitkade-backend/utils"
)

// AdminAuthHandlerInterface defines the contract for admin auth handlers
type AdminAuthHandlerInterface interface {
	Login(c fiber.Ctx) error
}

// AdminAuthHandler handles admin authentication HTTP requests
type AdminAuthHandler struct {
	adminAuthFlow businessflow.AdminAuthFlow
	validator     *validator.Validate
}

// NewAdminAuthHandler creates a new admin auth handler
func NewAdminAuthHandler(adminAuthFlow businessflow.AdminAuthFlow) *AdminAuthHandler {
	handler := &AdminAuthHandler{
		adminAuthFlow: adminAuthFlow,
		validator:     validator.New(),
	}

	registerCustomValidations(handler.validator)

	return handler
}

func (h *AdminAuthHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: &dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AdminAuthHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Login authenticates the admin and issues an access token
// @Summary Admin login
// @Description Authenticate with the dashboard credentials
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body dto.AdminLoginRequest true "Admin credentials"
// @Success 200 {object} dto.APIResponse{data=dto.AdminLoginResponse} "Logged in"
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Router /api/v1/admin/login [post]
func (h *AdminAuthHandler) Login(c fiber.Ctx) error {
	var req dto.AdminLoginRequest
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

	result, err := h.adminAuthFlow.Login(h.createRequestContext(c, "/api/v1/admin/login"), &req, metadata)
	if err != nil {
		if businessflow.IsAdminCredentialsInvalid(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials", "ADMIN_CREDENTIALS_INVALID", nil)
		}

		log.Println("Admin login failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Login failed", "ADMIN_LOGIN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Logged in", result)
}

func (h *AdminAuthHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	return ctx
}
