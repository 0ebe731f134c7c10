// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/kitkade/kitkade-backend/app/dto"
	"github.com/kitkade/kitkade-backend/app/middleware"
	businessflow "github.com/kitkade/kitkade-backend/business_flow"
	"github.com/kitkade/kitkade-backend/utils"
)

// DeliveryHandlerInterface defines the contract for delivery handlers
type DeliveryHandlerInterface interface {
	GetStatus(c fiber.Ctx) error
	SetStage(c fiber.Ctx) error
}

// DeliveryHandler handles delivery status HTTP requests
type DeliveryHandler struct {
	deliveryFlow businessflow.DeliveryFlow
	validator    *validator.Validate
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(deliveryFlow businessflow.DeliveryFlow) *DeliveryHandler {
	handler := &DeliveryHandler{
		deliveryFlow: deliveryFlow,
		validator:    validator.New(),
	}

	registerCustomValidations(handler.validator)

	return handler
}

func (h *DeliveryHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: &dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *DeliveryHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// GetStatus returns the current delivery status and history of an order
// @Summary Delivery status
// @Description Get the current delivery stage and history for an order
// @Tags Delivery
// @Produce json
// @Param orderCode path string true "Order code"
// @Success 200 {object} dto.APIResponse{data=dto.DeliveryStatusResponse} "Delivery status"
// @Failure 404 {object} dto.APIResponse "Order not found"
// @Router /api/v1/delivery/{orderCode} [get]
func (h *DeliveryHandler) GetStatus(c fiber.Ctx) error {
	orderCode := c.Params("orderCode")
	if orderCode == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Order code is required", "INVALID_REQUEST", nil)
	}

	result, err := h.deliveryFlow.GetStatus(h.createRequestContext(c, "/api/v1/delivery"), orderCode)
	if err != nil {
		if businessflow.IsOrderNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Order not found", "ORDER_NOT_FOUND", nil)
		}

		log.Println("Get delivery status failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load delivery status", "DELIVERY_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Delivery status", result)
}

// SetStage updates the delivery stage of an order (admin only)
// @Summary Set delivery stage
// @Description Set the delivery stage for an order and append a history event
// @Tags Delivery
// @Accept json
// @Produce json
// @Param orderCode path string true "Order code"
// @Param request body dto.SetDeliveryStageRequest true "New stage"
// @Success 200 {object} dto.APIResponse{data=dto.DeliveryStatusResponse} "Stage updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Order not found"
// @Failure 409 {object} dto.APIResponse "Backward transition"
// @Router /api/v1/admin/delivery/{orderCode} [put]
func (h *DeliveryHandler) SetStage(c fiber.Ctx) error {
	orderCode := c.Params("orderCode")
	if orderCode == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Order code is required", "INVALID_REQUEST", nil)
	}

	var req dto.SetDeliveryStageRequest
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

	updatedBy, _ := c.Locals("admin_username").(string)
	if updatedBy == "" {
		updatedBy = "admin"
	}

	result, err := h.deliveryFlow.SetStage(h.createRequestContext(c, "/api/v1/admin/delivery"), orderCode, &req, updatedBy, metadata)
	if err != nil {
		if businessflow.IsOrderNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Order not found", "ORDER_NOT_FOUND", nil)
		}
		if businessflow.IsInvalidDeliveryStage(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown delivery stage", "INVALID_DELIVERY_STAGE", nil)
		}
		if businessflow.IsBackwardTransition(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Delivery stage cannot move backward", "BACKWARD_TRANSITION", nil)
		}

		log.Println("Set delivery stage failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update delivery stage", "DELIVERY_UPDATE_FAILED", nil)
	}

	middleware.RecordDeliveryStageUpdate(req.Stage)
	return h.SuccessResponse(c, fiber.StatusOK, "Delivery stage updated", result)
}

func (h *DeliveryHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	return ctx
}
