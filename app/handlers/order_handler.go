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

// OrderHandlerInterface defines the contract for order handlers
type OrderHandlerInterface interface {
	TrackOrder(c fiber.Ctx) error
	CancelOrder(c fiber.Ctx) error
}

// OrderHandler handles customer-facing order HTTP requests
type OrderHandler struct {
	orderFlow businessflow.OrderFlow
	validator *validator.Validate
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderFlow businessflow.OrderFlow) *OrderHandler {
	handler := &OrderHandler{
		orderFlow: orderFlow,
		validator: validator.New(),
	}

	registerCustomValidations(handler.validator)

	return handler
}

func (h *OrderHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: &dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *OrderHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// TrackOrder returns the public tracking view of an order
// @Summary Track order
// @Description Get order state, delivery stage and history by order code
// @Tags Orders
// @Produce json
// @Param code path string true "Order code"
// @Success 200 {object} dto.APIResponse{data=dto.TrackOrderResponse} "Order tracking"
// @Failure 404 {object} dto.APIResponse "Order not found"
// @Router /api/v1/orders/{code}/track [get]
func (h *OrderHandler) TrackOrder(c fiber.Ctx) error {
	orderCode := c.Params("code")
	if orderCode == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Order code is required", "INVALID_REQUEST", nil)
	}

	result, err := h.orderFlow.TrackOrder(h.createRequestContext(c, "/api/v1/orders/track"), orderCode)
	if err != nil {
		if businessflow.IsOrderNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Order not found", "ORDER_NOT_FOUND", nil)
		}

		log.Println("Track order failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load order", "ORDER_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Order tracking", result)
}

// CancelOrder cancels an order on the customer's request
// @Summary Cancel order
// @Description Cancel a recent order; the phone must match the one used at checkout
// @Tags Orders
// @Accept json
// @Produce json
// @Param code path string true "Order code"
// @Param request body dto.CancelOrderRequest true "Phone used at checkout"
// @Success 200 {object} dto.APIResponse{data=dto.CancelOrderResponse} "Order cancelled"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Phone mismatch"
// @Failure 404 {object} dto.APIResponse "Order not found"
// @Failure 409 {object} dto.APIResponse "Order cannot be cancelled"
// @Router /api/v1/orders/{code}/cancel [post]
func (h *OrderHandler) CancelOrder(c fiber.Ctx) error {
	orderCode := c.Params("code")
	if orderCode == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Order code is required", "INVALID_REQUEST", nil)
	}

	var req dto.CancelOrderRequest
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

	result, err := h.orderFlow.CancelOrder(h.createRequestContext(c, "/api/v1/orders/cancel"), orderCode, &req, metadata)
	if err != nil {
		if businessflow.IsInvalidPhone(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Phone number format is invalid", "INVALID_PHONE", nil)
		}
		if businessflow.IsOrderNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Order not found", "ORDER_NOT_FOUND", nil)
		}
		if businessflow.IsPhoneMismatch(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Phone number does not match the order", "PHONE_MISMATCH", nil)
		}
		if businessflow.IsOrderAlreadyCancelled(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Order is already cancelled", "ALREADY_CANCELLED", nil)
		}
		if businessflow.IsCancellationWindowExpired(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Cancellation window has expired", "WINDOW_EXPIRED", nil)
		}
		if businessflow.IsOrderAlreadyDispatched(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Order has already been dispatched", "ALREADY_DISPATCHED", nil)
		}

		log.Println("Cancel order failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to cancel order", "CANCEL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Order cancelled", result)
}

func (h *OrderHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	return ctx
}
