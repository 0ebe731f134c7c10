// Package businessflow contains the core business logic and use cases for OTP and order workflows
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kitkade/kitkade-backend/app/dto"
	"github.com/kitkade/kitkade-backend/models"
	"github.com/kitkade/kitkade-backend/repository"
	"github.com/kitkade/kitkade-backend/utils"
	"gorm.io/gorm"
)

// OrderFlow handles customer-facing order tracking and cancellation
type OrderFlow interface {
	TrackOrder(ctx context.Context, orderCode string) (*dto.TrackOrderResponse, error)
	CancelOrder(ctx context.Context, orderCode string, request *dto.CancelOrderRequest, metadata *ClientMetadata) (*dto.CancelOrderResponse, error)
}

// CancellationConfig holds the limits for customer-initiated cancellation
type CancellationConfig struct {
	Window time.Duration
}

// OrderFlowImpl implements the order business flow
type OrderFlowImpl struct {
	orderRepo    repository.OrderRepository
	deliveryRepo repository.DeliveryStatusRepository
	auditRepo    repository.AuditLogRepository
	cfg          CancellationConfig
	db           *gorm.DB
}

// NewOrderFlow creates a new order flow instance
func NewOrderFlow(
	orderRepo repository.OrderRepository,
	deliveryRepo repository.DeliveryStatusRepository,
	auditRepo repository.AuditLogRepository,
	cfg CancellationConfig,
	db *gorm.DB,
) OrderFlow {
	if cfg.Window <= 0 {
		cfg.Window = utils.DefaultCancellationWindow
	}

	return &OrderFlowImpl{
		orderRepo:    orderRepo,
		deliveryRepo: deliveryRepo,
		auditRepo:    auditRepo,
		cfg:          cfg,
		db:           db,
	}
}

// TrackOrder returns the public tracking view of an order
func (sf *OrderFlowImpl) TrackOrder(ctx context.Context, orderCode string) (*dto.TrackOrderResponse, error) {
	order, err := sf.orderRepo.ByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, NewBusinessError("ORDER_LOOKUP_FAILED", "Failed to look up order", err)
	}
	if order == nil {
		return nil, NewBusinessError("ORDER_NOT_FOUND", "Order not found", ErrOrderNotFound)
	}

	resp := &dto.TrackOrderResponse{
		OrderCode:     order.OrderCode,
		OrderState:    order.OrderState,
		DeliveryStage: order.DeliveryStage,
		OrderDate:     order.OrderDate.Format(time.RFC3339),
		TotalAmount:   float64(order.TotalAmount) / 100,
	}

	status, err := sf.deliveryRepo.ByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, NewBusinessError("ORDER_LOOKUP_FAILED", "Failed to look up delivery status", err)
	}
	if status != nil {
		statusDTO := ToDeliveryStatusDTO(*status)
		resp.Status = &statusDTO
	}

	events, err := sf.deliveryRepo.ListEvents(ctx, orderCode)
	if err != nil {
		return nil, NewBusinessError("ORDER_LOOKUP_FAILED", "Failed to load delivery history", err)
	}
	resp.History = ToDeliveryStatusEventDTOs(events)

	return resp, nil
}

// CancelOrder cancels an order on the customer's request. The request must
// carry the phone the order was placed with, the order must still be inside
// the cancellation window and must not have left the warehouse.
func (sf *OrderFlowImpl) CancelOrder(ctx context.Context, orderCode string, request *dto.CancelOrderRequest, metadata *ClientMetadata) (*dto.CancelOrderResponse, error) {
	phone, err := utils.NormalizePhone(request.Phone)
	if err != nil {
		return nil, NewBusinessError("INVALID_PHONE", "Phone number format is invalid", ErrInvalidPhone)
	}

	order, err := sf.orderRepo.ByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, NewBusinessError("CANCEL_FAILED", "Failed to look up order", err)
	}
	if order == nil {
		return nil, NewBusinessError("ORDER_NOT_FOUND", "Order not found", ErrOrderNotFound)
	}

	if err := sf.checkCancellable(order, phone); err != nil {
		errMsg := err.Error()
		_ = sf.logOrderAudit(ctx, &order.CustomerID, models.AuditActionOrderCancelRejected, fmt.Sprintf("Cancellation of %s rejected", orderCode), orderCode, false, &errMsg, metadata)
		return nil, NewBusinessError("CANCEL_REJECTED", "Order cannot be cancelled", err)
	}

	cancelledAt := utils.UTCNow()
	note := "Order cancelled by customer"
	if request.Reason != nil {
		if reason := strings.TrimSpace(*request.Reason); reason != "" {
			note = fmt.Sprintf("Order cancelled by customer: %s", reason)
		}
	}
	status := &models.DeliveryStatus{
		OrderCode: orderCode,
		Stage:     models.DeliveryStageOrderConfirmed,
		Note:      &note,
		UpdatedAt: cancelledAt,
		CreatedAt: cancelledAt,
	}
	event := &models.DeliveryStatusEvent{
		OrderCode: orderCode,
		Stage:     models.DeliveryStageOrderConfirmed,
		Note:      &note,
		UpdatedBy: "customer",
		CreatedAt: cancelledAt,
	}

	err = repository.WithTransaction(ctx, sf.db, func(txCtx context.Context) error {
		if err := sf.orderRepo.UpdateOrderState(txCtx, order.ID, models.OrderStateCancelled); err != nil {
			return err
		}
		if err := sf.orderRepo.UpdateDeliveryStage(txCtx, orderCode, models.DeliveryStageOrderConfirmed); err != nil {
			return err
		}
		if err := sf.deliveryRepo.Upsert(txCtx, status); err != nil {
			return err
		}
		return sf.deliveryRepo.AppendEvent(txCtx, event)
	})
	if err != nil {
		return nil, NewBusinessError("CANCEL_FAILED", "Failed to cancel order", err)
	}

	msg := fmt.Sprintf("Order %s cancelled by customer", orderCode)
	_ = sf.logOrderAudit(ctx, &order.CustomerID, models.AuditActionOrderCancelled, msg, orderCode, true, nil, metadata)

	return &dto.CancelOrderResponse{
		OrderCode:   orderCode,
		OrderState:  models.OrderStateCancelled,
		CancelledAt: cancelledAt.Format(time.RFC3339),
	}, nil
}

// checkCancellable runs the cancellation guards in order: ownership, state,
// window, fulfilment progress.
func (sf *OrderFlowImpl) checkCancellable(order *models.Order, phone string) error {
	if order.Customer.Phone != phone {
		return ErrPhoneMismatch
	}
	if order.IsCancelled() {
		return ErrOrderAlreadyCancelled
	}
	if utils.UTCNow().Sub(order.OrderDate) > sf.cfg.Window {
		return ErrCancellationWindowExpired
	}
	if order.DeliveryStage == models.DeliveryStageDispatched || order.DeliveryStage == models.DeliveryStageDelivered {
		return ErrOrderAlreadyDispatched
	}
	return nil
}

func (sf *OrderFlowImpl) logOrderAudit(ctx context.Context, customerID *uint, action, description, orderCode string, success bool, errMsg *string, metadata *ClientMetadata) error {
	meta, _ := json.Marshal(map[string]string{"order_code": orderCode})

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

	if err := sf.auditRepo.Save(ctx, log); err != nil {
		return fmt.Errorf("failed to save audit log: %w", err)
	}
	return nil
}
