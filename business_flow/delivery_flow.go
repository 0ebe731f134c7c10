// Package businessflow contains the core business logic and use cases for OTP and order workflows
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kitkade/kitkade-backend/app/dto"
	"github.com/kitkade/kitkade-backend/models"
	"github.com/kitkade/kitkade-backend/repository"
	"github.com/kitkade/kitkade-backend/utils"
	"gorm.io/gorm"
)

// Delivery transition policies
const (
	TransitionPolicyFree        = "free"
	TransitionPolicyForwardOnly = "forward_only"
)

// DeliveryFlow handles stage updates and status reads for order fulfilment
type DeliveryFlow interface {
	SetStage(ctx context.Context, orderCode string, request *dto.SetDeliveryStageRequest, updatedBy string, metadata *ClientMetadata) (*dto.DeliveryStatusResponse, error)
	GetStatus(ctx context.Context, orderCode string) (*dto.DeliveryStatusResponse, error)
}

// DeliveryConfig holds the transition policy for stage updates
type DeliveryConfig struct {
	TransitionPolicy string
}

// DeliveryFlowImpl implements the delivery business flow
type DeliveryFlowImpl struct {
	orderRepo    repository.OrderRepository
	deliveryRepo repository.DeliveryStatusRepository
	auditRepo    repository.AuditLogRepository
	cfg          DeliveryConfig
	db           *gorm.DB
}

// NewDeliveryFlow creates a new delivery flow instance
func NewDeliveryFlow(
	orderRepo repository.OrderRepository,
	deliveryRepo repository.DeliveryStatusRepository,
	auditRepo repository.AuditLogRepository,
	cfg DeliveryConfig,
	db *gorm.DB,
) DeliveryFlow {
	if cfg.TransitionPolicy == "" {
		cfg.TransitionPolicy = TransitionPolicyFree
	}

	return &DeliveryFlowImpl{
		orderRepo:    orderRepo,
		deliveryRepo: deliveryRepo,
		auditRepo:    auditRepo,
		cfg:          cfg,
		db:           db,
	}
}

// SetStage writes the new stage for an order, appends a history event and
// refreshes the denormalized stage on the order row, all in one transaction
func (df *DeliveryFlowImpl) SetStage(ctx context.Context, orderCode string, request *dto.SetDeliveryStageRequest, updatedBy string, metadata *ClientMetadata) (*dto.DeliveryStatusResponse, error) {
	if !models.IsValidDeliveryStage(request.Stage) {
		return nil, NewBusinessError("INVALID_DELIVERY_STAGE", "Unknown delivery stage", ErrInvalidDeliveryStage)
	}

	order, err := df.orderRepo.ByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, NewBusinessError("DELIVERY_UPDATE_FAILED", "Failed to look up order", err)
	}
	if order == nil {
		return nil, NewBusinessError("ORDER_NOT_FOUND", "Order not found", ErrOrderNotFound)
	}

	current, err := df.deliveryRepo.ByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, NewBusinessError("DELIVERY_UPDATE_FAILED", "Failed to look up delivery status", err)
	}

	if df.cfg.TransitionPolicy == TransitionPolicyForwardOnly && current != nil {
		if !models.IsForwardTransition(current.Stage, request.Stage) {
			return nil, NewBusinessError("BACKWARD_TRANSITION", "Delivery stage cannot move backward", ErrBackwardTransition)
		}
	}

	now := utils.UTCNow()
	status := &models.DeliveryStatus{
		OrderCode:      orderCode,
		Stage:          request.Stage,
		TrackingNumber: request.TrackingNumber,
		Note:           request.Note,
		UpdatedAt:      now,
		CreatedAt:      now,
	}
	event := &models.DeliveryStatusEvent{
		OrderCode:      orderCode,
		Stage:          request.Stage,
		TrackingNumber: request.TrackingNumber,
		Note:           request.Note,
		UpdatedBy:      updatedBy,
		CreatedAt:      now,
	}

	err = repository.WithTransaction(ctx, df.db, func(txCtx context.Context) error {
		if err := df.deliveryRepo.Upsert(txCtx, status); err != nil {
			return err
		}
		if err := df.deliveryRepo.AppendEvent(txCtx, event); err != nil {
			return err
		}
		return df.orderRepo.UpdateDeliveryStage(txCtx, orderCode, request.Stage)
	})
	if err != nil {
		return nil, NewBusinessError("DELIVERY_UPDATE_FAILED", "Failed to update delivery stage", err)
	}

	msg := fmt.Sprintf("Delivery stage for %s set to %s", orderCode, request.Stage)
	_ = df.logDeliveryAudit(ctx, order.CustomerID, models.AuditActionDeliveryStageSet, msg, orderCode, request.Stage, metadata)

	return df.GetStatus(ctx, orderCode)
}

// GetStatus returns the current delivery status and full history of an order.
// Orders that predate their first explicit stage update report the
// denormalized stage on the order row.
func (df *DeliveryFlowImpl) GetStatus(ctx context.Context, orderCode string) (*dto.DeliveryStatusResponse, error) {
	order, err := df.orderRepo.ByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, NewBusinessError("DELIVERY_LOOKUP_FAILED", "Failed to look up order", err)
	}
	if order == nil {
		return nil, NewBusinessError("ORDER_NOT_FOUND", "Order not found", ErrOrderNotFound)
	}

	status, err := df.deliveryRepo.ByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, NewBusinessError("DELIVERY_LOOKUP_FAILED", "Failed to look up delivery status", err)
	}
	if status == nil {
		status = &models.DeliveryStatus{
			OrderCode: orderCode,
			Stage:     order.DeliveryStage,
			UpdatedAt: order.UpdatedAt,
		}
	}

	events, err := df.deliveryRepo.ListEvents(ctx, orderCode)
	if err != nil {
		return nil, NewBusinessError("DELIVERY_LOOKUP_FAILED", "Failed to load delivery history", err)
	}

	return &dto.DeliveryStatusResponse{
		Status:  ToDeliveryStatusDTO(*status),
		History: ToDeliveryStatusEventDTOs(events),
	}, nil
}

func (df *DeliveryFlowImpl) logDeliveryAudit(ctx context.Context, customerID uint, action, description, orderCode, stage string, metadata *ClientMetadata) error {
	meta, _ := json.Marshal(map[string]string{"order_code": orderCode, "stage": stage})

	log := &models.AuditLog{
		CustomerID:  &customerID,
		Action:      action,
		Description: &description,
		Metadata:    meta,
		Success:     utils.ToPtr(true),
		CreatedAt:   utils.UTCNow(),
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

	if err := df.auditRepo.Save(ctx, log); err != nil {
		return fmt.Errorf("failed to save audit log: %w", err)
	}
	return nil
}
