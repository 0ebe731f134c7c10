// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kitkade/kitkade-backend/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// OTPSessionRepository defines operations for OTP sessions
type OTPSessionRepository interface {
	Repository[models.OTPSession, models.OTPSessionFilter]
	LatestActive(ctx context.Context, phone string, sessionID uuid.UUID) (*models.OTPSession, error)
	LatestByPhone(ctx context.Context, phone string) (*models.OTPSession, error)
	CountCreatedSince(ctx context.Context, phone string, since time.Time) (int64, error)
	IncrementAttempts(ctx context.Context, id uint) (*models.OTPSession, error)
	MarkVerified(ctx context.Context, id uint, verifiedAt time.Time) error
	Delete(ctx context.Context, id uint) error
}

// CustomerRepository defines operations for customers
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	ByPhone(ctx context.Context, phone string) (*models.Customer, error)
	MarkPhoneVerified(ctx context.Context, customerID uint, verifiedAt time.Time) error
}

// OrderRepository defines operations for orders
type OrderRepository interface {
	Repository[models.Order, models.OrderFilter]
	ByOrderCode(ctx context.Context, orderCode string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uint, limit, offset int) ([]*models.Order, error)
	UpdateOrderState(ctx context.Context, orderID uint, orderState string) error
	UpdateDeliveryStage(ctx context.Context, orderCode string, stage string) error
}

// DeliveryStatusRepository defines operations for delivery statuses and their event log
type DeliveryStatusRepository interface {
	ByOrderCode(ctx context.Context, orderCode string) (*models.DeliveryStatus, error)
	Upsert(ctx context.Context, status *models.DeliveryStatus) error
	AppendEvent(ctx context.Context, event *models.DeliveryStatusEvent) error
	ListEvents(ctx context.Context, orderCode string) ([]*models.DeliveryStatusEvent, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByCustomer(ctx context.Context, customerID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
}
