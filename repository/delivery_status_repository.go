// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"

	"github.com/kitkade/kitkade-backend/models"
	"github.com/kitkade/kitkade-backend/utils"
	"gorm.io/gorm"
)

// DeliveryStatusRepositoryImpl implements DeliveryStatusRepository interface
type DeliveryStatusRepositoryImpl struct {
	DB *gorm.DB
}

// NewDeliveryStatusRepository creates a new delivery status repository
func NewDeliveryStatusRepository(db *gorm.DB) DeliveryStatusRepository {
	return &DeliveryStatusRepositoryImpl{DB: db}
}

func (r *DeliveryStatusRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.DB
}

// ByOrderCode retrieves the current delivery status for an order
func (r *DeliveryStatusRepositoryImpl) ByOrderCode(ctx context.Context, orderCode string) (*models.DeliveryStatus, error) {
	db := r.getDB(ctx)

	var status models.DeliveryStatus
	err := db.Where("order_code = ?", orderCode).Last(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &status, nil
}

// Upsert inserts the delivery status row for an order or updates it in place.
// Callers are expected to run this inside WithTransaction together with
// AppendEvent so that status and history never diverge.
func (r *DeliveryStatusRepositoryImpl) Upsert(ctx context.Context, status *models.DeliveryStatus) error {
	db := r.getDB(ctx)

	var existing models.DeliveryStatus
	err := db.Where("order_code = ?", status.OrderCode).Last(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			status.UpdatedAt = utils.UTCNow()
			return db.Create(status).Error
		}
		return err
	}

	return db.Model(&existing).Updates(map[string]any{
		"stage":           status.Stage,
		"tracking_number": status.TrackingNumber,
		"note":            status.Note,
		"updated_at":      utils.UTCNow(),
	}).Error
}

// AppendEvent writes one immutable history row
func (r *DeliveryStatusRepositoryImpl) AppendEvent(ctx context.Context, event *models.DeliveryStatusEvent) error {
	db := r.getDB(ctx)
	return db.Create(event).Error
}

// ListEvents returns the full event history for an order, newest first
func (r *DeliveryStatusRepositoryImpl) ListEvents(ctx context.Context, orderCode string) ([]*models.DeliveryStatusEvent, error) {
	db := r.getDB(ctx)

	var events []*models.DeliveryStatusEvent
	err := db.Where("order_code = ?", orderCode).
		Order("id DESC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}

	return events, nil
}
