// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"

	"github.com/kitkade/kitkade-backend/models"
	"github.com/kitkade/kitkade-backend/utils"
	"gorm.io/gorm"
)

// OrderRepositoryImpl implements OrderRepository interface
type OrderRepositoryImpl struct {
	*BaseRepository[models.Order, models.OrderFilter]
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &OrderRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Order, models.OrderFilter](db),
	}
}

// ByOrderCode retrieves an order by its unique order code with the customer preloaded
func (r *OrderRepositoryImpl) ByOrderCode(ctx context.Context, orderCode string) (*models.Order, error) {
	db := r.getDB(ctx)

	var order models.Order
	err := db.Preload("Customer").
		Where("order_code = ?", orderCode).
		Last(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &order, nil
}

// ListByCustomer retrieves orders for a customer, newest first
func (r *OrderRepositoryImpl) ListByCustomer(ctx context.Context, customerID uint, limit, offset int) ([]*models.Order, error) {
	filter := models.OrderFilter{
		CustomerID: &customerID,
	}

	return r.ByFilter(ctx, filter, "order_date DESC", limit, offset)
}

// UpdateOrderState sets the order state field
func (r *OrderRepositoryImpl) UpdateOrderState(ctx context.Context, orderID uint, orderState string) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"order_state": orderState,
			"updated_at":  utils.UTCNow(),
		}).Error

	return err
}

// UpdateDeliveryStage refreshes the denormalized delivery stage on the order row
func (r *OrderRepositoryImpl) UpdateDeliveryStage(ctx context.Context, orderCode string, stage string) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(&models.Order{}).
		Where("order_code = ?", orderCode).
		Updates(map[string]any{
			"delivery_stage": stage,
			"updated_at":     utils.UTCNow(),
		}).Error

	return err
}

// applyFilter applies filter criteria to a GORM query
func (r *OrderRepositoryImpl) applyFilter(query *gorm.DB, filter models.OrderFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}

	if filter.OrderCode != nil {
		query = query.Where("order_code = ?", *filter.OrderCode)
	}

	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}

	if filter.OrderState != nil {
		query = query.Where("order_state = ?", *filter.OrderState)
	}

	if filter.DeliveryStage != nil {
		query = query.Where("delivery_stage = ?", *filter.DeliveryStage)
	}

	if filter.OrderedAfter != nil {
		query = query.Where("order_date > ?", *filter.OrderedAfter)
	}

	if filter.OrderedBefore != nil {
		query = query.Where("order_date < ?", *filter.OrderedBefore)
	}

	return query
}

// ByFilter retrieves orders based on filter criteria
func (r *OrderRepositoryImpl) ByFilter(ctx context.Context, filter models.OrderFilter, orderBy string, limit, offset int) ([]*models.Order, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Order{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var orders []*models.Order
	err := query.Find(&orders).Error
	if err != nil {
		return nil, err
	}

	return orders, nil
}

// Count returns the number of orders matching the filter
func (r *OrderRepositoryImpl) Count(ctx context.Context, filter models.OrderFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Order{})

	query = r.applyFilter(query, filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any order matching the filter exists
func (r *OrderRepositoryImpl) Exists(ctx context.Context, filter models.OrderFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
