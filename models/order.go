// Package models contains domain entities and business models for the storefront backend
package models

import (
	"time"
)

// Order state constants
const (
	OrderStateConfirmed = "Confirmed"
	OrderStatePaid      = "Paid"
	OrderStateCancelled = "Cancelled"
	OrderStateRefunded  = "Refunded"
)

// Order is the summary row for a pre-order. Only the fields the OTP and
// delivery flows touch are modelled; catalog and payment detail live with the
// storefront.
type Order struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	OrderCode     string    `gorm:"size:32;not null;uniqueIndex:idx_orders_order_code" json:"order_code"`
	CustomerID    uint      `gorm:"not null;index:idx_orders_customer_id" json:"customer_id"`
	Customer      Customer  `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`
	OrderState    string    `gorm:"size:32;not null;default:Confirmed" json:"order_state"`
	DeliveryStage string    `gorm:"size:32;not null;default:ORDER_CONFIRMED" json:"delivery_stage"` // denormalized copy
	TotalAmount   int64     `gorm:"not null;default:0" json:"total_amount"`                         // LKR cents
	OrderDate     time.Time `gorm:"not null;index:idx_orders_order_date" json:"order_date"`
	CreatedAt     time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderFilter represents filter criteria for order queries
type OrderFilter struct {
	ID            *uint
	OrderCode     *string
	CustomerID    *uint
	OrderState    *string
	DeliveryStage *string
	OrderedAfter  *time.Time
	OrderedBefore *time.Time
}

func (o *Order) IsCancelled() bool {
	return o.OrderState == OrderStateCancelled
}
