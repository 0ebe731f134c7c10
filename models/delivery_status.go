// Package models contains domain entities and business models for the storefront backend
package models

import (
	"time"
)

// Delivery stage constants. The happy path moves forward through these in
// order; whether backward transitions are allowed is a configuration choice.
const (
	DeliveryStageOrderConfirmed = "ORDER_CONFIRMED"
	DeliveryStageSourcing       = "SOURCING"
	DeliveryStageArrived        = "ARRIVED"
	DeliveryStageDispatched     = "DISPATCHED"
	DeliveryStageDelivered      = "DELIVERED"
)

// deliveryStageRank orders stages for forward-only transition checks.
var deliveryStageRank = map[string]int{
	DeliveryStageOrderConfirmed: 0,
	DeliveryStageSourcing:       1,
	DeliveryStageArrived:        2,
	DeliveryStageDispatched:     3,
	DeliveryStageDelivered:      4,
}

// IsValidDeliveryStage reports whether stage is one of the known stage labels.
func IsValidDeliveryStage(stage string) bool {
	_, ok := deliveryStageRank[stage]
	return ok
}

// IsForwardTransition reports whether moving from one stage to another does
// not go backward. Equal stages count as forward so that notes and tracking
// numbers can be amended without changing the stage.
func IsForwardTransition(from, to string) bool {
	return deliveryStageRank[to] >= deliveryStageRank[from]
}

// DeliveryStatus is the current fulfilment stage of one order. One row per
// order code, upserted on every stage change.
type DeliveryStatus struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrderCode      string    `gorm:"size:32;not null;uniqueIndex:idx_delivery_order_code" json:"order_code"`
	Stage          string    `gorm:"size:32;not null" json:"stage"`
	TrackingNumber *string   `gorm:"size:64" json:"tracking_number,omitempty"`
	Note           *string   `gorm:"type:text" json:"note,omitempty"`
	UpdatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
	CreatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (DeliveryStatus) TableName() string {
	return "delivery_statuses"
}

// DeliveryStatusEvent is the append-only history companion of DeliveryStatus.
// Every write to a delivery status appends exactly one immutable event row.
type DeliveryStatusEvent struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrderCode      string    `gorm:"size:32;not null;index:idx_delivery_event_order_code" json:"order_code"`
	Stage          string    `gorm:"size:32;not null" json:"stage"`
	TrackingNumber *string   `gorm:"size:64" json:"tracking_number,omitempty"`
	Note           *string   `gorm:"type:text" json:"note,omitempty"`
	UpdatedBy      string    `gorm:"size:64;not null" json:"updated_by"`
	CreatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_delivery_event_created_at" json:"created_at"`
}

func (DeliveryStatusEvent) TableName() string {
	return "delivery_status_events"
}

// DeliveryStatusFilter represents filter criteria for delivery status queries
type DeliveryStatusFilter struct {
	OrderCode *string
	Stage     *string
}
