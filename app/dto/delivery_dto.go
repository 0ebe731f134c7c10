// Package dto contains Data Transfer Objects for API request and response structures
package dto

// SetDeliveryStageRequest represents the admin request to set an order's delivery stage
type SetDeliveryStageRequest struct {
	Stage          string  `json:"stage" validate:"required,delivery_stage" example:"DISPATCHED"`
	TrackingNumber *string `json:"tracking_number,omitempty" validate:"omitempty,max=100" example:"LK123456789"`
	Note           *string `json:"note,omitempty" validate:"omitempty,max=500" example:"Handed to courier"`
}

// DeliveryStatusDTO represents the current delivery status of an order
type DeliveryStatusDTO struct {
	OrderCode      string  `json:"order_code" example:"KK-2025-00042"`
	Stage          string  `json:"stage" example:"SOURCING"`
	TrackingNumber *string `json:"tracking_number,omitempty" example:"LK123456789"`
	Note           *string `json:"note,omitempty" example:"Jersey ordered from supplier"`
	UpdatedAt      string  `json:"updated_at" example:"2025-08-01T10:30:00Z"`
}

// DeliveryStatusEventDTO represents one entry in an order's delivery history
type DeliveryStatusEventDTO struct {
	Stage          string  `json:"stage" example:"ORDER_CONFIRMED"`
	TrackingNumber *string `json:"tracking_number,omitempty" example:"LK123456789"`
	Note           *string `json:"note,omitempty" example:"Order placed"`
	UpdatedBy      string  `json:"updated_by,omitempty" example:"admin"`
	CreatedAt      string  `json:"created_at" example:"2025-08-01T10:30:00Z"`
}

// DeliveryStatusResponse represents the delivery status with full history
type DeliveryStatusResponse struct {
	Status  DeliveryStatusDTO        `json:"status"`
	History []DeliveryStatusEventDTO `json:"history"`
}
