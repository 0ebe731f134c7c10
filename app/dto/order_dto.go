// Package dto contains Data Transfer Objects for API request and response structures
package dto

// CancelOrderRequest represents the customer request to cancel an order
type CancelOrderRequest struct {
	Phone  string  `json:"phone" validate:"required,phone_lk" example:"0771234567"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500" example:"Ordered the wrong size"`
}

// CancelOrderResponse represents the successful cancellation response
type CancelOrderResponse struct {
	OrderCode   string `json:"order_code" example:"KK-2025-00042"`
	OrderState  string `json:"order_state" example:"Cancelled"`
	CancelledAt string `json:"cancelled_at" example:"2025-08-01T10:30:00Z"`
}

// TrackOrderResponse represents the public order tracking response
type TrackOrderResponse struct {
	OrderCode     string                   `json:"order_code" example:"KK-2025-00042"`
	OrderState    string                   `json:"order_state" example:"Confirmed"`
	DeliveryStage string                   `json:"delivery_stage" example:"SOURCING"`
	OrderDate     string                   `json:"order_date" example:"2025-08-01T10:30:00Z"`
	TotalAmount   float64                  `json:"total_amount" example:"7500"`
	Status        *DeliveryStatusDTO       `json:"status,omitempty"`
	History       []DeliveryStatusEventDTO `json:"history"`
}
