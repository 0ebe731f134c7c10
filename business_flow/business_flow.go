// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/kitkade/kitkade-backend/app/dto"
	"github.com/kitkade/kitkade-backend/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToDeliveryStatusDTO converts a delivery status model to its API representation
func ToDeliveryStatusDTO(status models.DeliveryStatus) dto.DeliveryStatusDTO {
	return dto.DeliveryStatusDTO{
		OrderCode:      status.OrderCode,
		Stage:          status.Stage,
		TrackingNumber: status.TrackingNumber,
		Note:           status.Note,
		UpdatedAt:      status.UpdatedAt.Format(time.RFC3339),
	}
}

// ToDeliveryStatusEventDTO converts one history row to its API representation
func ToDeliveryStatusEventDTO(event models.DeliveryStatusEvent) dto.DeliveryStatusEventDTO {
	return dto.DeliveryStatusEventDTO{
		Stage:          event.Stage,
		TrackingNumber: event.TrackingNumber,
		Note:           event.Note,
		UpdatedBy:      event.UpdatedBy,
		CreatedAt:      event.CreatedAt.Format(time.RFC3339),
	}
}

// ToDeliveryStatusEventDTOs converts a slice of history rows
func ToDeliveryStatusEventDTOs(events []*models.DeliveryStatusEvent) []dto.DeliveryStatusEventDTO {
	out := make([]dto.DeliveryStatusEventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, ToDeliveryStatusEventDTO(*e))
	}
	return out
}
