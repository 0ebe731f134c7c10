// Package models contains domain entities and business models for the storefront backend
package models

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_customers_uuid" json:"uuid"`

	FirstName string  `gorm:"size:255;not null" json:"first_name"`
	LastName  string  `gorm:"size:255;not null" json:"last_name"`
	Phone     string  `gorm:"size:15;not null;uniqueIndex:idx_customers_phone" json:"phone"` // canonical 94XXXXXXXXX
	Email     *string `gorm:"size:255;index:idx_customers_email" json:"email,omitempty"`

	City    *string `gorm:"size:100" json:"city,omitempty"`
	Address *string `gorm:"size:255" json:"address,omitempty"`

	IsPhoneVerified *bool `gorm:"default:false" json:"is_phone_verified"`
	IsActive        *bool `gorm:"default:true;index:idx_customers_is_active" json:"is_active"`

	CreatedAt       time.Time  `gorm:"default:CURRENT_TIMESTAMP;index:idx_customers_created_at" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
	PhoneVerifiedAt *time.Time `json:"phone_verified_at,omitempty"`

	Orders    []Order    `gorm:"foreignKey:CustomerID" json:"-"`
	AuditLogs []AuditLog `gorm:"foreignKey:CustomerID" json:"-"`
}

func (Customer) TableName() string {
	return "customers"
}

// CustomerFilter represents filter criteria for customer queries
type CustomerFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	Phone           *string
	Email           *string
	IsPhoneVerified *bool
	IsActive        *bool
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}
