// Package testing provides test utilities and database setup for testing the storefront backend
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/kitkade/kitkade-backend/models"
	"github.com/kitkade/kitkade-backend/utils"
)

// TestFixtures creates consistent test data
type TestFixtures struct {
	testDB *TestDB
}

// NewTestFixtures creates a new fixtures helper
func NewTestFixtures(testDB *TestDB) *TestFixtures {
	return &TestFixtures{testDB: testDB}
}

// RandomPhone returns a canonical Sri Lankan mobile number
func RandomPhone() string {
	return fmt.Sprintf("9477%07d", rand.Intn(10000000))
}

// CreateTestCustomer creates a customer with the given canonical phone
func (f *TestFixtures) CreateTestCustomer(phone string) (*models.Customer, error) {
	customer := &models.Customer{
		UUID:            uuid.New(),
		FirstName:       "Kasun",
		LastName:        "Perera",
		Phone:           phone,
		Email:           utils.ToPtr(fmt.Sprintf("kasun%d@example.com", rand.Intn(100000))),
		City:            utils.ToPtr("Colombo"),
		IsPhoneVerified: utils.ToPtr(false),
		IsActive:        utils.ToPtr(true),
		CreatedAt:       utils.UTCNow(),
		UpdatedAt:       utils.UTCNow(),
	}

	if err := f.testDB.DB.Create(customer).Error; err != nil {
		return nil, fmt.Errorf("failed to create test customer: %w", err)
	}
	return customer, nil
}

// CreateTestOrder creates an order for the customer, placed orderAge ago
func (f *TestFixtures) CreateTestOrder(customer *models.Customer, orderCode string, orderAge time.Duration) (*models.Order, error) {
	now := utils.UTCNow()
	order := &models.Order{
		OrderCode:     orderCode,
		CustomerID:    customer.ID,
		OrderState:    models.OrderStateConfirmed,
		DeliveryStage: models.DeliveryStageOrderConfirmed,
		TotalAmount:   750000, // LKR 7500.00
		OrderDate:     now.Add(-orderAge),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := f.testDB.DB.Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to create test order: %w", err)
	}
	return order, nil
}

// SetOrderStage moves the denormalized stage on the order row
func (f *TestFixtures) SetOrderStage(order *models.Order, stage string) error {
	return f.testDB.DB.Model(order).Update("delivery_stage", stage).Error
}
