package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsValidDeliveryStage(t *testing.T) {
	valid := []string{
		DeliveryStageOrderConfirmed,
		DeliveryStageSourcing,
		DeliveryStageArrived,
		DeliveryStageDispatched,
		DeliveryStageDelivered,
	}
	for _, stage := range valid {
		assert.True(t, IsValidDeliveryStage(stage), stage)
	}

	assert.False(t, IsValidDeliveryStage("SHIPPED"))
	assert.False(t, IsValidDeliveryStage("order_confirmed"))
	assert.False(t, IsValidDeliveryStage(""))
}

func TestIsForwardTransition(t *testing.T) {
	assert.True(t, IsForwardTransition(DeliveryStageOrderConfirmed, DeliveryStageSourcing))
	assert.True(t, IsForwardTransition(DeliveryStageSourcing, DeliveryStageDelivered))
	assert.True(t, IsForwardTransition(DeliveryStageArrived, DeliveryStageArrived), "same stage counts as forward")

	assert.False(t, IsForwardTransition(DeliveryStageDispatched, DeliveryStageSourcing))
	assert.False(t, IsForwardTransition(DeliveryStageDelivered, DeliveryStageOrderConfirmed))
}

func TestOTPSessionHelpers(t *testing.T) {
	t.Run("AttemptsRemaining", func(t *testing.T) {
		session := &OTPSession{Attempts: 2, MaxAttempts: 5}
		assert.Equal(t, 3, session.AttemptsRemaining())

		session.Attempts = 7
		assert.Equal(t, 0, session.AttemptsRemaining(), "remaining is floored at zero")
	})

	t.Run("CanAttempt", func(t *testing.T) {
		session := &OTPSession{
			Attempts:    0,
			MaxAttempts: 5,
			ExpiresAt:   time.Now().UTC().Add(10 * time.Minute),
		}
		assert.True(t, session.CanAttempt())

		session.Attempts = 5
		assert.False(t, session.CanAttempt())

		session.Attempts = 0
		session.Verified = true
		assert.False(t, session.CanAttempt())

		session.Verified = false
		session.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		assert.False(t, session.CanAttempt())
	})
}

func TestOrderHelpers(t *testing.T) {
	order := &Order{OrderState: OrderStateConfirmed}
	assert.False(t, order.IsCancelled())

	order.OrderState = OrderStateCancelled
	assert.True(t, order.IsCancelled())
}
