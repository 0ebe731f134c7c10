package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/kitkade/kitkade-backend/app/dto"
	businessflow "github.com/kitkade/kitkade-backend/business_flow"
	"github.com/kitkade/kitkade-backend/models"
	"github.com/kitkade/kitkade-backend/repository"
	testingutil "github.com/kitkade/kitkade-backend/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderFlow(testDB *testingutil.TestDB, cfg businessflow.CancellationConfig) businessflow.OrderFlow {
	return businessflow.NewOrderFlow(
		repository.NewOrderRepository(testDB.DB),
		repository.NewDeliveryStatusRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		cfg,
		testDB.DB,
	)
}

func TestTrackOrder(t *testing.T) {
	t.Run("FreshOrder", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			fixtures := testingutil.NewTestFixtures(testDB)
			flow := newOrderFlow(testDB, businessflow.CancellationConfig{})

			customer, err := fixtures.CreateTestCustomer(testingutil.RandomPhone())
			require.NoError(t, err)
			order, err := fixtures.CreateTestOrder(customer, "KK-2025-00100", 2*time.Hour)
			require.NoError(t, err)

			resp, err := flow.TrackOrder(context.Background(), order.OrderCode)
			require.NoError(t, err)

			assert.Equal(t, order.OrderCode, resp.OrderCode)
			assert.Equal(t, models.OrderStateConfirmed, resp.OrderState)
			assert.Equal(t, models.DeliveryStageOrderConfirmed, resp.DeliveryStage)
			assert.InDelta(t, 7500.00, resp.TotalAmount, 0.001)
			assert.Nil(t, resp.Status, "no explicit stage update yet")
			assert.Empty(t, resp.History)

			_, err = time.Parse(time.RFC3339, resp.OrderDate)
			assert.NoError(t, err)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("OrderWithDeliveryHistory", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			fixtures := testingutil.NewTestFixtures(testDB)
			orderFlow := newOrderFlow(testDB, businessflow.CancellationConfig{})
			deliveryFlow := newDeliveryFlow(testDB, businessflow.DeliveryConfig{})
			ctx := context.Background()

			customer, err := fixtures.CreateTestCustomer(testingutil.RandomPhone())
			require.NoError(t, err)
			order, err := fixtures.CreateTestOrder(customer, "KK-2025-00101", 2*time.Hour)
			require.NoError(t, err)

			tracking := "LK987654321"
			_, err = deliveryFlow.SetStage(ctx, order.OrderCode, &dto.SetDeliveryStageRequest{
				Stage:          models.DeliveryStageDispatched,
				TrackingNumber: &tracking,
			}, "admin", nil)
			require.NoError(t, err)

			resp, err := orderFlow.TrackOrder(ctx, order.OrderCode)
			require.NoError(t, err)

			assert.Equal(t, models.DeliveryStageDispatched, resp.DeliveryStage)
			require.NotNil(t, resp.Status)
			assert.Equal(t, models.DeliveryStageDispatched, resp.Status.Stage)
			require.NotNil(t, resp.Status.TrackingNumber)
			assert.Equal(t, tracking, *resp.Status.TrackingNumber)
			require.Len(t, resp.History, 1)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("UnknownOrder", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			flow := newOrderFlow(testDB, businessflow.CancellationConfig{})

			_, err := flow.TrackOrder(context.Background(), "KK-2025-99999")
			assert.True(t, businessflow.IsOrderNotFound(err))

			return nil
		})
		require.NoError(t, err)
	})
}

func TestCancelOrder(t *testing.T) {
	t.Run("SuccessfulCancellation", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			fixtures := testingutil.NewTestFixtures(testDB)
			flow := newOrderFlow(testDB, businessflow.CancellationConfig{})
			ctx := context.Background()

			phone := testingutil.RandomPhone()
			customer, err := fixtures.CreateTestCustomer(phone)
			require.NoError(t, err)
			order, err := fixtures.CreateTestOrder(customer, "KK-2025-00102", 2*time.Hour)
			require.NoError(t, err)

			resp, err := flow.CancelOrder(ctx, order.OrderCode, &dto.CancelOrderRequest{Phone: phone}, nil)
			require.NoError(t, err)

			assert.Equal(t, order.OrderCode, resp.OrderCode)
			assert.Equal(t, models.OrderStateCancelled, resp.OrderState)
			assert.NotEmpty(t, resp.CancelledAt)

			var reloaded models.Order
			require.NoError(t, testDB.DB.First(&reloaded, order.ID).Error)
			assert.Equal(t, models.OrderStateCancelled, reloaded.OrderState)
			assert.Equal(t, models.DeliveryStageOrderConfirmed, reloaded.DeliveryStage)

			// Cancellation leaves a customer-attributed event in the history
			var events []models.DeliveryStatusEvent
			require.NoError(t, testDB.DB.Where("order_code = ?", order.OrderCode).Find(&events).Error)
			require.Len(t, events, 1)
			assert.Equal(t, "customer", events[0].UpdatedBy)
			require.NotNil(t, events[0].Note)
			assert.Equal(t, "Order cancelled by customer", *events[0].Note)

			var entry models.AuditLog
			require.NoError(t, testDB.DB.Where("action = ?", models.AuditActionOrderCancelled).First(&entry).Error)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("ReasonLandsInHistoryNote", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			fixtures := testingutil.NewTestFixtures(testDB)
			flow := newOrderFlow(testDB, businessflow.CancellationConfig{})

			phone := testingutil.RandomPhone()
			customer, err := fixtures.CreateTestCustomer(phone)
			require.NoError(t, err)
			order, err := fixtures.CreateTestOrder(customer, "KK-2025-00110", time.Hour)
			require.NoError(t, err)

			reason := "Ordered the wrong size"
			_, err = flow.CancelOrder(context.Background(), order.OrderCode, &dto.CancelOrderRequest{
				Phone:  phone,
				Reason: &reason,
			}, nil)
			require.NoError(t, err)

			var event models.DeliveryStatusEvent
			require.NoError(t, testDB.DB.Where("order_code = ?", order.OrderCode).First(&event).Error)
			require.NotNil(t, event.Note)
			assert.Equal(t, "Order cancelled by customer: Ordered the wrong size", *event.Note)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("AcceptsLocalPhoneFormat", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			fixtures := testingutil.NewTestFixtures(testDB)
			flow := newOrderFlow(testDB, businessflow.CancellationConfig{})

			customer, err := fixtures.CreateTestCustomer("94771234567")
			require.NoError(t, err)
			order, err := fixtures.CreateTestOrder(customer, "KK-2025-00103", time.Hour)
			require.NoError(t, err)

			_, err = flow.CancelOrder(context.Background(), order.OrderCode, &dto.CancelOrderRequest{Phone: "0771234567"}, nil)
			assert.NoError(t, err)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("PhoneMismatch", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			fixtures := testingutil.NewTestFixtures(testDB)
			flow := newOrderFlow(testDB, businessflow.CancellationConfig{})

			customer, err := fixtures.CreateTestCustomer("94771111111")
			require.NoError(t, err)
			order, err := fixtures.CreateTestOrder(customer, "KK-2025-00104", time.Hour)
			require.NoError(t, err)

			_, err = flow.CancelOrder(context.Background(), order.OrderCode, &dto.CancelOrderRequest{Phone: "94772222222"}, nil)
			assert.True(t, businessflow.IsPhoneMismatch(err))

			var reloaded models.Order
			require.NoError(t, testDB.DB.First(&reloaded, order.ID).Error)
			assert.Equal(t, models.OrderStateConfirmed, reloaded.OrderState, "order is untouched")

			var entry models.AuditLog
			require.NoError(t, testDB.DB.Where("action = ?", models.AuditActionOrderCancelRejected).First(&entry).Error)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("AlreadyCancelled", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			fixtures := testingutil.NewTestFixtures(testDB)
			flow := newOrderFlow(testDB, businessflow.CancellationConfig{})
			ctx := context.Background()

			phone := testingutil.RandomPhone()
			customer, err := fixtures.CreateTestCustomer(phone)
			require.NoError(t, err)
			order, err := fixtures.CreateTestOrder(customer, "KK-2025-00105", time.Hour)
			require.NoError(t, err)

			_, err = flow.CancelOrder(ctx, order.OrderCode, &dto.CancelOrderRequest{Phone: phone}, nil)
			require.NoError(t, err)

			_, err = flow.CancelOrder(ctx, order.OrderCode, &dto.CancelOrderRequest{Phone: phone}, nil)
			assert.True(t, businessflow.IsOrderAlreadyCancelled(err))

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("WindowExpired", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			fixtures := testingutil.NewTestFixtures(testDB)
			flow := newOrderFlow(testDB, businessflow.CancellationConfig{})

			phone := testingutil.RandomPhone()
			customer, err := fixtures.CreateTestCustomer(phone)
			require.NoError(t, err)
			order, err := fixtures.CreateTestOrder(customer, "KK-2025-00106", 25*time.Hour)
			require.NoError(t, err)

			_, err = flow.CancelOrder(context.Background(), order.OrderCode, &dto.CancelOrderRequest{Phone: phone}, nil)
			assert.True(t, businessflow.IsCancellationWindowExpired(err))

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("CustomWindow", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			fixtures := testingutil.NewTestFixtures(testDB)
			flow := newOrderFlow(testDB, businessflow.CancellationConfig{Window: time.Hour})

			phone := testingutil.RandomPhone()
			customer, err := fixtures.CreateTestCustomer(phone)
			require.NoError(t, err)
			order, err := fixtures.CreateTestOrder(customer, "KK-2025-00107", 2*time.Hour)
			require.NoError(t, err)

			_, err = flow.CancelOrder(context.Background(), order.OrderCode, &dto.CancelOrderRequest{Phone: phone}, nil)
			assert.True(t, businessflow.IsCancellationWindowExpired(err))

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("AlreadyDispatched", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			fixtures := testingutil.NewTestFixtures(testDB)
			flow := newOrderFlow(testDB, businessflow.CancellationConfig{})

			phone := testingutil.RandomPhone()
			customer, err := fixtures.CreateTestCustomer(phone)
			require.NoError(t, err)
			order, err := fixtures.CreateTestOrder(customer, "KK-2025-00108", time.Hour)
			require.NoError(t, err)
			require.NoError(t, fixtures.SetOrderStage(order, models.DeliveryStageDispatched))

			_, err = flow.CancelOrder(context.Background(), order.OrderCode, &dto.CancelOrderRequest{Phone: phone}, nil)
			assert.True(t, businessflow.IsOrderAlreadyDispatched(err))

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("DeliveredOrderCannotBeCancelled", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			fixtures := testingutil.NewTestFixtures(testDB)
			flow := newOrderFlow(testDB, businessflow.CancellationConfig{})

			phone := testingutil.RandomPhone()
			customer, err := fixtures.CreateTestCustomer(phone)
			require.NoError(t, err)
			order, err := fixtures.CreateTestOrder(customer, "KK-2025-00109", time.Hour)
			require.NoError(t, err)
			require.NoError(t, fixtures.SetOrderStage(order, models.DeliveryStageDelivered))

			_, err = flow.CancelOrder(context.Background(), order.OrderCode, &dto.CancelOrderRequest{Phone: phone}, nil)
			assert.True(t, businessflow.IsOrderAlreadyDispatched(err))

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("UnknownOrder", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			flow := newOrderFlow(testDB, businessflow.CancellationConfig{})

			_, err := flow.CancelOrder(context.Background(), "KK-2025-99999", &dto.CancelOrderRequest{Phone: testingutil.RandomPhone()}, nil)
			assert.True(t, businessflow.IsOrderNotFound(err))

			return nil
		})
		require.NoError(t, err)
	})
}
