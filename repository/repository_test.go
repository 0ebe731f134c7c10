package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kitkade/kitkade-backend/models"
	"github.com/kitkade/kitkade-backend/repository"
	testingutil "github.com/kitkade/kitkade-backend/testing"
	"github.com/kitkade/kitkade-backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createSession(t *testing.T, testDB *testingutil.TestDB, phone string, sessionID uuid.UUID, createdAgo time.Duration) *models.OTPSession {
	t.Helper()
	now := utils.UTCNow()
	session := &models.OTPSession{
		SessionID:   sessionID,
		Phone:       phone,
		OTPHash:     "hash",
		MaxAttempts: 5,
		ExpiresAt:   now.Add(10 * time.Minute),
		CreatedAt:   now.Add(-createdAgo),
	}
	require.NoError(t, testDB.DB.Create(session).Error)
	return session
}

func TestOTPSessionRepository(t *testing.T) {
	t.Run("IncrementAttemptsStopsAtMax", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			repo := repository.NewOTPSessionRepository(testDB.DB)
			ctx := context.Background()

			session := createSession(t, testDB, testingutil.RandomPhone(), uuid.New(), 0)

			for i := 1; i <= 5; i++ {
				updated, err := repo.IncrementAttempts(ctx, session.ID)
				require.NoError(t, err)
				assert.Equal(t, i, updated.Attempts)
			}

			// The conditional update refuses to go past max_attempts
			updated, err := repo.IncrementAttempts(ctx, session.ID)
			require.NoError(t, err)
			assert.Equal(t, 5, updated.Attempts)
			assert.Equal(t, 0, updated.AttemptsRemaining())

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("LatestActiveSkipsVerifiedAndExpired", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			repo := repository.NewOTPSessionRepository(testDB.DB)
			ctx := context.Background()
			phone := testingutil.RandomPhone()
			sessionID := uuid.New()

			found, err := repo.LatestActive(ctx, phone, sessionID)
			require.NoError(t, err)
			assert.Nil(t, found)

			session := createSession(t, testDB, phone, sessionID, 0)

			found, err = repo.LatestActive(ctx, phone, sessionID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, session.ID, found.ID)

			require.NoError(t, repo.MarkVerified(ctx, session.ID, utils.UTCNow()))

			found, err = repo.LatestActive(ctx, phone, sessionID)
			require.NoError(t, err)
			assert.Nil(t, found, "verified sessions are inert")

			expired := createSession(t, testDB, phone, sessionID, 0)
			require.NoError(t, testDB.DB.Model(expired).Update("expires_at", utils.UTCNow().Add(-time.Minute)).Error)

			found, err = repo.LatestActive(ctx, phone, sessionID)
			require.NoError(t, err)
			assert.Nil(t, found, "expired sessions are inert")

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("CountCreatedSince", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			repo := repository.NewOTPSessionRepository(testDB.DB)
			ctx := context.Background()
			phone := testingutil.RandomPhone()

			createSession(t, testDB, phone, uuid.New(), 10*time.Minute)
			createSession(t, testDB, phone, uuid.New(), 30*time.Minute)
			createSession(t, testDB, phone, uuid.New(), 2*time.Hour)
			createSession(t, testDB, testingutil.RandomPhone(), uuid.New(), time.Minute)

			count, err := repo.CountCreatedSince(ctx, phone, utils.UTCNow().Add(-time.Hour))
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			return nil
		})
		require.NoError(t, err)
	})
}

func TestWithTransactionRollback(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		deliveryRepo := repository.NewDeliveryStatusRepository(testDB.DB)
		ctx := context.Background()

		boom := fmt.Errorf("boom")
		err := repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
			if err := deliveryRepo.AppendEvent(txCtx, &models.DeliveryStatusEvent{
				OrderCode: "KK-2025-00200",
				Stage:     models.DeliveryStageSourcing,
				UpdatedBy: "admin",
				CreatedAt: utils.UTCNow(),
			}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		var count int64
		require.NoError(t, testDB.DB.Model(&models.DeliveryStatusEvent{}).Count(&count).Error)
		assert.Equal(t, int64(0), count, "writes inside a failed transaction do not land")

		return nil
	})
	require.NoError(t, err)
}

func TestDeliveryStatusUpsert(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewDeliveryStatusRepository(testDB.DB)
		ctx := context.Background()

		tracking := "LK555000111"
		require.NoError(t, repo.Upsert(ctx, &models.DeliveryStatus{
			OrderCode:      "KK-2025-00201",
			Stage:          models.DeliveryStageSourcing,
			TrackingNumber: &tracking,
		}))

		// Second upsert clears the tracking number rather than keeping a stale one
		require.NoError(t, repo.Upsert(ctx, &models.DeliveryStatus{
			OrderCode: "KK-2025-00201",
			Stage:     models.DeliveryStageArrived,
		}))

		status, err := repo.ByOrderCode(ctx, "KK-2025-00201")
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, models.DeliveryStageArrived, status.Stage)
		assert.Nil(t, status.TrackingNumber)

		var count int64
		require.NoError(t, testDB.DB.Model(&models.DeliveryStatus{}).Where("order_code = ?", "KK-2025-00201").Count(&count).Error)
		assert.Equal(t, int64(1), count)

		return nil
	})
	require.NoError(t, err)
}
