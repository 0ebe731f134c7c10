package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/kitkade/kitkade-backend/app/dto"
	"github.com/kitkade/kitkade-backend/app/services"
	businessflow "github.com/kitkade/kitkade-backend/business_flow"
	"github.com/kitkade/kitkade-backend/models"
	"github.com/kitkade/kitkade-backend/repository"
	testingutil "github.com/kitkade/kitkade-backend/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAdminAuthEnv(t *testing.T, testDB *testingutil.TestDB, username, password string) (businessflow.AdminAuthFlow, services.TokenService) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	tokens, err := services.NewTokenService(testJWTSecret, "kitkade-test", time.Hour, 15*time.Minute)
	require.NoError(t, err)

	flow := businessflow.NewAdminAuthFlow(
		repository.NewAuditLogRepository(testDB.DB),
		tokens,
		businessflow.AdminAuthConfig{
			Username:     username,
			PasswordHash: string(hash),
			TokenTTL:     time.Hour,
		},
	)

	return flow, tokens
}

func TestAdminLogin(t *testing.T) {
	t.Run("ValidCredentials", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			flow, tokens := newAdminAuthEnv(t, testDB, "kitkade-admin", "correct-horse-battery")

			resp, err := flow.Login(context.Background(), &dto.AdminLoginRequest{
				Username: "kitkade-admin",
				Password: "correct-horse-battery",
			}, &businessflow.ClientMetadata{IPAddress: "203.0.113.10"})
			require.NoError(t, err)

			assert.Equal(t, "Bearer", resp.TokenType)
			assert.Equal(t, 3600, resp.ExpiresIn)

			username, err := tokens.ValidateAdminToken(resp.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, "kitkade-admin", username)

			var entry models.AuditLog
			require.NoError(t, testDB.DB.Where("action = ?", models.AuditActionAdminLogin).First(&entry).Error)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			flow, _ := newAdminAuthEnv(t, testDB, "kitkade-admin", "correct-horse-battery")

			_, err := flow.Login(context.Background(), &dto.AdminLoginRequest{
				Username: "kitkade-admin",
				Password: "wrong-password",
			}, nil)
			assert.True(t, businessflow.IsAdminCredentialsInvalid(err))

			var entry models.AuditLog
			require.NoError(t, testDB.DB.Where("action = ?", models.AuditActionAdminLoginFailed).First(&entry).Error)
			assert.True(t, entry.IsFailed())

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("WrongUsername", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			flow, _ := newAdminAuthEnv(t, testDB, "kitkade-admin", "correct-horse-battery")

			_, err := flow.Login(context.Background(), &dto.AdminLoginRequest{
				Username: "intruder",
				Password: "correct-horse-battery",
			}, nil)
			assert.True(t, businessflow.IsAdminCredentialsInvalid(err))

			return nil
		})
		require.NoError(t, err)
	})
}
