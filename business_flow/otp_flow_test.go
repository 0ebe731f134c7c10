package businessflow_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kitkade/kitkade-backend/app/dto"
	"github.com/kitkade/kitkade-backend/app/services"
	businessflow "github.com/kitkade/kitkade-backend/business_flow"
	"github.com/kitkade/kitkade-backend/models"
	"github.com/kitkade/kitkade-backend/repository"
	testingutil "github.com/kitkade/kitkade-backend/testing"
	"github.com/kitkade/kitkade-backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret-key-that-is-long-enough-123456"

var otpCodePattern = regexp.MustCompile(`\d{6}`)

type otpTestEnv struct {
	flow     businessflow.OTPFlow
	sms      *services.MockSMSService
	tokens   services.TokenService
	testDB   *testingutil.TestDB
	fixtures *testingutil.TestFixtures
}

func newOTPTestEnv(t *testing.T, testDB *testingutil.TestDB, cfg businessflow.OTPConfig) *otpTestEnv {
	t.Helper()

	sms := services.NewMockSMSService()
	tokens, err := services.NewTokenService(testJWTSecret, "kitkade-test", time.Hour, 15*time.Minute)
	require.NoError(t, err)

	flow := businessflow.NewOTPFlow(
		repository.NewOTPSessionRepository(testDB.DB),
		repository.NewCustomerRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		sms,
		tokens,
		cfg,
		testDB.DB,
		nil,
	)

	return &otpTestEnv{
		flow:     flow,
		sms:      sms,
		tokens:   tokens,
		testDB:   testDB,
		fixtures: testingutil.NewTestFixtures(testDB),
	}
}

func (e *otpTestEnv) lastSentCode(t *testing.T) string {
	t.Helper()
	messages := e.sms.GetSentMessages()
	require.NotEmpty(t, messages)
	code := otpCodePattern.FindString(messages[len(messages)-1].Message)
	require.Len(t, code, 6)
	return code
}

func TestSendOTP(t *testing.T) {
	t.Run("SuccessfulSend", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})
			ctx := context.Background()

			phone := testingutil.RandomPhone()
			sessionID := uuid.New().String()
			resp, err := env.flow.SendOTP(ctx, &dto.SendOTPRequest{
				Phone:     phone,
				SessionID: sessionID,
			}, &businessflow.ClientMetadata{IPAddress: "203.0.113.10"})
			require.NoError(t, err)

			assert.Equal(t, sessionID, resp.SessionID)
			assert.Equal(t, utils.MaskPhone(phone), resp.MaskedPhone)
			assert.Equal(t, 600, resp.ExpiresIn)

			expiresAt, err := time.Parse(time.RFC3339, resp.ExpiresAt)
			require.NoError(t, err)
			assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, time.Minute)

			messages := env.sms.GetSentMessages()
			require.Len(t, messages, 1)
			assert.Equal(t, phone, messages[0].Recipient)
			assert.Contains(t, messages[0].Message, env.lastSentCode(t))

			// Only the hash is persisted, never the code itself
			var session models.OTPSession
			require.NoError(t, testDB.DB.Where("phone = ?", phone).First(&session).Error)
			assert.NotEqual(t, env.lastSentCode(t), session.OTPHash)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(session.OTPHash), []byte(env.lastSentCode(t))))
			assert.Equal(t, 5, session.MaxAttempts)
			assert.False(t, session.Verified)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("AcceptsLocalPhoneFormat", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})

			resp, err := env.flow.SendOTP(context.Background(), &dto.SendOTPRequest{
				Phone:     "0771234567",
				SessionID: uuid.New().String(),
			}, nil)
			require.NoError(t, err)

			// Stored and dispatched in canonical form
			assert.Equal(t, "94771****567", resp.MaskedPhone)
			require.Len(t, env.sms.GetSentMessages(), 1)
			assert.Equal(t, "94771234567", env.sms.GetSentMessages()[0].Recipient)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("GeneratesSessionIDWhenAbsent", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})

			resp, err := env.flow.SendOTP(context.Background(), &dto.SendOTPRequest{
				Phone: testingutil.RandomPhone(),
			}, nil)
			require.NoError(t, err)

			generated, err := uuid.Parse(resp.SessionID)
			require.NoError(t, err)

			_, err = env.flow.VerifyOTP(context.Background(), &dto.VerifyOTPRequest{
				Phone:     "94770000000",
				SessionID: generated.String(),
				Code:      env.lastSentCode(t),
			}, nil)
			assert.True(t, businessflow.IsOTPNotFoundOrExpired(err), "session is bound to the issuing phone")

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("RejectsInvalidPhone", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})

			_, err := env.flow.SendOTP(context.Background(), &dto.SendOTPRequest{
				Phone:     "12345",
				SessionID: uuid.New().String(),
			}, nil)
			assert.True(t, businessflow.IsInvalidPhone(err))
			assert.Empty(t, env.sms.GetSentMessages())

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("ResendCooldownBlocksSecondSend", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})
			ctx := context.Background()
			phone := testingutil.RandomPhone()

			_, err := env.flow.SendOTP(ctx, &dto.SendOTPRequest{
				Phone:     phone,
				SessionID: uuid.New().String(),
			}, nil)
			require.NoError(t, err)

			_, err = env.flow.SendOTP(ctx, &dto.SendOTPRequest{
				Phone:     phone,
				SessionID: uuid.New().String(),
			}, nil)
			assert.True(t, businessflow.IsOTPCooldownActive(err))

			var cooldownErr *businessflow.CooldownError
			require.ErrorAs(t, err, &cooldownErr)
			assert.Greater(t, cooldownErr.Remaining, 0)
			assert.LessOrEqual(t, cooldownErr.Remaining, 60)

			assert.Len(t, env.sms.GetSentMessages(), 1, "no second SMS goes out during cooldown")

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("CooldownRemainingRoundsUp", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})
			phone := testingutil.RandomPhone()

			// A session created 59.5s ago leaves half a second of cooldown;
			// the customer must still see it as one second, not zero.
			now := utils.UTCNow()
			session := &models.OTPSession{
				SessionID:   uuid.New(),
				Phone:       phone,
				OTPHash:     "unused",
				MaxAttempts: 5,
				ExpiresAt:   now.Add(10 * time.Minute),
				CreatedAt:   now.Add(-59500 * time.Millisecond),
			}
			require.NoError(t, testDB.DB.Create(session).Error)

			_, err := env.flow.SendOTP(context.Background(), &dto.SendOTPRequest{
				Phone:     phone,
				SessionID: uuid.New().String(),
			}, nil)
			assert.True(t, businessflow.IsOTPCooldownActive(err))

			var cooldownErr *businessflow.CooldownError
			require.ErrorAs(t, err, &cooldownErr)
			assert.Greater(t, cooldownErr.Remaining, 0)
			assert.LessOrEqual(t, cooldownErr.Remaining, 1)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("CooldownRemainingDecreasesOverTime", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})
			ctx := context.Background()
			phone := testingutil.RandomPhone()

			now := utils.UTCNow()
			session := &models.OTPSession{
				SessionID:   uuid.New(),
				Phone:       phone,
				OTPHash:     "unused",
				MaxAttempts: 5,
				ExpiresAt:   now.Add(10 * time.Minute),
				CreatedAt:   now.Add(-10 * time.Second),
			}
			require.NoError(t, testDB.DB.Create(session).Error)

			remainingAfter := func(age time.Duration) int {
				require.NoError(t, testDB.DB.Model(&models.OTPSession{}).
					Where("id = ?", session.ID).
					Update("created_at", utils.UTCNow().Add(-age)).Error)

				_, err := env.flow.SendOTP(ctx, &dto.SendOTPRequest{
					Phone:     phone,
					SessionID: uuid.New().String(),
				}, nil)
				require.True(t, businessflow.IsOTPCooldownActive(err))

				var cooldownErr *businessflow.CooldownError
				require.ErrorAs(t, err, &cooldownErr)
				return cooldownErr.Remaining
			}

			early := remainingAfter(10 * time.Second)
			late := remainingAfter(40 * time.Second)

			assert.Greater(t, early, late)
			assert.Greater(t, late, 0)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("HourlyCapBlocksFourthSend", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})
			ctx := context.Background()
			phone := testingutil.RandomPhone()

			// Three sends within the hour, all past the resend cooldown
			now := utils.UTCNow()
			for i := 1; i <= 3; i++ {
				session := &models.OTPSession{
					SessionID:   uuid.New(),
					Phone:       phone,
					OTPHash:     "unused",
					MaxAttempts: 5,
					ExpiresAt:   now.Add(10 * time.Minute),
					CreatedAt:   now.Add(-time.Duration(i*10) * time.Minute),
				}
				require.NoError(t, testDB.DB.Create(session).Error)
			}

			_, err := env.flow.SendOTP(ctx, &dto.SendOTPRequest{
				Phone:     phone,
				SessionID: uuid.New().String(),
			}, nil)
			assert.True(t, businessflow.IsOTPHourlyCapExceeded(err))
			assert.Empty(t, env.sms.GetSentMessages())

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("DispatchFailureRemovesSession", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})
			ctx := context.Background()
			phone := testingutil.RandomPhone()

			env.sms.FailNext = true
			_, err := env.flow.SendOTP(ctx, &dto.SendOTPRequest{
				Phone:     phone,
				SessionID: uuid.New().String(),
			}, nil)
			assert.True(t, businessflow.IsSMSDispatchFailed(err))

			// The session row is rolled back, so no cooldown survives the failure
			var count int64
			require.NoError(t, testDB.DB.Model(&models.OTPSession{}).Where("phone = ?", phone).Count(&count).Error)
			assert.Equal(t, int64(0), count)

			_, err = env.flow.SendOTP(ctx, &dto.SendOTPRequest{
				Phone:     phone,
				SessionID: uuid.New().String(),
			}, nil)
			require.NoError(t, err, "retry after a failed dispatch is not rate limited")

			return nil
		})
		require.NoError(t, err)
	})
}

func TestVerifyOTP(t *testing.T) {
	t.Run("SuccessfulVerification", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})
			ctx := context.Background()

			phone := testingutil.RandomPhone()
			customer, err := env.fixtures.CreateTestCustomer(phone)
			require.NoError(t, err)

			sessionID := uuid.New().String()
			_, err = env.flow.SendOTP(ctx, &dto.SendOTPRequest{Phone: phone, SessionID: sessionID}, nil)
			require.NoError(t, err)

			resp, err := env.flow.VerifyOTP(ctx, &dto.VerifyOTPRequest{
				Phone:     phone,
				SessionID: sessionID,
				Code:      env.lastSentCode(t),
			}, nil)
			require.NoError(t, err)

			assert.Equal(t, phone, resp.Phone)
			assert.NotEmpty(t, resp.VerifiedAt)

			subject, err := env.tokens.ValidatePhoneToken(resp.PhoneToken)
			require.NoError(t, err)
			assert.Equal(t, phone, subject)

			var session models.OTPSession
			require.NoError(t, testDB.DB.Where("phone = ?", phone).First(&session).Error)
			assert.True(t, session.Verified)
			require.NotNil(t, session.VerifiedAt)

			var reloaded models.Customer
			require.NoError(t, testDB.DB.First(&reloaded, customer.ID).Error)
			assert.True(t, utils.IsTrue(reloaded.IsPhoneVerified))
			assert.NotNil(t, reloaded.PhoneVerifiedAt)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("VerifiedSessionCannotBeReplayed", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})
			ctx := context.Background()

			phone := testingutil.RandomPhone()
			sessionID := uuid.New().String()
			_, err := env.flow.SendOTP(ctx, &dto.SendOTPRequest{Phone: phone, SessionID: sessionID}, nil)
			require.NoError(t, err)
			code := env.lastSentCode(t)

			_, err = env.flow.VerifyOTP(ctx, &dto.VerifyOTPRequest{Phone: phone, SessionID: sessionID, Code: code}, nil)
			require.NoError(t, err)

			_, err = env.flow.VerifyOTP(ctx, &dto.VerifyOTPRequest{Phone: phone, SessionID: sessionID, Code: code}, nil)
			assert.True(t, businessflow.IsOTPNotFoundOrExpired(err))

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("UnknownSessionID", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})

			_, err := env.flow.VerifyOTP(context.Background(), &dto.VerifyOTPRequest{
				Phone:     testingutil.RandomPhone(),
				SessionID: uuid.New().String(),
				Code:      "123456",
			}, nil)
			assert.True(t, businessflow.IsOTPNotFoundOrExpired(err))

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("ExpiredSession", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})
			phone := testingutil.RandomPhone()
			sessionID := uuid.New()

			hash, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.MinCost)
			require.NoError(t, err)
			session := &models.OTPSession{
				SessionID:   sessionID,
				Phone:       phone,
				OTPHash:     string(hash),
				MaxAttempts: 5,
				ExpiresAt:   utils.UTCNow().Add(-time.Minute),
				CreatedAt:   utils.UTCNow().Add(-11 * time.Minute),
			}
			require.NoError(t, testDB.DB.Create(session).Error)

			_, err = env.flow.VerifyOTP(context.Background(), &dto.VerifyOTPRequest{
				Phone:     phone,
				SessionID: sessionID.String(),
				Code:      "123456",
			}, nil)
			assert.True(t, businessflow.IsOTPNotFoundOrExpired(err))

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("WrongCodeBurnsAttempts", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})
			ctx := context.Background()

			phone := testingutil.RandomPhone()
			sessionID := uuid.New().String()
			_, err := env.flow.SendOTP(ctx, &dto.SendOTPRequest{Phone: phone, SessionID: sessionID}, nil)
			require.NoError(t, err)

			code := env.lastSentCode(t)
			wrongCode := "000000"
			if code == wrongCode {
				wrongCode = "111111"
			}

			for want := 4; want >= 0; want-- {
				_, err = env.flow.VerifyOTP(ctx, &dto.VerifyOTPRequest{Phone: phone, SessionID: sessionID, Code: wrongCode}, nil)
				assert.True(t, businessflow.IsInvalidOTPCode(err))

				var attemptsErr *businessflow.AttemptsError
				require.ErrorAs(t, err, &attemptsErr)
				assert.Equal(t, want, attemptsErr.Remaining)
			}

			// The session is exhausted only after the last wrong guess
			_, err = env.flow.VerifyOTP(ctx, &dto.VerifyOTPRequest{Phone: phone, SessionID: sessionID, Code: wrongCode}, nil)
			assert.True(t, businessflow.IsOTPAttemptsExceeded(err))
			assert.False(t, businessflow.IsInvalidOTPCode(err))

			// Even the right code is refused once attempts are gone
			_, err = env.flow.VerifyOTP(ctx, &dto.VerifyOTPRequest{Phone: phone, SessionID: sessionID, Code: code}, nil)
			assert.True(t, businessflow.IsOTPAttemptsExceeded(err))

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("AuditTrailWritten", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			env := newOTPTestEnv(t, testDB, businessflow.OTPConfig{})
			ctx := context.Background()

			phone := testingutil.RandomPhone()
			sessionID := uuid.New().String()
			_, err := env.flow.SendOTP(ctx, &dto.SendOTPRequest{Phone: phone, SessionID: sessionID}, nil)
			require.NoError(t, err)
			_, err = env.flow.VerifyOTP(ctx, &dto.VerifyOTPRequest{Phone: phone, SessionID: sessionID, Code: env.lastSentCode(t)}, nil)
			require.NoError(t, err)

			var actions []string
			require.NoError(t, testDB.DB.Model(&models.AuditLog{}).Order("id").Pluck("action", &actions).Error)
			assert.Equal(t, []string{models.AuditActionOTPSent, models.AuditActionOTPVerified}, actions)

			// Audit metadata never carries the raw phone number
			var logs []models.AuditLog
			require.NoError(t, testDB.DB.Find(&logs).Error)
			for _, entry := range logs {
				assert.NotContains(t, string(entry.Metadata), phone)
			}

			return nil
		})
		require.NoError(t, err)
	})
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := businessflow.GenerateOTP()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.Regexp(t, `^[1-9]\d{5}$`, code, "codes never carry a leading zero")

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestBusinessErrorUnwrapping(t *testing.T) {
	err := businessflow.NewBusinessError("OTP_RATE_LIMITED", "OTP send limits reached", &businessflow.CooldownError{Remaining: 42})

	assert.True(t, businessflow.IsOTPCooldownActive(err))

	var cooldownErr *businessflow.CooldownError
	require.ErrorAs(t, err, &cooldownErr)
	assert.Equal(t, 42, cooldownErr.Remaining)

	var businessErr *businessflow.BusinessError
	require.ErrorAs(t, err, &businessErr)
	assert.Equal(t, "OTP_RATE_LIMITED", businessErr.Code)

	assert.False(t, errors.Is(err, fmt.Errorf("unrelated")))
}
