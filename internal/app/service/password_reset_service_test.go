package service

import (
	"testing"
	"time"

	"github.com/recetasapp/recetas-backend/internal/app/model"
	"github.com/recetasapp/recetas-backend/internal/app/repository"
	"github.com/recetasapp/recetas-backend/internal/db"
	"github.com/recetasapp/recetas-backend/pkg/token"
	"github.com/recetasapp/recetas-backend/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPasswordResetServiceTest(t *testing.T) (PasswordResetService, repository.UserRepository, *fakeMailer) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	userRepo := repository.NewUserRepository(testDB)
	mail := &fakeMailer{}
	svc := NewPasswordResetService(userRepo, mail, testJWTSecret, 10*time.Minute, 720*time.Hour)

	return svc, userRepo, mail
}

func createResetTestUser(t *testing.T, userRepo repository.UserRepository, password string) *model.User {
	t.Helper()
	hash, err := util.HashPassword(password)
	require.NoError(t, err)

	user := &model.User{
		Username:     "maria",
		Email:        "maria@example.com",
		PasswordHash: hash,
		Verified:     true,
	}
	require.NoError(t, userRepo.Create(user))
	return user
}

func storedResetCode(t *testing.T, userRepo repository.UserRepository, email string) string {
	t.Helper()
	user, err := userRepo.FindByEmail(email)
	require.NoError(t, err)
	require.NotNil(t, user.ResetCode)
	return *user.ResetCode
}

func TestPasswordResetService_FullFlow(t *testing.T) {
	svc, userRepo, mail := setupPasswordResetServiceTest(t)
	createResetTestUser(t, userRepo, "oldpassword")

	require.NoError(t, svc.RequestReset("Maria@Example.com"))
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "maria@example.com", mail.sent[0].to)

	code := storedResetCode(t, userRepo, "maria@example.com")
	assert.Contains(t, mail.sent[0].body, code)

	// Verification is idempotent, the code survives any number of checks.
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.VerifyResetCode("maria@example.com", code))
	}

	user, sessionToken, err := svc.CompleteReset("maria@example.com", code, "newpassword")
	require.NoError(t, err)
	assert.True(t, util.VerifyPassword(user.PasswordHash, "newpassword"))
	assert.False(t, util.VerifyPassword(user.PasswordHash, "oldpassword"))

	claims, err := token.ValidateSession(sessionToken, testJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	// Single use: the consumed code no longer verifies or completes.
	assert.ErrorIs(t, svc.VerifyResetCode("maria@example.com", code), ErrCodeInvalidOrExpired)
	_, _, err = svc.CompleteReset("maria@example.com", code, "anotherpassword")
	assert.ErrorIs(t, err, ErrCodeInvalidOrExpired)
}

func TestPasswordResetService_RequestUnknownEmail(t *testing.T) {
	svc, _, mail := setupPasswordResetServiceTest(t)

	err := svc.RequestReset("nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, mail.sent)
}

func TestPasswordResetService_WrongCode(t *testing.T) {
	svc, userRepo, _ := setupPasswordResetServiceTest(t)
	createResetTestUser(t, userRepo, "oldpassword")

	require.NoError(t, svc.RequestReset("maria@example.com"))

	assert.ErrorIs(t, svc.VerifyResetCode("maria@example.com", "000000"), ErrCodeInvalidOrExpired)

	_, _, err := svc.CompleteReset("maria@example.com", "000000", "newpassword")
	assert.ErrorIs(t, err, ErrCodeInvalidOrExpired)

	// The stored code is untouched by failed attempts.
	code := storedResetCode(t, userRepo, "maria@example.com")
	assert.NoError(t, svc.VerifyResetCode("maria@example.com", code))
}

func TestPasswordResetService_CodeScopedToAccount(t *testing.T) {
	svc, userRepo, _ := setupPasswordResetServiceTest(t)
	createResetTestUser(t, userRepo, "oldpassword")

	other := &model.User{
		Username:     "other",
		Email:        "other@example.com",
		PasswordHash: "hash",
		Verified:     true,
	}
	require.NoError(t, userRepo.Create(other))

	require.NoError(t, svc.RequestReset("maria@example.com"))
	code := storedResetCode(t, userRepo, "maria@example.com")

	// A code issued to one account is worthless against another.
	assert.ErrorIs(t, svc.VerifyResetCode("other@example.com", code), ErrCodeInvalidOrExpired)
}

func TestPasswordResetService_ExpiredCode(t *testing.T) {
	svc, userRepo, _ := setupPasswordResetServiceTest(t)
	user := createResetTestUser(t, userRepo, "oldpassword")

	code := "123456"
	expired := time.Now().Add(-1 * time.Minute)
	user.ResetCode = &code
	user.ResetExpiresAt = &expired
	require.NoError(t, userRepo.Update(user))

	assert.ErrorIs(t, svc.VerifyResetCode("maria@example.com", code), ErrCodeInvalidOrExpired)

	_, _, err := svc.CompleteReset("maria@example.com", code, "newpassword")
	assert.ErrorIs(t, err, ErrCodeInvalidOrExpired)
}

func TestPasswordResetService_NewRequestInvalidatesPreviousCode(t *testing.T) {
	svc, userRepo, _ := setupPasswordResetServiceTest(t)
	createResetTestUser(t, userRepo, "oldpassword")

	require.NoError(t, svc.RequestReset("maria@example.com"))
	firstCode := storedResetCode(t, userRepo, "maria@example.com")

	require.NoError(t, svc.RequestReset("maria@example.com"))
	secondCode := storedResetCode(t, userRepo, "maria@example.com")

	if firstCode != secondCode {
		assert.ErrorIs(t, svc.VerifyResetCode("maria@example.com", firstCode), ErrCodeInvalidOrExpired)
	}
	assert.NoError(t, svc.VerifyResetCode("maria@example.com", secondCode))
}

func TestPasswordResetService_RollbackOnMailFailure(t *testing.T) {
	svc, userRepo, mail := setupPasswordResetServiceTest(t)
	createResetTestUser(t, userRepo, "oldpassword")
	mail.fail = true

	err := svc.RequestReset("maria@example.com")
	assert.ErrorIs(t, err, ErrEmailSendFailed)

	// No dangling code survives the failed delivery.
	user, err := userRepo.FindByEmail("maria@example.com")
	require.NoError(t, err)
	assert.Nil(t, user.ResetCode)
	assert.Nil(t, user.ResetExpiresAt)
}
