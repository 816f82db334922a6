package service

import (
	"testing"
	"time"

	"github.com/recetasapp/recetas-backend/internal/app/model"
	"github.com/recetasapp/recetas-backend/internal/app/repository"
	"github.com/recetasapp/recetas-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEmailChangeServiceTest(t *testing.T) (EmailChangeService, repository.UserRepository, *fakeMailer) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	userRepo := repository.NewUserRepository(testDB)
	mail := &fakeMailer{}
	svc := NewEmailChangeService(userRepo, mail, 10*time.Minute)

	return svc, userRepo, mail
}

func createEmailChangeTestUser(t *testing.T, userRepo repository.UserRepository) *model.User {
	t.Helper()
	user := &model.User{
		Username:     "maria",
		Email:        "maria@example.com",
		PasswordHash: "hash",
		Verified:     true,
	}
	require.NoError(t, userRepo.Create(user))
	return user
}

func storedEmailChangeCode(t *testing.T, userRepo repository.UserRepository, userID uint) string {
	t.Helper()
	user, err := userRepo.FindByID(userID)
	require.NoError(t, err)
	require.NotNil(t, user.EmailChangeCode)
	return *user.EmailChangeCode
}

func TestEmailChangeService_FullFlow(t *testing.T) {
	svc, userRepo, mail := setupEmailChangeServiceTest(t)
	user := createEmailChangeTestUser(t, userRepo)

	require.NoError(t, svc.RequestChange(user.ID, "New@Example.com"))

	// The code goes to the candidate address, not the current one.
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "new@example.com", mail.sent[0].to)

	code := storedEmailChangeCode(t, userRepo, user.ID)
	assert.Contains(t, mail.sent[0].body, code)

	updated, err := svc.VerifyChange(user.ID, code)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Nil(t, updated.PendingEmail)
	assert.Nil(t, updated.EmailChangeCode)
	assert.Nil(t, updated.EmailChangeExpiresAt)

	// Single use.
	_, err = svc.VerifyChange(user.ID, code)
	assert.ErrorIs(t, err, ErrCodeInvalidOrExpired)
}

func TestEmailChangeService_SameEmail(t *testing.T) {
	svc, userRepo, mail := setupEmailChangeServiceTest(t)
	user := createEmailChangeTestUser(t, userRepo)

	err := svc.RequestChange(user.ID, "MARIA@example.com")
	assert.ErrorIs(t, err, ErrSameEmail)
	assert.Empty(t, mail.sent)
}

func TestEmailChangeService_EmailTaken(t *testing.T) {
	svc, userRepo, mail := setupEmailChangeServiceTest(t)
	user := createEmailChangeTestUser(t, userRepo)

	require.NoError(t, userRepo.Create(&model.User{
		Username: "rival", Email: "taken@example.com", PasswordHash: "h", Verified: true,
	}))

	err := svc.RequestChange(user.ID, "taken@example.com")
	assert.ErrorIs(t, err, ErrEmailTaken)

	// No code issued and no email sent for a blocked request.
	assert.Empty(t, mail.sent)
	reloaded, err := userRepo.FindByID(user.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.EmailChangeCode)
}

func TestEmailChangeService_GhostOnCandidateAddressDoesNotBlock(t *testing.T) {
	svc, userRepo, _ := setupEmailChangeServiceTest(t)
	user := createEmailChangeTestUser(t, userRepo)

	ghost := &model.User{
		Username: "ghost", Email: "new@example.com", PasswordHash: "h", Verified: false,
	}
	require.NoError(t, userRepo.Create(ghost))

	require.NoError(t, svc.RequestChange(user.ID, "new@example.com"))
	code := storedEmailChangeCode(t, userRepo, user.ID)

	updated, err := svc.VerifyChange(user.ID, code)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)

	// The ghost was superseded so the unique index could be claimed.
	_, err = userRepo.FindByUsername("ghost")
	assert.Error(t, err)
}

func TestEmailChangeService_VerifyWrongCode(t *testing.T) {
	svc, userRepo, _ := setupEmailChangeServiceTest(t)
	user := createEmailChangeTestUser(t, userRepo)

	require.NoError(t, svc.RequestChange(user.ID, "new@example.com"))

	_, err := svc.VerifyChange(user.ID, "000000")
	assert.ErrorIs(t, err, ErrCodeInvalidOrExpired)

	// The pending change survives a wrong guess.
	code := storedEmailChangeCode(t, userRepo, user.ID)
	updated, err := svc.VerifyChange(user.ID, code)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
}

func TestEmailChangeService_VerifyWithoutPendingChange(t *testing.T) {
	svc, userRepo, _ := setupEmailChangeServiceTest(t)
	user := createEmailChangeTestUser(t, userRepo)

	_, err := svc.VerifyChange(user.ID, "123456")
	assert.ErrorIs(t, err, ErrCodeInvalidOrExpired)
}

func TestEmailChangeService_ExpiredCode(t *testing.T) {
	svc, userRepo, _ := setupEmailChangeServiceTest(t)
	user := createEmailChangeTestUser(t, userRepo)

	newEmail := "new@example.com"
	code := "123456"
	expired := time.Now().Add(-1 * time.Minute)
	user.PendingEmail = &newEmail
	user.EmailChangeCode = &code
	user.EmailChangeExpiresAt = &expired
	require.NoError(t, userRepo.Update(user))

	_, err := svc.VerifyChange(user.ID, code)
	assert.ErrorIs(t, err, ErrCodeInvalidOrExpired)
}

func TestEmailChangeService_VerifyRechecksOwnership(t *testing.T) {
	svc, userRepo, _ := setupEmailChangeServiceTest(t)
	user := createEmailChangeTestUser(t, userRepo)

	require.NoError(t, svc.RequestChange(user.ID, "new@example.com"))
	code := storedEmailChangeCode(t, userRepo, user.ID)

	// The candidate address gets claimed while the change is pending.
	require.NoError(t, userRepo.Create(&model.User{
		Username: "rival", Email: "new@example.com", PasswordHash: "h", Verified: true,
	}))

	_, err := svc.VerifyChange(user.ID, code)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestEmailChangeService_RollbackOnMailFailure(t *testing.T) {
	svc, userRepo, mail := setupEmailChangeServiceTest(t)
	user := createEmailChangeTestUser(t, userRepo)
	mail.fail = true

	err := svc.RequestChange(user.ID, "new@example.com")
	assert.ErrorIs(t, err, ErrEmailSendFailed)

	reloaded, err := userRepo.FindByID(user.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.PendingEmail)
	assert.Nil(t, reloaded.EmailChangeCode)
	assert.Nil(t, reloaded.EmailChangeExpiresAt)
	assert.Equal(t, "maria@example.com", reloaded.Email)
}
