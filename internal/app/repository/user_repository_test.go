package repository

import (
	"testing"

	"github.com/recetasapp/recetas-backend/internal/app/model"
	"github.com/recetasapp/recetas-backend/internal/db"
	apperrors "github.com/recetasapp/recetas-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupUserRepoTest(t *testing.T) UserRepository {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	return NewUserRepository(testDB)
}

func newTestUser(username, email string, verified bool) *model.User {
	return &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$12$fakehashfakehashfakehashfakehashfakehashfakehashfake",
		Verified:     verified,
	}
}

func TestUserRepository_CreateAndFind(t *testing.T) {
	repo := setupUserRepoTest(t)

	user := newTestUser("maria", "maria@example.com", true)
	require.NoError(t, repo.Create(user))
	require.NotZero(t, user.ID)

	byID, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "maria", byID.Username)

	byEmail, err := repo.FindByEmail("maria@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byUsername, err := repo.FindByUsername("maria")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byUsername.ID)

	_, err = repo.FindByEmail("nobody@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_VerifiedScopedFinders(t *testing.T) {
	repo := setupUserRepoTest(t)

	// A ghost row from a legacy deployment that persisted pending
	// registrations. It must be invisible to the verified-scoped finders.
	ghost := newTestUser("ghost", "ghost@example.com", false)
	require.NoError(t, repo.Create(ghost))

	verified := newTestUser("maria", "maria@example.com", true)
	require.NoError(t, repo.Create(verified))

	_, err := repo.FindVerifiedByEmail("ghost@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.FindVerifiedByUsername("ghost")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	found, err := repo.FindVerifiedByEmail("maria@example.com")
	require.NoError(t, err)
	assert.Equal(t, verified.ID, found.ID)

	found, err = repo.FindVerifiedByUsername("maria")
	require.NoError(t, err)
	assert.Equal(t, verified.ID, found.ID)
}

func TestUserRepository_DeleteUnverified(t *testing.T) {
	repo := setupUserRepoTest(t)

	// Username and email held by two different ghost rows.
	ghost1 := newTestUser("maria", "other@example.com", false)
	ghost2 := newTestUser("someoneelse", "maria@example.com", false)
	verified := newTestUser("keeper", "keeper@example.com", true)
	require.NoError(t, repo.Create(ghost1))
	require.NoError(t, repo.Create(ghost2))
	require.NoError(t, repo.Create(verified))

	require.NoError(t, repo.DeleteUnverified("maria", "maria@example.com"))

	_, err := repo.FindByUsername("maria")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repo.FindByEmail("maria@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Verified rows are never touched.
	_, err = repo.FindByID(verified.ID)
	assert.NoError(t, err)
}

func TestUserRepository_DeleteUnverifiedKeepsVerifiedMatches(t *testing.T) {
	repo := setupUserRepoTest(t)

	verified := newTestUser("maria", "maria@example.com", true)
	require.NoError(t, repo.Create(verified))

	require.NoError(t, repo.DeleteUnverified("maria", "maria@example.com"))

	_, err := repo.FindByID(verified.ID)
	assert.NoError(t, err)
}

func TestUserRepository_UniqueIndexes(t *testing.T) {
	repo := setupUserRepoTest(t)

	require.NoError(t, repo.Create(newTestUser("maria", "maria@example.com", true)))

	err := repo.Create(newTestUser("maria", "different@example.com", true))
	require.Error(t, err)
	assert.True(t, apperrors.IsDuplicateKey(err))
	assert.Equal(t, "username", apperrors.DuplicateKeyColumn(err))

	err = repo.Create(newTestUser("different", "maria@example.com", true))
	require.Error(t, err)
	assert.True(t, apperrors.IsDuplicateKey(err))
	assert.Equal(t, "email", apperrors.DuplicateKeyColumn(err))
}

func TestUserRepository_UpdateAndDelete(t *testing.T) {
	repo := setupUserRepoTest(t)

	user := newTestUser("maria", "maria@example.com", true)
	require.NoError(t, repo.Create(user))

	code := "123456"
	user.ResetCode = &code
	require.NoError(t, repo.Update(user))

	reloaded, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.ResetCode)
	assert.Equal(t, code, *reloaded.ResetCode)

	require.NoError(t, repo.Delete(user.ID))
	_, err = repo.FindByID(user.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
