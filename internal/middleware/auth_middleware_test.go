package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/recetasapp/recetas-backend/internal/app/model"
	"github.com/recetasapp/recetas-backend/internal/app/repository"
	"github.com/recetasapp/recetas-backend/internal/db"
	"github.com/recetasapp/recetas-backend/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret"

func setupAuthMiddlewareTest(t *testing.T) (*gin.Engine, repository.UserRepository) {
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	userRepo := repository.NewUserRepository(testDB)
	authMiddleware := NewAuthMiddleware(testJWTSecret, userRepo)

	router := gin.New()
	router.GET("/protected", authMiddleware.Authenticate(), func(c *gin.Context) {
		userID, _ := GetUserID(c)
		email, _ := GetUserEmail(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "email": email})
	})

	return router, userRepo
}

func createMiddlewareTestUser(t *testing.T, userRepo repository.UserRepository) *model.User {
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

func doProtectedRequest(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, userRepo := setupAuthMiddlewareTest(t)
	user := createMiddlewareTestUser(t, userRepo)

	sessionToken, err := token.IssueSession(user.ID, user.Email, testJWTSecret, time.Hour)
	require.NoError(t, err)

	w := doProtectedRequest(router, "Bearer "+sessionToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "maria@example.com")
}

func TestAuthMiddleware_MissingOrMalformedHeader(t *testing.T) {
	router, _ := setupAuthMiddlewareTest(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "No header", header: ""},
		{name: "No Bearer prefix", header: "some-token"},
		{name: "Wrong scheme", header: "Basic some-token"},
		{name: "Bearer without token", header: "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doProtectedRequest(router, tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	router, userRepo := setupAuthMiddlewareTest(t)
	user := createMiddlewareTestUser(t, userRepo)

	sessionToken, err := token.IssueSession(user.ID, user.Email, testJWTSecret, -1*time.Minute)
	require.NoError(t, err)

	w := doProtectedRequest(router, "Bearer "+sessionToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "expired")
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	router, userRepo := setupAuthMiddlewareTest(t)
	user := createMiddlewareTestUser(t, userRepo)

	sessionToken, err := token.IssueSession(user.ID, user.Email, "different-secret", time.Hour)
	require.NoError(t, err)

	w := doProtectedRequest(router, "Bearer "+sessionToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_DeletedAccount(t *testing.T) {
	router, userRepo := setupAuthMiddlewareTest(t)
	user := createMiddlewareTestUser(t, userRepo)

	sessionToken, err := token.IssueSession(user.ID, user.Email, testJWTSecret, time.Hour)
	require.NoError(t, err)

	// Token is still cryptographically valid after the account is gone;
	// the store lookup must reject it.
	require.NoError(t, userRepo.Delete(user.ID))

	w := doProtectedRequest(router, "Bearer "+sessionToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "no longer exists")
}
