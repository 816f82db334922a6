package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/recetasapp/recetas-backend/internal/app/service"
	apperrors "github.com/recetasapp/recetas-backend/internal/errors"
	"github.com/recetasapp/recetas-backend/internal/middleware"
)

type UserController struct {
	authService        service.AuthService
	emailChangeService service.EmailChangeService
}

func NewUserController(authService service.AuthService, emailChangeService service.EmailChangeService) *UserController {
	return &UserController{
		authService:        authService,
		emailChangeService: emailChangeService,
	}
}

type UpdateProfileRequest struct {
	Username string `json:"username" binding:"omitempty,min=2,max=30"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

type RequestEmailChangeRequest struct {
	NewEmail string `json:"new_email" binding:"required,email"`
}

type VerifyEmailChangeRequest struct {
	Code string `json:"code" binding:"required,len=6"`
}

// GetMe returns the authenticated user's profile with content counts
// GET /api/v1/users/me
func (ctrl *UserController) GetMe(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	user, stats, err := ctrl.authService.GetProfile(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			apperrors.NotFound(c, apperrors.ResourceNotFound, "User not found")
			return
		}
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  userSummary(user),
		"stats": stats,
	})
}

// UpdateMe updates the authenticated user's profile
// PUT /api/v1/users/me
func (ctrl *UserController) UpdateMe(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	userID, _ := middleware.GetUserID(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid profile data")
		return
	}

	user, err := ctrl.authService.UpdateProfile(userID, req.Username)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			apperrors.NotFound(c, apperrors.ResourceNotFound, "User not found")
		case errors.Is(err, service.ErrUsernameAlreadyExists):
			apperrors.Conflict(c, apperrors.AuthUsernameExists, "Username is already taken")
		default:
			log.Error("Profile update failed", err, map[string]interface{}{
				"user_id": userID,
			})
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userSummary(user)})
}

// ChangePassword updates the authenticated user's password
// PUT /api/v1/users/me/password
func (ctrl *UserController) ChangePassword(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput,
			"Please provide the old and new password (minimum 6 characters)")
		return
	}

	if err := ctrl.authService.ChangePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordIncorrect):
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthPasswordIncorrect,
				"The old password is incorrect")
		case errors.Is(err, service.ErrUserNotFound):
			apperrors.NotFound(c, apperrors.ResourceNotFound, "User not found")
		default:
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// DeleteMe deletes the authenticated account and its recipes and groups
// DELETE /api/v1/users/me
func (ctrl *UserController) DeleteMe(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	userID, _ := middleware.GetUserID(c)

	if err := ctrl.authService.DeleteAccount(userID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			apperrors.NotFound(c, apperrors.ResourceNotFound, "User not found")
			return
		}
		log.Error("Account deletion failed", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}

// RequestEmailChange starts the email-change flow
// POST /api/v1/users/me/email
func (ctrl *UserController) RequestEmailChange(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	userID, _ := middleware.GetUserID(c)

	var req RequestEmailChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid email address")
		return
	}

	if err := ctrl.emailChangeService.RequestChange(userID, req.NewEmail); err != nil {
		switch {
		case errors.Is(err, service.ErrSameEmail):
			apperrors.BadRequest(c, apperrors.AuthSameEmail, "The new email matches your current email")
		case errors.Is(err, service.ErrEmailTaken):
			apperrors.Conflict(c, apperrors.AuthEmailTaken, "Email is already in use by another account")
		case errors.Is(err, service.ErrEmailSendFailed):
			apperrors.RespondWithError(c, http.StatusInternalServerError, apperrors.InternalEmailError,
				"Could not send the confirmation email, please try again")
		case errors.Is(err, service.ErrUserNotFound):
			apperrors.NotFound(c, apperrors.ResourceNotFound, "User not found")
		default:
			log.Error("Email change request failed", err, map[string]interface{}{
				"user_id": userID,
			})
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "A confirmation code has been sent to the new address"})
}

// VerifyEmailChange completes the email-change flow
// PUT /api/v1/users/me/email
func (ctrl *UserController) VerifyEmailChange(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req VerifyEmailChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	user, err := ctrl.emailChangeService.VerifyChange(userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeInvalidOrExpired):
			apperrors.BadRequest(c, apperrors.AuthCodeInvalid, "Code is invalid or has expired")
		case errors.Is(err, service.ErrEmailTaken):
			apperrors.Conflict(c, apperrors.AuthEmailTaken, "Email is already in use by another account")
		default:
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Email updated successfully",
		"user":    userSummary(user),
	})
}
