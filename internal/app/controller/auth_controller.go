package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/recetasapp/recetas-backend/internal/app/model"
	"github.com/recetasapp/recetas-backend/internal/app/service"
	apperrors "github.com/recetasapp/recetas-backend/internal/errors"
	"github.com/recetasapp/recetas-backend/internal/middleware"
	"github.com/recetasapp/recetas-backend/pkg/token"
)

type AuthController struct {
	registrationService  service.RegistrationService
	authService          service.AuthService
	passwordResetService service.PasswordResetService
}

func NewAuthController(
	registrationService service.RegistrationService,
	authService service.AuthService,
	passwordResetService service.PasswordResetService,
) *AuthController {
	return &AuthController{
		registrationService:  registrationService,
		authService:          authService,
		passwordResetService: passwordResetService,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=2,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type ConfirmRequest struct {
	RegistrationToken string `json:"registration_token" binding:"required"`
	Code              string `json:"code" binding:"required,len=6"`
}

type ResendRequest struct {
	RegistrationToken string `json:"registration_token" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyResetCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required,len=6"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

func userSummary(user *model.User) gin.H {
	return gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	}
}

// Register handles registration submission
// POST /api/v1/auth/register
func (ctrl *AuthController) Register(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid registration request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid registration data")
		return
	}

	registrationToken, err := ctrl.registrationService.Submit(req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailAlreadyExists):
			apperrors.Conflict(c, apperrors.AuthEmailAlreadyExists, "Email is already registered")
		case errors.Is(err, service.ErrUsernameAlreadyExists):
			apperrors.Conflict(c, apperrors.AuthUsernameExists, "Username is already taken")
		case errors.Is(err, service.ErrEmailSendFailed):
			log.Error("Registration email delivery failed", err, map[string]interface{}{
				"email": req.Email,
			})
			apperrors.RespondWithError(c, http.StatusInternalServerError, apperrors.InternalEmailError,
				"Could not send the confirmation email, please try again")
		default:
			log.Error("Registration failed", err, map[string]interface{}{
				"email": req.Email,
			})
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":            "Registration submitted, check your email for the confirmation code",
		"registration_token": registrationToken,
	})
}

// Confirm handles registration confirmation
// POST /api/v1/auth/confirm
func (ctrl *AuthController) Confirm(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid confirmation data")
		return
	}

	user, sessionToken, err := ctrl.registrationService.Confirm(req.RegistrationToken, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIntentExpired):
			apperrors.BadRequest(c, apperrors.AuthIntentExpired,
				"Registration has expired or is invalid, please register again")
		case errors.Is(err, service.ErrCodeMismatch):
			apperrors.BadRequest(c, apperrors.AuthCodeInvalid, "Confirmation code is incorrect")
		case errors.Is(err, service.ErrEmailAlreadyExists):
			apperrors.Conflict(c, apperrors.AuthEmailAlreadyExists, "Email is already registered")
		case errors.Is(err, service.ErrUsernameAlreadyExists):
			apperrors.Conflict(c, apperrors.AuthUsernameExists, "Username is already taken")
		default:
			log.Error("Registration confirmation failed", err, nil)
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Account confirmed successfully",
		"user":    userSummary(user),
		"token":   sessionToken,
	})
}

// Resend re-issues the registration code
// POST /api/v1/auth/resend
func (ctrl *AuthController) Resend(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	registrationToken, err := ctrl.registrationService.Resend(req.RegistrationToken)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrTokenInvalid):
			apperrors.BadRequest(c, apperrors.AuthTokenInvalid, "Registration token is invalid")
		case errors.Is(err, service.ErrEmailSendFailed):
			apperrors.RespondWithError(c, http.StatusInternalServerError, apperrors.InternalEmailError,
				"Could not send the confirmation email, please try again")
		default:
			log.Error("Resend failed", err, nil)
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":            "A new confirmation code has been sent",
		"registration_token": registrationToken,
	})
}

// Login handles user login
// POST /api/v1/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Please provide email and password")
		return
	}

	user, sessionToken, err := ctrl.authService.Login(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthInvalidCredentials,
				"Invalid email or password")
		case errors.Is(err, service.ErrEmailNotVerified):
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthEmailNotVerified,
				"Please confirm your email before logging in")
		default:
			log.Error("Login failed", err, map[string]interface{}{
				"email": req.Email,
			})
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  userSummary(user),
		"token": sessionToken,
	})
}

// ForgotPassword starts the credential reset flow
// POST /api/v1/auth/forgot-password
func (ctrl *AuthController) ForgotPassword(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	if err := ctrl.passwordResetService.RequestReset(req.Email); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			apperrors.NotFound(c, apperrors.ResourceNotFound, "No account exists with that email")
		case errors.Is(err, service.ErrEmailSendFailed):
			apperrors.RespondWithError(c, http.StatusInternalServerError, apperrors.InternalEmailError,
				"Could not send the reset email, please try again")
		default:
			log.Error("Password reset request failed", err, nil)
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "A reset code has been sent to your email",
	})
}

// VerifyResetCode checks a reset code without consuming it
// POST /api/v1/auth/verify-reset-code
func (ctrl *AuthController) VerifyResetCode(c *gin.Context) {
	var req VerifyResetCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	if err := ctrl.passwordResetService.VerifyResetCode(req.Email, req.Code); err != nil {
		if errors.Is(err, service.ErrCodeInvalidOrExpired) {
			apperrors.BadRequest(c, apperrors.AuthCodeInvalid, "Code is invalid or has expired")
			return
		}
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Code verified",
	})
}

// ResetPassword completes the credential reset flow
// POST /api/v1/auth/reset-password
func (ctrl *AuthController) ResetPassword(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	user, sessionToken, err := ctrl.passwordResetService.CompleteReset(req.Email, req.Code, req.NewPassword)
	if err != nil {
		if errors.Is(err, service.ErrCodeInvalidOrExpired) {
			apperrors.BadRequest(c, apperrors.AuthCodeInvalid, "Code is invalid or has expired")
			return
		}
		log.Error("Password reset failed", err, nil)
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  userSummary(user),
		"token": sessionToken,
	})
}
