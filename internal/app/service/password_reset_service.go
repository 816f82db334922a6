package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/recetasapp/recetas-backend/internal/app/model"
	"github.com/recetasapp/recetas-backend/internal/app/repository"
	"github.com/recetasapp/recetas-backend/pkg/logger"
	"github.com/recetasapp/recetas-backend/pkg/mailer"
	"github.com/recetasapp/recetas-backend/pkg/token"
	"github.com/recetasapp/recetas-backend/pkg/util"
	"gorm.io/gorm"
)

var ErrCodeInvalidOrExpired = errors.New("code is invalid or has expired")

type PasswordResetService interface {
	// RequestReset persists a reset code on the account and emails it.
	// If delivery fails the code is rolled back, a user must never be
	// left holding a code that was not sent.
	RequestReset(email string) error
	// VerifyResetCode checks the code without consuming it. Idempotent.
	VerifyResetCode(email, code string) error
	// CompleteReset consumes the code, stores the new password and
	// returns the user with a fresh session token.
	CompleteReset(email, code, newPassword string) (*model.User, string, error)
}

type passwordResetService struct {
	userRepo      repository.UserRepository
	mail          mailer.Mailer
	jwtSecret     string
	codeExpiry    time.Duration
	sessionExpiry time.Duration
}

func NewPasswordResetService(
	userRepo repository.UserRepository,
	mail mailer.Mailer,
	jwtSecret string,
	codeExpiry, sessionExpiry time.Duration,
) PasswordResetService {
	return &passwordResetService{
		userRepo:      userRepo,
		mail:          mail,
		jwtSecret:     jwtSecret,
		codeExpiry:    codeExpiry,
		sessionExpiry: sessionExpiry,
	}
}

func (s *passwordResetService) RequestReset(email string) error {
	email = NormalizeEmail(email)

	logger.Info("Processing password reset request", map[string]interface{}{
		"email": email,
	})

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Password reset requested for unknown email", map[string]interface{}{
				"email": email,
			})
			return ErrUserNotFound
		}
		return err
	}

	code, err := util.GenerateVerificationCode()
	if err != nil {
		logger.Error("Failed to generate reset code", err, nil)
		return err
	}

	// Issuing a new code overwrites and invalidates any previous one.
	expiresAt := time.Now().Add(s.codeExpiry)
	user.ResetCode = &code
	user.ResetExpiresAt = &expiresAt
	if err := s.userRepo.Update(user); err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Forgot your password? Use this code to reset it: %s\n\nThe code expires in %d minutes.",
		code, int(s.codeExpiry.Minutes()),
	)
	if err := s.mail.Send(user.Email, "Your password reset code", body); err != nil {
		// Roll back so no dangling valid code survives a failed delivery.
		user.ClearResetIntent()
		if rbErr := s.userRepo.Update(user); rbErr != nil {
			logger.Error("Failed to roll back reset code after send failure", rbErr, map[string]interface{}{
				"user_id": user.ID,
			})
		}
		return fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
	}

	logger.Info("Password reset code sent", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})
	return nil
}

// resetCodeMatches reports whether the account holds this unexpired
// code. Codes are scoped to the account they were issued to.
func resetCodeMatches(user *model.User, code string) bool {
	return user.ResetCode != nil &&
		user.ResetExpiresAt != nil &&
		*user.ResetCode == code &&
		user.ResetExpiresAt.After(time.Now())
}

func (s *passwordResetService) VerifyResetCode(email, code string) error {
	user, err := s.userRepo.FindByEmail(NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCodeInvalidOrExpired
		}
		return err
	}

	if !resetCodeMatches(user, code) {
		return ErrCodeInvalidOrExpired
	}
	return nil
}

func (s *passwordResetService) CompleteReset(email, code, newPassword string) (*model.User, string, error) {
	user, err := s.userRepo.FindByEmail(NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrCodeInvalidOrExpired
		}
		return nil, "", err
	}

	if !resetCodeMatches(user, code) {
		logger.Warn("Password reset with invalid or expired code", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, "", ErrCodeInvalidOrExpired
	}

	hashedPassword, err := util.HashPassword(newPassword)
	if err != nil {
		logger.Error("Failed to hash new password", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, "", err
	}

	user.PasswordHash = hashedPassword
	user.ClearResetIntent() // single-use
	if err := s.userRepo.Update(user); err != nil {
		return nil, "", err
	}

	sessionToken, err := token.IssueSession(user.ID, user.Email, s.jwtSecret, s.sessionExpiry)
	if err != nil {
		return nil, "", err
	}

	logger.Info("Password reset successful", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})

	return user, sessionToken, nil
}
