package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/recetasapp/recetas-backend/internal/app/model"
	"github.com/recetasapp/recetas-backend/internal/app/repository"
	apperrors "github.com/recetasapp/recetas-backend/internal/errors"
	"github.com/recetasapp/recetas-backend/pkg/logger"
	"github.com/recetasapp/recetas-backend/pkg/mailer"
	"github.com/recetasapp/recetas-backend/pkg/token"
	"github.com/recetasapp/recetas-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrEmailAlreadyExists    = errors.New("email already exists")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrCodeMismatch          = errors.New("confirmation code does not match")
	ErrIntentExpired         = errors.New("registration has expired or is invalid")
	ErrEmailSendFailed       = errors.New("failed to send email")
)

// Registration intent payload keys. The intent is never persisted; its
// only durable representation is the signed token handed to the caller.
const (
	intentUsername     = "username"
	intentEmail        = "email"
	intentPasswordHash = "password_hash"
	intentCode         = "code"
)

type RegistrationService interface {
	// Submit validates availability, builds a registration intent and
	// returns it as a signed token. Exactly one email is sent.
	Submit(username, email, password string) (string, error)
	// Confirm consumes an intent token and materializes the account.
	// Returns the new user and a session token.
	Confirm(intentToken, code string) (*model.User, string, error)
	// Resend re-issues the intent with a fresh code, accepting expired
	// tokens. Username, email and password hash are preserved.
	Resend(intentToken string) (string, error)
}

type registrationService struct {
	userRepo      repository.UserRepository
	codec         *token.Codec
	mail          mailer.Mailer
	jwtSecret     string
	intentExpiry  time.Duration
	sessionExpiry time.Duration
}

func NewRegistrationService(
	userRepo repository.UserRepository,
	codec *token.Codec,
	mail mailer.Mailer,
	jwtSecret string,
	intentExpiry, sessionExpiry time.Duration,
) RegistrationService {
	return &registrationService{
		userRepo:      userRepo,
		codec:         codec,
		mail:          mail,
		jwtSecret:     jwtSecret,
		intentExpiry:  intentExpiry,
		sessionExpiry: sessionExpiry,
	}
}

// checkIdentityAvailable applies the duplicate-resolution policy: an
// existing record blocks the candidate only if it is verified. Ghost
// rows from older deployments never block and are superseded at create.
func checkIdentityAvailable(repo repository.UserRepository, username, email string) error {
	if _, err := repo.FindVerifiedByEmail(email); err == nil {
		return ErrEmailAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if username != "" {
		if _, err := repo.FindVerifiedByUsername(username); err == nil {
			return ErrUsernameAlreadyExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	return nil
}

func (s *registrationService) Submit(username, email, password string) (string, error) {
	email = NormalizeEmail(email)

	logger.Info("Attempting user registration", map[string]interface{}{
		"email":    email,
		"username": username,
	})

	if err := checkIdentityAvailable(s.userRepo, username, email); err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) || errors.Is(err, ErrUsernameAlreadyExists) {
			logger.Warn("Registration blocked by existing verified account", map[string]interface{}{
				"email":    email,
				"username": username,
			})
		}
		return "", err
	}

	hashedPassword, err := util.HashPassword(password)
	if err != nil {
		logger.Error("Failed to hash password", err, map[string]interface{}{
			"email": email,
		})
		return "", err
	}

	code, err := util.GenerateVerificationCode()
	if err != nil {
		logger.Error("Failed to generate confirmation code", err, nil)
		return "", err
	}

	intentToken, err := s.codec.Issue(map[string]string{
		intentUsername:     username,
		intentEmail:        email,
		intentPasswordHash: hashedPassword,
		intentCode:         code,
	}, s.intentExpiry)
	if err != nil {
		logger.Error("Failed to issue registration intent token", err, map[string]interface{}{
			"email": email,
		})
		return "", err
	}

	body := fmt.Sprintf(
		"Welcome to RecetasApp!\n\nYour confirmation code is: %s\n\nThe code expires in %d minutes.",
		code, int(s.intentExpiry.Minutes()),
	)
	if err := s.mail.Send(email, "Confirm your RecetasApp account", body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
	}

	logger.Info("Registration intent issued", map[string]interface{}{
		"email":    email,
		"username": username,
	})

	return intentToken, nil
}

func (s *registrationService) Confirm(intentToken, code string) (*model.User, string, error) {
	payload, err := s.codec.Verify(intentToken)
	if err != nil {
		logger.Warn("Registration confirmation with bad token", map[string]interface{}{
			"error": err.Error(),
		})
		// An expired token carries no recoverable state for the caller,
		// both cases surface as "expired or invalid, register again".
		return nil, "", ErrIntentExpired
	}

	if payload[intentCode] != code {
		logger.Warn("Registration confirmation code mismatch", map[string]interface{}{
			"email": payload[intentEmail],
		})
		return nil, "", ErrCodeMismatch
	}

	username := payload[intentUsername]
	email := payload[intentEmail]

	// Re-check: another verified account may have claimed the identity
	// since submission. Intents are long-lived relative to write traffic,
	// the check at submit time is not enough.
	if err := checkIdentityAvailable(s.userRepo, username, email); err != nil {
		return nil, "", err
	}

	// Supersede any ghost rows left behind by the legacy persisted flow.
	if err := s.userRepo.DeleteUnverified(username, email); err != nil {
		return nil, "", err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: payload[intentPasswordHash],
		Verified:     true,
	}
	if err := s.userRepo.Create(user); err != nil {
		// Unique index decides races between concurrent confirmations.
		if apperrors.IsDuplicateKey(err) {
			if apperrors.DuplicateKeyColumn(err) == "username" {
				return nil, "", ErrUsernameAlreadyExists
			}
			return nil, "", ErrEmailAlreadyExists
		}
		return nil, "", err
	}

	sessionToken, err := token.IssueSession(user.ID, user.Email, s.jwtSecret, s.sessionExpiry)
	if err != nil {
		logger.Error("Failed to issue session token", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, "", err
	}

	logger.Info("Account confirmed", map[string]interface{}{
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
	})

	return user, sessionToken, nil
}

func (s *registrationService) Resend(intentToken string) (string, error) {
	// Expired intents are still readable here so the caller does not
	// have to re-enter the registration form.
	payload, err := s.codec.VerifyIgnoreExpiry(intentToken)
	if err != nil {
		logger.Warn("Resend with invalid intent token", map[string]interface{}{
			"error": err.Error(),
		})
		return "", token.ErrTokenInvalid
	}

	code, err := util.GenerateVerificationCode()
	if err != nil {
		return "", err
	}

	newToken, err := s.codec.Issue(map[string]string{
		intentUsername:     payload[intentUsername],
		intentEmail:        payload[intentEmail],
		intentPasswordHash: payload[intentPasswordHash],
		intentCode:         code,
	}, s.intentExpiry)
	if err != nil {
		return "", err
	}

	body := fmt.Sprintf(
		"Your new RecetasApp confirmation code is: %s\n\nThe code expires in %d minutes.",
		code, int(s.intentExpiry.Minutes()),
	)
	if err := s.mail.Send(payload[intentEmail], "Confirm your RecetasApp account", body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
	}

	logger.Info("Registration code resent", map[string]interface{}{
		"email": payload[intentEmail],
	})

	return newToken, nil
}

// NormalizeEmail lowercases and trims an email address. Email compares
// are case-insensitive everywhere; the store only sees this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
