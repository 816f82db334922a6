package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/recetasapp/recetas-backend/internal/app/model"
	"github.com/recetasapp/recetas-backend/internal/app/repository"
	apperrors "github.com/recetasapp/recetas-backend/internal/errors"
	"github.com/recetasapp/recetas-backend/pkg/logger"
	"github.com/recetasapp/recetas-backend/pkg/mailer"
	"github.com/recetasapp/recetas-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrSameEmail  = errors.New("new email matches the current email")
	ErrEmailTaken = errors.New("email is already in use by another account")
)

type EmailChangeService interface {
	// RequestChange binds a code to the candidate email on the
	// authenticated account and mails the code to the candidate address.
	RequestChange(userID uint, newEmail string) error
	// VerifyChange promotes the candidate email to the account's email.
	VerifyChange(userID uint, code string) (*model.User, error)
}

type emailChangeService struct {
	userRepo   repository.UserRepository
	mail       mailer.Mailer
	codeExpiry time.Duration
}

func NewEmailChangeService(
	userRepo repository.UserRepository,
	mail mailer.Mailer,
	codeExpiry time.Duration,
) EmailChangeService {
	return &emailChangeService{
		userRepo:   userRepo,
		mail:       mail,
		codeExpiry: codeExpiry,
	}
}

func (s *emailChangeService) RequestChange(userID uint, newEmail string) error {
	newEmail = NormalizeEmail(newEmail)

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if newEmail == NormalizeEmail(user.Email) {
		return ErrSameEmail
	}

	if owner, err := s.userRepo.FindVerifiedByEmail(newEmail); err == nil && owner.ID != userID {
		logger.Warn("Email change blocked: address owned by another account", map[string]interface{}{
			"user_id": userID,
		})
		return ErrEmailTaken
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	code, err := util.GenerateVerificationCode()
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(s.codeExpiry)
	user.PendingEmail = &newEmail
	user.EmailChangeCode = &code
	user.EmailChangeExpiresAt = &expiresAt
	if err := s.userRepo.Update(user); err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Use this code to confirm your new RecetasApp email address: %s\n\nThe code expires in %d minutes.",
		code, int(s.codeExpiry.Minutes()),
	)
	if err := s.mail.Send(newEmail, "Confirm your new email address", body); err != nil {
		user.ClearEmailChangeIntent()
		if rbErr := s.userRepo.Update(user); rbErr != nil {
			logger.Error("Failed to roll back email change code after send failure", rbErr, map[string]interface{}{
				"user_id": user.ID,
			})
		}
		return fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
	}

	logger.Info("Email change code sent", map[string]interface{}{
		"user_id": user.ID,
	})
	return nil
}

func (s *emailChangeService) VerifyChange(userID uint, code string) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if user.PendingEmail == nil ||
		user.EmailChangeCode == nil ||
		user.EmailChangeExpiresAt == nil ||
		*user.EmailChangeCode != code ||
		user.EmailChangeExpiresAt.Before(time.Now()) {
		logger.Warn("Email change verification failed", map[string]interface{}{
			"user_id": userID,
		})
		return nil, ErrCodeInvalidOrExpired
	}

	newEmail := *user.PendingEmail

	// Another verified account may have claimed the address since the
	// change was requested.
	if owner, err := s.userRepo.FindVerifiedByEmail(newEmail); err == nil && owner.ID != userID {
		return nil, ErrEmailTaken
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Ghost rows on the candidate address would trip the unique index.
	if err := s.userRepo.DeleteUnverified("", newEmail); err != nil {
		return nil, err
	}

	user.Email = newEmail
	user.ClearEmailChangeIntent()
	if err := s.userRepo.Update(user); err != nil {
		if apperrors.IsDuplicateKey(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	logger.Info("Email changed", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})
	return user, nil
}
