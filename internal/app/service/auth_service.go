package service

import (
	"errors"
	"time"

	"github.com/recetasapp/recetas-backend/internal/app/model"
	"github.com/recetasapp/recetas-backend/internal/app/repository"
	apperrors "github.com/recetasapp/recetas-backend/internal/errors"
	"github.com/recetasapp/recetas-backend/pkg/logger"
	"github.com/recetasapp/recetas-backend/pkg/token"
	"github.com/recetasapp/recetas-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailNotVerified   = errors.New("email has not been verified")
	ErrPasswordIncorrect  = errors.New("old password is incorrect")
)

// ProfileStats summarizes the content owned by an account.
type ProfileStats struct {
	RecipeCount int64 `json:"recipe_count"`
	GroupCount  int64 `json:"group_count"`
}

type AuthService interface {
	Login(email, password string) (*model.User, string, error)
	GetUserByID(id uint) (*model.User, error)
	// GetProfile returns the user together with their content counts.
	GetProfile(userID uint) (*model.User, *ProfileStats, error)
	UpdateProfile(userID uint, username string) (*model.User, error)
	ChangePassword(userID uint, oldPassword, newPassword string) error
	// DeleteAccount removes the user and cascades to their recipes and
	// groups. Outstanding session tokens die with the row: the auth
	// middleware resolves the subject on every call.
	DeleteAccount(userID uint) error
}

type authService struct {
	userRepo      repository.UserRepository
	recipeRepo    repository.RecipeRepository
	groupRepo     repository.GroupRepository
	jwtSecret     string
	sessionExpiry time.Duration
}

func NewAuthService(
	userRepo repository.UserRepository,
	recipeRepo repository.RecipeRepository,
	groupRepo repository.GroupRepository,
	jwtSecret string,
	sessionExpiry time.Duration,
) AuthService {
	return &authService{
		userRepo:      userRepo,
		recipeRepo:    recipeRepo,
		groupRepo:     groupRepo,
		jwtSecret:     jwtSecret,
		sessionExpiry: sessionExpiry,
	}
}

func (s *authService) Login(email, password string) (*model.User, string, error) {
	email = NormalizeEmail(email)

	logger.Info("Login attempt", map[string]interface{}{
		"email": email,
	})

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Login failed: user not found", map[string]interface{}{
				"email": email,
			})
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !user.Verified {
		logger.Warn("Login failed: email not verified", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, "", ErrEmailNotVerified
	}

	if !util.VerifyPassword(user.PasswordHash, password) {
		logger.Warn("Login failed: invalid password", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, "", ErrInvalidCredentials
	}

	sessionToken, err := token.IssueSession(user.ID, user.Email, s.jwtSecret, s.sessionExpiry)
	if err != nil {
		logger.Error("Failed to issue session token", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, "", err
	}

	logger.Info("User logged in successfully", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})

	return user, sessionToken, nil
}

func (s *authService) GetUserByID(id uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) GetProfile(userID uint) (*model.User, *ProfileStats, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, nil, err
	}

	recipes, err := s.recipeRepo.CountByUserID(userID)
	if err != nil {
		return nil, nil, err
	}
	groups, err := s.groupRepo.CountByUserID(userID)
	if err != nil {
		return nil, nil, err
	}

	return user, &ProfileStats{RecipeCount: recipes, GroupCount: groups}, nil
}

func (s *authService) UpdateProfile(userID uint, username string) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if username == "" || username == user.Username {
		return user, nil
	}

	if owner, err := s.userRepo.FindVerifiedByUsername(username); err == nil && owner.ID != userID {
		return nil, ErrUsernameAlreadyExists
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user.Username = username
	if err := s.userRepo.Update(user); err != nil {
		if apperrors.IsDuplicateKey(err) {
			return nil, ErrUsernameAlreadyExists
		}
		return nil, err
	}

	logger.Info("User profile updated", map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
	})

	return user, nil
}

func (s *authService) ChangePassword(userID uint, oldPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if !util.VerifyPassword(user.PasswordHash, oldPassword) {
		logger.Warn("Password change failed: old password incorrect", map[string]interface{}{
			"user_id": userID,
		})
		return ErrPasswordIncorrect
	}

	hashedPassword, err := util.HashPassword(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hashedPassword
	if err := s.userRepo.Update(user); err != nil {
		return err
	}

	logger.Info("Password changed", map[string]interface{}{
		"user_id": userID,
	})
	return nil
}

func (s *authService) DeleteAccount(userID uint) error {
	if _, err := s.userRepo.FindByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.recipeRepo.DeleteByUserID(userID); err != nil {
		return err
	}
	if err := s.groupRepo.DeleteByUserID(userID); err != nil {
		return err
	}
	if err := s.userRepo.Delete(userID); err != nil {
		return err
	}

	logger.Info("Account deleted", map[string]interface{}{
		"user_id": userID,
	})
	return nil
}
