package repository

import (
	"github.com/recetasapp/recetas-backend/internal/app/model"
	"github.com/recetasapp/recetas-backend/pkg/logger"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(user *model.User) error
	FindByID(id uint) (*model.User, error)
	FindByEmail(email string) (*model.User, error)
	FindByUsername(username string) (*model.User, error)
	FindVerifiedByEmail(email string) (*model.User, error)
	FindVerifiedByUsername(username string) (*model.User, error)
	Update(user *model.User) error
	Delete(id uint) error
	DeleteUnverified(username, email string) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *model.User) error {
	logger.Debug("Creating user in database", map[string]interface{}{
		"email": user.Email,
	})

	if err := r.db.Create(user).Error; err != nil {
		logger.Error("Failed to create user in database", err, map[string]interface{}{
			"email": user.Email,
		})
		return err
	}

	logger.Debug("User created in database", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})
	return nil
}

func (r *userRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(username string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindVerifiedByEmail looks up a verified account by email. Unverified
// ghost rows are invisible to the duplicate-resolution policy.
func (r *userRepository) FindVerifiedByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ? AND verified = ?", email, true).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindVerifiedByUsername looks up a verified account by username.
func (r *userRepository) FindVerifiedByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.db.Where("username = ? AND verified = ?", username, true).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(user *model.User) error {
	logger.Debug("Updating user in database", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})

	if err := r.db.Save(user).Error; err != nil {
		logger.Error("Failed to update user in database", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return err
	}
	return nil
}

func (r *userRepository) Delete(id uint) error {
	logger.Debug("Deleting user from database", map[string]interface{}{
		"user_id": id,
	})

	if err := r.db.Delete(&model.User{}, id).Error; err != nil {
		logger.Error("Failed to delete user from database", err, map[string]interface{}{
			"user_id": id,
		})
		return err
	}
	return nil
}

// DeleteUnverified removes unverified ghost rows holding the given
// username or email, so a verified account can claim them. Username and
// email may sit on two different ghost rows; both are removed.
func (r *userRepository) DeleteUnverified(username, email string) error {
	result := r.db.Where("verified = ? AND (username = ? OR email = ?)", false, username, email).
		Delete(&model.User{})
	if result.Error != nil {
		logger.Error("Failed to delete unverified users", result.Error, map[string]interface{}{
			"username": username,
			"email":    email,
		})
		return result.Error
	}

	if result.RowsAffected > 0 {
		logger.Info("Superseded unverified ghost accounts", map[string]interface{}{
			"username": username,
			"email":    email,
			"count":    result.RowsAffected,
		})
	}
	return nil
}
