package repository

import (
	"github.com/recetasapp/recetas-backend/internal/app/model"
	"github.com/recetasapp/recetas-backend/pkg/logger"
	"gorm.io/gorm"
)

type GroupRepository interface {
	CountByUserID(userID uint) (int64, error)
	DeleteByUserID(userID uint) error
}

type groupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Group{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// DeleteByUserID removes all groups owned by the user. Called when an
// account is deleted.
func (r *groupRepository) DeleteByUserID(userID uint) error {
	result := r.db.Where("user_id = ?", userID).Delete(&model.Group{})
	if result.Error != nil {
		logger.Error("Failed to delete user groups", result.Error, map[string]interface{}{
			"user_id": userID,
		})
		return result.Error
	}

	logger.Debug("User groups deleted", map[string]interface{}{
		"user_id": userID,
		"count":   result.RowsAffected,
	})
	return nil
}
