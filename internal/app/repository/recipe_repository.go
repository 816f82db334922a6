package repository

import (
	"github.com/recetasapp/recetas-backend/internal/app/model"
	"github.com/recetasapp/recetas-backend/pkg/logger"
	"gorm.io/gorm"
)

type RecipeRepository interface {
	CountByUserID(userID uint) (int64, error)
	DeleteByUserID(userID uint) error
}

type recipeRepository struct {
	db *gorm.DB
}

func NewRecipeRepository(db *gorm.DB) RecipeRepository {
	return &recipeRepository{db: db}
}

func (r *recipeRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Recipe{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// DeleteByUserID removes all recipes owned by the user. Called when an
// account is deleted.
func (r *recipeRepository) DeleteByUserID(userID uint) error {
	result := r.db.Where("user_id = ?", userID).Delete(&model.Recipe{})
	if result.Error != nil {
		logger.Error("Failed to delete user recipes", result.Error, map[string]interface{}{
			"user_id": userID,
		})
		return result.Error
	}

	logger.Debug("User recipes deleted", map[string]interface{}{
		"user_id": userID,
		"count":   result.RowsAffected,
	})
	return nil
}
