package db

import (
	"github.com/recetasapp/recetas-backend/internal/app/model"
	"github.com/recetasapp/recetas-backend/pkg/logger"
)

// Migrate runs database migrations. Uniqueness of username and email is
// enforced here at the index level; the read-checks in the services are
// not sufficient against concurrent confirmations.
func Migrate() error {
	logger.Info("Running database migrations...")

	models := []interface{}{
		&model.User{},
		&model.Recipe{},
		&model.Group{},
	}

	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}
