package db

import (
	"fmt"

	"github.com/haldane/foreman/internal/config"
	"github.com/haldane/foreman/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.WorkItem{},
		&models.User{},
		&models.Membership{},
		&models.Notification{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedUsers upserts User and Membership rows from configuration.
func SeedUsers(db *gorm.DB, users []config.UserConfig) error {
	for _, uc := range users {
		user := models.User{
			ID:     uc.ID,
			Name:   uc.Name,
			Email:  uc.Email,
			Active: true,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "active"}),
		}).Create(&user)
		if result.Error != nil {
			return fmt.Errorf("db: seed user %q: %w", uc.ID, result.Error)
		}

		for _, mc := range uc.Memberships {
			m := models.Membership{
				UserID:  uc.ID,
				Project: mc.Project,
				Role:    models.Role(mc.Role),
			}
			result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
			if result.Error != nil {
				return fmt.Errorf("db: seed membership %s/%s for %q: %w", mc.Project, mc.Role, uc.ID, result.Error)
			}
		}
	}
	return nil
}
