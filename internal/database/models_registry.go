package database

import (
	"lanes/internal/models"

	"gorm.io/gorm"
)

// registeredModels is the single source of truth for schema migration.
// Order matters for foreign key creation.
func registeredModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Organisation{},
		&models.Room{},
		&models.Membership{},
		&models.BotScope{},
		&models.Post{},
		&models.PostRevision{},
		&models.Vote{},
		&models.Flag{},
		&models.BanRecord{},
		&models.BanLog{},
	}
}

// Migrate runs AutoMigrate for every registered model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(registeredModels()...)
}
