package database

import "campusfeed/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order matters: referenced tables come first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Media{},
		&models.Comment{},
		&models.Reaction{},
		&models.Notification{},
	}
}
