package database

import "duet/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Pairing{},
		&models.Question{},
		&models.GameSlot{},
	}
}
