package db

import (
	"virtus/internal/models"
)

// AutoMigrate covers only the tables this service owns. The remote schema
// is otherwise treated as opaque; foreign deployments may add tables we
// never touch.
func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}
	return db.Gorm.AutoMigrate(
		&models.Ticket{},
		&models.LearnedRule{},
		&models.AIMemory{},
		&models.SystemHealth{},
	)
}
