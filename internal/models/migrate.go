package models

import (
	"fmt"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tables
func AutoMigrate(db *gorm.DB) error {
	for _, model := range []interface{}{&Company{}, &StoredInvoice{}, &AdminUser{}} {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("auto migrate %T: %w", model, err)
		}
	}
	return nil
}
