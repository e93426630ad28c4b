package models

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AutoMigrate создает таблицы в БД. Порядок важен: справочники раньше ссылающихся на них таблиц.
func AutoMigrate(db *gorm.DB) error {
	tables := []interface{}{
		&Ingredient{},
		&StockLevel{},
		&Lot{},
		&Dish{},
		&RecipeLine{},
		&StockMovement{},
		&ProductionBatch{},
		&Order{},
		&OrderLine{},
	}
	for _, table := range tables {
		if err := db.AutoMigrate(table); err != nil {
			return fmt.Errorf("AutoMigrate %T: %w", table, err)
		}
	}

	// cantidad_actual >= 0 держит условный UPDATE в StockLedger, а не CHECK
	log.Info().Int("tables", len(tables)).Msg("✅ Database migrations completed")
	return nil
}
