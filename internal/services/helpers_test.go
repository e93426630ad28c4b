package services

import (
	"testing"

	"backoffice/server/internal/database"
	"backoffice/server/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB открывает чистую SQLite базу во временной директории теста
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(t.TempDir() + "/test.db")
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func seedIngredient(t *testing.T, db *gorm.DB, code, name string, stock, minStock float64) *models.Ingredient {
	t.Helper()
	ing := &models.Ingredient{Code: code, Name: name, Unit: "kg", MinStock: minStock, IsActive: true}
	require.NoError(t, db.Create(ing).Error)
	require.NoError(t, db.Create(&models.StockLevel{IngredientID: ing.ID, Quantity: stock}).Error)
	return ing
}

func seedDish(t *testing.T, db *gorm.DB, code, name string, lines map[string]float64) *models.Dish {
	t.Helper()
	dish := &models.Dish{Code: code, Name: name, Price: 12.5, IsActive: true}
	require.NoError(t, db.Create(dish).Error)
	for ingredientID, qty := range lines {
		require.NoError(t, db.Create(&models.RecipeLine{
			DishID: dish.ID, IngredientID: ingredientID, Quantity: qty, Unit: "kg",
		}).Error)
	}
	return dish
}

func stockOf(t *testing.T, db *gorm.DB, ingredientID string) float64 {
	t.Helper()
	var level models.StockLevel
	require.NoError(t, db.Where("ingrediente_id = ?", ingredientID).First(&level).Error)
	return level.Quantity
}

func movementCount(t *testing.T, db *gorm.DB, ingredientID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.StockMovement{}).Where("ingrediente_id = ?", ingredientID).Count(&n).Error)
	return n
}
