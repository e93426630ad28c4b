package services

import (
	"context"
	"strings"

	"backoffice/server/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogService управляет справочниками: ингредиенты, блюда и escandallos
type CatalogService struct {
	db *gorm.DB
}

// NewCatalogService создает новый экземпляр CatalogService
func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// IngredientInput - данные для создания ингредиента
type IngredientInput struct {
	Code        string  `json:"codigo" validate:"required,max=64"`
	Name        string  `json:"nombre" validate:"required,max=255"`
	Unit        string  `json:"unidad" validate:"required,max=20"`
	MinStock    float64 `json:"stock_minimo" validate:"gte=0"`
	CostPerUnit float64 `json:"coste_unidad" validate:"gte=0"`
}

// IngredientUpdate - изменяемые поля ингредиента. codigo изменить нельзя.
type IngredientUpdate struct {
	Name        *string  `json:"nombre" validate:"omitempty,min=1,max=255"`
	Unit        *string  `json:"unidad" validate:"omitempty,min=1,max=20"`
	MinStock    *float64 `json:"stock_minimo" validate:"omitempty,gte=0"`
	CostPerUnit *float64 `json:"coste_unidad" validate:"omitempty,gte=0"`
}

// CreateIngredient создает ингредиент вместе с нулевой строкой остатка
func (s *CatalogService) CreateIngredient(ctx context.Context, input IngredientInput) (*models.Ingredient, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	input.Unit = NormalizeUnit(input.Unit)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	ingredient := &models.Ingredient{
		Code:        input.Code,
		Name:        input.Name,
		Unit:        input.Unit,
		MinStock:    input.MinStock,
		CostPerUnit: input.CostPerUnit,
		IsActive:    true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ingredient).Error; err != nil {
			return err
		}
		return tx.Create(&models.StockLevel{IngredientID: ingredient.ID, Quantity: 0}).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, newValidation("codigo", "ya existe")
		}
		return nil, storageErr("create ingredient", err)
	}

	log.Info().Str("id", ingredient.ID).Str("codigo", ingredient.Code).Msg("✅ Ингредиент создан")
	return ingredient, nil
}

// GetIngredient возвращает ингредиент по ID
func (s *CatalogService) GetIngredient(ctx context.Context, id string) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&ingredient).Error; err != nil {
		return nil, notFoundOr("get ingredient", "ingrediente", id, err)
	}
	return &ingredient, nil
}

// ListIngredients возвращает ингредиенты по имени
func (s *CatalogService) ListIngredients(ctx context.Context, includeInactive bool) ([]models.Ingredient, error) {
	query := s.db.WithContext(ctx).Order("nombre ASC")
	if !includeInactive {
		query = query.Where("activo = ?", true)
	}
	ingredients := []models.Ingredient{}
	if err := query.Find(&ingredients).Error; err != nil {
		return nil, storageErr("list ingredients", err)
	}
	return ingredients, nil
}

// UpdateIngredient меняет переданные поля
func (s *CatalogService) UpdateIngredient(ctx context.Context, id string, input IngredientUpdate) (*models.Ingredient, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	ingredient, err := s.GetIngredient(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["nombre"] = strings.TrimSpace(*input.Name)
	}
	if input.Unit != nil {
		updates["unidad"] = NormalizeUnit(*input.Unit)
	}
	if input.MinStock != nil {
		updates["stock_minimo"] = *input.MinStock
	}
	if input.CostPerUnit != nil {
		updates["coste_unidad"] = *input.CostPerUnit
	}
	if len(updates) == 0 {
		return ingredient, nil
	}

	if err := s.db.WithContext(ctx).Model(ingredient).Updates(updates).Error; err != nil {
		return nil, storageErr("update ingredient", err)
	}
	return s.GetIngredient(ctx, id)
}

// DeactivateIngredient - мягкое удаление: история движений остается
func (s *CatalogService) DeactivateIngredient(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Ingredient{}).Where("id = ?", id).Update("activo", false)
	if res.Error != nil {
		return storageErr("deactivate ingredient", res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Entity: "ingrediente", ID: id}
	}
	log.Info().Str("id", id).Msg("🗑️ Ингредиент деактивирован")
	return nil
}

// DishInput - данные для создания блюда
type DishInput struct {
	Code  string  `json:"codigo" validate:"required,max=64"`
	Name  string  `json:"nombre" validate:"required,max=255"`
	Price float64 `json:"precio" validate:"gte=0"`
}

// CreateDish создает блюдо без escandallo
func (s *CatalogService) CreateDish(ctx context.Context, input DishInput) (*models.Dish, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	dish := &models.Dish{Code: input.Code, Name: input.Name, Price: input.Price, IsActive: true}
	if err := s.db.WithContext(ctx).Create(dish).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, newValidation("codigo", "ya existe")
		}
		return nil, storageErr("create dish", err)
	}
	return dish, nil
}

// GetDish возвращает блюдо с escandallo
func (s *CatalogService) GetDish(ctx context.Context, id string) (*models.Dish, error) {
	var dish models.Dish
	if err := s.db.WithContext(ctx).
		Preload("Recipe", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Recipe.Ingredient").
		Where("id = ?", id).
		First(&dish).Error; err != nil {
		return nil, notFoundOr("get dish", "plato", id, err)
	}
	return &dish, nil
}

// ListDishes возвращает блюда по имени
func (s *CatalogService) ListDishes(ctx context.Context, includeInactive bool) ([]models.Dish, error) {
	query := s.db.WithContext(ctx).Order("nombre ASC")
	if !includeInactive {
		query = query.Where("activo = ?", true)
	}
	dishes := []models.Dish{}
	if err := query.Find(&dishes).Error; err != nil {
		return nil, storageErr("list dishes", err)
	}
	return dishes, nil
}

// DeactivateDish снимает блюдо с продажи
func (s *CatalogService) DeactivateDish(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Dish{}).Where("id = ?", id).Update("activo", false)
	if res.Error != nil {
		return storageErr("deactivate dish", res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Entity: "plato", ID: id}
	}
	return nil
}

// RecipeLineInput - строка escandallo на одну порцию
type RecipeLineInput struct {
	IngredientID string  `json:"ingrediente_id" validate:"required"`
	Quantity     float64 `json:"cantidad" validate:"gt=0"`
	Unit         string  `json:"unidad" validate:"max=20"`
}

// SetRecipeLine добавляет или заменяет строку escandallo.
// Пара (plato, ingrediente) уникальна: повторный вызов обновляет количество.
func (s *CatalogService) SetRecipeLine(ctx context.Context, dishID string, input RecipeLineInput) (*models.RecipeLine, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	var line models.RecipeLine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dish models.Dish
		if err := tx.Where("id = ?", dishID).First(&dish).Error; err != nil {
			return notFoundOr("load dish", "plato", dishID, err)
		}
		ingredient, err := activeIngredient(tx, input.IngredientID)
		if err != nil {
			return err
		}

		// Строка хранится в единицах склада ингредиента: explosion вычитает cantidad напрямую
		quantity := round4(input.Quantity)
		if strings.TrimSpace(input.Unit) != "" {
			converted, err := ConvertQuantity(input.Quantity, input.Unit, ingredient.Unit)
			if err != nil {
				return newValidation("unidad", err.Error())
			}
			quantity = converted
		}
		if quantity <= 0 {
			return newValidation("cantidad", "demasiado pequeña para la unidad del ingrediente")
		}
		upsert := models.RecipeLine{
			DishID:       dish.ID,
			IngredientID: ingredient.ID,
			Quantity:     quantity,
			Unit:         NormalizeUnit(ingredient.Unit),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plato_id"}, {Name: "ingrediente_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"cantidad", "unidad", "updated_at"}),
		}).Create(&upsert).Error; err != nil {
			return err
		}
		// При конфликте строка сохраняет свой прежний id, сгенерированный upsert.ID не в БД
		return tx.Preload("Ingredient").
			Where("plato_id = ? AND ingrediente_id = ?", dish.ID, ingredient.ID).
			First(&line).Error
	})
	if err != nil {
		return nil, storageErr("set recipe line", err)
	}
	return &line, nil
}

// RemoveRecipeLine удаляет ингредиент из escandallo блюда
func (s *CatalogService) RemoveRecipeLine(ctx context.Context, dishID, ingredientID string) error {
	res := s.db.WithContext(ctx).
		Where("plato_id = ? AND ingrediente_id = ?", dishID, ingredientID).
		Delete(&models.RecipeLine{})
	if res.Error != nil {
		return storageErr("remove recipe line", res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Entity: "escandallo", ID: dishID + "/" + ingredientID}
	}
	return nil
}

// ListRecipe возвращает строки escandallo блюда
func (s *CatalogService) ListRecipe(ctx context.Context, dishID string) ([]models.RecipeLine, error) {
	dish, err := s.GetDish(ctx, dishID)
	if err != nil {
		return nil, err
	}
	if dish.Recipe == nil {
		return []models.RecipeLine{}, nil
	}
	return dish.Recipe, nil
}

// RecipeCost - себестоимость порции по escandallo
type RecipeCost struct {
	DishID string           `json:"plato_id"`
	Name   string           `json:"nombre"`
	Price  float64          `json:"precio"`
	Cost   float64          `json:"coste"`
	Margin float64          `json:"margen_porcentaje"`
	Lines  []RecipeLineCost `json:"lineas"`
}

// RecipeLineCost - вклад одного ингредиента в себестоимость
type RecipeLineCost struct {
	IngredientID string  `json:"ingrediente_id"`
	Name         string  `json:"nombre"`
	Quantity     float64 `json:"cantidad"`
	CostPerUnit  float64 `json:"coste_unidad"`
	Cost         float64 `json:"coste"`
}

// GetRecipeCost считает coste = Σ cantidad × coste_unidad
func (s *CatalogService) GetRecipeCost(ctx context.Context, dishID string) (*RecipeCost, error) {
	dish, err := s.GetDish(ctx, dishID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	result := &RecipeCost{DishID: dish.ID, Name: dish.Name, Price: dish.Price, Lines: []RecipeLineCost{}}
	for _, line := range dish.Recipe {
		if line.Ingredient == nil {
			continue
		}
		cost := decimal.NewFromFloat(line.Quantity).Mul(decimal.NewFromFloat(line.Ingredient.CostPerUnit)).Round(4)
		total = total.Add(cost)
		lineCost, _ := cost.Float64()
		result.Lines = append(result.Lines, RecipeLineCost{
			IngredientID: line.IngredientID,
			Name:         line.Ingredient.Name,
			Quantity:     line.Quantity,
			CostPerUnit:  line.Ingredient.CostPerUnit,
			Cost:         lineCost,
		})
	}
	result.Cost, _ = total.Round(4).Float64()

	if dish.Price > 0 {
		price := decimal.NewFromFloat(dish.Price)
		result.Margin, _ = price.Sub(total).Div(price).Mul(hundred).Round(2).Float64()
	}
	return result, nil
}

// isUniqueConstraintError проверяет, является ли ошибка нарушением уникального ограничения
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "unique constraint") ||
		strings.Contains(errStr, "23505")
}
