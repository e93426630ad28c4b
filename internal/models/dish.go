package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dish - позиция меню (plato)
type Dish struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Code      string    `json:"codigo" gorm:"column:codigo;type:varchar(64);uniqueIndex;not null"`
	Name      string    `json:"nombre" gorm:"column:nombre;type:varchar(255);not null"`
	Price     float64   `json:"precio" gorm:"column:precio;type:decimal(12,2);not null;default:0"`
	IsActive  bool      `json:"activo" gorm:"column:activo;not null;default:true;index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relations
	Recipe []RecipeLine `json:"escandallo,omitempty" gorm:"foreignKey:DishID"`
}

// TableName указывает имя таблицы
func (Dish) TableName() string {
	return "platos"
}

// BeforeCreate генерирует UUID
func (d *Dish) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// RecipeLine - строка escandallo: сколько ингредиента уходит на одну порцию блюда.
// Пара (plato_id, ingrediente_id) уникальна.
type RecipeLine struct {
	ID           string      `json:"id" gorm:"type:varchar(36);primaryKey"`
	DishID       string      `json:"plato_id" gorm:"column:plato_id;type:varchar(36);not null;uniqueIndex:idx_escandallo_plato_ingrediente"`
	IngredientID string      `json:"ingrediente_id" gorm:"column:ingrediente_id;type:varchar(36);not null;uniqueIndex:idx_escandallo_plato_ingrediente;index"`
	Ingredient   *Ingredient `json:"ingrediente,omitempty" gorm:"foreignKey:IngredientID"`
	Quantity     float64     `json:"cantidad" gorm:"column:cantidad;type:decimal(12,4);not null"`
	Unit         string      `json:"unidad" gorm:"column:unidad;type:varchar(20);not null"`
	CreatedAt    time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (RecipeLine) TableName() string {
	return "escandallos"
}

// BeforeCreate генерирует UUID
func (r *RecipeLine) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}
