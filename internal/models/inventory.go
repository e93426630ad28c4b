package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockLevel - текущий остаток ингредиента (одна строка на ингредиент).
// Единственный источник истины для количества на складе.
type StockLevel struct {
	IngredientID string      `json:"ingrediente_id" gorm:"column:ingrediente_id;type:varchar(36);primaryKey"`
	Ingredient   *Ingredient `json:"ingrediente,omitempty" gorm:"foreignKey:IngredientID"`
	Quantity     float64     `json:"cantidad_actual" gorm:"column:cantidad_actual;type:decimal(12,4);not null;default:0"`
	UpdatedAt    time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (StockLevel) TableName() string {
	return "inventario"
}

// Lot - физическая партия ингредиента с собственным сроком годности.
// Quantity - остаток в партии; уменьшается по FIFO при расходе.
type Lot struct {
	ID           string      `json:"id" gorm:"type:varchar(36);primaryKey"`
	IngredientID string      `json:"ingrediente_id" gorm:"column:ingrediente_id;type:varchar(36);not null;index"`
	Ingredient   *Ingredient `json:"ingrediente,omitempty" gorm:"foreignKey:IngredientID"`
	Quantity     float64     `json:"cantidad" gorm:"column:cantidad;type:decimal(12,4);not null;default:0"`
	Received     float64     `json:"cantidad_recibida" gorm:"column:cantidad_recibida;type:decimal(12,4);not null;default:0"`
	Code         string      `json:"lote" gorm:"column:lote;type:varchar(100);index"`
	ExpiresAt    *time.Time  `json:"fecha_caducidad" gorm:"column:fecha_caducidad;index"` // NULL если срок не отслеживается
	RegisteredAt time.Time   `json:"registrado_en" gorm:"column:registrado_en;autoCreateTime;index"`
}

// TableName указывает имя таблицы
func (Lot) TableName() string {
	return "lotes"
}

// BeforeCreate генерирует UUID
func (l *Lot) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Received == 0 {
		l.Received = l.Quantity
	}
	return nil
}
