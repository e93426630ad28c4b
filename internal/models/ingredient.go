package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ingredient представляет закупаемый/складируемый товар (ingrediente)
type Ingredient struct {
	ID          string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Code        string    `json:"codigo" gorm:"column:codigo;type:varchar(64);uniqueIndex;not null"` // Неизменяем после создания
	Name        string    `json:"nombre" gorm:"column:nombre;type:varchar(255);not null"`
	Unit        string    `json:"unidad" gorm:"column:unidad;type:varchar(20);not null;default:'kg'"`
	MinStock    float64   `json:"stock_minimo" gorm:"column:stock_minimo;type:decimal(12,4);not null;default:0"`
	CostPerUnit float64   `json:"coste_unidad" gorm:"column:coste_unidad;type:decimal(12,4);not null;default:0"`
	IsActive    bool      `json:"activo" gorm:"column:activo;not null;default:true;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (Ingredient) TableName() string {
	return "ingredientes"
}

// BeforeCreate генерирует UUID
func (i *Ingredient) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}
