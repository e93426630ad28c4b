package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Типы движений склада
const (
	MovementEntry = "ENTRADA"
	MovementExit  = "SALIDA"
)

// StockMovement - запись журнала движений (только добавление, никогда не изменяется)
type StockMovement struct {
	ID             string      `json:"id" gorm:"type:varchar(36);primaryKey"`
	IngredientID   string      `json:"ingrediente_id" gorm:"column:ingrediente_id;type:varchar(36);not null;index"`
	Ingredient     *Ingredient `json:"ingrediente,omitempty" gorm:"foreignKey:IngredientID"`
	LotID          *string     `json:"lote_id" gorm:"column:lote_id;type:varchar(36);index"` // NULL для движений без привязки к партии
	Type           string      `json:"tipo" gorm:"column:tipo;type:varchar(10);not null;index"`
	Amount         float64     `json:"cantidad" gorm:"column:cantidad;type:decimal(12,4);not null"` // Всегда по модулю
	Reason         string      `json:"motivo" gorm:"column:motivo;type:text;not null"`
	ResultingStock float64     `json:"stock_resultante" gorm:"column:stock_resultante;type:decimal(12,4);not null"`
	Reference      *string     `json:"referencia,omitempty" gorm:"column:referencia;type:varchar(100);index"` // ID заказа, производства и т.д.
	CreatedAt      time.Time   `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName указывает имя таблицы
func (StockMovement) TableName() string {
	return "movimientos_stock"
}

// BeforeCreate генерирует UUID
func (sm *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if sm.ID == "" {
		sm.ID = uuid.New().String()
	}
	return nil
}

// Статусы производства
const (
	ProductionCompleted = "COMPLETADA"
	ProductionRejected  = "RECHAZADA"
)

// ProductionBatch - зафиксированная партия производства блюда
type ProductionBatch struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	DishID    string    `json:"plato_id" gorm:"column:plato_id;type:varchar(36);not null;index"`
	Dish      *Dish     `json:"plato,omitempty" gorm:"foreignKey:DishID"`
	Quantity  float64   `json:"cantidad" gorm:"column:cantidad;type:decimal(12,4);not null"`
	Status    string    `json:"estado" gorm:"column:estado;type:varchar(20);not null;index"`
	Detail    string    `json:"detalle" gorm:"column:detalle;type:text"`
	CreatedBy string    `json:"creado_por" gorm:"column:creado_por;type:varchar(255)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName указывает имя таблицы
func (ProductionBatch) TableName() string {
	return "producciones"
}

// BeforeCreate генерирует UUID
func (p *ProductionBatch) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
