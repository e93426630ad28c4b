package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Статусы заказа
const (
	OrderPending   = "PENDIENTE"
	OrderServed    = "SERVIDO"
	OrderCancelled = "CANCELADO"
)

// Order - заказ зала/доставки. Списание ингредиентов происходит при подаче (SERVIDO).
type Order struct {
	ID        string      `json:"id" gorm:"type:varchar(36);primaryKey"`
	Table     string      `json:"mesa" gorm:"column:mesa;type:varchar(50)"`
	Status    string      `json:"estado" gorm:"column:estado;type:varchar(20);not null;default:'PENDIENTE';index"`
	Notes     string      `json:"notas" gorm:"column:notas;type:text"`
	ServedAt  *time.Time  `json:"servido_en" gorm:"column:servido_en"`
	CreatedAt time.Time   `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
	Lines     []OrderLine `json:"lineas" gorm:"foreignKey:OrderID"`
}

// TableName указывает имя таблицы
func (Order) TableName() string {
	return "pedidos"
}

// BeforeCreate генерирует UUID
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

// OrderLine - позиция заказа
type OrderLine struct {
	ID       string  `json:"id" gorm:"type:varchar(36);primaryKey"`
	OrderID  string  `json:"pedido_id" gorm:"column:pedido_id;type:varchar(36);not null;index"`
	DishID   string  `json:"plato_id" gorm:"column:plato_id;type:varchar(36);not null;index"`
	Dish     *Dish   `json:"plato,omitempty" gorm:"foreignKey:DishID"`
	Quantity float64 `json:"cantidad" gorm:"column:cantidad;type:decimal(12,4);not null"`
}

// TableName указывает имя таблицы
func (OrderLine) TableName() string {
	return "pedido_lineas"
}

// BeforeCreate генерирует UUID
func (ol *OrderLine) BeforeCreate(tx *gorm.DB) error {
	if ol.ID == "" {
		ol.ID = uuid.New().String()
	}
	return nil
}
