package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backoffice/server/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// OrderService управляет заказами зала. Ингредиенты списываются в момент подачи.
type OrderService struct {
	db *gorm.DB
}

// NewOrderService создает новый сервис заказов
func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// OrderLineInput - позиция нового заказа
type OrderLineInput struct {
	DishID   string  `json:"plato_id" validate:"required"`
	Quantity float64 `json:"cantidad" validate:"gt=0"`
}

// OrderInput - новый заказ
type OrderInput struct {
	Table string           `json:"mesa" validate:"max=50"`
	Notes string           `json:"notas"`
	Lines []OrderLineInput `json:"lineas" validate:"required,min=1,dive"`
}

// ServeResult - итог подачи заказа
type ServeResult struct {
	Order       *models.Order     `json:"pedido"`
	Consumption *ProductionResult `json:"consumo"`
}

// Create сохраняет заказ в статусе PENDIENTE. Все блюда должны существовать и быть активны.
func (s *OrderService) Create(ctx context.Context, input OrderInput) (*models.Order, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	order := &models.Order{
		Table:  strings.TrimSpace(input.Table),
		Notes:  input.Notes,
		Status: models.OrderPending,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range input.Lines {
			var dish models.Dish
			if err := tx.Where("id = ? AND activo = ?", l.DishID, true).First(&dish).Error; err != nil {
				return notFoundOr("load dish", "plato", l.DishID, err)
			}
			order.Lines = append(order.Lines, models.OrderLine{DishID: dish.ID, Quantity: l.Quantity})
		}
		return tx.Create(order).Error
	})
	if err != nil {
		return nil, storageErr("create order", err)
	}

	log.Info().Str("pedido_id", order.ID).Int("lineas", len(order.Lines)).Msg("🧾 Заказ создан")
	return order, nil
}

// Get возвращает заказ с позициями
func (s *OrderService) Get(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Lines").Where("id = ?", id).First(&order).Error; err != nil {
		return nil, notFoundOr("get order", "pedido", id, err)
	}
	return &order, nil
}

// List возвращает заказы, новые сверху; status пустой = все
func (s *OrderService) List(ctx context.Context, status string, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Preload("Lines").Order("created_at DESC").Limit(limit)
	if status != "" {
		query = query.Where("estado = ?", strings.ToUpper(status))
	}
	orders := []models.Order{}
	if err := query.Find(&orders).Error; err != nil {
		return nil, storageErr("list orders", err)
	}
	return orders, nil
}

// Serve подает заказ: списывает escandallos всех позиций и помечает заказ SERVIDO.
// Все или ничего на уровне заказа: при нехватке заказ остается PENDIENTE.
func (s *OrderService) Serve(ctx context.Context, id string) (*ServeResult, error) {
	reason := fmt.Sprintf("pedido %s servido", id)
	result := newProductionResult()
	var order models.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Lines").Where("id = ?", id).First(&order).Error; err != nil {
			return notFoundOr("load order", "pedido", id, err)
		}
		if order.Status != models.OrderPending {
			return newValidation("estado", "el pedido no está pendiente ("+order.Status+")")
		}

		// Условный UPDATE: параллельная подача того же заказа получит 0 строк
		now := time.Now().UTC()
		res := tx.Model(&models.Order{}).
			Where("id = ? AND estado = ?", order.ID, models.OrderPending).
			Updates(map[string]interface{}{
				"estado":     models.OrderServed,
				"servido_en": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return newValidation("estado", "el pedido ya no está pendiente")
		}
		order.Status = models.OrderServed
		order.ServedAt = &now

		demands := make([]DishDemand, 0, len(order.Lines))
		for _, l := range order.Lines {
			demands = append(demands, DishDemand{DishID: l.DishID, Quantity: l.Quantity})
		}
		return consumeDishesTx(tx, demands, reason, order.ID, result)
	})

	consumption, err := finishConsumption(result, reason, err)
	if err != nil {
		return &ServeResult{Consumption: consumption}, err
	}

	log.Info().Str("pedido_id", order.ID).Int("movimientos", len(consumption.Movements)).Msg("🍽️ Заказ подан")
	return &ServeResult{Order: &order, Consumption: consumption}, nil
}

// Cancel отменяет заказ без движения склада
func (s *OrderService) Cancel(ctx context.Context, id string) (*models.Order, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Where("id = ?", id).First(&order).Error; err != nil {
			return notFoundOr("load order", "pedido", id, err)
		}
		if order.Status != models.OrderPending {
			return newValidation("estado", "el pedido no está pendiente ("+order.Status+")")
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND estado = ?", id, models.OrderPending).
			Update("estado", models.OrderCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return newValidation("estado", "el pedido ya no está pendiente")
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("cancel order", err)
	}
	log.Info().Str("pedido_id", id).Msg("❌ Заказ отменен")
	return s.Get(ctx, id)
}
