package services

import (
	"context"
	"fmt"
	"strings"

	"backoffice/server/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ProductionService фиксирует партии производства и списывает под них ингредиенты
type ProductionService struct {
	db *gorm.DB
}

// NewProductionService создает новый экземпляр ProductionService
func NewProductionService(db *gorm.DB) *ProductionService {
	return &ProductionService{db: db}
}

// ProductionInput - запрос на производство
type ProductionInput struct {
	DishID    string  `json:"plato_id" validate:"required"`
	Quantity  float64 `json:"cantidad" validate:"gt=0"`
	CreatedBy string  `json:"creado_por" validate:"max=255"`
	Reference string  `json:"referencia" validate:"max=100"`
}

// ProductionRecord - сохраненная партия и итог списания
type ProductionRecord struct {
	Batch       *models.ProductionBatch `json:"produccion"`
	Consumption *ProductionResult       `json:"consumo"`
}

// Record списывает escandallo и сохраняет партию COMPLETADA в той же транзакции.
// При нехватке партия сохраняется как RECHAZADA с перечнем сбоев.
func (s *ProductionService) Record(ctx context.Context, input ProductionInput) (*ProductionRecord, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	reason := fmt.Sprintf("producción del plato %s", input.DishID)
	result := newProductionResult()
	batch := &models.ProductionBatch{
		ID:        uuid.New().String(),
		DishID:    input.DishID,
		Quantity:  input.Quantity,
		Status:    models.ProductionCompleted,
		CreatedBy: input.CreatedBy,
	}
	reference := input.Reference
	if reference == "" {
		reference = batch.ID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := consumeDishesTx(tx, []DishDemand{{DishID: input.DishID, Quantity: input.Quantity}}, reason, reference, result); err != nil {
			return err
		}
		return tx.Create(batch).Error
	})

	consumption, err := finishConsumption(result, reason, err)
	if consumption != nil {
		consumption.DishID = input.DishID
		consumption.Quantity = input.Quantity
	}
	if err == nil {
		log.Info().Str("produccion_id", batch.ID).Float64("cantidad", batch.Quantity).Msg("🏭 Производство зафиксировано")
		return &ProductionRecord{Batch: batch, Consumption: consumption}, nil
	}
	if consumption == nil {
		// Блюда нет или сбой БД: отклонять нечего
		return nil, err
	}

	rejected := &models.ProductionBatch{
		DishID:    input.DishID,
		Quantity:  input.Quantity,
		Status:    models.ProductionRejected,
		Detail:    describeFailures(consumption.Failures),
		CreatedBy: input.CreatedBy,
	}
	if createErr := s.db.WithContext(ctx).Create(rejected).Error; createErr != nil {
		log.Error().Err(createErr).Str("plato_id", input.DishID).Msg("❌ Не удалось сохранить отклоненное производство")
		return &ProductionRecord{Consumption: consumption}, err
	}
	return &ProductionRecord{Batch: rejected, Consumption: consumption}, err
}

// List возвращает последние партии производства
func (s *ProductionService) List(ctx context.Context, status string, limit int) ([]models.ProductionBatch, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Preload("Dish").Order("created_at DESC").Limit(limit)
	if status != "" {
		query = query.Where("estado = ?", strings.ToUpper(status))
	}
	batches := []models.ProductionBatch{}
	if err := query.Find(&batches).Error; err != nil {
		return nil, storageErr("list productions", err)
	}
	return batches, nil
}

func describeFailures(failures []LineFailure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, fmt.Sprintf("%s: %s (requerido %.4f, disponible %.4f)", f.Name, f.Reason, f.Required, f.Available))
	}
	return strings.Join(parts, "; ")
}
