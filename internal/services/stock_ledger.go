package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"backoffice/server/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// roundedSum - новое значение остатка; то же выражение стоит в условии UPDATE,
// поэтому проверка и запись видят одно и то же округленное число.
const roundedSum = "ROUND(cantidad_actual + ?, 4)"

// StockLedger - единственный путь изменения остатков.
// Каждое изменение: условный UPDATE + запись в movimientos_stock в одной транзакции.
type StockLedger struct {
	db *gorm.DB
}

// NewStockLedger создает новый экземпляр StockLedger
func NewStockLedger(db *gorm.DB) *StockLedger {
	return &StockLedger{db: db}
}

// DeltaResult - итог одного примененного изменения
type DeltaResult struct {
	IngredientID  string  `json:"ingrediente_id"`
	PreviousStock float64 `json:"stock_anterior"`
	Delta         float64 `json:"delta"`
	NewStock      float64 `json:"stock_nuevo"`
	MovementID    string  `json:"movimiento_id"`
	LotID         *string `json:"lote_id,omitempty"`
}

// EntryInput - приход товара, опционально с партией
type EntryInput struct {
	IngredientID string     `json:"ingrediente_id" validate:"required"`
	Quantity     float64    `json:"cantidad" validate:"gt=0"`
	Reason       string     `json:"motivo"`
	LotCode      string     `json:"lote" validate:"max=100"`
	ExpiresAt    *time.Time `json:"fecha_caducidad"`
	Reference    string     `json:"referencia" validate:"max=100"`
}

// deltaRequest - внутреннее представление одного изменения
type deltaRequest struct {
	IngredientID string
	Delta        float64
	Reason       string
	Reference    string
	LotCode      string
	ExpiresAt    *time.Time
}

// ApplyDelta атомарно применяет знаковое изменение к остатку ингредиента.
// Отрицательный результат невозможен: такое изменение отклоняется целиком.
func (s *StockLedger) ApplyDelta(ctx context.Context, ingredientID string, delta float64, reason string) (*DeltaResult, error) {
	return s.apply(ctx, deltaRequest{IngredientID: ingredientID, Delta: delta, Reason: reason})
}

// RecordEntry регистрирует приход. С кодом партии создает lote и привязывает к нему движение.
func (s *StockLedger) RecordEntry(ctx context.Context, input EntryInput) (*DeltaResult, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "entrada de mercancía"
	}
	return s.apply(ctx, deltaRequest{
		IngredientID: input.IngredientID,
		Delta:        input.Quantity,
		Reason:       reason,
		Reference:    input.Reference,
		LotCode:      strings.TrimSpace(input.LotCode),
		ExpiresAt:    input.ExpiresAt,
	})
}

// RecordExit регистрирует расход (merma, consumo, ajuste)
func (s *StockLedger) RecordExit(ctx context.Context, ingredientID string, quantity float64, reason string) (*DeltaResult, error) {
	if quantity <= 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return nil, newValidation("cantidad", "debe ser mayor que cero")
	}
	return s.apply(ctx, deltaRequest{IngredientID: ingredientID, Delta: -quantity, Reason: reason})
}

func validateDelta(req deltaRequest) error {
	ve := &ValidationError{Message: "datos de entrada no válidos"}
	if strings.TrimSpace(req.IngredientID) == "" {
		ve.Fields = append(ve.Fields, FieldError{Field: "ingrediente_id", Problem: "obligatorio"})
	}
	if math.IsNaN(req.Delta) || math.IsInf(req.Delta, 0) {
		ve.Fields = append(ve.Fields, FieldError{Field: "delta", Problem: "debe ser un número finito"})
	} else if round4(req.Delta) == 0 {
		ve.Fields = append(ve.Fields, FieldError{Field: "delta", Problem: "no puede ser cero"})
	}
	if strings.TrimSpace(req.Reason) == "" {
		ve.Fields = append(ve.Fields, FieldError{Field: "motivo", Problem: "obligatorio"})
	}
	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

func (s *StockLedger) apply(ctx context.Context, req deltaRequest) (*DeltaResult, error) {
	if err := validateDelta(req); err != nil {
		return nil, err
	}

	var result *DeltaResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := applyDeltaTx(tx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, storageErr("apply delta", err)
	}

	log.Info().
		Str("ingrediente_id", result.IngredientID).
		Float64("delta", result.Delta).
		Float64("stock_nuevo", result.NewStock).
		Str("motivo", req.Reason).
		Msg("📦 Движение склада записано")
	return result, nil
}

// applyDeltaTx выполняет изменение внутри уже открытой транзакции.
// Внутри транзакции работаем только через tx: у SQLite одно соединение в пуле.
func applyDeltaTx(tx *gorm.DB, req deltaRequest) (*DeltaResult, error) {
	ingredient, err := activeIngredient(tx, req.IngredientID)
	if err != nil {
		return nil, err
	}
	delta := round4(req.Delta)

	res := tx.Model(&models.StockLevel{}).
		Where("ingrediente_id = ?", ingredient.ID).
		Where(roundedSum+" >= 0", delta).
		Update("cantidad_actual", gorm.Expr(roundedSum, delta))
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		var level models.StockLevel
		err := tx.Where("ingrediente_id = ?", ingredient.ID).First(&level).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Строки остатка нет (ингредиент заведен в обход каталога)
			if delta < 0 {
				return nil, &InsufficientStockError{IngredientID: ingredient.ID, Name: ingredient.Name, Current: 0, Requested: -delta}
			}
			if err := tx.Create(&models.StockLevel{IngredientID: ingredient.ID, Quantity: delta}).Error; err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		default:
			return nil, &InsufficientStockError{IngredientID: ingredient.ID, Name: ingredient.Name, Current: level.Quantity, Requested: -delta}
		}
	}

	var level models.StockLevel
	if err := tx.Where("ingrediente_id = ?", ingredient.ID).First(&level).Error; err != nil {
		return nil, err
	}
	newStock := round4(level.Quantity)

	var lotID *string
	switch {
	case delta > 0 && req.LotCode != "":
		lot := models.Lot{
			IngredientID: ingredient.ID,
			Quantity:     delta,
			Code:         req.LotCode,
		}
		if req.ExpiresAt != nil {
			// В БД сроки в UTC, иначе строковое сравнение дат в SQLite ломается
			expiresAt := req.ExpiresAt.UTC()
			lot.ExpiresAt = &expiresAt
		}
		if err := tx.Create(&lot).Error; err != nil {
			return nil, err
		}
		lotID = &lot.ID
	case delta < 0:
		lotID, err = consumeLotsFIFO(tx, ingredient.ID, -delta)
		if err != nil {
			return nil, err
		}
	}

	movement := models.StockMovement{
		IngredientID:   ingredient.ID,
		LotID:          lotID,
		Type:           models.MovementEntry,
		Amount:         math.Abs(delta),
		Reason:         strings.TrimSpace(req.Reason),
		ResultingStock: newStock,
	}
	if delta < 0 {
		movement.Type = models.MovementExit
	}
	if req.Reference != "" {
		ref := req.Reference
		movement.Reference = &ref
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}

	return &DeltaResult{
		IngredientID:  ingredient.ID,
		PreviousStock: subtract4(newStock, delta),
		Delta:         delta,
		NewStock:      newStock,
		MovementID:    movement.ID,
		LotID:         lotID,
	}, nil
}

// consumeLotsFIFO списывает количество с партий, начиная с ближайшего срока годности.
// Возвращает первую затронутую партию. Остаток без партий просто не отражается в lotes.
func consumeLotsFIFO(tx *gorm.DB, ingredientID string, amount float64) (*string, error) {
	var lots []models.Lot
	if err := tx.Where("ingrediente_id = ? AND cantidad > 0", ingredientID).
		Order("COALESCE(fecha_caducidad, '9999-12-31') ASC").
		Order("registrado_en ASC").
		Find(&lots).Error; err != nil {
		return nil, err
	}

	var first *string
	remaining := decimal.NewFromFloat(amount)
	for i := range lots {
		if !remaining.IsPositive() {
			break
		}
		available := decimal.NewFromFloat(lots[i].Quantity)
		take := decimal.Min(available, remaining)

		left, _ := available.Sub(take).Round(4).Float64()
		if err := tx.Model(&models.Lot{}).Where("id = ?", lots[i].ID).Update("cantidad", left).Error; err != nil {
			return nil, err
		}
		if first == nil {
			id := lots[i].ID
			first = &id
		}
		remaining = remaining.Sub(take)
	}
	return first, nil
}

func activeIngredient(tx *gorm.DB, id string) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := tx.Where("id = ? AND activo = ?", id, true).First(&ingredient).Error; err != nil {
		return nil, notFoundOr("load ingredient", "ingrediente", id, err)
	}
	return &ingredient, nil
}

// LineFailure - строка escandallo, которую нельзя списать
type LineFailure struct {
	IngredientID string  `json:"ingrediente_id"`
	Name         string  `json:"nombre"`
	Required     float64 `json:"requerido"`
	Available    float64 `json:"disponible"`
	Reason       string  `json:"motivo"`
}

// ProductionResult - итог списания по escandallo
type ProductionResult struct {
	DishID    string        `json:"plato_id,omitempty"`
	Quantity  float64       `json:"cantidad,omitempty"`
	Applied   bool          `json:"aplicado"`
	Movements []DeltaResult `json:"movimientos"`
	Failures  []LineFailure `json:"fallos"`
}

// DishDemand - сколько порций блюда нужно списать
type DishDemand struct {
	DishID   string
	Quantity float64
}

// requirement - суммарная потребность в одном ингредиенте
type requirement struct {
	IngredientID string
	Name         string
	Amount       decimal.Decimal
}

// ExplodeProduction списывает ингредиенты по escandallo блюда за quantity порций.
// Все или ничего: при нехватке хотя бы одного ингредиента ничего не списывается.
func (s *StockLedger) ExplodeProduction(ctx context.Context, dishID string, quantity float64) (*ProductionResult, error) {
	result, err := s.ConsumeDishes(ctx, []DishDemand{{DishID: dishID, Quantity: quantity}},
		fmt.Sprintf("producción del plato %s", dishID), "")
	if result != nil {
		result.DishID = dishID
		result.Quantity = quantity
	}
	return result, err
}

// ConsumeDishes списывает escandallos нескольких блюд одной транзакцией.
// Используется заказами и событиями Kafka; reference попадает в каждое движение.
func (s *StockLedger) ConsumeDishes(ctx context.Context, demands []DishDemand, reason, reference string) (*ProductionResult, error) {
	if err := validateDemands(demands); err != nil {
		return nil, err
	}
	result := newProductionResult()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return consumeDishesTx(tx, demands, reason, reference, result)
	})
	return finishConsumption(result, reason, err)
}

func newProductionResult() *ProductionResult {
	return &ProductionResult{Movements: []DeltaResult{}, Failures: []LineFailure{}}
}

func validateDemands(demands []DishDemand) error {
	if len(demands) == 0 {
		return newValidation("platos", "obligatorio")
	}
	for _, d := range demands {
		if strings.TrimSpace(d.DishID) == "" {
			return newValidation("plato_id", "obligatorio")
		}
		if d.Quantity <= 0 || math.IsNaN(d.Quantity) || math.IsInf(d.Quantity, 0) {
			return newValidation("cantidad", "debe ser mayor que cero")
		}
	}
	return nil
}

// linesFailedError откатывает транзакцию списания; подробности уже в result.Failures
type linesFailedError struct {
	insufficient *InsufficientStockError
}

func (e *linesFailedError) Error() string { return "recipe lines failed" }

// consumeDishesTx - списание внутри чужой транзакции (заказ, производство).
// Проход 1 собирает все нехватки, проход 2 применяет; любая ошибка откатывает все строки.
func consumeDishesTx(tx *gorm.DB, demands []DishDemand, reason, reference string, result *ProductionResult) error {
	reqs, err := explodeDemands(tx, demands)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		return nil
	}

	failed := &linesFailedError{}
	for _, r := range reqs {
		required, _ := r.Amount.Float64()
		var ingredient models.Ingredient
		err := tx.Where("id = ?", r.IngredientID).First(&ingredient).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !ingredient.IsActive) {
			result.Failures = append(result.Failures, LineFailure{
				IngredientID: r.IngredientID, Name: r.Name, Required: required, Reason: "ingrediente inactivo o inexistente",
			})
			continue
		}
		if err != nil {
			return err
		}
		var level models.StockLevel
		available := 0.0
		if err := tx.Where("ingrediente_id = ?", r.IngredientID).First(&level).Error; err == nil {
			available = level.Quantity
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if decimal.NewFromFloat(available).LessThan(r.Amount) {
			result.Failures = append(result.Failures, LineFailure{
				IngredientID: r.IngredientID, Name: ingredient.Name, Required: required, Available: available, Reason: "stock insuficiente",
			})
			if failed.insufficient == nil {
				failed.insufficient = &InsufficientStockError{IngredientID: r.IngredientID, Name: ingredient.Name, Current: available, Requested: required}
			}
		}
	}
	if len(result.Failures) > 0 {
		return failed
	}

	for _, r := range reqs {
		amount, _ := r.Amount.Float64()
		applied, err := applyDeltaTx(tx, deltaRequest{
			IngredientID: r.IngredientID,
			Delta:        -amount,
			Reason:       reason,
			Reference:    reference,
		})
		if err != nil {
			var short *InsufficientStockError
			if errors.As(err, &short) {
				result.Failures = append(result.Failures, LineFailure{
					IngredientID: r.IngredientID, Name: short.Name, Required: amount, Available: short.Current, Reason: "stock insuficiente",
				})
				failed.insufficient = short
				return failed
			}
			return err
		}
		result.Movements = append(result.Movements, *applied)
	}
	return nil
}

// finishConsumption превращает итог транзакции в ответ: Applied или ошибка с перечнем сбоев
func finishConsumption(result *ProductionResult, reason string, err error) (*ProductionResult, error) {
	var failed *linesFailedError
	if errors.As(err, &failed) {
		result.Movements = []DeltaResult{}
		log.Warn().
			Int("fallos", len(result.Failures)).
			Str("motivo", reason).
			Msg("⚠️ Списание по escandallo отклонено")
		if failed.insufficient != nil {
			return result, failed.insufficient
		}
		return result, &NotFoundError{Entity: "ingrediente", ID: result.Failures[0].IngredientID}
	}
	if err != nil {
		return nil, storageErr("explode production", err)
	}

	result.Applied = true
	log.Info().
		Int("movimientos", len(result.Movements)).
		Str("motivo", reason).
		Msg("✅ Списание по escandallo выполнено")
	return result, nil
}

// explodeDemands раскрывает блюда в суммарную потребность по ингредиентам.
// Порядок стабилен: в порядке первого появления ингредиента.
func explodeDemands(tx *gorm.DB, demands []DishDemand) ([]requirement, error) {
	index := make(map[string]int)
	var reqs []requirement

	for _, d := range demands {
		var dish models.Dish
		if err := tx.Where("id = ?", d.DishID).First(&dish).Error; err != nil {
			return nil, notFoundOr("load dish", "plato", d.DishID, err)
		}

		var lines []models.RecipeLine
		if err := tx.Preload("Ingredient").
			Where("plato_id = ?", dish.ID).
			Order("created_at ASC").
			Find(&lines).Error; err != nil {
			return nil, err
		}

		portions := decimal.NewFromFloat(d.Quantity)
		for _, line := range lines {
			amount := decimal.NewFromFloat(line.Quantity).Mul(portions).Round(4)
			if i, ok := index[line.IngredientID]; ok {
				reqs[i].Amount = reqs[i].Amount.Add(amount)
				continue
			}
			name := line.IngredientID
			if line.Ingredient != nil {
				name = line.Ingredient.Name
			}
			index[line.IngredientID] = len(reqs)
			reqs = append(reqs, requirement{IngredientID: line.IngredientID, Name: name, Amount: amount})
		}
	}
	return reqs, nil
}

// GetStock возвращает текущий остаток ингредиента
func (s *StockLedger) GetStock(ctx context.Context, ingredientID string) (float64, error) {
	var ingredient models.Ingredient
	if err := s.db.WithContext(ctx).Where("id = ?", ingredientID).First(&ingredient).Error; err != nil {
		return 0, notFoundOr("load ingredient", "ingrediente", ingredientID, err)
	}
	var level models.StockLevel
	err := s.db.WithContext(ctx).Where("ingrediente_id = ?", ingredientID).First(&level).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("load stock", err)
	}
	return level.Quantity, nil
}

// StockItem - строка складской ведомости
type StockItem struct {
	IngredientID string       `json:"ingrediente_id"`
	Code         string       `json:"codigo"`
	Name         string       `json:"nombre"`
	Unit         string       `json:"unidad"`
	Quantity     float64      `json:"cantidad_actual"`
	MinStock     float64      `json:"stock_minimo"`
	Lots         []models.Lot `json:"lotes"`
}

// ListStock возвращает остатки активных ингредиентов с непустыми партиями
func (s *StockLedger) ListStock(ctx context.Context) ([]StockItem, error) {
	db := s.db.WithContext(ctx)

	var ingredients []models.Ingredient
	if err := db.Where("activo = ?", true).Order("nombre ASC").Find(&ingredients).Error; err != nil {
		return nil, storageErr("list ingredients", err)
	}

	var levels []models.StockLevel
	if err := db.Find(&levels).Error; err != nil {
		return nil, storageErr("list stock", err)
	}
	levelMap := make(map[string]float64, len(levels))
	for _, l := range levels {
		levelMap[l.IngredientID] = l.Quantity
	}

	var lots []models.Lot
	if err := db.Where("cantidad > 0").
		Order("COALESCE(fecha_caducidad, '9999-12-31') ASC").
		Find(&lots).Error; err != nil {
		return nil, storageErr("list lots", err)
	}
	lotMap := make(map[string][]models.Lot)
	for _, l := range lots {
		lotMap[l.IngredientID] = append(lotMap[l.IngredientID], l)
	}

	items := make([]StockItem, 0, len(ingredients))
	for _, ing := range ingredients {
		itemLots := lotMap[ing.ID]
		if itemLots == nil {
			itemLots = []models.Lot{}
		}
		items = append(items, StockItem{
			IngredientID: ing.ID,
			Code:         ing.Code,
			Name:         ing.Name,
			Unit:         ing.Unit,
			Quantity:     levelMap[ing.ID],
			MinStock:     ing.MinStock,
			Lots:         itemLots,
		})
	}
	return items, nil
}

// ReferenceApplied сообщает, есть ли уже движения с этой referencia
func (s *StockLedger) ReferenceApplied(ctx context.Context, reference string) (bool, error) {
	if strings.TrimSpace(reference) == "" {
		return false, nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.StockMovement{}).
		Where("referencia = ?", reference).
		Count(&n).Error; err != nil {
		return false, storageErr("check reference", err)
	}
	return n > 0, nil
}

// MovementFilter - параметры выборки журнала движений
type MovementFilter struct {
	IngredientID string
	Type         string
	Reference    string
	Page         int
	Limit        int
}

// MovementPage - страница журнала движений
type MovementPage struct {
	Items []models.StockMovement `json:"movimientos"`
	Total int64                  `json:"total"`
	Page  int                    `json:"pagina"`
	Limit int                    `json:"limite"`
}

// ListMovements возвращает журнал движений, новые сверху
func (s *StockLedger) ListMovements(ctx context.Context, filter MovementFilter) (*MovementPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Type != "" {
		filter.Type = strings.ToUpper(filter.Type)
		if filter.Type != models.MovementEntry && filter.Type != models.MovementExit {
			return nil, newValidation("tipo", "debe ser ENTRADA o SALIDA")
		}
	}

	scoped := func() *gorm.DB {
		query := s.db.WithContext(ctx).Model(&models.StockMovement{})
		if filter.IngredientID != "" {
			query = query.Where("ingrediente_id = ?", filter.IngredientID)
		}
		if filter.Type != "" {
			query = query.Where("tipo = ?", filter.Type)
		}
		if filter.Reference != "" {
			query = query.Where("referencia = ?", filter.Reference)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, storageErr("count movements", err)
	}

	items := []models.StockMovement{}
	if err := scoped().Preload("Ingredient").
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&items).Error; err != nil {
		return nil, storageErr("list movements", err)
	}

	return &MovementPage{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// LotTrace - прослеживаемость партии: сами партии и все связанные движения
type LotTrace struct {
	Code      string                 `json:"lote"`
	Lots      []models.Lot           `json:"lotes"`
	Movements []models.StockMovement `json:"movimientos"`
}

// LotHistory собирает историю партии по ее коду
func (s *StockLedger) LotHistory(ctx context.Context, lotCode string) (*LotTrace, error) {
	lotCode = strings.TrimSpace(lotCode)
	if lotCode == "" {
		return nil, newValidation("lote", "obligatorio")
	}
	db := s.db.WithContext(ctx)

	var lots []models.Lot
	if err := db.Preload("Ingredient").Where("lote = ?", lotCode).Order("registrado_en ASC").Find(&lots).Error; err != nil {
		return nil, storageErr("load lots", err)
	}
	if len(lots) == 0 {
		return nil, &NotFoundError{Entity: "lote", ID: lotCode}
	}

	ids := make([]string, 0, len(lots))
	for _, l := range lots {
		ids = append(ids, l.ID)
	}
	movements := []models.StockMovement{}
	if err := db.Where("lote_id IN ?", ids).Order("created_at ASC").Find(&movements).Error; err != nil {
		return nil, storageErr("load lot movements", err)
	}

	return &LotTrace{Code: lotCode, Lots: lots, Movements: movements}, nil
}

func round4(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(4).Float64()
	return f
}

func subtract4(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(4).Float64()
	return f
}
