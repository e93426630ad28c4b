package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"backoffice/server/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Уровни алертов
const (
	LevelCritical      = "CRITICO"
	LevelLow           = "BAJO"
	LevelExpired       = "VENCIDO"
	LevelExpiresToday  = "VENCE_HOY"
	LevelExpiringSoon  = "PROXIMO_VENCER"
	DefaultExpiryDays  = 7
	defaultCritLimit   = 20
	defaultExpiryLimit = 30
)

// Фильтры сводки
const (
	FilterAll          = "todos"
	FilterCritical     = "critico"
	FilterLow          = "bajo"
	FilterExpiringSoon = "proximo_vencer"
	FilterExpired      = "vencido"
	FilterExpiresToday = "vence_hoy"
)

var (
	criticalRatio = decimal.NewFromFloat(0.5)
	lowRatio      = decimal.NewFromInt(1)
	hundred       = decimal.NewFromInt(100)
)

// StockAlert - ингредиент ниже минимального остатка
type StockAlert struct {
	IngredientID   string  `json:"ingrediente_id"`
	Name           string  `json:"nombre"`
	Unit           string  `json:"unidad"`
	Current        float64 `json:"cantidad_actual"`
	Minimum        float64 `json:"stock_minimo"`
	DeficitPercent float64 `json:"falta_porcentaje"`
	Level          string  `json:"nivel"`
}

// ExpirationAlert - партия с истекшим или истекающим сроком годности
type ExpirationAlert struct {
	LotID         string    `json:"lote_id"`
	IngredientID  string    `json:"ingrediente_id"`
	Name          string    `json:"nombre"`
	LotCode       string    `json:"lote"`
	ExpiresAt     time.Time `json:"fecha_caducidad"`
	Quantity      float64   `json:"cantidad"`
	DaysRemaining int       `json:"dias_restantes"`
	Level         string    `json:"nivel"`
}

// AlertDetail - алерт любого вида в плоском списке сводки
type AlertDetail struct {
	Kind         string  `json:"tipo"` // stock | caducidad
	Level        string  `json:"nivel"`
	IngredientID string  `json:"ingrediente_id"`
	Name         string  `json:"nombre"`
	LotID        string  `json:"lote_id,omitempty"`
	LotCode      string  `json:"lote,omitempty"`
	Message      string  `json:"mensaje"`
	Value        float64 `json:"valor"` // falta_porcentaje или dias_restantes
}

// Key - стабильный ключ алерта для дедупликации уведомлений
func (a AlertDetail) Key() string {
	if a.LotID != "" {
		return a.Kind + ":" + a.Level + ":" + a.LotID
	}
	return a.Kind + ":" + a.Level + ":" + a.IngredientID
}

// SummaryCounts - счетчики сводки
type SummaryCounts struct {
	Total        int `json:"total_alertas"`
	Critical     int `json:"criticas"`
	Low          int `json:"bajas"`
	ExpiringSoon int `json:"proximas_vencer"`
	Expired      int `json:"vencidos"`
	ExpiresToday int `json:"vencen_hoy"`
}

// AlertsSummary - ответ сводки алертов
type AlertsSummary struct {
	Filter  string                   `json:"filtro"`
	Counts  SummaryCounts            `json:"resumen"`
	Tiers   map[string][]AlertDetail `json:"alertas"`
	Details []AlertDetail            `json:"detalles"`
}

// AlertEngineOptions - лимиты отчетов
type AlertEngineOptions struct {
	CriticalLimit   int
	ExpirationLimit int
	ExpirationDays  int
	Location        *time.Location
	Now             func() time.Time
}

// AlertEngine вычисляет алерты по запросу; состояния между вызовами нет
type AlertEngine struct {
	db   *gorm.DB
	opts AlertEngineOptions
}

// NewAlertEngine создает новый экземпляр AlertEngine
func NewAlertEngine(db *gorm.DB, opts AlertEngineOptions) *AlertEngine {
	if opts.CriticalLimit <= 0 {
		opts.CriticalLimit = defaultCritLimit
	}
	if opts.ExpirationLimit <= 0 {
		opts.ExpirationLimit = defaultExpiryLimit
	}
	if opts.ExpirationDays <= 0 {
		opts.ExpirationDays = DefaultExpiryDays
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AlertEngine{db: db, opts: opts}
}

// ClassifyStock возвращает уровень и процент нехватки. Пустой уровень - алерта нет.
func ClassifyStock(current, minimum float64) (string, float64) {
	if minimum <= 0 {
		return "", 0
	}
	ratio := decimal.NewFromFloat(current).Div(decimal.NewFromFloat(minimum))

	var level string
	switch {
	case ratio.LessThanOrEqual(criticalRatio):
		level = LevelCritical
	case ratio.LessThanOrEqual(lowRatio):
		level = LevelLow
	default:
		return "", 0
	}

	deficit := decimal.NewFromInt(1).Sub(ratio).Mul(hundred)
	if deficit.IsNegative() {
		deficit = decimal.Zero
	}
	if deficit.GreaterThan(hundred) {
		deficit = hundred
	}
	pct, _ := deficit.Round(2).Float64()
	return level, pct
}

// ClassifyExpiration возвращает уровень и число календарных дней до истечения.
// Пустой уровень - срок дальше окна.
func ClassifyExpiration(expiresAt, today time.Time, windowDays int) (string, int) {
	if windowDays <= 0 {
		windowDays = DefaultExpiryDays
	}
	days := calendarDays(today, expiresAt)
	switch {
	case days < 0:
		return LevelExpired, days
	case days == 0:
		return LevelExpiresToday, days
	case days <= windowDays:
		return LevelExpiringSoon, days
	}
	return "", days
}

// calendarDays считает разницу дат без учета времени суток
func calendarDays(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func stockSeverity(level string) int {
	if level == LevelCritical {
		return 2
	}
	return 1
}

func expirationRank(level string) int {
	switch level {
	case LevelExpired:
		return 0
	case LevelExpiresToday:
		return 1
	}
	return 2
}

// GetStockAlerts - ингредиенты на уровне или ниже минимального остатка.
// Без строки в inventario остаток неизвестен, такой ингредиент не алертится.
func (e *AlertEngine) GetStockAlerts(ctx context.Context) ([]StockAlert, error) {
	type row struct {
		ID       string
		Name     string
		Unit     string
		MinStock float64
		Quantity float64
	}
	var rows []row
	err := e.db.WithContext(ctx).
		Table("ingredientes AS i").
		Select("i.id AS id, i.nombre AS name, i.unidad AS unit, i.stock_minimo AS min_stock, inv.cantidad_actual AS quantity").
		Joins("JOIN inventario inv ON inv.ingrediente_id = i.id").
		Where("i.activo = ? AND i.stock_minimo > 0", true).
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("query stock alerts", err)
	}

	alerts := make([]StockAlert, 0)
	for _, r := range rows {
		level, deficit := ClassifyStock(r.Quantity, r.MinStock)
		if level == "" {
			continue
		}
		alerts = append(alerts, StockAlert{
			IngredientID:   r.ID,
			Name:           r.Name,
			Unit:           r.Unit,
			Current:        r.Quantity,
			Minimum:        r.MinStock,
			DeficitPercent: deficit,
			Level:          level,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if sa, sb := stockSeverity(a.Level), stockSeverity(b.Level); sa != sb {
			return sa > sb
		}
		if a.DeficitPercent != b.DeficitPercent {
			return a.DeficitPercent > b.DeficitPercent
		}
		return a.Name < b.Name
	})
	return alerts, nil
}

// GetCriticalReport - отчет "criticas": те же алерты, ограниченные лимитом
func (e *AlertEngine) GetCriticalReport(ctx context.Context) ([]StockAlert, error) {
	alerts, err := e.GetStockAlerts(ctx)
	if err != nil {
		return nil, err
	}
	if len(alerts) > e.opts.CriticalLimit {
		alerts = alerts[:e.opts.CriticalLimit]
	}
	return alerts, nil
}

// today - текущая дата в часовом поясе ресторана
func (e *AlertEngine) today() time.Time {
	return e.opts.Now().In(e.opts.Location)
}

// GetExpirationAlerts - партии с истекшим сроком или сроком в пределах windowDays,
// не больше ExpirationLimit
func (e *AlertEngine) GetExpirationAlerts(ctx context.Context, windowDays int) ([]ExpirationAlert, error) {
	alerts, err := e.expirationAlerts(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	if len(alerts) > e.opts.ExpirationLimit {
		alerts = alerts[:e.opts.ExpirationLimit]
	}
	return alerts, nil
}

// expirationAlerts - полный отсортированный список без лимита
func (e *AlertEngine) expirationAlerts(ctx context.Context, windowDays int) ([]ExpirationAlert, error) {
	if windowDays <= 0 {
		windowDays = e.opts.ExpirationDays
	}
	today := e.today()
	// Запас в один день на разницу часовых поясов; точная классификация ниже
	horizon := today.AddDate(0, 0, windowDays+1)

	var lots []models.Lot
	err := e.db.WithContext(ctx).
		Preload("Ingredient").
		Where("fecha_caducidad IS NOT NULL AND cantidad > 0").
		Where("fecha_caducidad <= ?", horizon.UTC()).
		Find(&lots).Error
	if err != nil {
		return nil, storageErr("query expiring lots", err)
	}

	alerts := make([]ExpirationAlert, 0)
	for _, lot := range lots {
		if lot.Ingredient != nil && !lot.Ingredient.IsActive {
			continue
		}
		expiresAt := lot.ExpiresAt.In(e.opts.Location)
		level, days := ClassifyExpiration(expiresAt, today, windowDays)
		if level == "" {
			continue
		}
		name := lot.IngredientID
		if lot.Ingredient != nil {
			name = lot.Ingredient.Name
		}
		alerts = append(alerts, ExpirationAlert{
			LotID:         lot.ID,
			IngredientID:  lot.IngredientID,
			Name:          name,
			LotCode:       lot.Code,
			ExpiresAt:     *lot.ExpiresAt,
			Quantity:      lot.Quantity,
			DaysRemaining: days,
			Level:         level,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if ra, rb := expirationRank(a.Level), expirationRank(b.Level); ra != rb {
			return ra < rb
		}
		if a.DaysRemaining != b.DaysRemaining {
			return a.DaysRemaining < b.DaysRemaining
		}
		return a.Name < b.Name
	})
	return alerts, nil
}

// NormalizeFilter приводит фильтр сводки к известному значению; неизвестный = todos
func NormalizeFilter(filter string) string {
	f := strings.ToLower(strings.TrimSpace(filter))
	switch f {
	case FilterAll, FilterCritical, FilterLow, FilterExpiringSoon, FilterExpired, FilterExpiresToday:
		return f
	}
	return FilterAll
}

// GetAlertsSummary собирает сводку по всем видам алертов с фильтром по уровню.
// Лимит отчета caducidad здесь не действует: счетчики и detalles полные.
func (e *AlertEngine) GetAlertsSummary(ctx context.Context, filterType string) (*AlertsSummary, error) {
	filter := NormalizeFilter(filterType)

	stock, err := e.GetStockAlerts(ctx)
	if err != nil {
		return nil, err
	}
	expiring, err := e.expirationAlerts(ctx, e.opts.ExpirationDays)
	if err != nil {
		return nil, err
	}

	all := make([]AlertDetail, 0, len(stock)+len(expiring))
	for _, a := range stock {
		all = append(all, AlertDetail{
			Kind:         "stock",
			Level:        a.Level,
			IngredientID: a.IngredientID,
			Name:         a.Name,
			Message:      stockMessage(a),
			Value:        a.DeficitPercent,
		})
	}
	for _, a := range expiring {
		all = append(all, AlertDetail{
			Kind:         "caducidad",
			Level:        a.Level,
			IngredientID: a.IngredientID,
			Name:         a.Name,
			LotID:        a.LotID,
			LotCode:      a.LotCode,
			Message:      expirationMessage(a),
			Value:        float64(a.DaysRemaining),
		})
	}

	summary := &AlertsSummary{
		Filter:  filter,
		Tiers:   make(map[string][]AlertDetail),
		Details: make([]AlertDetail, 0),
	}
	for _, a := range all {
		if filter != FilterAll && levelFilter(a.Level) != filter {
			continue
		}
		summary.Details = append(summary.Details, a)
		summary.Tiers[levelFilter(a.Level)] = append(summary.Tiers[levelFilter(a.Level)], a)
		switch a.Level {
		case LevelCritical:
			summary.Counts.Critical++
		case LevelLow:
			summary.Counts.Low++
		case LevelExpiringSoon:
			summary.Counts.ExpiringSoon++
		case LevelExpired:
			summary.Counts.Expired++
		case LevelExpiresToday:
			summary.Counts.ExpiresToday++
		}
	}
	summary.Counts.Total = len(summary.Details)
	return summary, nil
}

func levelFilter(level string) string {
	switch level {
	case LevelCritical:
		return FilterCritical
	case LevelLow:
		return FilterLow
	case LevelExpired:
		return FilterExpired
	case LevelExpiresToday:
		return FilterExpiresToday
	}
	return FilterExpiringSoon
}

func stockMessage(a StockAlert) string {
	return a.Name + ": " + decimal.NewFromFloat(a.Current).String() + " " + a.Unit +
		" (mínimo " + decimal.NewFromFloat(a.Minimum).String() + ")"
}

func expirationMessage(a ExpirationAlert) string {
	switch a.Level {
	case LevelExpired:
		return a.Name + " lote " + a.LotCode + " vencido"
	case LevelExpiresToday:
		return a.Name + " lote " + a.LotCode + " vence hoy"
	}
	return a.Name + " lote " + a.LotCode + " vence en " + decimal.NewFromInt(int64(a.DaysRemaining)).String() + " días"
}
