package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"backoffice/server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func newTestEngine(db *gorm.DB, opts AlertEngineOptions) *AlertEngine {
	opts.Now = func() time.Time { return fixedNow }
	return NewAlertEngine(db, opts)
}

func seedLot(t *testing.T, db *gorm.DB, ingredientID, code string, qty float64, daysFromToday int) *models.Lot {
	t.Helper()
	expires := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC).AddDate(0, 0, daysFromToday)
	lot := &models.Lot{IngredientID: ingredientID, Code: code, Quantity: qty, ExpiresAt: &expires}
	require.NoError(t, db.Create(lot).Error)
	return lot
}

func TestClassifyStock_Boundaries(t *testing.T) {
	cases := []struct {
		current, minimum float64
		level            string
		deficit          float64
	}{
		{10, 20, LevelCritical, 50},
		{11, 20, LevelLow, 45},
		{20, 20, LevelLow, 0},
		{21, 20, "", 0},
		{0, 20, LevelCritical, 100},
		{2, 10, LevelCritical, 80},
		{1, 3, LevelCritical, 66.67},
		{5, 0, "", 0},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%v/%v", tc.current, tc.minimum), func(t *testing.T) {
			level, deficit := ClassifyStock(tc.current, tc.minimum)
			assert.Equal(t, tc.level, level)
			assert.Equal(t, tc.deficit, deficit)
		})
	}
}

func TestClassifyExpiration(t *testing.T) {
	today := time.Date(2026, 10, 16, 23, 30, 0, 0, time.UTC)

	level, days := ClassifyExpiration(today.AddDate(0, 0, -2), today, 7)
	assert.Equal(t, LevelExpired, level)
	assert.Equal(t, -2, days)

	// Тот же календарный день, хотя по часам срок уже прошел
	level, days = ClassifyExpiration(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), today, 7)
	assert.Equal(t, LevelExpiresToday, level)
	assert.Equal(t, 0, days)

	level, days = ClassifyExpiration(time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC), today, 7)
	assert.Equal(t, LevelExpiringSoon, level)
	assert.Equal(t, 5, days)

	level, _ = ClassifyExpiration(today.AddDate(0, 0, 8), today, 7)
	assert.Equal(t, "", level)

	// Неположительное окно = 7 дней
	level, _ = ClassifyExpiration(today.AddDate(0, 0, 7), today, -3)
	assert.Equal(t, LevelExpiringSoon, level)
}

func TestGetStockAlerts_EndToEnd(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(db, AlertEngineOptions{})

	chicken := seedIngredient(t, db, "ING-POL", "Chicken", 2, 10)
	seedIngredient(t, db, "ING-ARR", "Rice", 11, 20)
	seedIngredient(t, db, "ING-SAL", "Salt", 50, 1)
	seedIngredient(t, db, "ING-AGU", "Water", 0, 0)

	alerts, err := engine.GetStockAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, chicken.ID, alerts[0].IngredientID)
	assert.Equal(t, LevelCritical, alerts[0].Level)
	assert.Equal(t, 80.0, alerts[0].DeficitPercent)
	assert.Equal(t, 2.0, alerts[0].Current)
	assert.Equal(t, 10.0, alerts[0].Minimum)

	assert.Equal(t, "Rice", alerts[1].Name)
	assert.Equal(t, LevelLow, alerts[1].Level)

	again, err := engine.GetStockAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, alerts, again)
}

func TestGetStockAlerts_SkipsInactive(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(db, AlertEngineOptions{})
	old := seedIngredient(t, db, "ING-OLD", "Old", 0, 10)
	require.NoError(t, db.Model(&models.Ingredient{}).Where("id = ?", old.ID).Update("activo", false).Error)

	alerts, err := engine.GetStockAlerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestGetCriticalReport_RespectsLimit(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(db, AlertEngineOptions{CriticalLimit: 3})
	for i := 0; i < 5; i++ {
		seedIngredient(t, db, fmt.Sprintf("ING-%d", i), fmt.Sprintf("Item %d", i), float64(i), 10)
	}

	report, err := engine.GetCriticalReport(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 3)
	assert.Equal(t, "Item 0", report[0].Name)
	assert.Equal(t, 100.0, report[0].DeficitPercent)
	assert.Equal(t, "Item 2", report[2].Name)
}

func TestGetExpirationAlerts_EndToEnd(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(db, AlertEngineOptions{})

	fish := seedIngredient(t, db, "ING-PES", "Fish", 3, 0)
	milk := seedIngredient(t, db, "ING-LEC", "Milk", 10, 0)
	eggs := seedIngredient(t, db, "ING-HUE", "Eggs", 10, 0)

	seedLot(t, db, fish.ID, "F-1", 3, -2)
	seedLot(t, db, milk.ID, "M-1", 4, 5)
	seedLot(t, db, milk.ID, "M-2", 4, 0)
	seedLot(t, db, eggs.ID, "E-1", 6, 2)
	seedLot(t, db, eggs.ID, "E-2", 6, 30)
	seedLot(t, db, eggs.ID, "E-0", 0, -1)

	alerts, err := engine.GetExpirationAlerts(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, alerts, 4)

	assert.Equal(t, "Fish", alerts[0].Name)
	assert.Equal(t, LevelExpired, alerts[0].Level)
	assert.Equal(t, -2, alerts[0].DaysRemaining)
	assert.Equal(t, 3.0, alerts[0].Quantity)

	assert.Equal(t, LevelExpiresToday, alerts[1].Level)
	assert.Equal(t, "M-2", alerts[1].LotCode)

	assert.Equal(t, "E-1", alerts[2].LotCode)
	assert.Equal(t, 2, alerts[2].DaysRemaining)
	assert.Equal(t, "M-1", alerts[3].LotCode)
	assert.Equal(t, LevelExpiringSoon, alerts[3].Level)
	assert.Equal(t, 5, alerts[3].DaysRemaining)

	wide, err := engine.GetExpirationAlerts(context.Background(), 60)
	require.NoError(t, err)
	assert.Len(t, wide, 5)
}

func TestGetExpirationAlerts_RespectsLimit(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(db, AlertEngineOptions{ExpirationLimit: 2})
	cheese := seedIngredient(t, db, "ING-QUE", "Cheese", 10, 0)
	for i := 1; i <= 4; i++ {
		seedLot(t, db, cheese.ID, fmt.Sprintf("Q-%d", i), 1, i)
	}

	alerts, err := engine.GetExpirationAlerts(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, 1, alerts[0].DaysRemaining)
	assert.Equal(t, 2, alerts[1].DaysRemaining)
}

func TestGetAlertsSummary(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(db, AlertEngineOptions{})

	seedIngredient(t, db, "ING-POL", "Chicken", 2, 10)
	seedIngredient(t, db, "ING-ARR", "Rice", 9, 10)
	fish := seedIngredient(t, db, "ING-PES", "Fish", 3, 0)
	seedLot(t, db, fish.ID, "F-1", 3, -2)
	seedLot(t, db, fish.ID, "F-2", 3, 4)

	all, err := engine.GetAlertsSummary(context.Background(), "todos")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, all.Filter)
	assert.Equal(t, 4, all.Counts.Total)
	assert.Equal(t, 1, all.Counts.Critical)
	assert.Equal(t, 1, all.Counts.Low)
	assert.Equal(t, 1, all.Counts.Expired)
	assert.Equal(t, 1, all.Counts.ExpiringSoon)
	assert.Len(t, all.Details, 4)
	assert.Len(t, all.Tiers[FilterCritical], 1)
	assert.Len(t, all.Tiers[FilterExpired], 1)

	critical, err := engine.GetAlertsSummary(context.Background(), "CRITICO")
	require.NoError(t, err)
	assert.Equal(t, FilterCritical, critical.Filter)
	assert.Equal(t, 1, critical.Counts.Total)
	assert.Equal(t, "Chicken", critical.Details[0].Name)

	nonsense, err := engine.GetAlertsSummary(context.Background(), "nonsense-value")
	require.NoError(t, err)
	assert.Equal(t, all, nonsense)
}

func TestGetAlertsSummary_CountsBeyondReportLimit(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(db, AlertEngineOptions{})
	milk := seedIngredient(t, db, "ING-LEC", "Milk", 40, 0)
	for i := 1; i <= 35; i++ {
		seedLot(t, db, milk.ID, fmt.Sprintf("L-%02d", i), 1, -i)
	}

	report, err := engine.GetExpirationAlerts(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, report, defaultExpiryLimit)

	summary, err := engine.GetAlertsSummary(context.Background(), FilterExpired)
	require.NoError(t, err)
	assert.Equal(t, 35, summary.Counts.Expired)
	assert.Equal(t, 35, summary.Counts.Total)
	assert.Len(t, summary.Details, 35)
}

func TestGetAlertsSummary_EmptyIsSuccess(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(db, AlertEngineOptions{})

	summary, err := engine.GetAlertsSummary(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Counts.Total)
	assert.NotNil(t, summary.Details)
	assert.NotNil(t, summary.Tiers)
}

func TestAlertDetailKey(t *testing.T) {
	stock := AlertDetail{Kind: "stock", Level: LevelLow, IngredientID: "i1"}
	lot := AlertDetail{Kind: "caducidad", Level: LevelExpired, IngredientID: "i1", LotID: "l1"}
	assert.Equal(t, "stock:BAJO:i1", stock.Key())
	assert.Equal(t, "caducidad:VENCIDO:l1", lot.Key())
}
