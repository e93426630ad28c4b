package services

import (
	"context"
	"sync"
	"testing"

	"backoffice/server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderLifecycle_ServeConsumesStock(t *testing.T) {
	db := setupTestDB(t)
	orders := NewOrderService(db)
	ctx := context.Background()

	egg := seedIngredient(t, db, "ING-HUE", "Huevo", 12, 6)
	potato := seedIngredient(t, db, "ING-PAT", "Patata", 3, 1)
	tortilla := seedDish(t, db, "PL-TOR", "Tortilla", map[string]float64{egg.ID: 3, potato.ID: 0.4})

	order, err := orders.Create(ctx, OrderInput{Table: "4", Lines: []OrderLineInput{{DishID: tortilla.ID, Quantity: 2}}})
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status)

	served, err := orders.Serve(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderServed, served.Order.Status)
	assert.NotNil(t, served.Order.ServedAt)
	assert.True(t, served.Consumption.Applied)
	assert.Len(t, served.Consumption.Movements, 2)

	assert.Equal(t, 6.0, stockOf(t, db, egg.ID))
	assert.InDelta(t, 2.2, stockOf(t, db, potato.ID), 1e-9)

	var mv models.StockMovement
	require.NoError(t, db.Where("ingrediente_id = ?", egg.ID).First(&mv).Error)
	require.NotNil(t, mv.Reference)
	assert.Equal(t, order.ID, *mv.Reference)

	_, err = orders.Serve(ctx, order.ID)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestOrderServe_InsufficientLeavesPending(t *testing.T) {
	db := setupTestDB(t)
	orders := NewOrderService(db)
	ctx := context.Background()

	egg := seedIngredient(t, db, "ING-HUE", "Huevo", 2, 6)
	dish := seedDish(t, db, "PL-TOR", "Tortilla", map[string]float64{egg.ID: 3})

	order, err := orders.Create(ctx, OrderInput{Lines: []OrderLineInput{{DishID: dish.ID, Quantity: 1}}})
	require.NoError(t, err)

	res, err := orders.Serve(ctx, order.ID)
	assert.Equal(t, KindInsufficientStock, KindOf(err))
	require.NotNil(t, res.Consumption)
	assert.False(t, res.Consumption.Applied)
	require.Len(t, res.Consumption.Failures, 1)

	got, err := orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status)
	assert.Equal(t, 2.0, stockOf(t, db, egg.ID))
}

func TestOrderServe_ConcurrentServesConsumeOnce(t *testing.T) {
	db := setupTestDB(t)
	orders := NewOrderService(db)
	ctx := context.Background()

	egg := seedIngredient(t, db, "ING-HUE", "Huevo", 12, 0)
	dish := seedDish(t, db, "PL-TOR", "Tortilla", map[string]float64{egg.ID: 3})
	order, err := orders.Create(ctx, OrderInput{Lines: []OrderLineInput{{DishID: dish.ID, Quantity: 1}}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = orders.Serve(ctx, order.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, KindValidation, KindOf(err))
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 9.0, stockOf(t, db, egg.ID))
	assert.Equal(t, int64(1), movementCount(t, db, egg.ID))
}

func TestOrderCreateAndCancel(t *testing.T) {
	db := setupTestDB(t)
	orders := NewOrderService(db)
	ctx := context.Background()
	dish := seedDish(t, db, "PL-CAF", "Café", nil)

	_, err := orders.Create(ctx, OrderInput{})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = orders.Create(ctx, OrderInput{Lines: []OrderLineInput{{DishID: "missing", Quantity: 1}}})
	assert.Equal(t, KindNotFound, KindOf(err))

	order, err := orders.Create(ctx, OrderInput{Lines: []OrderLineInput{{DishID: dish.ID, Quantity: 1}}})
	require.NoError(t, err)

	cancelled, err := orders.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)

	_, err = orders.Cancel(ctx, order.ID)
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = orders.Serve(ctx, "missing")
	assert.Equal(t, KindNotFound, KindOf(err))

	list, err := orders.List(ctx, "cancelado", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestProductionRecord(t *testing.T) {
	db := setupTestDB(t)
	production := NewProductionService(db)
	ctx := context.Background()

	flour := seedIngredient(t, db, "ING-HAR", "Harina", 1, 0)
	bread := seedDish(t, db, "PL-PAN", "Pan", map[string]float64{flour.ID: 0.2})

	rec, err := production.Record(ctx, ProductionInput{DishID: bread.ID, Quantity: 3, CreatedBy: "cocina"})
	require.NoError(t, err)
	assert.Equal(t, models.ProductionCompleted, rec.Batch.Status)
	assert.True(t, rec.Consumption.Applied)
	assert.InDelta(t, 0.4, stockOf(t, db, flour.ID), 1e-9)

	var mv models.StockMovement
	require.NoError(t, db.Where("ingrediente_id = ?", flour.ID).First(&mv).Error)
	require.NotNil(t, mv.Reference)
	assert.Equal(t, rec.Batch.ID, *mv.Reference)

	rec, err = production.Record(ctx, ProductionInput{DishID: bread.ID, Quantity: 5})
	assert.Equal(t, KindInsufficientStock, KindOf(err))
	require.NotNil(t, rec.Batch)
	assert.Equal(t, models.ProductionRejected, rec.Batch.Status)
	assert.Contains(t, rec.Batch.Detail, "Harina")
	assert.InDelta(t, 0.4, stockOf(t, db, flour.ID), 1e-9)

	_, err = production.Record(ctx, ProductionInput{DishID: "missing", Quantity: 1})
	assert.Equal(t, KindNotFound, KindOf(err))
	_, err = production.Record(ctx, ProductionInput{DishID: bread.ID, Quantity: 0})
	assert.Equal(t, KindValidation, KindOf(err))

	rejected, err := production.List(ctx, models.ProductionRejected, 10)
	require.NoError(t, err)
	assert.Len(t, rejected, 1)
}
