package api

import (
	"context"
	"net/http"
	"time"

	"backoffice/server/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Controllers - все контроллеры REST
type Controllers struct {
	Inventory *InventoryController
	Alerts    *AlertController
	Catalog   *CatalogController
	Orders    *OrderController
}

// HealthCheck проверяет доступность хранилища
type HealthCheck func(ctx context.Context) error

// NewRouter собирает gin.Engine: middleware, /health и /api/v1
func NewRouter(ctrl Controllers, jwtSecret string, health HealthCheck) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(), middleware.Logger(), middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if health != nil {
			if err := health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))

	inv := v1.Group("/inventario")
	{
		inv.GET("", ctrl.Inventory.ListStock)
		inv.GET("/movimientos", ctrl.Inventory.ListMovements)
		inv.GET("/lotes/:lote", ctrl.Inventory.LotHistory)
		inv.GET("/:ingrediente_id", ctrl.Inventory.GetStock)
		inv.POST("/entradas", ctrl.Inventory.RecordEntry)
		inv.POST("/salidas", ctrl.Inventory.RecordExit)
		inv.POST("/ajustes", ctrl.Inventory.ApplyDelta)
		inv.POST("/explosion", ctrl.Inventory.ExplodeProduction)
	}

	alerts := v1.Group("/alertas")
	{
		alerts.GET("/stock", ctrl.Alerts.GetStockAlerts)
		alerts.GET("/criticas", ctrl.Alerts.GetCriticalReport)
		alerts.GET("/caducidad", ctrl.Alerts.GetExpirationAlerts)
		alerts.GET("/resumen", ctrl.Alerts.GetAlertsSummary)
	}

	ingredients := v1.Group("/ingredientes")
	{
		ingredients.POST("", ctrl.Catalog.CreateIngredient)
		ingredients.GET("", ctrl.Catalog.ListIngredients)
		ingredients.GET("/:id", ctrl.Catalog.GetIngredient)
		ingredients.PUT("/:id", ctrl.Catalog.UpdateIngredient)
		ingredients.DELETE("/:id", ctrl.Catalog.DeactivateIngredient)
	}

	dishes := v1.Group("/platos")
	{
		dishes.POST("", ctrl.Catalog.CreateDish)
		dishes.GET("", ctrl.Catalog.ListDishes)
		dishes.GET("/:id", ctrl.Catalog.GetDish)
		dishes.DELETE("/:id", ctrl.Catalog.DeactivateDish)
		dishes.GET("/:id/escandallo", ctrl.Catalog.ListRecipe)
		dishes.PUT("/:id/escandallo/:ingrediente_id", ctrl.Catalog.SetRecipeLine)
		dishes.DELETE("/:id/escandallo/:ingrediente_id", ctrl.Catalog.RemoveRecipeLine)
		dishes.GET("/:id/coste", ctrl.Catalog.GetRecipeCost)
	}

	orders := v1.Group("/pedidos")
	{
		orders.POST("", ctrl.Orders.CreateOrder)
		orders.GET("", ctrl.Orders.ListOrders)
		orders.GET("/:id", ctrl.Orders.GetOrder)
		orders.POST("/:id/servir", ctrl.Orders.ServeOrder)
		orders.POST("/:id/cancelar", ctrl.Orders.CancelOrder)
	}

	v1.POST("/producciones", ctrl.Orders.RecordProduction)
	v1.GET("/producciones", ctrl.Orders.ListProductions)

	return r
}
