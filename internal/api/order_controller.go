package api

import (
	"net/http"

	"backoffice/server/internal/middleware"
	"backoffice/server/internal/services"

	"github.com/gin-gonic/gin"
)

// OrderController - заказы зала и партии производства
type OrderController struct {
	responder
	orders     *services.OrderService
	production *services.ProductionService
}

// NewOrderController создает новый контроллер заказов
func NewOrderController(orders *services.OrderService, production *services.ProductionService, isProduction bool) *OrderController {
	return &OrderController{responder: responder{production: isProduction}, orders: orders, production: production}
}

// CreateOrder
// POST /api/v1/pedidos
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var input services.OrderInput
	if !bindJSON(c, &input) {
		return
	}
	order, err := oc.orders.Create(c.Request.Context(), input)
	if err != nil {
		oc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// ListOrders
// GET /api/v1/pedidos?estado=pendiente&limite=50
func (oc *OrderController) ListOrders(c *gin.Context) {
	list, err := oc.orders.List(c.Request.Context(), c.Query("estado"), queryInt(c, "limite", 50))
	if err != nil {
		oc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list, "count": len(list)})
}

// GET /api/v1/pedidos/:id
func (oc *OrderController) GetOrder(c *gin.Context) {
	order, err := oc.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		oc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ServeOrder списывает ингредиенты всех позиций и помечает заказ SERVIDO
// POST /api/v1/pedidos/:id/servir
func (oc *OrderController) ServeOrder(c *gin.Context) {
	res, err := oc.orders.Serve(c.Request.Context(), c.Param("id"))
	if err != nil {
		var consumption *services.ProductionResult
		if res != nil {
			consumption = res.Consumption
		}
		oc.failConsumption(c, err, consumption)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/v1/pedidos/:id/cancelar
func (oc *OrderController) CancelOrder(c *gin.Context) {
	order, err := oc.orders.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		oc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// RecordProduction фиксирует партию производства
// POST /api/v1/producciones
func (oc *OrderController) RecordProduction(c *gin.Context) {
	var input services.ProductionInput
	if !bindJSON(c, &input) {
		return
	}
	if input.CreatedBy == "" {
		input.CreatedBy = middleware.CurrentUser(c)
	}
	rec, err := oc.production.Record(c.Request.Context(), input)
	if err != nil {
		var consumption *services.ProductionResult
		if rec != nil {
			consumption = rec.Consumption
		}
		oc.failConsumption(c, err, consumption)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// GET /api/v1/producciones?estado=completada
func (oc *OrderController) ListProductions(c *gin.Context) {
	list, err := oc.production.List(c.Request.Context(), c.Query("estado"), queryInt(c, "limite", 50))
	if err != nil {
		oc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list, "count": len(list)})
}
