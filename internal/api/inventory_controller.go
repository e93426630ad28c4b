package api

import (
	"net/http"
	"time"

	"backoffice/server/internal/apierror"
	"backoffice/server/internal/services"

	"github.com/gin-gonic/gin"
)

// InventoryController - REST для склада (StockLedger)
type InventoryController struct {
	responder
	ledger   *services.StockLedger
	location *time.Location
}

// NewInventoryController создает новый контроллер склада
func NewInventoryController(ledger *services.StockLedger, location *time.Location, production bool) *InventoryController {
	if location == nil {
		location = time.UTC
	}
	return &InventoryController{responder: responder{production: production}, ledger: ledger, location: location}
}

type entryRequest struct {
	IngredientID string  `json:"ingrediente_id"`
	Quantity     float64 `json:"cantidad"`
	Reason       string  `json:"motivo"`
	LotCode      string  `json:"lote"`
	ExpiresAt    string  `json:"fecha_caducidad"`
	Reference    string  `json:"referencia"`
}

type exitRequest struct {
	IngredientID string  `json:"ingrediente_id"`
	Quantity     float64 `json:"cantidad"`
	Reason       string  `json:"motivo"`
}

type deltaRequest struct {
	IngredientID string  `json:"ingrediente_id"`
	Delta        float64 `json:"delta"`
	Reason       string  `json:"motivo"`
}

type explosionRequest struct {
	DishID   string  `json:"plato_id"`
	Quantity float64 `json:"cantidad"`
}

// ListStock возвращает остатки всех активных ингредиентов
// GET /api/v1/inventario
func (ic *InventoryController) ListStock(c *gin.Context) {
	items, err := ic.ledger.ListStock(c.Request.Context())
	if err != nil {
		ic.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// GetStock возвращает текущий остаток одного ингредиента
// GET /api/v1/inventario/:ingrediente_id
func (ic *InventoryController) GetStock(c *gin.Context) {
	id := c.Param("ingrediente_id")
	qty, err := ic.ledger.GetStock(c.Request.Context(), id)
	if err != nil {
		ic.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ingrediente_id": id, "cantidad_actual": qty})
}

// RecordEntry - приход товара, опционально с партией
// POST /api/v1/inventario/entradas
func (ic *InventoryController) RecordEntry(c *gin.Context) {
	var req entryRequest
	if !bindJSON(c, &req) {
		return
	}
	expiresAt, err := parseDate(req.ExpiresAt, ic.location)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(services.KindValidation, "fecha_caducidad debe ser YYYY-MM-DD o RFC3339"))
		return
	}

	res, err := ic.ledger.RecordEntry(c.Request.Context(), services.EntryInput{
		IngredientID: req.IngredientID,
		Quantity:     req.Quantity,
		Reason:       req.Reason,
		LotCode:      req.LotCode,
		ExpiresAt:    expiresAt,
		Reference:    req.Reference,
	})
	if err != nil {
		ic.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// RecordExit - ручное списание (merma, consumo interno)
// POST /api/v1/inventario/salidas
func (ic *InventoryController) RecordExit(c *gin.Context) {
	var req exitRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := ic.ledger.RecordExit(c.Request.Context(), req.IngredientID, req.Quantity, req.Reason)
	if err != nil {
		ic.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ApplyDelta - корректировка остатка со знаком (inventario físico)
// POST /api/v1/inventario/ajustes
func (ic *InventoryController) ApplyDelta(c *gin.Context) {
	var req deltaRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := ic.ledger.ApplyDelta(c.Request.Context(), req.IngredientID, req.Delta, req.Reason)
	if err != nil {
		ic.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ExplodeProduction списывает escandallo блюда × cantidad без записи партии
// POST /api/v1/inventario/explosion
func (ic *InventoryController) ExplodeProduction(c *gin.Context) {
	var req explosionRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := ic.ledger.ExplodeProduction(c.Request.Context(), req.DishID, req.Quantity)
	if err != nil {
		ic.failConsumption(c, err, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListMovements - журнал движений с пагинацией
// GET /api/v1/inventario/movimientos?ingrediente_id=&tipo=&referencia=&pagina=1&limite=50
func (ic *InventoryController) ListMovements(c *gin.Context) {
	page, err := ic.ledger.ListMovements(c.Request.Context(), services.MovementFilter{
		IngredientID: c.Query("ingrediente_id"),
		Type:         c.Query("tipo"),
		Reference:    c.Query("referencia"),
		Page:         queryInt(c, "pagina", 1),
		Limit:        queryInt(c, "limite", 50),
	})
	if err != nil {
		ic.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// LotHistory - трассировка партии по коду
// GET /api/v1/inventario/lotes/:lote
func (ic *InventoryController) LotHistory(c *gin.Context) {
	trace, err := ic.ledger.LotHistory(c.Request.Context(), c.Param("lote"))
	if err != nil {
		ic.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trace)
}
