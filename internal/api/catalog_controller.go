package api

import (
	"net/http"
	"strconv"

	"backoffice/server/internal/services"

	"github.com/gin-gonic/gin"
)

// CatalogController - ингредиенты, блюда и escandallos
type CatalogController struct {
	responder
	catalog *services.CatalogService
}

// NewCatalogController создает новый контроллер справочников
func NewCatalogController(catalog *services.CatalogService, production bool) *CatalogController {
	return &CatalogController{responder: responder{production: production}, catalog: catalog}
}

func includeInactive(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.DefaultQuery("inactivos", "false"))
	return v
}

// CreateIngredient
// POST /api/v1/ingredientes
func (cc *CatalogController) CreateIngredient(c *gin.Context) {
	var input services.IngredientInput
	if !bindJSON(c, &input) {
		return
	}
	ing, err := cc.catalog.CreateIngredient(c.Request.Context(), input)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ing)
}

// GET /api/v1/ingredientes?inactivos=true
func (cc *CatalogController) ListIngredients(c *gin.Context) {
	list, err := cc.catalog.ListIngredients(c.Request.Context(), includeInactive(c))
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list, "count": len(list)})
}

// GET /api/v1/ingredientes/:id
func (cc *CatalogController) GetIngredient(c *gin.Context) {
	ing, err := cc.catalog.GetIngredient(c.Request.Context(), c.Param("id"))
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ing)
}

// UpdateIngredient меняет nombre/unidad/stock_minimo/coste_unidad
// PUT /api/v1/ingredientes/:id
func (cc *CatalogController) UpdateIngredient(c *gin.Context) {
	var input services.IngredientUpdate
	if !bindJSON(c, &input) {
		return
	}
	ing, err := cc.catalog.UpdateIngredient(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ing)
}

// DELETE /api/v1/ingredientes/:id (мягкое удаление)
func (cc *CatalogController) DeactivateIngredient(c *gin.Context) {
	if err := cc.catalog.DeactivateIngredient(c.Request.Context(), c.Param("id")); err != nil {
		cc.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/v1/platos
func (cc *CatalogController) CreateDish(c *gin.Context) {
	var input services.DishInput
	if !bindJSON(c, &input) {
		return
	}
	dish, err := cc.catalog.CreateDish(c.Request.Context(), input)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dish)
}

// GET /api/v1/platos
func (cc *CatalogController) ListDishes(c *gin.Context) {
	list, err := cc.catalog.ListDishes(c.Request.Context(), includeInactive(c))
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list, "count": len(list)})
}

// GetDish возвращает блюдо с escandallo
// GET /api/v1/platos/:id
func (cc *CatalogController) GetDish(c *gin.Context) {
	dish, err := cc.catalog.GetDish(c.Request.Context(), c.Param("id"))
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dish)
}

// DELETE /api/v1/platos/:id
func (cc *CatalogController) DeactivateDish(c *gin.Context) {
	if err := cc.catalog.DeactivateDish(c.Request.Context(), c.Param("id")); err != nil {
		cc.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/v1/platos/:id/escandallo
func (cc *CatalogController) ListRecipe(c *gin.Context) {
	lines, err := cc.catalog.ListRecipe(c.Request.Context(), c.Param("id"))
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lineas": lines, "count": len(lines)})
}

type recipeLineRequest struct {
	Quantity float64 `json:"cantidad"`
	Unit     string  `json:"unidad"`
}

// SetRecipeLine добавляет или заменяет строку escandallo
// PUT /api/v1/platos/:id/escandallo/:ingrediente_id
func (cc *CatalogController) SetRecipeLine(c *gin.Context) {
	var req recipeLineRequest
	if !bindJSON(c, &req) {
		return
	}
	line, err := cc.catalog.SetRecipeLine(c.Request.Context(), c.Param("id"), services.RecipeLineInput{
		IngredientID: c.Param("ingrediente_id"),
		Quantity:     req.Quantity,
		Unit:         req.Unit,
	})
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

// DELETE /api/v1/platos/:id/escandallo/:ingrediente_id
func (cc *CatalogController) RemoveRecipeLine(c *gin.Context) {
	if err := cc.catalog.RemoveRecipeLine(c.Request.Context(), c.Param("id"), c.Param("ingrediente_id")); err != nil {
		cc.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetRecipeCost - себестоимость и маржа порции
// GET /api/v1/platos/:id/coste
func (cc *CatalogController) GetRecipeCost(c *gin.Context) {
	cost, err := cc.catalog.GetRecipeCost(c.Request.Context(), c.Param("id"))
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cost)
}
