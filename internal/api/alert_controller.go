package api

import (
	"net/http"

	"backoffice/server/internal/services"

	"github.com/gin-gonic/gin"
)

// AlertController - отчеты по алертам склада
type AlertController struct {
	responder
	engine *services.AlertEngine
}

// NewAlertController создает новый контроллер алертов
func NewAlertController(engine *services.AlertEngine, production bool) *AlertController {
	return &AlertController{responder: responder{production: production}, engine: engine}
}

// GetStockAlerts - ингредиенты ниже минимума
// GET /api/v1/alertas/stock
func (ac *AlertController) GetStockAlerts(c *gin.Context) {
	alerts, err := ac.engine.GetStockAlerts(c.Request.Context())
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alertas": alerts, "total": len(alerts)})
}

// GetCriticalReport - отчет "criticas" с лимитом
// GET /api/v1/alertas/criticas
func (ac *AlertController) GetCriticalReport(c *gin.Context) {
	alerts, err := ac.engine.GetCriticalReport(c.Request.Context())
	if err != nil {
		ac.fail(c, err)
		return
	}
	critical := 0
	for _, a := range alerts {
		if a.Level == services.LevelCritical {
			critical++
		}
	}
	c.JSON(http.StatusOK, gin.H{"alertas": alerts, "total": len(alerts), "criticas": critical})
}

// GetExpirationAlerts - партии с истекающим сроком
// GET /api/v1/alertas/caducidad?dias=7
func (ac *AlertController) GetExpirationAlerts(c *gin.Context) {
	days := queryInt(c, "dias", services.DefaultExpiryDays)
	alerts, err := ac.engine.GetExpirationAlerts(c.Request.Context(), days)
	if err != nil {
		ac.fail(c, err)
		return
	}
	if days <= 0 {
		days = services.DefaultExpiryDays
	}
	c.JSON(http.StatusOK, gin.H{"alertas": alerts, "total": len(alerts), "dias": days})
}

// GetAlertsSummary - сводка по всем видам алертов
// GET /api/v1/alertas/resumen?tipo=todos|critico|bajo|proximo_vencer|vencido|vence_hoy
func (ac *AlertController) GetAlertsSummary(c *gin.Context) {
	summary, err := ac.engine.GetAlertsSummary(c.Request.Context(), c.Query("tipo"))
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
