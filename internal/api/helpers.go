package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"backoffice/server/internal/apierror"
	"backoffice/server/internal/middleware"
	"backoffice/server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// responder отвечает ошибкой сервиса в едином конверте
type responder struct {
	production bool
}

func (r responder) fail(c *gin.Context, err error) {
	status, body := apierror.Resolve(err, r.production)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("❌ Ошибка обработки запроса")
	}
	c.JSON(status, body)
}

// bindJSON разбирает тело; при ошибке уже ответил 400
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(services.KindValidation, "JSON inválido: "+err.Error()))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// parseDate принимает YYYY-MM-DD (полночь в часовом поясе ресторана) или RFC3339
func parseDate(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// failConsumption - как fail, но с перечнем строк escandallo, которых не хватило
func (r responder) failConsumption(c *gin.Context, err error, res *services.ProductionResult) {
	if res == nil || len(res.Failures) == 0 {
		r.fail(c, err)
		return
	}
	status, body := apierror.Resolve(err, r.production)
	c.JSON(status, gin.H{
		"error":  body.Error,
		"detail": body.Detail,
		"fallos": res.Failures,
	})
}
