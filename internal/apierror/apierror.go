// Package apierror переводит ошибки сервисов в HTTP статус и единый конверт ответа.
// Детали сбоев хранилища видны клиенту только вне production.
package apierror

import (
	"errors"
	"net/http"

	"backoffice/server/internal/services"
)

// GenericMessage - то, что клиент видит вместо внутренней ошибки в production
const GenericMessage = "Error interno del servidor"

// APIError - конверт для всех ответов 4xx/5xx
type APIError struct {
	Error  string                `json:"error"`
	Detail string                `json:"detail"`
	Fields []services.FieldError `json:"fields,omitempty"`
}

func New(kind, msg string) *APIError {
	return &APIError{Error: kind, Detail: msg}
}

// Resolve возвращает статус и тело ответа для ошибки
func Resolve(err error, production bool) (int, *APIError) {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, &APIError{
			Error:  services.KindValidation,
			Detail: ve.Message,
			Fields: ve.Fields,
		}
	}

	var short *services.InsufficientStockError
	if errors.As(err, &short) {
		return http.StatusConflict, New(services.KindInsufficientStock, short.Error())
	}

	var nf *services.NotFoundError
	if errors.As(err, &nf) {
		return http.StatusNotFound, New(services.KindNotFound, nf.Error())
	}

	kind := services.KindStorage
	if production {
		return http.StatusInternalServerError, New(kind, GenericMessage)
	}
	return http.StatusInternalServerError, New(kind, err.Error())
}
