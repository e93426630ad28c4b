package apierror

import (
	"errors"
	"net/http"
	"testing"

	"backoffice/server/internal/services"

	"github.com/stretchr/testify/assert"
)

func TestResolve_DomainErrors(t *testing.T) {
	status, body := Resolve(&services.ValidationError{
		Message: "datos de entrada no válidos",
		Fields:  []services.FieldError{{Field: "cantidad", Problem: "gt"}},
	}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, services.KindValidation, body.Error)
	assert.Len(t, body.Fields, 1)

	status, body = Resolve(&services.InsufficientStockError{Name: "Pollo", Current: 1, Requested: 2}, true)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body.Detail, "Pollo")

	status, _ = Resolve(&services.NotFoundError{Entity: "plato", ID: "x"}, true)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestResolve_StorageRedaction(t *testing.T) {
	err := &services.StorageError{Op: "apply delta", Err: errors.New("disk I/O error: /var/lib/backoffice.db")}

	status, body := Resolve(err, true)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, GenericMessage, body.Detail)
	assert.NotContains(t, body.Detail, "disk")

	status, body = Resolve(err, false)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body.Detail, "disk I/O error")
	assert.Contains(t, body.Detail, "apply delta")
}

func TestResolve_UnknownErrorIsStorage(t *testing.T) {
	status, body := Resolve(errors.New("boom"), true)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, services.KindStorage, body.Error)
	assert.Equal(t, GenericMessage, body.Detail)
}
