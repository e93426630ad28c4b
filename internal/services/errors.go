package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Виды ошибок ядра
const (
	KindValidation        = "validation"
	KindInsufficientStock = "insufficient_stock"
	KindNotFound          = "not_found"
	KindStorage           = "storage"
)

// FieldError описывает одно нарушение во входных данных
type FieldError struct {
	Field   string `json:"campo"`
	Problem string `json:"problema"`
}

// ValidationError - некорректный или отсутствующий ввод. Не ретраится.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Problem)
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Kind() string { return KindValidation }

// InsufficientStockError - движение увело бы остаток ниже нуля
type InsufficientStockError struct {
	IngredientID string
	Name         string
	Current      float64
	Requested    float64
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.IngredientID
	}
	return fmt.Sprintf("stock insuficiente para %s: disponible %.4f, requerido %.4f", name, e.Current, e.Requested)
}

func (e *InsufficientStockError) Kind() string { return KindInsufficientStock }

// NotFoundError - ингредиент, блюдо или заказ не существует
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s no encontrado", e.Entity, e.ID)
}

func (e *NotFoundError) Kind() string { return KindNotFound }

// StorageError - сбой хранилища. Детали только в логах и в development.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Kind() string { return KindStorage }

// KindOf возвращает вид ошибки ядра или пустую строку для чужих ошибок
func KindOf(err error) string {
	var kinded interface{ Kind() string }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return ""
}

func newValidation(field, problem string) *ValidationError {
	return &ValidationError{
		Message: "datos de entrada no válidos",
		Fields:  []FieldError{{Field: field, Problem: problem}},
	}
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	// Доменные ошибки, вернувшиеся из транзакции, не заворачиваем
	if KindOf(err) != "" {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func notFoundOr(op, entity, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return storageErr(op, err)
}

var validate = validator.New()

func init() {
	// В FieldError отдаем json-имена полей, а не имена Go
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
}

// validateStruct прогоняет теги validator и собирает их в ValidationError
func validateStruct(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Message: err.Error()}
	}
	ve := &ValidationError{Message: "datos de entrada no válidos"}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, FieldError{Field: fe.Field(), Problem: fe.Tag()})
	}
	return ve
}
