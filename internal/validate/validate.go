// Package validate checks user input before it is sent to the API.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"restodash/internal/format"
	"restodash/pkg/models"
)

// Error reports the first invalid field of an input.
type Error struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

var (
	once     sync.Once
	instance *validator.Validate
)

// SupplierLabels lists the labels accepted by the "label" tag.
var SupplierLabels = []string{
	models.LabelFood,
	models.LabelBeverages,
	models.LabelFixedCosts,
	models.LabelVariableCosts,
	models.LabelOthers,
}

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(func(field reflect.StructField) string {
			if name := field.Tag.Get("field"); name != "" {
				return name
			}
			return field.Name
		})
		_ = instance.RegisterValidation("frnumber", func(fl validator.FieldLevel) bool {
			return format.IsNumeric(fl.Field().String())
		})
		_ = instance.RegisterValidation("label", func(fl validator.FieldLevel) bool {
			value := fl.Field().String()
			for _, label := range SupplierLabels {
				if value == label {
					return true
				}
			}
			return false
		})
	})
	return instance
}

// Struct validates s and returns an *Error describing the first failure.
func Struct(s interface{}) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	first := fieldErrs[0]
	return &Error{
		Field:   first.Field(),
		Value:   first.Value(),
		Message: message(first),
	}
}

// message renders the French message shown to users.
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "ce champ est obligatoire"
	case "frnumber":
		return "ce champ doit être un nombre"
	case "label":
		return "catégorie inconnue, valeurs possibles : " + strings.Join(SupplierLabels, ", ")
	case "min":
		return fmt.Sprintf("au moins %s élément(s) requis", fe.Param())
	default:
		return fmt.Sprintf("valeur invalide (%s)", fe.Tag())
	}
}
