package validation

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

// validatorInstance configures and returns the shared validator used for action structs.
// Field names in errors are the document keys taken from mapstructure tags.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("http_verb", func(fl validator.FieldLevel) bool {
			return action.Kind(fl.Field().String()).IsNetwork()
		})

		validateInst = v
	})

	return validateInst
}

// GetValidator returns the configured validator for use outside the validation package.
func GetValidator() *validator.Validate {
	return validatorInstance()
}
