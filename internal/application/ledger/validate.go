package ledger

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/go-playground/validator/v10"
)

var commandValidator = newCommandValidator()

func newCommandValidator() *validator.Validate {
	v := validator.New()
	// Report field names as they appear in JSON.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the struct tags of a command and reports every failure in
// one INVALID_INPUT error.
func Validate(cmd any) error {
	err := commandValidator.Struct(cmd)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return shared.InvalidInput("%s", err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return shared.InvalidInput("%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", fe.Field(), fe.Param())
	case "gte", "gt", "lte", "lt":
		return fmt.Sprintf("%s must be %s %s", fe.Field(), fe.Tag(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
