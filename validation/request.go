package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"dixis-bulk-orders/apperrors"
)

// NewRequestValidator returns a validator that reports fields by their JSON name
func NewRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// CheckStruct validates obj and converts field errors into a Validation AppError
// whose details are keyed by field path, e.g. "products[0].product_id".
func CheckStruct(v *validator.Validate, obj any) error {
	err := v.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.Validation("invalid request").Wrap(err)
	}

	appErr := apperrors.Validation("validation failed")
	for _, fe := range fieldErrs {
		appErr.WithDetail(fieldPath(fe), fieldMessage(fe))
	}
	return appErr
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.TrimPrefix(ns, "SubmissionMeta.")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must be a date in the format YYYY-MM-DD"
	default:
		return "is invalid"
	}
}
