package events

import (
	"sort"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/validation"
)

// checkRequired turns failing `required` rules into a MISSING_REQUIRED_FIELD
// error naming the first missing field.
func checkRequired(fields any) error {
	err := validation.Engine().Struct(fields)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event payload")
	}
	missing := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		missing = append(missing, fieldErr.Field())
	}
	sort.Strings(missing)
	return pkgerrors.New(pkgerrors.CodeMissingField, missing[0]+" is required").
		WithDetails(map[string]any{"fields": missing})
}
