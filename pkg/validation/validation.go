// Package validation owns the shared validator instance so HTTP bodies and
// event payloads report fields by the same JSON names.
package validation

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once   sync.Once
	engine *validator.Validate

	currencyRe = regexp.MustCompile(`^[A-Za-z]{3}$`)
)

// Engine returns the process-wide validator. It knows two extra tags:
// notblank (non-whitespace string) and currency (three-letter ISO code).
func Engine() *validator.Validate {
	once.Do(func() {
		engine = validator.New(validator.WithRequiredStructEnabled())
		engine.RegisterTagNameFunc(jsonName)
		_ = engine.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return fl.Field().Kind() != reflect.String || strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = engine.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
			return currencyRe.MatchString(fl.Field().String())
		})
	})
	return engine
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "":
		return f.Name
	case "-":
		return ""
	}
	return name
}
