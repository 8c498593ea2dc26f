package catalog

import (
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/zjrosen/keystone/internal/registry"
)

// newValidator returns a validator that knows the key tags:
//
//	keyns   a namespace segment
//	keypath a path segment
//	keyref  a relation target, either path or namespace:path
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("keyns", func(fl validator.FieldLevel) bool {
		return registry.ValidNamespace(fl.Field().String())
	})
	_ = v.RegisterValidation("keypath", func(fl validator.FieldLevel) bool {
		return registry.ValidPath(fl.Field().String())
	})
	_ = v.RegisterValidation("keyref", func(fl validator.FieldLevel) bool {
		return validRef(fl.Field().String())
	})
	return v
}

func validRef(s string) bool {
	ns, p, qualified := strings.Cut(s, string(registry.Separator))
	if !qualified {
		return registry.ValidPath(s)
	}
	return registry.ValidNamespace(ns) && registry.ValidPath(p)
}

// validationErrors turns a validator failure into one error per field, each
// marked with ErrInvalidDefinition.
func validationErrors(err error) []error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []error{errors.Mark(err, ErrInvalidDefinition)}
	}
	out := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, errors.Wrapf(ErrInvalidDefinition, "%s: %s", trimRoot(fe.Namespace()), describe(fe)))
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "keyns":
		return "must match [a-z0-9._-]+"
	case "keypath":
		return "must match [a-z0-9._-/]+"
	case "keyref":
		return "must be a path or namespace:path"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag()
	}
}

// trimRoot drops the struct name validator puts in front of field paths.
func trimRoot(ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		return ns
	}
	return rest
}
