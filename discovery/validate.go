package discovery

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/castellan/castellan/core"
)

// descriptorValidator checks descriptors against their validate tags plus
// the custom modname rule (alphanumerics, '_', '-').
var descriptorValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("modname", func(fl validator.FieldLevel) bool {
		return core.ValidName(fl.Field().String())
	})
	return v
}

func validateDescriptor(d core.Descriptor) error {
	if err := descriptorValidator.Struct(d); err != nil {
		return fmt.Errorf("invalid descriptor %q: %w", d.Name, err)
	}
	return nil
}

type duplicateError struct {
	name string
}

func (e *duplicateError) Error() string {
	return fmt.Sprintf("duplicate module %q", e.name)
}
