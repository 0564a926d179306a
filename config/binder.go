package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Binder decodes string-keyed maps into typed structs and validates the
// result. Fields map through `config` tags; rules live in `validate` tags.
// Decoding is weakly typed, so "8080" binds onto an int and "15s" onto a
// time.Duration.
type Binder struct {
	validator *validator.Validate
}

// BindError wraps a decode or validation failure with the stage it
// happened in.
type BindError struct {
	// Stage is "decode" or "validate".
	Stage string
	Err   error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("config %s error: %v", e.Stage, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// NewBinder builds a Binder with duration and comma-separated-slice decode
// hooks and the standard validator rule set.
func NewBinder() *Binder {
	return &Binder{validator: validator.New()}
}

// Bind decodes source into target (a struct pointer) and validates it.
// The target may be partially populated when decode succeeds but
// validation fails.
func (b *Binder) Bind(source map[string]any, target any) error {
	if err := b.decode(source, target); err != nil {
		return &BindError{Stage: "decode", Err: err}
	}
	if err := b.validator.Struct(target); err != nil {
		return &BindError{Stage: "validate", Err: err}
	}
	return nil
}

// BindModuleConfig decodes a module manifest's config block into target
// with the same decode hooks and validation rules as the root
// configuration.
func BindModuleConfig(block map[string]any, target any) error {
	return NewBinder().Bind(block, target)
}

func (b *Binder) decode(source map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		TagName: "config",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(source)
}
