// Package configbinder binds loosely typed maps, as produced by YAML decoding or
// environment lookups, onto configuration structs.
package configbinder

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Bind decodes input onto target using the "yaml" struct tags. Strings are converted to
// numbers and booleans where the field requires it. Fields that input does not mention
// keep their current value, so Bind can layer a partial document over defaults.
func Bind(input map[string]interface{}, target interface{}) error {
	if len(input) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(input); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to struct %s: %w", targetType.Name(), err)
	}
	return nil
}

// RenameKey returns a copy of m with the alias key renamed to canonical.
// An explicit canonical key takes precedence over the alias.
func RenameKey(m map[string]interface{}, alias, canonical string) map[string]interface{} {
	v, ok := m[alias]
	if !ok {
		return m
	}
	out := make(map[string]interface{}, len(m))
	for k, val := range m {
		if k != alias {
			out[k] = val
		}
	}
	if _, exists := out[canonical]; !exists {
		out[canonical] = v
	}
	return out
}
