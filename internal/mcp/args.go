package mcp

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ArgumentGetter is implemented by mcp.CallToolRequest.
type ArgumentGetter interface {
	GetArguments() map[string]any
}

// bindArguments decodes tool arguments into target using its json tags.
// Clients often send every parameter as a string, so "true" and "42" are
// coerced into booleans and numbers.
func bindArguments[T any](request ArgumentGetter, target *T) error {
	rawArgs := request.GetArguments()
	if rawArgs == nil {
		return fmt.Errorf("invalid arguments format")
	}

	jsonStringHook := func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))

		switch {
		case t.Kind() == reflect.Bool:
			if raw == "true" || raw == "false" {
				return raw == "true", nil
			}
		case t.Kind() == reflect.Slice && strings.HasPrefix(raw, "["):
			var items []any
			if err := json.Unmarshal([]byte(raw), &items); err == nil {
				return items, nil
			}
		}
		return data, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			jsonStringHook,
			mapstructure.StringToSliceHookFunc(","),
		),
		Result:  target,
		TagName: "json",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(rawArgs)
}

// requireString returns an error naming key when value is blank.
func requireString(key, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s parameter is required", key)
	}
	return nil
}
