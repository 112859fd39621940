package tool

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ensemble-ai/internal/domain"
)

// ValidateParams checks raw call parameters against a tool's declared
// schema: every required parameter must be present, and every supplied
// parameter with a declared type must match it at runtime. The first
// violation found (in sorted parameter order, for determinism) is
// reported. Declared types outside the known set pass unchecked, as do
// supplied parameters the schema does not declare.
func ValidateParams(schema domain.ToolSchema, raw json.RawMessage) error {
	supplied := make(map[string]any)
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &supplied); err != nil {
			return fmt.Errorf("tool %q: parameters are not a JSON object: %v", schema.Name, err)
		}
	}

	names := make([]string, 0, len(schema.Parameters))
	for name := range schema.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := schema.Parameters[name]
		value, present := supplied[name]

		if !present {
			if spec.Required {
				return fmt.Errorf("tool %q: missing required parameter %q", schema.Name, name)
			}
			continue
		}

		if err := checkType(name, spec.Type, value); err != nil {
			return fmt.Errorf("tool %q: %w", schema.Name, err)
		}

		if len(spec.Enum) > 0 {
			if err := checkEnum(name, spec.Enum, value); err != nil {
				return fmt.Errorf("tool %q: %w", schema.Name, err)
			}
		}
	}

	return nil
}

// checkType validates the runtime type of a decoded JSON value against the
// declared parameter type. Unknown declared types pass through unchecked.
func checkType(name, declared string, value any) error {
	switch declared {
	case domain.ParamString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("parameter %q must be a string, got %s", name, jsonTypeOf(value))
		}
	case domain.ParamNumber:
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("parameter %q must be a number, got %s", name, jsonTypeOf(value))
		}
	case domain.ParamBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("parameter %q must be a boolean, got %s", name, jsonTypeOf(value))
		}
	case domain.ParamObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("parameter %q must be an object, got %s", name, jsonTypeOf(value))
		}
	case domain.ParamArray:
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("parameter %q must be an array, got %s", name, jsonTypeOf(value))
		}
	}
	return nil
}

func checkEnum(name string, allowed []string, value any) error {
	s, ok := value.(string)
	if !ok {
		return nil // enums only constrain string parameters
	}
	for _, a := range allowed {
		if s == a {
			return nil
		}
	}
	return fmt.Errorf("parameter %q: invalid value %q (want one of: %s)", name, s, strings.Join(allowed, ", "))
}

// jsonTypeOf names the JSON type of a value decoded into any.
func jsonTypeOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", value)
	}
}
