package util

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// ValidationError represents an argument/schema mismatch for a single field.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument '%s': %s", e.Field, e.Message)
}

// SchemaFor derives a JSON-schema object from struct type T.
//
// Field names follow the json tag. A field is required unless it is a pointer
// or tagged omitempty. The optional tags `description:"..."` and
// `enum:"a,b,c"` are copied into the property schema.
func SchemaFor[T any]() map[string]any {
	var zero T
	return CreateSchema(zero)
}

// CreateSchema creates a JSON schema from a Go struct value using reflection.
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t == nil {
		return emptyObject()
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return emptyObject()
	}

	properties := make(map[string]any)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name := field.Name
		if head, _, _ := strings.Cut(jsonTag, ","); head != "" {
			name = head
		}

		prop := typeSchema(field.Type)
		if d := field.Tag.Get("description"); d != "" {
			prop["description"] = d
		}
		if e := field.Tag.Get("enum"); e != "" {
			vals := strings.Split(e, ",")
			enum := make([]any, len(vals))
			for j, v := range vals {
				enum[j] = strings.TrimSpace(v)
			}
			prop["enum"] = enum
		}
		properties[name] = prop

		if !hasOmitEmpty(jsonTag) && field.Type.Kind() != reflect.Ptr {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func emptyObject() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func typeSchema(t reflect.Type) map[string]any {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s := map[string]any{"type": jsonType(t)}
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		s["items"] = typeSchema(t.Elem())
	}
	return s
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "string"
	}
}

func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}

// RequiredFields returns the schema's required list regardless of whether it
// was built in Go ([]string) or decoded from JSON ([]any).
func RequiredFields(schema map[string]any) []string {
	switch r := schema["required"].(type) {
	case []string:
		return r
	case []any:
		out := make([]string, 0, len(r))
		for _, v := range r {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ValidateParameters validates params against a JSON schema object. Properties
// not declared by the schema are tolerated.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, name := range RequiredFields(schema) {
		if v, ok := params[name]; !ok || v == nil {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, value := range params {
		prop, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}
		if err := validateValue(name, value, prop); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(field string, value any, prop map[string]any) error {
	if value == nil {
		return nil
	}
	expected, _ := prop["type"].(string)
	if !isValidType(value, expected) {
		return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("expected type %s, got %T", expected, value)}
	}
	if enum, ok := prop["enum"].([]any); ok && len(enum) > 0 && !slices.Contains(enum, value) {
		return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must be one of %v", enum)}
	}
	if items, ok := prop["items"].(map[string]any); ok {
		rv := reflect.ValueOf(value)
		for i := 0; i < rv.Len(); i++ {
			if err := validateValue(fmt.Sprintf("%s[%d]", field, i), rv.Index(i).Interface(), items); err != nil {
				return err
			}
		}
	}
	return nil
}

func isValidType(value any, expectedType string) bool {
	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return v == float64(int64(v))
		case json.Number:
			_, err := v.Int64()
			return err == nil
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64, json.Number:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		k := reflect.TypeOf(value).Kind()
		return k == reflect.Slice || k == reflect.Array
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

// DecodeArguments converts a free-form argument map into the typed struct out
// points to, using the same json tags the schema was derived from.
func DecodeArguments(args map[string]any, out any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}
