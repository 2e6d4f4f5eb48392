package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Args holds validated tool arguments. Declared parameters are normalised:
// integer → int64, number → float64, boolean → bool, string → string.
type Args map[string]any

// String returns the string argument for key, or "".
func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Int returns the integer argument for key, or 0.
func (a Args) Int(key string) int64 {
	switch v := a[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Float returns the numeric argument for key, or 0.
func (a Args) Float(key string) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Bool returns the boolean argument for key, or false.
func (a Args) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// Has reports whether key was supplied (or defaulted).
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// DecodeArgs parses raw model-issued arguments. Empty input and JSON null
// decode to an empty mapping; anything other than a JSON object is rejected.
func DecodeArgs(raw json.RawMessage) (Args, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Args{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("arguments contain trailing data")
	}
	return Args(args), nil
}

// ValidateArgs checks args against the spec and returns a normalised copy with
// defaults applied. Undeclared arguments are passed through untouched.
func ValidateArgs(spec Spec, args Args) (Args, error) {
	out := make(Args, len(args)+len(spec.Parameters))
	for k, v := range args {
		out[k] = v
	}

	for _, p := range spec.Parameters {
		value, exists := out[p.Name]
		if exists && value == nil {
			delete(out, p.Name)
			exists = false
		}

		if !exists {
			if p.Default != nil {
				out[p.Name] = p.Default
				continue
			}
			if p.Required {
				return nil, fmt.Errorf("missing required parameter: %s", p.Name)
			}
			continue
		}

		coerced, err := coerce(p, value)
		if err != nil {
			return nil, err
		}

		if len(p.Enum) > 0 {
			s, _ := coerced.(string)
			if !contains(p.Enum, s) {
				return nil, fmt.Errorf("invalid value for %s: must be one of %v", p.Name, p.Enum)
			}
		}
		out[p.Name] = coerced
	}

	for k, v := range out {
		if n, ok := v.(json.Number); ok {
			out[k] = numberValue(n)
		}
	}
	return out, nil
}

func coerce(p Parameter, value any) (any, error) {
	switch p.Type {
	case TypeString:
		switch v := value.(type) {
		case string:
			return v, nil
		case json.Number:
			return v.String(), nil
		case bool:
			return strconv.FormatBool(v), nil
		}
	case TypeInteger:
		if i, ok := toInt(value); ok {
			return i, nil
		}
	case TypeNumber:
		if f, ok := toFloat(value); ok {
			return f, nil
		}
	case TypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b, nil
			}
		}
	case TypeObject:
		if m, ok := value.(map[string]any); ok {
			return m, nil
		}
	case TypeArray:
		if s, ok := value.([]any); ok {
			return s, nil
		}
	case "":
		return value, nil
	default:
		return nil, fmt.Errorf("parameter %s: unsupported type %q", p.Name, p.Type)
	}
	return nil, fmt.Errorf("invalid type for %s: expected %s, got %T", p.Name, p.Type, value)
}

func toInt(value any) (int64, bool) {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		if f, err := v.Float64(); err == nil {
			return floatToInt(f)
		}
	case float64:
		return floatToInt(v)
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

// floatToInt accepts integral values that fit in an int64. MaxInt64 itself is
// not representable as a float64, so the upper bound is exclusive.
func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
