package bridge

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Convert decodes an exported guest value into T
func Convert[T any](value interface{}) (T, error) {
	var out T
	if err := Decode(value, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Decode decodes an exported guest value into the record pointed to by
// target. On failure target is left untouched.
func Decode(value interface{}, target interface{}) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("bridge: target must be a non-nil pointer, got %T", target)
	}

	// Decode into a scratch value so no partial record escapes
	scratch := reflect.New(rv.Elem().Type()).Elem()
	if failure := decodeValue(scratch, value, ""); failure != nil {
		return failure
	}
	rv.Elem().Set(scratch)
	return nil
}

func decodeValue(dst reflect.Value, raw interface{}, path string) *ConversionFailure {
	if raw == nil {
		switch dst.Kind() {
		case reflect.Pointer, reflect.Interface:
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		return mismatch(path, dst.Type(), raw)
	}

	switch dst.Kind() {
	case reflect.Pointer:
		elem := reflect.New(dst.Type().Elem())
		if f := decodeValue(elem.Elem(), raw, path); f != nil {
			return f
		}
		dst.Set(elem)
		return nil

	case reflect.Interface:
		dst.Set(reflect.ValueOf(raw))
		return nil

	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return mismatch(path, dst.Type(), raw)
		}
		dst.SetString(s)
		return nil

	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return mismatch(path, dst.Type(), raw)
		}
		dst.SetBool(b)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := asInt(raw)
		if !ok || dst.OverflowInt(n) {
			return mismatch(path, dst.Type(), raw)
		}
		dst.SetInt(n)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := asInt(raw)
		if !ok || n < 0 || dst.OverflowUint(uint64(n)) {
			return mismatch(path, dst.Type(), raw)
		}
		dst.SetUint(uint64(n))
		return nil

	case reflect.Float32, reflect.Float64:
		f, ok := asFloat(raw)
		if !ok {
			return mismatch(path, dst.Type(), raw)
		}
		dst.SetFloat(f)
		return nil

	case reflect.Slice:
		items, ok := raw.([]interface{})
		if !ok {
			return mismatch(path, dst.Type(), raw)
		}
		out := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			if f := decodeValue(out.Index(i), item, indexPath(path, i)); f != nil {
				return f
			}
		}
		dst.Set(out)
		return nil

	case reflect.Map:
		obj, ok := raw.(map[string]interface{})
		if !ok || dst.Type().Key().Kind() != reflect.String {
			return mismatch(path, dst.Type(), raw)
		}
		out := reflect.MakeMapWithSize(dst.Type(), len(obj))
		for k, v := range obj {
			elem := reflect.New(dst.Type().Elem()).Elem()
			if f := decodeValue(elem, v, fieldPath(path, k)); f != nil {
				return f
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), elem)
		}
		dst.Set(out)
		return nil

	case reflect.Struct:
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return mismatch(path, dst.Type(), raw)
		}
		return decodeStruct(dst, obj, path)
	}

	return mismatch(path, dst.Type(), raw)
}

func decodeStruct(dst reflect.Value, obj map[string]interface{}, path string) *ConversionFailure {
	for _, spec := range fieldsOf(dst.Type()) {
		field := dst.Field(spec.index)
		childPath := fieldPath(path, spec.key)

		raw, present := obj[spec.key]
		if !present || raw == nil {
			switch spec.presence {
			case optional:
				field.Set(reflect.Zero(field.Type()))
				continue
			case defaulted:
				field.Set(defaultValue(field.Type()))
				continue
			default:
				return &ConversionFailure{
					Path:     childPath,
					Expected: shapeOfType(field.Type()),
					Missing:  true,
				}
			}
		}

		if f := decodeValue(field, raw, childPath); f != nil {
			return f
		}
	}
	return nil
}

// defaultValue is the contract default for an absent defaulted field:
// empty (non-nil) collections, zero values otherwise
func defaultValue(t reflect.Type) reflect.Value {
	switch t.Kind() {
	case reflect.Slice:
		return reflect.MakeSlice(t, 0, 0)
	case reflect.Map:
		return reflect.MakeMap(t)
	default:
		return reflect.Zero(t)
	}
}

func asInt(raw interface{}) (int64, bool) {
	switch n := raw.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func asFloat(raw interface{}) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func fieldPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func indexPath(parent string, i int) string {
	return parent + "[" + strconv.Itoa(i) + "]"
}

func mismatch(path string, expected reflect.Type, raw interface{}) *ConversionFailure {
	return &ConversionFailure{
		Path:     path,
		Expected: shapeOfType(expected),
		Actual:   shapeOfValue(raw),
	}
}

// shapeOfType names the guest-side shape a Go type expects
func shapeOfType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		return shapeOfType(t.Elem())
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice:
		return "array of " + shapeOfType(t.Elem())
	case reflect.Map:
		return "map of " + shapeOfType(t.Elem())
	case reflect.Struct:
		return "object"
	case reflect.Interface:
		return "any"
	}
	return t.String()
}

// shapeOfValue names the shape of an exported guest value
func shapeOfValue(raw interface{}) string {
	switch n := raw.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int32, int64, uint32:
		return "integer"
	case float32:
		return "number"
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return "integer"
		}
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	return fmt.Sprintf("%T", raw)
}
