package sandbox

import (
	"errors"

	"github.com/dop251/goja"
)

// exportValue converts goja value to Go value
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// toJS builds native JS values so guests never see wrapped Go maps or slices
func (e *engine) toJS(v interface{}) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Null()
	case goja.Value:
		return x
	case map[string]interface{}:
		obj := e.vm.NewObject()
		for k, item := range x {
			_ = obj.Set(k, e.toJS(item))
		}
		return obj
	case map[string]string:
		obj := e.vm.NewObject()
		for k, item := range x {
			_ = obj.Set(k, item)
		}
		return obj
	case []interface{}:
		items := make([]interface{}, len(x))
		for i, item := range x {
			items[i] = e.toJS(item)
		}
		return e.vm.NewArray(items...)
	case []string:
		items := make([]interface{}, len(x))
		for i, item := range x {
			items[i] = item
		}
		return e.vm.NewArray(items...)
	default:
		return e.vm.ToValue(x)
	}
}

// render formats a value for log output. Objects are JSON encoded when
// possible.
func (e *engine) render(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}

	if obj, ok := v.(*goja.Object); ok && e.stringify != nil {
		if _, isFunc := goja.AssertFunction(obj); !isFunc {
			if obj.ClassName() == "Error" {
				return v.String()
			}
			out, err := e.stringify(goja.Undefined(), obj)
			if err == nil && out != nil && !goja.IsUndefined(out) {
				return out.String()
			}
		}
	}
	return v.String()
}

// describe extracts message and code from a thrown or rejected value
func describe(v goja.Value) (message, code string) {
	if v == nil || goja.IsUndefined(v) {
		return "undefined", ""
	}
	if obj, ok := v.(*goja.Object); ok {
		if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
			message = m.String()
		} else {
			message = obj.String()
		}
		if c := obj.Get("code"); c != nil && !goja.IsUndefined(c) && !goja.IsNull(c) {
			code = c.String()
		}
		return message, code
	}
	return v.String(), ""
}

// describeError extracts message and code from an engine error
func describeError(err error) (message, code string) {
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return describe(exception.Value())
	}
	return err.Error(), ""
}
