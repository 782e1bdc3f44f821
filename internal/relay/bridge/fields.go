package bridge

import (
	"reflect"
	"strings"
	"sync"
)

const tagName = "relay"

// presence describes what happens when a field is absent or null
type presence int

const (
	required presence = iota
	optional
	defaulted
)

type fieldSpec struct {
	index    int
	key      string
	presence presence
}

var fieldCache sync.Map // reflect.Type -> []fieldSpec

// fieldsOf returns the tagged fields of a struct type in declaration order
func fieldsOf(t reflect.Type) []fieldSpec {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]fieldSpec)
	}

	specs := make([]fieldSpec, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, ok := sf.Tag.Lookup(tagName)
		if !ok || tag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = sf.Name
		}

		spec := fieldSpec{index: i, key: name, presence: required}
		for _, opt := range strings.Split(opts, ",") {
			switch opt {
			case "optional":
				spec.presence = optional
			case "default":
				spec.presence = defaulted
			}
		}
		specs = append(specs, spec)
	}

	actual, _ := fieldCache.LoadOrStore(t, specs)
	return actual.([]fieldSpec)
}
