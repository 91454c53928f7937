package sqlgen

import (
	"fmt"
	"reflect"
	"strings"
)

// Arg is one named parameter of a generated statement, in first-use order.
type Arg struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Result is a finished statement: dialect SQL plus its named arguments.
type Result struct {
	SQL  string
	Args []Arg
}

// argSet accumulates named arguments, deduplicating by name so a
// parameter referenced twice binds once.
type argSet struct {
	order []string
	vals  map[string]any
}

func newArgSet() *argSet {
	return &argSet{vals: make(map[string]any)}
}

func (a *argSet) add(name string, value any) {
	if _, ok := a.vals[name]; !ok {
		a.order = append(a.order, name)
	}
	a.vals[name] = value
}

func (a *argSet) list() []Arg {
	out := make([]Arg, len(a.order))
	for i, name := range a.order {
		out[i] = Arg{Name: name, Value: a.vals[name]}
	}
	return out
}

// undefined marks a parameter lookup that found nothing: a missing map
// key or an out-of-range index. Distinct from a present nil, which is
// SQL NULL.
type lookupResult struct {
	value   any
	defined bool
}

// resolveParam navigates the caller value map along a param's property
// path and optional index. The param name itself missing from the map is
// also "undefined"; statement context decides whether that is an omitted
// insert column or a fatal unbound parameter.
func resolveParam(params map[string]any, name string, path []string, index int, indexed bool) lookupResult {
	value, ok := params[name]
	if !ok {
		return lookupResult{}
	}
	for _, key := range path {
		m, isMap := value.(map[string]any)
		if !isMap {
			return lookupResult{}
		}
		value, ok = m[key]
		if !ok {
			return lookupResult{}
		}
	}
	if indexed {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return lookupResult{}
		}
		if index < 0 || index >= rv.Len() {
			return lookupResult{}
		}
		value = rv.Index(index).Interface()
	}
	return lookupResult{value: value, defined: true}
}

// flatName renders a param's placeholder identifier: path segments and
// the index are folded in with underscores (p.filter.name -> filter_name,
// p.ids[0] -> ids_0).
func flatName(name string, path []string, index int, indexed bool) string {
	parts := append([]string{name}, path...)
	flat := strings.Join(parts, "_")
	if indexed {
		flat = fmt.Sprintf("%s_%d", flat, index)
	}
	return flat
}

// asSlice reports an array-valued parameter's elements, for IN expansion.
func asSlice(value any) ([]any, bool) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
