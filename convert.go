package safejson

import (
	"math"
	"reflect"
	"runtime/debug"
	"sort"
)

// maxDepth bounds nesting. Containers that keep producing new child
// containers are treated like cycles once it is reached.
const maxDepth = 10000

// Result is the outcome of Convert
type Result struct {
	// Value only contains nil, bool, string, integer kinds, finite floats,
	// []any and map[string]any. It is Undefined if the root itself was omitted.
	Value any

	// Changes lists every deviation from the input, in traversal order.
	// It is never nil.
	Changes []Change
}

// Convert returns a copy of v that is guaranteed to be valid JSON, together
// with a list of every change that was necessary to get there.
//
// Convert never panics: failing getters, failing toJSON hooks, hostile
// containers and values JSON cannot represent are all recorded as changes and
// omitted from the result.
//
// Values are visited depth-first. Every value first gets its toJSON hook
// called (see Normalize), the result is then validated as plain data. Array
// items are visited in order, map[string]any keys sorted and Container keys
// in the order their Keys method returns them.
//
// Convert may be called from inside a hook, even on the value that is
// currently being converted; each call is independent.
func Convert(v any) (res Result) {
	c := &converter{
		log:       &Log{},
		ancestors: make(map[identity]struct{}),
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Add(Change{
				Path:     Path{},
				OldValue: v,
				NewValue: Undefined,
				Reason:   ReasonUnsafeException,
				Error:    normalizeException(r, debug.Stack()),
			})
			res = Result{Value: Undefined, Changes: c.log.Changes()}
		}
	}()

	value := c.visit(v, Path{})
	return Result{Value: value, Changes: c.log.Changes()}
}

// converter holds the state of a single Convert call
type converter struct {
	log       *Log
	ancestors map[identity]struct{}
	depth     int
}

func (c *converter) visit(v any, path Path) any {
	v = Normalize(v, c.log, path)
	return c.validate(v, path)
}

// validate checks v as plain data, without calling its hook
func (c *converter) validate(v any, path Path) any {
	switch t := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return t
	case float32:
		if isFinite(float64(t)) {
			return t
		}
	case float64:
		if isFinite(t) {
			return t
		}
	case []any:
		return c.array(t, path)
	case []string:
		return c.array(widen(t), path)
	case []float64:
		return c.array(widen(t), path)
	case []int:
		return c.array(widen(t), path)
	case []bool:
		return c.array(widen(t), path)
	case map[string]any:
		return c.object(t, path)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return c.object(m, path)
	case Container:
		return c.container(t, path)
	}

	c.log.Add(Change{
		Path:     path,
		OldValue: v,
		NewValue: Undefined,
		Reason:   ReasonInvalidType,
	})
	return Undefined
}

func (c *converter) array(arr []any, path Path) any {
	if !c.enter(arr, path) {
		return Undefined
	}
	defer c.leave(arr)

	out := make([]any, 0, len(arr))
	for i, item := range arr {
		child := c.visit(item, path.Append(i))
		if child == Undefined {
			continue
		}
		out = append(out, child)
	}
	return out
}

func (c *converter) object(m map[string]any, path Path) any {
	if !c.enter(m, path) {
		return Undefined
	}
	defer c.leave(m)

	// Go through map alphabetically, that makes the changes deterministic
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(m))
	for _, key := range keys {
		child := c.visit(m[key], path.Append(key))
		if child == Undefined {
			continue
		}
		out[key] = child
	}
	return out
}

func (c *converter) container(obj Container, path Path) any {
	if !c.enter(obj, path) {
		return Undefined
	}
	defer c.leave(obj)

	listed, failure := guard(func() (any, error) {
		return obj.Keys(), nil
	})
	if failure != nil {
		c.log.Add(Change{
			Path:     path,
			OldValue: obj,
			NewValue: Undefined,
			Reason:   ReasonUnsafeException,
			Error:    failure,
		})
		return Undefined
	}
	keys, _ := listed.([]string)

	out := make(map[string]any, len(keys))
	for _, key := range keys {
		childPath := path.Append(key)
		prop, ok := Read(obj, key, c.log, childPath)
		if !ok {
			continue
		}
		child := c.visit(prop, childPath)
		if child == Undefined {
			continue
		}
		out[key] = child
	}
	return out
}

// enter marks v as an ancestor of the values visited next. It records
// ReasonUnsafeCycle and returns false if v is already one of them.
func (c *converter) enter(v any, path Path) bool {
	id, tracked := identify(v)
	_, seen := c.ancestors[id]
	if (tracked && seen) || c.depth >= maxDepth {
		c.log.Add(Change{
			Path:     path,
			OldValue: v,
			NewValue: Undefined,
			Reason:   ReasonUnsafeCycle,
		})
		return false
	}
	if tracked {
		c.ancestors[id] = struct{}{}
	}
	c.depth++
	return true
}

func (c *converter) leave(v any) {
	c.depth--
	if id, tracked := identify(v); tracked {
		delete(c.ancestors, id)
	}
}

// identity tells containers apart by reference
type identity struct {
	typ reflect.Type
	ptr uintptr
	len int
}

// identify returns the reference identity of v. Values that are not
// references cannot contain themselves and are not tracked.
func identify(v any) (identity, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{typ: rv.Type(), ptr: rv.Pointer()}, true
	case reflect.Slice:
		if rv.Len() == 0 {
			return identity{}, false
		}
		return identity{typ: rv.Type(), ptr: rv.Pointer(), len: rv.Len()}, true
	}
	return identity{}, false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func widen[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
