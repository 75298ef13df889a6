package safejson

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"io"
	"math/big"
	"reflect"
	"strconv"
	"sync"

	"github.com/go-json-experiment/json/jsontext"
)

// Hook is implemented by values that produce their own JSON representation.
// The result is validated like any other value, so it may be a Container,
// []any, map[string]any or a JSON leaf.
type Hook interface {
	ToJSON() (any, error)
}

// hookName is the property a Container stores its hook in
const hookName = "toJSON"

// jsonMarshaler matches the Marshaler interface of encoding/json
type jsonMarshaler interface {
	MarshalJSON() ([]byte, error)
}

// Normalize calls the toJSON hook of v, if it has one, and returns the result.
// Values without a callable hook are returned as is and nothing is recorded.
//
// A hook is called at most once: if the hook returns a value that has a hook
// itself, that one is not called here. The result is meant to be validated
// as plain data by the caller.
//
// Hooks are found in this order:
//
//   - a Func stored in the "toJSON" property of a Container, called with the container as this
//   - the Hook interface
//   - json.Marshaler, whose output is decoded into a generic value
//   - encoding.TextMarshaler, whose output becomes a string
//
// *big.Int has no hook here: like a JavaScript BigInt it is not valid JSON.
//
// A hook that succeeds records ReasonToJSON. A hook that fails records
// ReasonUnsafeToJSON and Normalize returns Undefined.
//
// While the hook of a value runs, that value counts as hook-less, so a hook
// may convert its own value. Pointers, maps, slices and funcs are told apart by
// reference, other Hook and Container values by equality; marshalers that are
// neither are not tracked. This also applies to conversions running on other
// goroutines at the same time, so the same hook value should not be converted
// concurrently.
func Normalize(v any, log *Log, path Path) any {
	call, ok := findHook(v)
	if !ok {
		return v
	}

	if key, tracked := hookKey(v); tracked {
		if !running.start(key) {
			return v
		}
		defer running.done(key)
	}

	result, failure := guard(call)
	if failure != nil {
		log.Add(Change{
			Path:     path,
			OldValue: v,
			NewValue: Undefined,
			Reason:   ReasonUnsafeToJSON,
			Error:    failure,
		})
		return Undefined
	}

	log.Add(Change{
		Path:     path,
		OldValue: v,
		NewValue: result,
		Reason:   ReasonToJSON,
	})
	return result
}

// findHook returns a function calling the hook of v.
// It must not fail, so Container hooks are looked up with Peek.
func findHook(v any) (func() (any, error), bool) {
	switch h := v.(type) {
	case nil, bool, string, float64, int, Func, *big.Int:
		// BigInt has no JSON representation in JavaScript either
		return nil, false
	case Container:
		fn, ok := containerHook(h)
		if !ok {
			return nil, false
		}
		return func() (any, error) { return fn(h) }, true
	case Hook:
		return func() (any, error) { return h.ToJSON() }, true
	case jsonMarshaler:
		return func() (any, error) {
			b, err := h.MarshalJSON()
			if err != nil {
				return nil, err
			}
			return decodeJSON(b)
		}, true
	case encoding.TextMarshaler:
		return func() (any, error) {
			b, err := h.MarshalText()
			if err != nil {
				return nil, err
			}
			return string(b), nil
		}, true
	}
	return nil, false
}

// hookSet holds the values whose hook is currently running
type hookSet struct {
	mu    sync.Mutex
	hooks map[any]struct{}
}

var running = &hookSet{hooks: make(map[any]struct{})}

// start marks the hook of key as running. It returns false if it already is.
func (s *hookSet) start(key any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.hooks[key]; ok {
		return false
	}
	s.hooks[key] = struct{}{}
	return true
}

func (s *hookSet) done(key any) {
	s.mu.Lock()
	delete(s.hooks, key)
	s.mu.Unlock()
}

// hookKey returns what tells the hook-bearing value v apart from others
func hookKey(v any) (any, bool) {
	if id, ok := identify(v); ok {
		return id, true
	}

	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.Func && !rv.IsNil():
		return identity{typ: rv.Type(), ptr: rv.Pointer()}, true
	case rv.Kind() == reflect.Slice:
		// empty slices share no identity
		return nil, false
	}

	switch v.(type) {
	case Hook, Container:
		if rv.Comparable() {
			return v, true
		}
	}
	return nil, false
}

// decodeJSON decodes the output of a MarshalJSON method. Numbers become
// float64 like in JavaScript, except for integers a float64 cannot hold exactly.
func decodeJSON(b []byte) (any, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(b))

	v, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.ReadToken(); err != io.EOF {
		if err == nil {
			err = ErrTrailingData
		}
		return nil, err
	}
	return v, nil
}

func decodeJSONValue(dec *jsontext.Decoder) (any, error) {
	tok, err := dec.ReadToken()
	if err != nil {
		return nil, err
	}

	switch tok.Kind() {
	case 'n':
		return nil, nil
	case 't', 'f':
		return tok.Bool(), nil
	case '"':
		return tok.String(), nil
	case '0':
		return decodeJSONNumber(tok.String())
	case '[':
		arr := []any{}
		for dec.PeekKind() != ']' {
			v, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		return arr, nil
	case '{':
		obj := make(map[string]any)
		for dec.PeekKind() != '}' {
			tok, err := dec.ReadToken()
			if err != nil {
				return nil, err
			}
			key := tok.String()

			v, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			obj[key] = v
		}
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unexpected JSON token %v", tok.Kind())
}

// maxExactInt is the largest integer every smaller integer can be stored exactly as float64
const maxExactInt = 1 << 53

func decodeJSONNumber(text string) (any, error) {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		if -maxExactInt <= i && i <= maxExactInt {
			return float64(i), nil
		}
		return i, nil
	}
	if u, err := strconv.ParseUint(text, 10, 64); err == nil {
		return u, nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, err
	}
	return f, nil
}

// containerHook returns the hook stored in c, if it is callable
func containerHook(c Container) (Func, bool) {
	prop, ok := Peek(c, hookName)
	if !ok {
		return nil, false
	}
	fn, ok := prop.(Func)
	return fn, ok && fn != nil
}
