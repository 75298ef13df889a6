// Package report turns the result of safejson.Convert into a document that can be written
// as JSON or CBOR.
package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/xarantolus/safejson"
)

// Format is an output encoding
type Format string

const (
	JSON Format = "json"
	CBOR Format = "cbor"
)

// ErrFormat is returned when encoding to an unknown Format
var ErrFormat = errors.New("unknown output format")

// Valid reports whether f is a known format
func (f Format) Valid() bool {
	return f == JSON || f == CBOR
}

// Report is the converted value together with the changes that were necessary
type Report struct {
	Value any `json:"value"`

	// Omitted is set if the root value itself could not be converted.
	// Value is null in that case.
	Omitted bool `json:"omitted,omitzero"`

	Changes []Entry `json:"changes"`
}

// Entry describes a single change
type Entry struct {
	Path     []any           `json:"path"`
	Pointer  string          `json:"pointer"`
	Reason   safejson.Reason `json:"reason"`
	OldValue any             `json:"oldValue"`
	NewValue any             `json:"newValue"`
	Error    *Error          `json:"error,omitempty"`
}

// Error is the encodable form of safejson.ErrorInfo
type Error struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Build creates a report from res. Stack traces of caught panics are only
// included if stacks is set.
func Build(res safejson.Result, stacks bool) Report {
	r := Report{
		Value:   res.Value,
		Changes: make([]Entry, 0, len(res.Changes)),
	}
	if res.Value == safejson.Undefined {
		r.Value, r.Omitted = nil, true
	}

	for _, c := range res.Changes {
		e := Entry{
			Path:     append([]any{}, c.Path...),
			Pointer:  c.Path.String(),
			Reason:   c.Reason,
			OldValue: describe(c.OldValue),
			NewValue: describe(c.NewValue),
		}
		if c.Error != nil {
			e.Error = &Error{Name: c.Error.Name, Message: c.Error.Message}
			if stacks {
				e.Error.Stack = c.Error.Stack
			}
		}
		r.Changes = append(r.Changes, e)
	}

	return r
}

// describe makes a value from a change encodable. Values JSON has no notation
// for are shown as they would be written in JavaScript.
//
// Hooks and getters already ran while converting, so they are not called
// again: containers are shown with their stored properties and accessors
// appear as functions.
func describe(v any) any {
	d := &describer{ancestors: make(map[reference]struct{})}
	return d.value(v)
}

// reference tells containers apart, so cycles can be shown
type reference struct {
	typ reflect.Type
	ptr uintptr
}

type describer struct {
	ancestors map[reference]struct{}
}

func (d *describer) value(v any) any {
	if v == safejson.Undefined {
		return nil
	}

	switch t := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return t
	case float64:
		return describeFloat(t)
	case float32:
		return describeFloat(float64(t))
	case safejson.Func:
		return "[function]"
	case *big.Int:
		if t != nil {
			return t.String() + "n"
		}
	case safejson.Container:
		return d.nested(v, func() any { return d.container(t) })
	}

	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array:
		return d.nested(v, func() any {
			arr := make([]any, rv.Len())
			for i := range arr {
				arr[i] = d.value(rv.Index(i).Interface())
			}
			return arr
		})
	case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
		return d.nested(v, func() any {
			obj := make(map[string]any, rv.Len())
			for iter := rv.MapRange(); iter.Next(); {
				obj[iter.Key().String()] = d.value(iter.Value().Interface())
			}
			return obj
		})
	}

	return fmt.Sprintf("[%T]", v)
}

// nested describes a container with fn, unless it is one of its own ancestors
func (d *describer) nested(v any, fn func() any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return fn()
		}
		ref := reference{typ: rv.Type(), ptr: rv.Pointer()}
		if _, ok := d.ancestors[ref]; ok {
			return "[circular]"
		}
		d.ancestors[ref] = struct{}{}
		defer delete(d.ancestors, ref)
	}
	return fn()
}

// container shows the stored properties of c. Containers may fail anywhere,
// those are only shown by type.
func (d *describer) container(c safejson.Container) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("[%T]", c)
		}
	}()

	obj := make(map[string]any)
	for _, key := range c.Keys() {
		desc, ok := c.Descriptor(key)
		switch {
		case !ok:
			continue
		case desc.IsAccessor():
			obj[key] = "[function]"
		default:
			obj[key] = d.value(desc.Value)
		}
	}
	return obj
}

func describeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}

// encMode writes CBOR with Core Deterministic Encoding, so the same report
// always has the same bytes
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("report: CBOR encoder initialization failed: " + err.Error())
	}
}

// Encode writes v to w. JSON output is terminated by a newline and indented
// with indent if it is not empty; map keys are always sorted.
func Encode(w io.Writer, v any, format Format, indent string) error {
	switch format {
	case JSON:
		opts := []json.Options{
			json.Deterministic(true),
			// Strings from template literals are taken as they are
			jsontext.AllowInvalidUTF8(true),
		}
		if indent != "" {
			opts = append(opts, jsontext.WithIndent(indent))
		}

		if err := json.MarshalWrite(w, v, opts...); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		_, err := io.WriteString(w, "\n")
		return err
	case CBOR:
		b, err := encMode.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding CBOR: %w", err)
		}
		_, err = w.Write(b)
		return err
	}

	return fmt.Errorf("%w %q", ErrFormat, format)
}
