package report

import (
	"bytes"
	"errors"
	"math"
	"math/big"
	"reflect"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/xarantolus/safejson"
)

func TestBuild(t *testing.T) {
	fn := safejson.Func(func(this any) (any, error) { return nil, errors.New("broken") })
	input := safejson.NewObject().
		Set("a", math.NaN()).
		Define("b", safejson.Descriptor{Get: fn}).
		Set("c", []any{1.0})

	r := Build(safejson.Convert(input), false)

	if !reflect.DeepEqual(r.Value, map[string]any{"c": []any{1.0}}) {
		t.Errorf("Build() value = %#v", r.Value)
	}
	if r.Omitted {
		t.Error("Build() marked the root as omitted")
	}

	want := []Entry{
		{Path: []any{"a"}, Pointer: "/a", Reason: safejson.ReasonInvalidType, OldValue: "NaN", NewValue: nil},
		{Path: []any{"b"}, Pointer: "/b", Reason: safejson.ReasonUnsafeGetter, OldValue: nil, NewValue: nil,
			Error: &Error{Name: "*errors.errorString", Message: "broken"}},
	}
	if !reflect.DeepEqual(r.Changes, want) {
		t.Errorf("Build() changes = %#v, want %#v", r.Changes, want)
	}
}

func TestBuildOmittedRoot(t *testing.T) {
	r := Build(safejson.Convert(safejson.Undefined), false)
	if r.Value != nil || !r.Omitted {
		t.Errorf("Build() = %#v, want omitted null root", r)
	}
	if len(r.Changes) != 1 || r.Changes[0].Pointer != "" || len(r.Changes[0].Path) != 0 {
		t.Errorf("Build() changes = %#v, want one change at the root", r.Changes)
	}
}

func TestBuildStacks(t *testing.T) {
	input := safejson.NewObject().Define("p", safejson.Descriptor{
		Get: func(this any) (any, error) { panic("boom") },
	})
	res := safejson.Convert(input)

	if e := Build(res, false).Changes[0].Error; e.Stack != "" {
		t.Errorf("stack was included without asking for it")
	}
	if e := Build(res, true).Changes[0].Error; e.Name != "panic" || e.Message != "boom" || e.Stack == "" {
		t.Errorf("Build() error = %#v, want panic with stack", e)
	}
}

func TestDescribe(t *testing.T) {
	obj := safejson.NewObject().Set("x", 1.0)

	getterCalled := false
	withGetter := safejson.NewObject().
		Set("x", math.NaN()).
		Define("y", safejson.Descriptor{Get: func(this any) (any, error) {
			getterCalled = true
			return 1.0, nil
		}})

	cycle := safejson.NewObject()
	cycle.Set("self", cycle)

	tests := []struct {
		name string
		arg  any
		want any
	}{
		{"undefined", safejson.Undefined, nil},
		{"function", safejson.Func(func(this any) (any, error) { return nil, nil }), "[function]"},
		{"NaN", math.NaN(), "NaN"},
		{"Infinity", math.Inf(1), "Infinity"},
		{"-Infinity", float32(math.Inf(-1)), "-Infinity"},
		{"float", 1.5, 1.5},
		{"bigint", big.NewInt(21), "21n"},
		{"object", obj, map[string]any{"x": 1.0}},
		{"channel", make(chan int), "[chan int]"},
		{"getter", withGetter, map[string]any{"x": "NaN", "y": "[function]"}},
		{"cycle", cycle, map[string]any{"self": "[circular]"}},
		{"nested", []any{safejson.Undefined, map[string]any{"a": []string{"b"}}}, []any{nil, map[string]any{"a": []any{"b"}}}},
		{"struct", struct{}{}, "[struct {}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describe(tt.arg); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("describe() = %#v, want %#v", got, tt.want)
			}
		})
	}

	if getterCalled {
		t.Error("describe() called a getter")
	}
}

func TestBuildCallsNoHooks(t *testing.T) {
	var calls int
	input := safejson.NewObject().Set("a", 1.0)
	input.Set("toJSON", safejson.Func(func(this any) (any, error) {
		calls++
		return map[string]any{"b": 2.0}, nil
	}))

	r := Build(safejson.Convert(input), false)
	if calls != 1 {
		t.Errorf("toJSON was called %d times, want once", calls)
	}

	want := []Entry{{
		Path:     []any{},
		Pointer:  "",
		Reason:   safejson.ReasonToJSON,
		OldValue: map[string]any{"a": 1.0, "toJSON": "[function]"},
		NewValue: map[string]any{"b": 2.0},
	}}
	if !reflect.DeepEqual(r.Changes, want) {
		t.Errorf("Build() changes = %#v, want %#v", r.Changes, want)
	}
}

func TestEncodeJSON(t *testing.T) {
	input := map[string]any{"b": []any{1.0, "x"}, "a": nil}
	r := Build(safejson.Convert(input), false)

	tests := []struct {
		indent string
		want   string
	}{
		{"", `{"value":{"a":null,"b":[1,"x"]},"changes":[]}` + "\n"},
		{"  ", "{\n  \"value\": {\n    \"a\": null,\n    \"b\": [\n      1,\n      \"x\"\n    ]\n  },\n  \"changes\": []\n}\n"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		if err := Encode(&buf, r, JSON, tt.indent); err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if buf.String() != tt.want {
			t.Errorf("Encode() = %q, want %q", buf.String(), tt.want)
		}
	}
}

func TestEncodeJSONChange(t *testing.T) {
	r := Build(safejson.Convert([]any{1.0, safejson.Undefined}), false)

	var buf bytes.Buffer
	if err := Encode(&buf, r, JSON, ""); err != nil {
		t.Fatal(err)
	}

	want := `{"value":[1],"changes":[{"path":[1],"pointer":"/1","reason":"invalidType","oldValue":null,"newValue":null}]}` + "\n"
	if buf.String() != want {
		t.Errorf("Encode() = %s, want %s", buf.String(), want)
	}
}

func TestEncodeCBOR(t *testing.T) {
	input := safejson.NewObject().Set("z", 1.0).Set("a", "b").Set("bad", safejson.Undefined)
	r := Build(safejson.Convert(input), false)

	var first, second bytes.Buffer
	if err := Encode(&first, r, CBOR, ""); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := Encode(&second, r, CBOR, ""); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("CBOR encoding is not deterministic")
	}

	dec, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := dec.Unmarshal(first.Bytes(), &got); err != nil {
		t.Fatalf("decoding CBOR: %v", err)
	}
	if !reflect.DeepEqual(got["value"], map[string]any{"z": 1.0, "a": "b"}) {
		t.Errorf("decoded value = %#v", got["value"])
	}
	changes, _ := got["changes"].([]any)
	if len(changes) != 1 {
		t.Fatalf("decoded changes = %#v, want one", got["changes"])
	}
	if reason := changes[0].(map[string]any)["reason"]; reason != "invalidType" {
		t.Errorf("decoded reason = %v", reason)
	}
}

func TestEncodeUnknownFormat(t *testing.T) {
	err := Encode(&bytes.Buffer{}, nil, Format("xml"), "")
	if !errors.Is(err, ErrFormat) || !strings.Contains(err.Error(), "xml") {
		t.Errorf("Encode() error = %v, want ErrFormat", err)
	}
}

func TestFormatValid(t *testing.T) {
	for f, want := range map[Format]bool{JSON: true, CBOR: true, "yaml": false, "": false} {
		if got := f.Valid(); got != want {
			t.Errorf("%q.Valid() = %v, want %v", f, got, want)
		}
	}
}
