package safejson

import (
	"fmt"
	"runtime/debug"
)

// ErrorInfo is the normalized record of a failure that was caught while
// converting a value. It is attached to changes whose Reason.HasError is true.
type ErrorInfo struct {
	// Name is the dynamic Go type of the error, or "panic" for a panic whose
	// value was not an error
	Name    string `json:"name"`
	Message string `json:"message"`

	// Stack is only captured for panics
	Stack string `json:"stack,omitempty"`

	// Err is the original error, if there was one
	Err error `json:"-"`
}

// Error implements error
func (e *ErrorInfo) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

// Unwrap returns the original error
func (e *ErrorInfo) Unwrap() error {
	return e.Err
}

// normalizeException turns a returned error or a recovered panic value into an ErrorInfo.
// It must not fail itself, even if the error's Error method panics.
func normalizeException(x any, stack []byte) (info *ErrorInfo) {
	if e, ok := x.(*ErrorInfo); ok && e != nil {
		return e
	}

	info = &ErrorInfo{Name: "panic", Stack: string(stack)}
	defer func() {
		if recover() != nil {
			info.Message = "<error message unavailable>"
		}
	}()

	switch v := x.(type) {
	case error:
		info.Name = fmt.Sprintf("%T", v)
		info.Err = v
		info.Message = v.Error()
	case string:
		info.Message = v
	default:
		info.Message = fmt.Sprint(v)
	}
	return info
}

// guard calls fn inside a failure boundary. A returned error or a panic both
// produce Undefined and a non-nil failure.
func guard(fn func() (any, error)) (v any, failure *ErrorInfo) {
	defer func() {
		if r := recover(); r != nil {
			v, failure = Undefined, normalizeException(r, debug.Stack())
		}
	}()

	v, err := fn()
	if err != nil {
		return Undefined, normalizeException(err, nil)
	}
	return v, nil
}
