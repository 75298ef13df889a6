package safejson

import (
	"fmt"
	"strconv"
	"strings"
)

// Reason tags why a Change was recorded. Downstream tooling may match on it,
// so the values are stable.
type Reason string

const (
	// ReasonUnresolvedGetter: the property was a getter and/or setter.
	// OldValue is the getter, NewValue the value it returned.
	ReasonUnresolvedGetter Reason = "unresolvedGetter"
	// ReasonDescriptorNotWritable: the property was read-only. OldValue and NewValue are the value.
	ReasonDescriptorNotWritable Reason = "descriptorNotWritable"
	// ReasonDescriptorNotConfigurable: the property was non-configurable. OldValue and NewValue are the value.
	ReasonDescriptorNotConfigurable Reason = "descriptorNotConfigurable"
	// ReasonUnsafeGetter: reading the property failed, it is omitted
	ReasonUnsafeGetter Reason = "unsafeGetter"
	// ReasonToJSON: a toJSON hook replaced the value
	ReasonToJSON Reason = "toJSON"
	// ReasonUnsafeToJSON: a toJSON hook failed, the value is omitted
	ReasonUnsafeToJSON Reason = "unsafeToJSON"
	// ReasonInvalidType: the value cannot be represented in JSON, it is omitted
	ReasonInvalidType Reason = "invalidType"
	// ReasonUnsafeCycle: the value contains itself, the inner occurrence is omitted
	ReasonUnsafeCycle Reason = "unsafeCycle"
	// ReasonUnsafeException: listing the keys of a container failed
	ReasonUnsafeException Reason = "unsafeException"
)

// HasError reports whether changes with this reason carry an Error
func (r Reason) HasError() bool {
	switch r {
	case ReasonUnsafeGetter, ReasonUnsafeToJSON, ReasonUnsafeException:
		return true
	}
	return false
}

// Change records one place where the converted value deviates from the input.
// Changes are never modified after they are added to a Log.
type Change struct {
	Path     Path
	OldValue any
	NewValue any
	Reason   Reason

	// Error is only set when the change was caused by a failure
	Error *ErrorInfo
}

// Path locates a value from the root. Elements are string keys and int indices,
// an empty path is the root itself.
type Path []any

// Append returns a new path with elem added. p itself is never modified,
// so paths already stored in a Change stay valid.
func (p Path) Append(elem any) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, elem)
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// String renders the path as a JSON Pointer (RFC 6901), e.g. "/prop/0".
// The root is the empty string.
func (p Path) String() string {
	var b strings.Builder
	for _, elem := range p {
		b.WriteByte('/')
		switch e := elem.(type) {
		case string:
			b.WriteString(pointerEscaper.Replace(e))
		case int:
			b.WriteString(strconv.Itoa(e))
		default:
			b.WriteString(pointerEscaper.Replace(fmt.Sprint(e)))
		}
	}
	return b.String()
}

// Log is the ordered, append-only list of changes of one conversion.
// It is shared by reference between every step of that conversion.
type Log struct {
	changes []Change
}

// Add appends c
func (l *Log) Add(c Change) {
	l.changes = append(l.changes, c)
}

// Len returns the number of recorded changes
func (l *Log) Len() int {
	return len(l.changes)
}

// Changes returns the recorded changes in the order they were added.
// The returned slice is a copy.
func (l *Log) Changes() []Change {
	if len(l.changes) == 0 {
		return []Change{}
	}
	out := make([]Change, len(l.changes))
	copy(out, l.changes)
	return out
}
