package safejson

// undefined is the type of Undefined
type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined marks a value that is absent, like JavaScript's undefined.
// It is never valid JSON: object properties and array items that resolve to
// Undefined are omitted from the converted value.
var Undefined any = undefined{}

// Func is a callable value, bound to this when it is called.
// It is used for property getters and for toJSON hooks stored on a Container.
// A Func may fail by returning an error or by panicking.
type Func func(this any) (any, error)

// Setter is the write half of an accessor property.
type Setter func(this any, v any) error

// Descriptor holds the attributes of a single property.
//
// A property is an accessor property if Get or Set is non-nil, otherwise it is a
// data property holding Value. The flags are inverted compared to JavaScript so
// that the zero value describes an ordinary writable, configurable and
// enumerable property.
type Descriptor struct {
	Value any
	Get   Func
	Set   Setter

	NotWritable     bool
	NotConfigurable bool
	NotEnumerable   bool
}

// IsAccessor reports whether the descriptor describes a getter and/or setter
func (d Descriptor) IsAccessor() bool {
	return d.Get != nil || d.Set != nil
}

// Container is an object-like value whose properties are looked up by key.
//
// Implementations may be hostile: any method may panic, and Get may fail.
// Callers that must not fail should go through Peek and Read.
type Container interface {
	// Keys returns the own enumerable keys in iteration order
	Keys() []string

	// Descriptor returns the own property descriptor of key
	Descriptor(key string) (Descriptor, bool)

	// Get returns the value of key, calling its getter if there is one.
	// Missing keys resolve to Undefined.
	Get(key string) (any, error)
}

// Object is an ordered Container with full property descriptors.
// It is the value model produced by ParseLiteral and is what callers use to
// build JavaScript-like values with getters, hooks and frozen properties.
//
// An Object must not be mutated concurrently.
type Object struct {
	keys  []string
	props map[string]Descriptor
}

var _ Container = (*Object)(nil)

// NewObject returns an empty object
func NewObject() *Object {
	return &Object{props: make(map[string]Descriptor)}
}

// Set stores v as an ordinary data property. Existing keys keep their position.
func (o *Object) Set(key string, v any) *Object {
	return o.Define(key, Descriptor{Value: v})
}

// Define stores a property with the given descriptor. Existing keys keep their position.
func (o *Object) Define(key string, d Descriptor) *Object {
	if o.props == nil {
		o.props = make(map[string]Descriptor)
	}
	if _, ok := o.props[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = d
	return o
}

// Len returns the number of own properties, enumerable or not
func (o *Object) Len() int {
	return len(o.keys)
}

// Keys returns the own enumerable keys in insertion order
func (o *Object) Keys() []string {
	keys := make([]string, 0, len(o.keys))
	for _, k := range o.keys {
		if !o.props[k].NotEnumerable {
			keys = append(keys, k)
		}
	}
	return keys
}

// Descriptor returns the descriptor of an own property
func (o *Object) Descriptor(key string) (Descriptor, bool) {
	d, ok := o.props[key]
	return d, ok
}

// Get returns the value of key. Getters are called with the object as this,
// properties with only a setter resolve to Undefined.
func (o *Object) Get(key string) (any, error) {
	d, ok := o.props[key]
	if !ok {
		return Undefined, nil
	}
	if d.Get != nil {
		return d.Get(o)
	}
	if d.Set != nil {
		return Undefined, nil
	}
	return d.Value, nil
}
