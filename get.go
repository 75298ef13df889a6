package safejson

// Peek returns c[key] without recording anything. It is meant for speculative
// reads, like looking for a toJSON hook.
//
// A virtualized container can fail on any read. Such a container cannot be
// detected until it fails, so there is nothing to record: a failed read just
// reports false.
func Peek(c Container, key string) (v any, ok bool) {
	v, failure := guard(func() (any, error) {
		return c.Get(key)
	})
	return v, failure == nil
}

// Read returns c[key] and records every way the property deviates from an
// ordinary stored value:
//
//   - a getter and/or setter: ReasonUnresolvedGetter, the getter is replaced by its current value
//   - a read-only property: ReasonDescriptorNotWritable
//   - a non-configurable property: ReasonDescriptorNotConfigurable
//
// These are recorded in that order and all of them may apply to the same property.
// If the descriptor or the value cannot be read, ReasonUnsafeGetter is recorded
// instead, Read returns Undefined and false, and the property must be omitted.
func Read(c Container, key string, log *Log, path Path) (any, bool) {
	var (
		desc  Descriptor
		found bool
	)
	// The descriptor is retrieved first in case a getter modifies it
	v, failure := guard(func() (any, error) {
		desc, found = c.Descriptor(key)
		return c.Get(key)
	})
	if failure != nil {
		log.Add(Change{
			Path:     path,
			OldValue: Undefined,
			NewValue: Undefined,
			Reason:   ReasonUnsafeGetter,
			Error:    failure,
		})
		return Undefined, false
	}

	if !found {
		return v, true
	}

	if desc.IsAccessor() {
		var getter any = Undefined
		if desc.Get != nil {
			getter = desc.Get
		}
		log.Add(Change{
			Path:     path,
			OldValue: getter,
			NewValue: v,
			Reason:   ReasonUnresolvedGetter,
		})
	}

	// The converted value only contains ordinary properties
	if desc.NotWritable {
		log.Add(Change{Path: path, OldValue: v, NewValue: v, Reason: ReasonDescriptorNotWritable})
	}
	if desc.NotConfigurable {
		log.Add(Change{Path: path, OldValue: v, NewValue: v, Reason: ReasonDescriptorNotConfigurable})
	}

	return v, true
}
