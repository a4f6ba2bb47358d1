// Package merge combines a base value with a partial update.
//
// The rules, applied per key of the partial:
//   - undefined and null values are skipped and never overwrite the base
//   - when both sides are arrays the incoming items are appended; an empty
//     incoming array changes nothing
//   - when both sides are objects the merge recurses, subject to the depth
//     limit
//   - anything else replaces the base value at that key, and only when it
//     differs
//
// A base that is not an object or array has nothing to merge into, so the
// partial is returned as-is.
package merge

import "github.com/pennywise-dev/pennywise/internal/value"

type options struct {
	limit    int
	bounded  bool
	copyBase bool
}

// Option configures Deep.
type Option func(*options)

// WithDepthLimit bounds how many nested object levels below the root may be
// merged into. A nested object reached after the limit is spent keeps its
// base content untouched; the partial is not applied there. A limit of 0
// returns base unchanged.
func WithDepthLimit(n int) Option {
	return func(o *options) {
		o.limit = n
		o.bounded = true
	}
}

// WithCopyBase makes Deep work on a deep copy, leaving base untouched.
// Without it base may be mutated in place.
func WithCopyBase() Option {
	return func(o *options) { o.copyBase = true }
}

// Deep merges partial into base and returns the result. It never fails.
func Deep(base, partial value.Value, opts ...Option) value.Value {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.bounded && o.limit <= 0 {
		if o.copyBase {
			return base.Clone()
		}
		return base
	}
	return deep(base, partial, o.limit, o.bounded, o.copyBase)
}

func deep(base, partial value.Value, depth int, bounded, copyBase bool) value.Value {
	switch base.Kind() {
	case value.Object:
	case value.Array:
		return concatRoot(base, partial, copyBase)
	default:
		return partial
	}
	if bounded && depth < 0 {
		return base
	}

	result := base
	if copyBase {
		result = base.Clone()
	}
	if !partial.IsObject() {
		return result
	}

	for _, key := range partial.Keys() {
		incoming, _ := partial.Get(key)
		if incoming.IsNullish() {
			continue
		}
		existing, found := result.Get(key)

		switch {
		case existing.IsArray() && incoming.IsArray():
			if incoming.Len() == 0 {
				continue
			}
			result.Set(key, value.Concat(existing, incoming.Clone()))
		case existing.IsObject() && incoming.IsObject():
			result.Set(key, deep(existing, incoming, depth-1, bounded, false))
		default:
			// Shape mismatches fall through to replacement: last write wins.
			if !found || !value.Equal(existing, incoming) {
				result.Set(key, incoming.Clone())
			}
		}
	}
	return result
}

func concatRoot(base, partial value.Value, copyBase bool) value.Value {
	if copyBase {
		base = base.Clone()
	}
	if !partial.IsArray() || partial.Len() == 0 {
		return base
	}
	return value.Concat(base, partial.Clone())
}
