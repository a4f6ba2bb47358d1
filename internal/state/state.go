// Package state describes a kind of state: its empty value and the functions
// that combine partial or full updates with a base value.
package state

import (
	"fmt"

	"github.com/pennywise-dev/pennywise/internal/merge"
	"github.com/pennywise-dev/pennywise/internal/value"
)

// DefaultDepth is the depth limit used by the default merge and normalize:
// top-level fields merge, and objects one level down merge their fields.
const DefaultDepth = 1

// MergeFunc applies a partial update to base.
type MergeFunc[S any] func(base S, partial value.Value) (S, error)

// NormalizeFunc coerces a loosely shaped value into a fully populated S.
type NormalizeFunc[S any] func(partial value.Value) (S, error)

// UpdateFunc derives the next value from the current one.
type UpdateFunc[S any] func(current S) (S, error)

// Overrides replaces any of the default functions. Nil fields keep the
// default.
type Overrides[S any] struct {
	Merge     MergeFunc[S]
	Normalize NormalizeFunc[S]
	Update    UpdateFunc[S]
}

// State bundles the empty value of S with its merge, normalize and update
// functions. It holds no mutable state and is safe for concurrent use.
type State[S any] struct {
	empty      S
	emptyValue value.Value
	merge      MergeFunc[S]
	normalize  NormalizeFunc[S]
	update     UpdateFunc[S]
}

// New builds a State for S. It fails when empty cannot be encoded as a
// Value, which means S is not a plain data type.
func New[S any](empty S, o Overrides[S]) (*State[S], error) {
	ev, err := value.From(empty)
	if err != nil {
		return nil, fmt.Errorf("encoding empty state: %w", err)
	}
	s := &State[S]{
		empty:      empty,
		emptyValue: ev,
		merge:      o.Merge,
		normalize:  o.Normalize,
		update:     o.Update,
	}
	if s.merge == nil {
		s.merge = func(base S, partial value.Value) (S, error) {
			return MergeDeep(base, partial, DefaultDepth)
		}
	}
	if s.normalize == nil {
		s.normalize = s.NormalizeDefault
	}
	if s.update == nil {
		s.update = s.updateDefault
	}
	return s, nil
}

// Empty returns the canonical default value. Callers must not mutate slices
// or maps reachable from it.
func (s *State[S]) Empty() S { return s.empty }

// Merge applies partial to base. base is not mutated.
func (s *State[S]) Merge(base S, partial value.Value) (S, error) {
	return s.merge(base, partial)
}

// MergeValue is Merge with a typed partial, encoded first.
func (s *State[S]) MergeValue(base, partial S) (S, error) {
	pv, err := value.From(partial)
	if err != nil {
		var zero S
		return zero, fmt.Errorf("encoding partial: %w", err)
	}
	return s.merge(base, pv)
}

// Normalize coerces partial into a fully populated S.
func (s *State[S]) Normalize(partial value.Value) (S, error) {
	return s.normalize(partial)
}

// Update derives the next value from current.
func (s *State[S]) Update(current S) (S, error) {
	return s.update(current)
}

// NormalizeDefault is the default normalize: partial is merged into an empty
// object and the result decoded over a copy of the empty value, so absent
// fields are backfilled from it. Overrides call it to build on the default.
func (s *State[S]) NormalizeDefault(partial value.Value) (S, error) {
	merged := merge.Deep(value.NewObject(), partial, merge.WithDepthLimit(DefaultDepth))

	var out S
	if err := value.Decode(s.emptyValue, &out); err != nil {
		return out, fmt.Errorf("copying empty state: %w", err)
	}
	if !merged.IsObject() {
		return out, nil
	}
	if err := value.Decode(merged, &out); err != nil {
		var zero S
		return zero, fmt.Errorf("normalizing state: %w", err)
	}
	return out, nil
}

func (s *State[S]) updateDefault(current S) (S, error) {
	cv, err := value.From(current)
	if err != nil {
		var zero S
		return zero, fmt.Errorf("encoding state: %w", err)
	}
	return s.normalize(cv)
}

// MergeDeep encodes base, merges partial into it with the given depth limit
// and decodes the result into a fresh S.
func MergeDeep[S any](base S, partial value.Value, depth int) (S, error) {
	var out S
	bv, err := value.From(base)
	if err != nil {
		return out, fmt.Errorf("encoding base: %w", err)
	}
	merged := merge.Deep(bv, partial, merge.WithDepthLimit(depth))
	if err := value.Decode(merged, &out); err != nil {
		return out, fmt.Errorf("decoding merged state: %w", err)
	}
	return out, nil
}
