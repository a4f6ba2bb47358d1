// Package views defines the persisted state kinds behind the dashboard's
// filter bar and theme switch.
package views

import (
	"fmt"
	"slices"

	"github.com/pennywise-dev/pennywise/internal/model"
	"github.com/pennywise-dev/pennywise/internal/state"
	"github.com/pennywise-dev/pennywise/internal/value"
)

// DateRange bounds transactions by date, as "2006-01-02" strings. Empty
// means open-ended.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Filters is the transaction filter state.
type Filters struct {
	Query      string                  `json:"query"`
	Categories []string                `json:"categories"`
	Types      []model.TransactionType `json:"types"`
	Range      DateRange               `json:"range"`
}

// Theme modes.
const (
	ModeLight  = "light"
	ModeDark   = "dark"
	ModeSystem = "system"
)

// Theme is the display theme state.
type Theme struct {
	Mode   string `json:"mode"`
	Accent string `json:"accent"`
}

// States holds one State per kind. Build it once with NewStates and pass it
// to whatever needs it.
type States struct {
	Filters *state.State[Filters]
	Theme   *state.State[Theme]
}

// NewStates builds the state kinds.
func NewStates() (*States, error) {
	filters, err := state.New(Filters{Categories: []string{}, Types: []model.TransactionType{}}, state.Overrides[Filters]{
		Merge: mergeFilters,
	})
	if err != nil {
		return nil, fmt.Errorf("filters state: %w", err)
	}

	var theme *state.State[Theme]
	theme, err = state.New(Theme{Mode: ModeSystem, Accent: "teal"}, state.Overrides[Theme]{
		Normalize: func(partial value.Value) (Theme, error) {
			t, err := theme.NormalizeDefault(partial)
			if err != nil {
				return t, err
			}
			if !validMode(t.Mode) {
				t.Mode = theme.Empty().Mode
			}
			return t, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("theme state: %w", err)
	}

	return &States{Filters: filters, Theme: theme}, nil
}

// mergeFilters is the default merge followed by de-duplication, since array
// fields concatenate.
func mergeFilters(base Filters, partial value.Value) (Filters, error) {
	out, err := state.MergeDeep(base, partial, state.DefaultDepth)
	if err != nil {
		return out, err
	}
	out.Categories = dedupe(out.Categories)
	out.Types = dedupe(out.Types)
	return out, nil
}

func dedupe[T comparable](items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	return out
}

func validMode(mode string) bool {
	switch mode {
	case ModeLight, ModeDark, ModeSystem:
		return true
	}
	return false
}
