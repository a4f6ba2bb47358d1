package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennywise-dev/pennywise/internal/model"
	"github.com/pennywise-dev/pennywise/internal/value"
)

func parse(t *testing.T, doc string) value.Value {
	t.Helper()
	v, err := value.Parse([]byte(doc))
	require.NoError(t, err)
	return v
}

func TestFiltersMergeDeduplicates(t *testing.T) {
	states, err := NewStates()
	require.NoError(t, err)

	base := Filters{Categories: []string{"Groceries"}, Types: []model.TransactionType{model.TypeExpense}}
	got, err := states.Filters.Merge(base, parse(t, `{"categories":["Rent","Groceries"],"types":["expense","income"]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Groceries", "Rent"}, got.Categories)
	assert.Equal(t, []model.TransactionType{model.TypeExpense, model.TypeIncome}, got.Types)
}

func TestFiltersMergeRange(t *testing.T) {
	states, err := NewStates()
	require.NoError(t, err)

	base := states.Filters.Empty()
	base.Range.From = "2025-01-01"
	got, err := states.Filters.Merge(base, parse(t, `{"range":{"to":"2025-03-31"},"query":"coffee"}`))
	require.NoError(t, err)

	assert.Equal(t, DateRange{From: "2025-01-01", To: "2025-03-31"}, got.Range)
	assert.Equal(t, "coffee", got.Query)
}

func TestFiltersMergeFromNilSlices(t *testing.T) {
	states, err := NewStates()
	require.NoError(t, err)

	got, err := states.Filters.Merge(Filters{}, parse(t, `{"categories":["Rent"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Rent"}, got.Categories)
}

func TestThemeNormalizeFallsBackOnUnknownMode(t *testing.T) {
	states, err := NewStates()
	require.NoError(t, err)

	got, err := states.Theme.Normalize(parse(t, `{"mode":"sepia","accent":"red"}`))
	require.NoError(t, err)
	assert.Equal(t, Theme{Mode: ModeSystem, Accent: "red"}, got)

	got, err = states.Theme.Normalize(parse(t, `{"mode":"dark"}`))
	require.NoError(t, err)
	assert.Equal(t, Theme{Mode: ModeDark, Accent: "teal"}, got)
}

func TestThemeUpdateUsesNormalizeOverride(t *testing.T) {
	states, err := NewStates()
	require.NoError(t, err)

	got, err := states.Theme.Update(Theme{Mode: "neon", Accent: "blue"})
	require.NoError(t, err)
	assert.Equal(t, Theme{Mode: ModeSystem, Accent: "blue"}, got)
}

func TestEmptyStatesAreNormalized(t *testing.T) {
	states, err := NewStates()
	require.NoError(t, err)

	ev, err := value.From(states.Filters.Empty())
	require.NoError(t, err)
	f, err := states.Filters.Normalize(ev)
	require.NoError(t, err)
	assert.Equal(t, states.Filters.Empty(), f)

	tv, err := value.From(states.Theme.Empty())
	require.NoError(t, err)
	th, err := states.Theme.Normalize(tv)
	require.NoError(t, err)
	assert.Equal(t, states.Theme.Empty(), th)
}
