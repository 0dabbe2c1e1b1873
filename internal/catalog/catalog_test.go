package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinCatalogIsValid(t *testing.T) {
	assert.NoError(t, ValidateBuiltin())
}

func TestActionByID(t *testing.T) {
	a, ok := ActionByID("meal")
	require.True(t, ok)
	assert.Equal(t, "Meal", a.Label)

	again, _ := ActionByID("meal")
	assert.Same(t, a, again, "expected lookups to share the catalog entry")

	_, ok = ActionByID("juggling")
	assert.False(t, ok)
}

func TestActionsByCategory(t *testing.T) {
	health := ActionsByCategory(CategoryHealth)
	ids := make([]string, 0, len(health))
	for _, a := range health {
		ids = append(ids, a.Id)
	}
	assert.Equal(t, []string{"meds", "vitals"}, ids)
	assert.Empty(t, ActionsByCategory(Category("none")))
	assert.Contains(t, Categories(), CategoryMedia)
}

func TestDefaultVariant(t *testing.T) {
	meal, _ := ActionByID("meal")
	v, ok := DefaultVariant(meal)
	assert.True(t, ok)
	assert.Equal(t, "all", v.Id)

	hygiene, _ := ActionByID("hygiene")
	_, ok = DefaultVariant(hygiene)
	assert.False(t, ok)
}

func TestNextCycleVariant(t *testing.T) {
	a := &QuickAction{
		Id:       "x",
		Variants: []Variant{{Id: "a"}, {Id: "b"}, {Id: "c"}},
		Cycle:    []string{"a", "b", "c"},
	}

	tcases := []struct {
		name    string
		current string
		next    string
	}{
		{name: "first to second", current: "a", next: "b"},
		{name: "second to third", current: "b", next: "c"},
		{name: "wraps", current: "c", next: "a"},
		{name: "unknown yields first", current: "zzz", next: "a"},
		{name: "empty yields first", current: "", next: "a"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			next, ok := NextCycleVariant(a, tc.current)
			assert.True(t, ok)
			assert.Equal(t, tc.next, next)
		})
	}

	t.Run("no cycle", func(t *testing.T) {
		drink, _ := ActionByID("drink")
		_, ok := NextCycleVariant(drink, "water")
		assert.False(t, ok)
	})
}

func TestValidate(t *testing.T) {
	err := Validate([]QuickAction{
		{Id: "a", Variants: []Variant{{Id: "x", Default: true}, {Id: "y", Default: true}}},
		{Id: "a"},
		{Id: "b", Variants: []Variant{{Id: "x"}}, Cycle: []string{"x", "missing"}},
		{Id: "c", ConsentGate: "video"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 default variants")
	assert.Contains(t, err.Error(), "duplicate id")
	assert.Contains(t, err.Error(), `cycle member "missing"`)
	assert.Contains(t, err.Error(), "unknown consent gate")
}
