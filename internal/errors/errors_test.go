package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Defaults(t *testing.T) {
	ee := Newf("boom").Build()
	require.NotNil(t, ee)
	assert.Equal(t, ComponentUnknown, ee.Component)
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.Equal(t, "boom", ee.Error())
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilder_CategoryAndContext(t *testing.T) {
	ee := Newf("cutoff %g Hz above Nyquist", 60.0).
		Component("preprocess").
		Category(CategoryConfiguration).
		FilterContext("bandpass", 0.1, 60.0, 4).
		Build()

	assert.Equal(t, "preprocess", ee.Component)
	assert.Equal(t, CategoryConfiguration, ee.Category)

	ctx := ee.GetContext()
	assert.Equal(t, "bandpass", ctx["filter_type"])
	assert.Equal(t, 60.0, ctx["high_cutoff_hz"])
	assert.Equal(t, 4, ctx["filter_order"])
}

func TestBuilder_ContextIsCopied(t *testing.T) {
	ee := Newf("x").Context("k", "v").Build()
	ctx := ee.GetContext()
	ctx["k"] = "mutated"
	assert.Equal(t, "v", ee.GetContext()["k"])
}

func TestCategoryPredicates(t *testing.T) {
	tests := []struct {
		name     string
		category ErrorCategory
		check    func(error) bool
	}{
		{"data integrity", CategoryDataIntegrity, IsDataIntegrity},
		{"configuration", CategoryConfiguration, IsConfiguration},
		{"numerical", CategoryNumerical, IsNumerical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Newf("failure").Category(tt.category).Build()
			assert.True(t, tt.check(err))

			// wrapped errors must still report their category
			wrapped := fmt.Errorf("outer: %w", err)
			assert.True(t, tt.check(wrapped))

			other := Newf("other").Category(CategoryDatabase).Build()
			assert.False(t, tt.check(other))
		})
	}
}

func TestIs_MatchesByCategory(t *testing.T) {
	a := Newf("a").Category(CategoryNumerical).Build()
	b := Newf("b").Category(CategoryNumerical).Build()
	assert.True(t, Is(a, b))

	c := Newf("c").Category(CategoryDatabase).Build()
	assert.False(t, Is(a, c))
}

func TestPriority_InvalidFallsBack(t *testing.T) {
	ee := Newf("x").Priority("urgent-ish").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)

	ee = Newf("x").Priority(PriorityCritical).Build()
	assert.Equal(t, PriorityCritical, ee.Priority)
}
