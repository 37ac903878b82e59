package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilderDefaults(t *testing.T) {
	err := New(NewStd("boom")).Build()

	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.False(t, err.Timestamp.IsZero())
	assert.Nil(t, err.GetContext())
}

func TestErrorBuilderFullChain(t *testing.T) {
	base := NewStd("row vanished")
	err := New(base).
		Component("persist").
		Category(CategoryNotFound).
		EntityContext("Exams", "get-by-id").
		Context("id", 42).
		Build()

	assert.Equal(t, "persist", err.Component)
	assert.Equal(t, string(CategoryNotFound), err.GetCategory())
	assert.Same(t, base, Unwrap(err))

	ctx := err.GetContext()
	assert.Equal(t, "Exams", ctx["entity"])
	assert.Equal(t, "get-by-id", ctx["operation"])
	assert.Equal(t, 42, ctx["id"])

	// The copy must not alias the internal map.
	ctx["entity"] = "mutated"
	assert.Equal(t, "Exams", err.GetContext()["entity"])
}

func TestCategoryPredicates(t *testing.T) {
	cases := []struct {
		category  ErrorCategory
		predicate func(error) bool
	}{
		{CategoryNotFound, IsNotFound},
		{CategoryConflict, IsConflict},
		{CategoryCoercion, IsCoercion},
		{CategoryConfiguration, IsConfiguration},
		{CategoryTransientStore, IsTransientStore},
	}
	for _, tc := range cases {
		err := Newf("failure").Category(tc.category).Build()
		assert.True(t, tc.predicate(err), "category %s", tc.category)
		assert.False(t, tc.predicate(Newf("other").Build()), "generic must not match %s", tc.category)
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	inner := Newf("missing").Category(CategoryNotFound).Build()
	wrapped := fmt.Errorf("loading exam: %w", inner)

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsNotFound(NewStd("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestEnhancedErrorIsMatchesByCategory(t *testing.T) {
	a := Newf("a").Category(CategoryConflict).Build()
	b := Newf("b").Category(CategoryConflict).Build()
	c := Newf("c").Category(CategoryCoercion).Build()

	assert.True(t, Is(a, b))
	assert.False(t, Is(a, c))
}

func TestValidationError(t *testing.T) {
	err := ValidationError("title must not be empty")
	require.NotNil(t, err)
	assert.True(t, IsCategory(err, CategoryValidation))
	assert.Equal(t, "title must not be empty", err.Error())
}
