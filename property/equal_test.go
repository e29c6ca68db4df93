package property

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualReferences(t *testing.T) {
	assert.True(t, Equal(Wrap("X"), Wrap("X")))
	assert.True(t, Equal(Wrap("X"), map[string]any{"__uuid__": "X"}))
	assert.False(t, Equal(Wrap("X"), Wrap("Y")))
	assert.False(t, Equal(Wrap("X"), nil))

	// An unresolved expected reference never verifies.
	assert.False(t, Equal(Wrap(""), Wrap("")))
	assert.False(t, Equal(Wrap(""), nil))
	assert.False(t, Equal(map[string]any{"uuid": nil}, map[string]any{"uuid": nil}))
}

func TestEqualObjects(t *testing.T) {
	expected := map[string]any{"r": 255.0, "g": 0.0, "b": 0.0, "a": 255.0}
	assert.True(t, Equal(expected, map[string]any{"a": 255, "b": 0, "g": 0, "r": 255}))
	assert.False(t, Equal(expected, map[string]any{"r": 255.0, "g": 0.0, "b": 0.0}))
	assert.True(t, Equal([]any{1.0, "a"}, []any{1, "a"}))
	assert.False(t, Equal([]any{1.0}, []any{1.0, 2.0}))
	assert.False(t, Equal(expected, nil))
	assert.True(t, Equal(nil, nil))
}

func TestEqualPrimitives(t *testing.T) {
	assert.True(t, Equal("a", "a"))
	assert.False(t, Equal("a", "b"))
	assert.True(t, Equal(1.0, 1))
	assert.False(t, Equal(true, false))
}

func TestEqualLooseFallback(t *testing.T) {
	assert.True(t, Equal(5.0, "5"))
	assert.True(t, Equal("5.0", 5.0))
	assert.True(t, Equal(true, "true"))
	assert.True(t, Equal(1.0, true))
	assert.True(t, Equal(0.0, ""))
	assert.False(t, Equal("abc", 0.0))
	assert.False(t, Equal("abc", map[string]any{}))
}
