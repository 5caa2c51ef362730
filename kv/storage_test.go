package kv

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	getHeaders := func() *Storage {
		return New().
			Add("Foo", "bar").
			Add("Hello", "World").
			Add("Lorem", "ipsum").
			Add("hello", "Pavlo")
	}

	t.Run("add keeps duplicates in order", func(t *testing.T) {
		kv := getHeaders()
		require.Equal(t, 4, kv.Len())
		require.Equal(t, []string{"World", "Pavlo"}, slices.Collect(kv.Values("HELLO")))
		require.Equal(t, "World", kv.Value("hello"))
	})

	t.Run("set overwrites and dedupes", func(t *testing.T) {
		kv := getHeaders().Set("HELLO", "there")
		want := []Pair{
			{"Foo", "bar"},
			{"Hello", "there"},
			{"Lorem", "ipsum"},
		}

		require.Equal(t, want, kv.Expose())
	})

	t.Run("set appends absent key", func(t *testing.T) {
		kv := getHeaders().Set("Date", "today")
		require.Equal(t, 5, kv.Len())
		require.Equal(t, Pair{"Date", "today"}, kv.Expose()[4])
	})

	t.Run("delete", func(t *testing.T) {
		kv := getHeaders().Delete("HELLO")
		want := []Pair{
			{"Foo", "bar"},
			{"Lorem", "ipsum"},
		}

		require.Equal(t, want, kv.Expose())
		require.False(t, kv.Has("hello"))
	})

	t.Run("value or", func(t *testing.T) {
		kv := getHeaders()
		require.Equal(t, "default", kv.ValueOr("missing", "default"))
		require.Equal(t, "bar", kv.ValueOr("foo", "default"))
	})

	t.Run("keys", func(t *testing.T) {
		require.Equal(t, []string{"Foo", "Hello", "Lorem"}, getHeaders().Keys())
	})

	t.Run("iter stops early", func(t *testing.T) {
		var keys []string
		for key := range getHeaders().Iter() {
			keys = append(keys, key)
			if len(keys) == 2 {
				break
			}
		}

		require.Equal(t, []string{"Foo", "Hello"}, keys)
	})

	t.Run("clone is detached", func(t *testing.T) {
		original := getHeaders()
		copied := original.Clone()
		copied.Set("Foo", "baz")
		require.Equal(t, "bar", original.Value("Foo"))
		require.Equal(t, "baz", copied.Value("Foo"))
	})

	t.Run("clear", func(t *testing.T) {
		kv := getHeaders().Clear()
		require.True(t, kv.Empty())
	})
}
