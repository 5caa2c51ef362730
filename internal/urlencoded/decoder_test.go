package urlencoded

import (
	"strings"
	"testing"

	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/kv"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("no escaping", func(t *testing.T) {
		decoded, _, err := Decode("/hello", nil)
		require.NoError(t, err)
		require.Equal(t, "/hello", decoded)
	})

	t.Run("corners", func(t *testing.T) {
		decoded, _, err := Decode("%2fhello%2F", nil)
		require.NoError(t, err)
		require.Equal(t, "/hello/", decoded)
	})

	t.Run("pluses", func(t *testing.T) {
		decoded, _, err := Decode("hello+world%21", nil)
		require.NoError(t, err)
		require.Equal(t, "hello world!", decoded)
	})

	t.Run("incomplete sequence", func(t *testing.T) {
		_, _, err := Decode("%2", nil)
		require.ErrorIs(t, err, status.ErrURIDecoding)
	})

	t.Run("invalid code", func(t *testing.T) {
		_, _, err := Decode("%2j", nil)
		require.ErrorIs(t, err, status.ErrURIDecoding)
	})

	t.Run("long", func(t *testing.T) {
		decoded, _, err := Decode(strings.Repeat("a%5f", 1024), nil)
		require.NoError(t, err)
		require.Equal(t, strings.Repeat("a_", 1024), decoded)
	})
}

func TestParse(t *testing.T) {
	t.Run("pairs", func(t *testing.T) {
		into := kv.New()
		_, err := Parse("hel+lo=wor%20ld&flag&&a=1&a=2&empty=", into, nil)
		require.NoError(t, err)
		require.Equal(t, "wor ld", into.Value("hel lo"))
		require.True(t, into.Has("flag"))
		require.Equal(t, []string{"1", "2"}, collect(into, "a"))
		require.Equal(t, "", into.Value("empty"))
		require.Equal(t, 5, into.Len())
	})

	t.Run("escaped separators", func(t *testing.T) {
		into := kv.New()
		_, err := Parse("q=a%26b%3Dc", into, nil)
		require.NoError(t, err)
		require.Equal(t, "a&b=c", into.Value("q"))
	})

	t.Run("bad escape", func(t *testing.T) {
		_, err := Parse("q=%zz", kv.New(), nil)
		require.ErrorIs(t, err, status.ErrURIDecoding)
	})
}

func collect(storage *kv.Storage, key string) (values []string) {
	for value := range storage.Values(key) {
		values = append(values, value)
	}

	return values
}
