package hexconv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for str, want := range map[string]uint64{
		"0":                0,
		"f":                15,
		"FF":               255,
		"1a2B":             0x1a2b,
		"ffffffffffffffff": 1<<64 - 1,
	} {
		value, ok := Parse(str)
		require.True(t, ok, str)
		require.Equal(t, want, value, str)
	}

	for _, str := range []string{"", "g", "12 ", "1ffffffffffffffff"} {
		_, ok := Parse(str)
		require.False(t, ok, str)
	}
}

func benchLocal(b *testing.B, str string) {
	b.SetBytes(int64(len(str)))
	b.ResetTimer()

	for range b.N {
		var result uint64

		for j := range str {
			result = (result << 4) | uint64(Halfbyte[str[j]])
		}
	}
}

func BenchmarkParse(b *testing.B) {
	b.Run("short", func(b *testing.B) {
		benchLocal(b, "123456789abcdef")
	})

	b.Run("long", func(b *testing.B) {
		benchLocal(b, strings.Repeat("123456789abcdef", 100))
	})
}
