package http1

import (
	"io"
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/chunkedbody"
	"github.com/stretchr/testify/require"
)

// decodeChunked feeds the pieces one by one, returning the payload and whatever followed
// the body.
func decodeChunked(pieces [][]byte) (payload, rest string, done bool, err error) {
	var decoder ChunkedDecoder

	for i, piece := range pieces {
		piece = []byte(string(piece))
		decoded, consumed, finished, err := decoder.Decode(piece)
		payload += string(piece[:decoded])
		if err != nil {
			return payload, "", false, err
		}

		if finished {
			rest = string(piece[consumed:])
			for _, tail := range pieces[i+1:] {
				rest += string(tail)
			}

			return payload, rest, true, nil
		}
	}

	return payload, "", false, nil
}

func encodeChunked(payload string, chunkSize int) []byte {
	var out []byte
	for _, chunk := range scatter([]byte(payload), chunkSize) {
		out = AppendChunk(out, chunk)
	}

	return AppendLastChunk(out)
}

func TestChunkedDecoder(t *testing.T) {
	t.Run("single chunk", func(t *testing.T) {
		payload, rest, done, err := decodeChunked([][]byte{[]byte("4\r\nWiki\r\n0\r\n\r\n")})
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, "Wiki", payload)
		require.Empty(t, rest)
	})

	t.Run("extensions, trailers and the rest", func(t *testing.T) {
		raw := "4;name=value\r\nWiki\r\n5 \r\npedia\r\n0\r\nExpires: never\r\nX: y\r\n\r\nGET / HTTP/1.1\r\n"
		for step := 1; step <= len(raw); step++ {
			payload, rest, done, err := decodeChunked(scatter([]byte(raw), step))
			require.NoError(t, err)
			require.True(t, done)
			require.Equal(t, "Wikipedia", payload)
			require.Equal(t, "GET / HTTP/1.1\r\n", rest)
		}
	})

	t.Run("bare LF", func(t *testing.T) {
		payload, _, done, err := decodeChunked([][]byte{[]byte("3\nabc\n0\n\n")})
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, "abc", payload)
	})

	t.Run("roundtrip", func(t *testing.T) {
		text := uniuri.NewLen(1024)
		for _, chunkSize := range []int{1, 2, 7, 100, 1024} {
			encoded := encodeChunked(text, chunkSize)
			whole, _, done, err := decodeChunked([][]byte{encoded})
			require.NoError(t, err)
			require.True(t, done)
			require.Equal(t, text, whole)

			bytewise, _, done, err := decodeChunked(scatter(encoded, 1))
			require.NoError(t, err)
			require.True(t, done)
			require.Equal(t, whole, bytewise)
		}
	})

	t.Run("incomplete", func(t *testing.T) {
		payload, _, done, err := decodeChunked([][]byte{[]byte("a\r\nhello")})
		require.NoError(t, err)
		require.False(t, done)
		require.Equal(t, "hello", payload)
	})

	t.Run("hex overflow", func(t *testing.T) {
		_, _, _, err := decodeChunked([][]byte{[]byte(strings.Repeat("f", 16) + "\r\n")})
		require.NoError(t, err)
		_, _, _, err = decodeChunked([][]byte{[]byte(strings.Repeat("f", 17) + "\r\n")})
		require.ErrorIs(t, err, ErrBadChunk)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, raw := range []string{
			"\r\n",
			"g\r\n",
			"4\rX",
			"4\r\nWikiX",
			"4\r\nWiki\rX",
			"0\r\n\rX",
			"0\r\n\x01",
		} {
			_, _, _, err := decodeChunked([][]byte{[]byte(raw)})
			require.ErrorIs(t, err, ErrBadChunk, "%q", raw)
		}
	})

	t.Run("reusable after done", func(t *testing.T) {
		var decoder ChunkedDecoder
		for range 2 {
			buf := []byte("1\r\na\r\n0\r\n\r\n")
			decoded, consumed, done, err := decoder.Decode(buf)
			require.NoError(t, err)
			require.True(t, done)
			require.Equal(t, len(buf), consumed)
			require.Equal(t, "a", string(buf[:decoded]))
		}
	})
}

func TestAppendChunk(t *testing.T) {
	payload := strings.Repeat("abcdefgh", 100)
	encoded := encodeChunked(payload, 64)
	parser := chunkedbody.NewParser(chunkedbody.DefaultSettings())

	var data []byte
	for len(encoded) > 0 {
		chunk, extra, err := parser.Parse(encoded, false)
		if err != nil {
			require.EqualError(t, err, io.EOF.Error())
			break
		}

		data = append(data, chunk...)
		encoded = extra
	}

	require.Equal(t, payload, string(data))
	require.Empty(t, AppendChunk(nil, nil))
}

func BenchmarkChunkedDecoder(b *testing.B) {
	encoded := encodeChunked(strings.Repeat("a", 64*1024), 4096)
	buf := make([]byte, len(encoded))
	b.SetBytes(int64(len(encoded)))
	b.ResetTimer()

	var decoder ChunkedDecoder
	for range b.N {
		copy(buf, encoded)
		_, _, _, _ = decoder.Decode(buf)
	}
}
