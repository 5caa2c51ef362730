package http1

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func headerStrings(headers []Header) (pairs [][2]string) {
	for _, h := range headers {
		pairs = append(pairs, [2]string{string(h.Name), string(h.Value)})
	}

	return pairs
}

func TestHeaderBoundary(t *testing.T) {
	require.Equal(t, -1, HeaderBoundary([]byte("GET / HTTP/1.1\r\nHost: h\r\n")))
	require.Equal(t, 27, HeaderBoundary([]byte("GET / HTTP/1.1\r\nHost: h\r\n\r\nbody")))
	require.Equal(t, 24, HeaderBoundary([]byte("GET / HTTP/1.1\nHost: h\n\nbody")))
	require.Equal(t, -1, HeaderBoundary([]byte("GET / HTTP/1.1\r\nHost: h\r\n\r")))
}

func TestParseRequest(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		data := "GET /a?x=1 HTTP/1.1\r\nHost: h\r\n\r\n"
		var head RequestHead
		n, err := ParseRequest([]byte(data), &head)
		require.NoError(t, err)
		require.Equal(t, len(data), n)
		require.Equal(t, "GET", string(head.Method))
		require.Equal(t, "/a", string(head.Path))
		require.Equal(t, "x=1", string(head.Query))
		require.Equal(t, 1, head.Minor)
		require.Equal(t, [][2]string{{"Host", "h"}}, headerStrings(head.Headers))
	})

	t.Run("bare LF and whitespace trimming", func(t *testing.T) {
		data := "POST /upload HTTP/1.0\nContent-Length:   5  \nX-Empty:\n\n"
		var head RequestHead
		n, err := ParseRequest([]byte(data), &head)
		require.NoError(t, err)
		require.Equal(t, len(data), n)
		require.Equal(t, 0, head.Minor)
		require.Nil(t, head.Query)
		require.Equal(t, [][2]string{{"Content-Length", "5"}, {"X-Empty", ""}}, headerStrings(head.Headers))
	})

	t.Run("continuation line", func(t *testing.T) {
		data := "GET / HTTP/1.1\r\nX-Long: first\r\n \t second\r\n\r\n"
		var head RequestHead
		_, err := ParseRequest([]byte(data), &head)
		require.NoError(t, err)
		require.Equal(t, [][2]string{{"X-Long", "first"}, {"", "second"}}, headerStrings(head.Headers))
	})

	t.Run("leading empty lines", func(t *testing.T) {
		var head RequestHead
		_, err := ParseRequest([]byte("\r\n\r\nGET / HTTP/1.1\r\n\r\n"), &head)
		require.NoError(t, err)
		require.Equal(t, "/", string(head.Path))
	})

	t.Run("malformed", func(t *testing.T) {
		for _, data := range []string{
			"GET  / HTTP/1.1\r\n\r\n",
			"GET / HTTP/2.0\r\n\r\n",
			"GET / HTTP/1.1\rX\n\r\n",
			"GET /\x01 HTTP/1.1\r\n\r\n",
			"G(T / HTTP/1.1\r\n\r\n",
			"GET / HTTP/1.1\r\nNo-Colon\r\n\r\n",
			"GET / HTTP/1.1\r\nBad Name: v\r\n\r\n",
			"GET / HTTP/1.1\r\nX: a\x00b\r\n\r\n",
			"GET / HTTP/1.1\r\nX: a\rb\r\n\r\n",
		} {
			var head RequestHead
			_, err := ParseRequest([]byte(data), &head)
			require.ErrorIs(t, err, ErrMalformed, "%q", data)
		}
	})

	t.Run("incomplete", func(t *testing.T) {
		full := "GET /path?q HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n"
		for i := 0; i < len(full); i++ {
			var head RequestHead
			_, err := ParseRequest([]byte(full[:i]), &head)
			require.ErrorIs(t, err, ErrIncomplete, "%q", full[:i])
		}
	})

	t.Run("all header name characters", func(t *testing.T) {
		name := "!#$%&'*+-.^_`|~09azAZ"
		var head RequestHead
		_, err := ParseRequest([]byte("GET / HTTP/1.1\r\n"+name+": v\r\n\r\n"), &head)
		require.NoError(t, err)
		require.Equal(t, name, string(head.Headers[0].Name))
	})
}

func TestParseResponse(t *testing.T) {
	t.Run("with message", func(t *testing.T) {
		data := "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n"
		var head ResponseHead
		n, err := ParseResponse([]byte(data), &head)
		require.NoError(t, err)
		require.Equal(t, len(data), n)
		require.Equal(t, 404, head.Status)
		require.Equal(t, "Not Found", string(head.Message))
		require.Equal(t, [][2]string{{"Content-Length", "0"}}, headerStrings(head.Headers))
	})

	t.Run("without message", func(t *testing.T) {
		var head ResponseHead
		_, err := ParseResponse([]byte("HTTP/1.0 200\r\n\r\n"), &head)
		require.NoError(t, err)
		require.Equal(t, 200, head.Status)
		require.Equal(t, 0, head.Minor)
		require.Empty(t, head.Message)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, data := range []string{
			"HTTP/1.1 2OO OK\r\n\r\n",
			"HTTP/1.1200 OK\r\n\r\n",
			"HTTX/1.1 200 OK\r\n\r\n",
		} {
			var head ResponseHead
			_, err := ParseResponse([]byte(data), &head)
			require.ErrorIs(t, err, ErrMalformed, data)
		}
	})
}

func TestParseHeaders(t *testing.T) {
	headers, n, err := ParseHeaders([]byte("Content-Disposition: form-data; name=\"a\"\r\n\r\nrest"), nil)
	require.NoError(t, err)
	require.Equal(t, len("Content-Disposition: form-data; name=\"a\"\r\n\r\n"), n)
	require.Equal(t, [][2]string{{"Content-Disposition", "form-data; name=\"a\""}}, headerStrings(headers))
}

func BenchmarkParseRequest(b *testing.B) {
	data := []byte("GET /" + strings.Repeat("a", 500) + " HTTP/1.1\r\n" +
		strings.Repeat("Header-Name: some header value\r\n", 10) + "\r\n")
	head := RequestHead{Headers: make([]Header, 0, 10)}
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()

	for range b.N {
		head.Headers = head.Headers[:0]
		_, _ = ParseRequest(data, &head)
	}
}
