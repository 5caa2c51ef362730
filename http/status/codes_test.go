package status

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	t.Run("every registered code has a phrase", func(t *testing.T) {
		for code := Code(100); code < 600; code++ {
			if Known(code) {
				require.NotEmpty(t, Text(code), code)
			}
		}
	})

	t.Run("known", func(t *testing.T) {
		require.Equal(t, "OK", Text(OK))
		require.Equal(t, "Partial Content", Text(PartialContent))
		require.Equal(t, "Requested Range Not Satisfiable", Text(RequestedRangeNotSatisfiable))
	})

	t.Run("class fallback", func(t *testing.T) {
		require.Equal(t, "Information", Text(199))
		require.Equal(t, "Success", Text(299))
		require.Equal(t, "Redirection", Text(399))
		require.Equal(t, "Client Error", Text(499))
		require.Equal(t, "Server Error", Text(599))
		require.Equal(t, "Unknown Status Code", Text(999))
	})

	t.Run("status line", func(t *testing.T) {
		require.Equal(t, "HTTP/1.1 404 Not Found\r\n", Line(NotFound, ""))
		require.Equal(t, "HTTP/1.1 200 Fine\r\n", Line(OK, "Fine"))
	})
}
