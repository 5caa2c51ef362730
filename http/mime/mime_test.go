package mime

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableSorted(t *testing.T) {
	require.True(t, sort.SliceIsSorted(table[:], func(i, j int) bool {
		return table[i].ext < table[j].ext
	}))
}

func TestByExtension(t *testing.T) {
	for _, e := range table {
		require.Equal(t, e.mime, ByExtension(e.ext), e.ext)
	}

	require.Equal(t, HTML, ByExtension(".HTML"))
	require.Equal(t, WOFF2, ByExtension("woff2"))
	require.Empty(t, ByExtension("unknown"))
	require.Empty(t, ByExtension(""))
}

func TestResolve(t *testing.T) {
	custom := map[string]MIME{"lua": "text/x-lua", ".wgsl": "text/wgsl"}

	require.Equal(t, CSS, Resolve("/static/main.css", custom))
	require.Equal(t, "text/x-lua", Resolve("/scripts/init.lua", custom))
	require.Equal(t, "text/wgsl", Resolve("shader.WGSL", custom))
	require.Equal(t, OctetStream, Resolve("/blob.unknown", custom))
	require.Equal(t, OctetStream, Resolve("/dir.d/noext", nil))
}

func TestComplies(t *testing.T) {
	for _, tc := range []string{"", JSON, JSON + ";", JSON + ";param"} {
		require.True(t, Complies(JSON, tc))
	}

	require.False(t, Complies(JSON, HTML))
}
