package address

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	require.Equal(t, "0.0.0.0:8080", Normalize(":8080"))
	require.Equal(t, "localhost:8080", Normalize("localhost:8080"))
	require.Equal(t, "[::1]:80", Normalize("[::1]:80"))
}

func TestIsLocalhost(t *testing.T) {
	for _, addr := range []string{"localhost:443", "LOCALHOST", "127.0.0.1:80", "[::1]:443"} {
		require.True(t, IsLocalhost(addr), addr)
	}

	for _, addr := range []string{"example.com:443", "0.0.0.0:80", ":443", "10.0.0.1"} {
		require.False(t, IsLocalhost(addr), addr)
	}
}

func TestHost(t *testing.T) {
	require.Equal(t, "example.com", Host("example.com:80"))
	require.Equal(t, "example.com", Host("example.com"))
	require.Equal(t, "::1", Host("[::1]:443"))
	require.Equal(t, "", Host(":443"))
}
