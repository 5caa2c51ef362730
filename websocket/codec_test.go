package websocket

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/indigo-web/ember/kv"
	"github.com/stretchr/testify/require"
)

func maskKeys(t *testing.T) [][4]byte {
	keys := [][4]byte{
		{0, 0, 0, 0},
		{0xff, 0xff, 0xff, 0xff},
		{0x37, 0xfa, 0x21, 0x3d},
		{0, 0, 0, 1},
	}

	for range 8 {
		var key [4]byte
		_, err := rand.Read(key[:])
		require.NoError(t, err)
		keys = append(keys, key)
	}

	return keys
}

func TestMask(t *testing.T) {
	for _, key := range maskKeys(t) {
		for length := 0; length <= 260; length++ {
			payload := bytes.Repeat([]byte{'a'}, length)
			for i := range payload {
				payload[i] += byte(i % 26)
			}

			original := bytes.Clone(payload)
			Mask(payload, key)

			changes := false
			for i := range min(length, 4) {
				changes = changes || key[i] != 0
			}
			require.Equal(t, changes, !bytes.Equal(original, payload), "key %x length %d", key, length)

			Mask(payload, key)
			require.True(t, bytes.Equal(original, payload), "key %x length %d", key, length)
		}
	}
}

func TestAcceptKey(t *testing.T) {
	require.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", AcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func TestParseHeader(t *testing.T) {
	t.Run("short masked text", func(t *testing.T) {
		// the RFC 6455 example of a masked "Hello"
		data := []byte{0x81, 0x85, 0x37, 0xfa, 0x21, 0x3d, 0x7f, 0x9f, 0x4d, 0x51, 0x58}
		h, n, err := ParseHeader(data)
		require.NoError(t, err)
		require.Equal(t, 6, n)
		require.True(t, h.Fin)
		require.Equal(t, Text, h.Opcode)
		require.True(t, h.Masked)
		require.EqualValues(t, 5, h.Length)

		payload := data[n:]
		Mask(payload, h.Mask)
		require.Equal(t, "Hello", string(payload))
	})

	t.Run("extended lengths", func(t *testing.T) {
		for _, length := range []uint64{125, 126, 0xFFFF, 0x10000, 1 << 40} {
			header := AppendHeader(nil, Binary, length, &[4]byte{1, 2, 3, 4})
			h, n, err := ParseHeader(header)
			require.NoError(t, err)
			require.Equal(t, len(header), n)
			require.Equal(t, length, h.Length)
			require.Equal(t, [4]byte{1, 2, 3, 4}, h.Mask)
		}
	})

	t.Run("incomplete", func(t *testing.T) {
		header := AppendHeader(nil, Binary, 0x10000, &[4]byte{1, 2, 3, 4})
		for i := 0; i < len(header); i++ {
			_, _, err := ParseHeader(header[:i])
			require.ErrorIs(t, err, ErrIncomplete, "%d bytes", i)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		_, _, err := ParseHeader([]byte{0xC1, 0x00})
		require.ErrorIs(t, err, ErrBadFrame)
		_, _, err = ParseHeader([]byte{0x83, 0x00})
		require.ErrorIs(t, err, ErrUnknownFrame)
		// fragmented ping
		_, _, err = ParseHeader([]byte{0x09, 0x00})
		require.ErrorIs(t, err, ErrBadFrame)
		// too long control frame
		_, _, err = ParseHeader([]byte{0x89, 126, 0x00, 0x7E})
		require.ErrorIs(t, err, ErrBadFrame)
		// most significant bit of the 64-bit length
		_, _, err = ParseHeader([]byte{0x82, 127, 0x80, 0, 0, 0, 0, 0, 0, 0})
		require.ErrorIs(t, err, ErrBadFrame)
	})
}

func TestNegotiate(t *testing.T) {
	handshake := func() *kv.Storage {
		return kv.New().
			Add("Upgrade", "websocket").
			Add("Sec-WebSocket-Version", "13").
			Add("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	}

	t.Run("valid", func(t *testing.T) {
		headers := handshake().Add("Sec-WebSocket-Protocol", "chat, superchat")
		accept, protocol, err := Negotiate(headers)
		require.NoError(t, err)
		require.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", accept)
		require.Equal(t, "chat", protocol)
	})

	t.Run("no subprotocol", func(t *testing.T) {
		_, protocol, err := Negotiate(handshake())
		require.NoError(t, err)
		require.Empty(t, protocol)
	})

	t.Run("wrong version", func(t *testing.T) {
		_, _, err := Negotiate(handshake().Set("Sec-WebSocket-Version", "8"))
		require.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("bad key", func(t *testing.T) {
		_, _, err := Negotiate(handshake().Set("Sec-WebSocket-Key", "c2hvcnQ="))
		require.Error(t, err)
	})
}

func TestClosePayload(t *testing.T) {
	payload := appendClosePayload(nil, CloseGoingAway, "bye")
	code, reason := parseClosePayload(payload)
	require.Equal(t, CloseGoingAway, code)
	require.Equal(t, "bye", reason)

	require.Empty(t, appendClosePayload(nil, CloseAbnormal, "lost"))
	code, _ = parseClosePayload(nil)
	require.Equal(t, CloseNoStatus, code)
}
