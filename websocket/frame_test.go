package websocket

import (
	"math"
	"testing"

	"github.com/indigo-web/ember/config"
	"github.com/indigo-web/ember/transport"
	"github.com/indigo-web/ember/transport/dummy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testKey = [4]byte{0xde, 0xad, 0xbe, 0xef}

func clientFrame(fin bool, opcode Opcode, payload string) []byte {
	frame := AppendHeader(nil, opcode, uint64(len(payload)), &testKey)
	if !fin {
		frame[0] &^= finBit
	}

	masked := []byte(payload)
	Mask(masked, testKey)
	return append(frame, masked...)
}

type serverFrame struct {
	opcode  Opcode
	payload string
}

// parseServerFrames splits the written stream into unmasked frames.
func parseServerFrames(t *testing.T, data []byte) (frames []serverFrame) {
	for len(data) > 0 {
		h, n, err := ParseHeader(data)
		require.NoError(t, err)
		require.False(t, h.Masked)
		end := n + int(h.Length)
		frames = append(frames, serverFrame{h.Opcode, string(data[n:end])})
		data = data[end:]
	}

	return frames
}

type events struct {
	connected bool
	messages  []serverFrame
	closeCode uint16
	closed    bool
}

func (e *events) handlers() *Handlers {
	return &Handlers{
		OnConnect: func(*Frame) {
			e.connected = true
		},
		OnMessage: func(f *Frame, opcode Opcode, payload []byte) {
			e.messages = append(e.messages, serverFrame{opcode, string(payload)})
			f.WriteText("echo: "+string(payload), nil)
		},
		OnClose: func(_ *Frame, code uint16, _ string) {
			e.closed, e.closeCode = true, code
		},
	}
}

func serve(conn *dummy.Conn, handlers *Handlers, cfg config.WebSocket) (frame *Frame) {
	conn.Run(func(c transport.Conn) {
		frame = NewFrame(c, cfg, handlers, zerolog.Nop(), nil)
		frame.Start()
	})

	return frame
}

func concat(frames ...[]byte) (result []byte) {
	for _, f := range frames {
		result = append(result, f...)
	}

	return result
}

func TestFrame(t *testing.T) {
	cfg := config.Default().WebSocket

	t.Run("echo and close", func(t *testing.T) {
		var e events
		stream := concat(
			clientFrame(true, Text, "hello"),
			clientFrame(true, Close, "\x03\xe8"),
		)
		conn := dummy.NewConn(stream)
		frame := serve(conn, e.handlers(), cfg)

		require.True(t, e.connected)
		require.Equal(t, []serverFrame{{Text, "hello"}}, e.messages)
		require.True(t, e.closed)
		require.Equal(t, CloseNormal, e.closeCode)
		require.Equal(t, Free, frame.State())
		require.True(t, conn.Closed())
		require.Equal(t, []serverFrame{
			{Text, "echo: hello"},
			{Close, "\x03\xe8"},
		}, parseServerFrames(t, conn.Written()))
	})

	t.Run("fragmented by the transport", func(t *testing.T) {
		var e events
		stream := concat(
			clientFrame(true, Binary, "some longer binary payload"),
			clientFrame(true, Close, ""),
		)

		var pieces [][]byte
		for _, c := range stream {
			pieces = append(pieces, []byte{c})
		}

		conn := dummy.NewConn(pieces...)
		serve(conn, e.handlers(), cfg)
		require.Equal(t, []serverFrame{{Binary, "some longer binary payload"}}, e.messages)
		require.True(t, e.closed)
		require.Equal(t, CloseNoStatus, e.closeCode)
	})

	t.Run("fragmented message", func(t *testing.T) {
		var e events
		stream := concat(
			clientFrame(false, Text, "Hel"),
			clientFrame(true, Ping, "are you there"),
			clientFrame(false, Continuation, "lo, "),
			clientFrame(true, Continuation, "world"),
			clientFrame(true, Close, ""),
		)
		conn := dummy.NewConn(stream)
		serve(conn, e.handlers(), cfg)

		require.Equal(t, []serverFrame{{Text, "Hello, world"}}, e.messages)
		frames := parseServerFrames(t, conn.Written())
		require.Equal(t, serverFrame{Pong, ""}, frames[0])
		require.Equal(t, serverFrame{Text, "echo: Hello, world"}, frames[1])
	})

	t.Run("unmasked frame", func(t *testing.T) {
		var e events
		conn := dummy.NewConn(AppendHeader(nil, Text, 0, nil))
		serve(conn, e.handlers(), cfg)

		frames := parseServerFrames(t, conn.Written())
		require.Len(t, frames, 1)
		require.Equal(t, Close, frames[0].opcode)
		code, _ := parseClosePayload([]byte(frames[0].payload))
		require.Equal(t, CloseProtocolError, code)
		require.True(t, conn.Closed())
	})

	t.Run("too big", func(t *testing.T) {
		var e events
		limited := cfg
		limited.MaxPayload = 4
		conn := dummy.NewConn(clientFrame(true, Text, "hello"))
		serve(conn, e.handlers(), limited)

		require.Empty(t, e.messages)
		frames := parseServerFrames(t, conn.Written())
		require.Len(t, frames, 1)
		code, _ := parseClosePayload([]byte(frames[0].payload))
		require.Equal(t, CloseTooBig, code)
	})

	t.Run("connection lost", func(t *testing.T) {
		var e events
		conn := dummy.NewConn(clientFrame(true, Text, "hi"))
		serve(conn, e.handlers(), cfg)

		require.True(t, e.closed)
		require.Equal(t, CloseAbnormal, e.closeCode)
		require.True(t, conn.Closed())
	})

	t.Run("server initiated close", func(t *testing.T) {
		handlers := &Handlers{
			OnConnect: func(f *Frame) {
				f.Close(CloseGoingAway, "restart")
			},
		}
		conn := dummy.NewConn(clientFrame(true, Close, "\x03\xe9"))
		frame := serve(conn, handlers, cfg)

		require.Equal(t, Free, frame.State())
		frames := parseServerFrames(t, conn.Written())
		require.Len(t, frames, 1)
		code, reason := parseClosePayload([]byte(frames[0].payload))
		require.Equal(t, CloseGoingAway, code)
		require.Equal(t, "restart", reason)
	})

	t.Run("announced length beyond the buffer", func(t *testing.T) {
		var e events
		unlimited := cfg
		unlimited.MaxPayload = math.MaxUint64
		// the largest length the header can carry, n+length overflows int
		header := AppendHeader(nil, Binary, math.MaxInt64, &testKey)
		conn := dummy.NewConn(append(header, "tail"...))
		frame := serve(conn, e.handlers(), unlimited)

		require.Empty(t, e.messages)
		require.Equal(t, Free, frame.State())
		require.True(t, conn.Closed())
	})

	t.Run("write failure", func(t *testing.T) {
		var (
			e      events
			failed error
		)
		handlers := e.handlers()
		handlers.OnConnect = func(f *Frame) {
			f.WriteText("greeting", func(err error) {
				failed = err
			})
		}
		conn := dummy.NewConn().FailWritesAfter(0)
		serve(conn, handlers, cfg)

		require.ErrorIs(t, failed, dummy.ErrWriteFailed)
		require.Equal(t, 1, conn.Writes())
		require.True(t, e.closed)
		require.Equal(t, CloseAbnormal, e.closeCode)
	})

	t.Run("no handlers", func(t *testing.T) {
		conn := dummy.NewConn()
		frame := serve(conn, nil, cfg)
		require.Equal(t, Free, frame.State())
		require.True(t, conn.Closed())
	})
}

func TestClientFrame(t *testing.T) {
	conn := dummy.NewConn()
	conn.Run(func(c transport.Conn) {
		frame := NewFrame(c, config.Default().WebSocket, &Handlers{}, zerolog.Nop(), nil).Client()
		frame.WriteText("ping", func(err error) {
			require.NoError(t, err)
		})
	})

	written := conn.Written()
	h, n, err := ParseHeader(written)
	require.NoError(t, err)
	require.True(t, h.Masked)
	payload := written[n:]
	Mask(payload, h.Mask)
	require.Equal(t, "ping", string(payload))
}
