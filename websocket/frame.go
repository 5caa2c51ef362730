package websocket

import (
	"crypto/rand"

	"github.com/indigo-web/ember/config"
	"github.com/indigo-web/ember/metrics"
	"github.com/indigo-web/ember/transport"
	"github.com/rs/zerolog"
)

type State uint8

const (
	Handshake State = iota
	Active
	// Reset is entered once a close frame was either sent or received. Another close frame
	// completes the closing handshake.
	Reset
	Free
)

// Handlers are the callbacks of a websocket route. Payloads are only valid during the call.
type Handlers struct {
	OnConnect func(f *Frame)
	OnMessage func(f *Frame, opcode Opcode, payload []byte)
	OnClose   func(f *Frame, code uint16, reason string)
}

func (h *Handlers) empty() bool {
	return h == nil || (h.OnConnect == nil && h.OnMessage == nil)
}

// Frame drives a single websocket connection after the handshake. All the methods must be
// called from the connection's callbacks (the handlers are).
type Frame struct {
	conn     transport.Conn
	cfg      config.WebSocket
	handlers *Handlers
	log      zerolog.Logger
	metrics  *metrics.Metrics
	// client frames are masked when written, server frames are required to be masked when read
	client bool
	state  State
	buff   []byte
	// message accumulates fragments of a data message
	message       []byte
	messageOpcode Opcode
	closeCode     uint16
	closeReason   string
	closeSent     bool
	finishing     bool
	onFree        func()
	// Protocol is the negotiated subprotocol.
	Protocol string
}

func NewFrame(
	conn transport.Conn, cfg config.WebSocket, handlers *Handlers, log zerolog.Logger, m *metrics.Metrics,
) *Frame {
	return &Frame{
		conn:      conn,
		cfg:       cfg,
		handlers:  handlers,
		log:       log,
		metrics:   m,
		state:     Handshake,
		closeCode: CloseNormal,
	}
}

// Client makes the frame act as the client side of the connection.
func (f *Frame) Client() *Frame {
	f.client = true
	return f
}

// OnFree sets the callback run once the connection is released.
func (f *Frame) OnFree(cb func()) *Frame {
	f.onFree = cb
	return f
}

func (f *Frame) State() State {
	return f.state
}

// Start is called once the handshake response was written. Without handlers there's nothing
// to serve, so the connection is closed straight away.
func (f *Frame) Start() {
	if f.handlers.empty() {
		f.state = Active
		f.finish()
		return
	}

	f.state = Active
	if f.handlers.OnConnect != nil {
		f.handlers.OnConnect(f)
	}

	if f.state != Free {
		f.process()
	}
}

func (f *Frame) read() {
	f.conn.ReadAsync(f.cfg.ReadBufferSize, func(data []byte, err error) {
		if err != nil {
			f.abort(err)
			return
		}

		f.buff = append(f.buff, data...)
		f.process()
	})
}

// process handles every complete frame in the buffer and issues a read for the rest.
func (f *Frame) process() {
	for !f.finishing && (f.state == Active || f.state == Reset) {
		header, n, err := ParseHeader(f.buff)
		switch err {
		case nil:
		case ErrIncomplete:
			f.read()
			return
		default:
			f.fail(CloseProtocolError, err.Error())
			return
		}

		if !f.client && !header.Masked {
			f.fail(CloseProtocolError, "unmasked client frame")
			return
		}

		if header.Length > f.cfg.MaxPayload {
			f.fail(CloseTooBig, "frame is too big")
			return
		}

		if uint64(len(f.buff)-n) < header.Length {
			f.read()
			return
		}

		end := n + int(header.Length)
		payload := f.buff[n:end]
		if header.Masked {
			Mask(payload, header.Mask)
		}

		f.metrics.FrameIn()
		f.dispatch(header, payload)
		if f.state == Free {
			return
		}

		f.buff = f.buff[:copy(f.buff, f.buff[end:])]
	}
}

func (f *Frame) dispatch(header Header, payload []byte) {
	switch header.Opcode {
	case Ping:
		f.WriteMask(Pong, nil, f.mask(), f.onWritten)
	case Pong:
	case Close:
		code, reason := parseClosePayload(payload)
		if f.state == Reset {
			// the peer acknowledged our close frame
			f.release()
			return
		}

		f.state = Reset
		if f.handlers.OnClose != nil {
			f.handlers.OnClose(f, code, reason)
		}

		f.closeCode, f.closeReason = code, reason
		if code == CloseNoStatus {
			f.closeCode = CloseNormal
		}

		f.finish()
	case Continuation:
		if f.message == nil {
			f.fail(CloseProtocolError, "unexpected continuation frame")
			return
		}

		f.message = append(f.message, payload...)
		if uint64(len(f.message)) > f.cfg.MaxPayload {
			f.fail(CloseTooBig, "message is too big")
			return
		}

		if header.Fin {
			message := f.message
			f.message = nil
			f.deliver(f.messageOpcode, message)
		}
	default:
		if f.message != nil {
			f.fail(CloseProtocolError, "interleaved data frames")
			return
		}

		if !header.Fin {
			f.messageOpcode = header.Opcode
			f.message = append(make([]byte, 0, len(payload)), payload...)
			return
		}

		f.deliver(header.Opcode, payload)
	}
}

func (f *Frame) deliver(opcode Opcode, payload []byte) {
	if f.handlers.OnMessage != nil {
		f.handlers.OnMessage(f, opcode, payload)
	}
}

// WriteMask writes a single final frame. The payload is copied, so the passed slice is
// left intact. The header and the payload go in one write, so frames written by different
// callers never interleave.
func (f *Frame) WriteMask(opcode Opcode, payload []byte, mask *[4]byte, cb transport.WriteCallback) {
	frame := AppendHeader(make([]byte, 0, maxHeaderSize+len(payload)), opcode, uint64(len(payload)), mask)
	n := len(frame)
	frame = append(frame, payload...)
	if mask != nil {
		Mask(frame[n:], *mask)
	}

	f.metrics.FrameOut()
	f.conn.WriteAsync(frame, cb)
}

// WriteText sends a text message.
func (f *Frame) WriteText(text string, cb transport.WriteCallback) {
	f.WriteMask(Text, []byte(text), f.mask(), f.wrap(cb))
}

// WriteBinary sends a binary message.
func (f *Frame) WriteBinary(data []byte, cb transport.WriteCallback) {
	f.WriteMask(Binary, data, f.mask(), f.wrap(cb))
}

// Close initiates the closing handshake. The connection is released once the peer answers
// with its own close frame.
func (f *Frame) Close(code uint16, reason string) {
	if f.state != Active {
		return
	}

	f.state = Reset
	f.closeCode, f.closeReason = code, reason
	// the read loop is still running and picks up the peer's close frame
	f.sendClose(func() {})
}

func (f *Frame) wrap(cb transport.WriteCallback) transport.WriteCallback {
	return func(err error) {
		if err != nil {
			f.abort(err)
		}

		if cb != nil {
			cb(err)
		}
	}
}

func (f *Frame) onWritten(err error) {
	if err != nil {
		f.abort(err)
	}
}

func (f *Frame) mask() *[4]byte {
	if !f.client {
		return nil
	}

	var key [4]byte
	_, _ = rand.Read(key[:])
	return &key
}

func (f *Frame) fail(code uint16, reason string) {
	f.log.Debug().Uint16("code", code).Str("reason", reason).Msg("websocket failure")
	f.closeCode, f.closeReason = code, reason
	if f.state == Active {
		f.state = Reset
	}

	f.finish()
}

// finish sends the close frame with the stored reason, unless it was already sent, and
// releases the connection.
func (f *Frame) finish() {
	f.finishing = true
	if f.closeSent {
		f.release()
		return
	}

	f.sendClose(f.release)
}

func (f *Frame) sendClose(then func()) {
	f.closeSent = true
	payload := appendClosePayload(make([]byte, 0, maxControlPayload), f.closeCode, f.closeReason)
	f.WriteMask(Close, payload, f.mask(), func(err error) {
		if err != nil {
			f.abort(err)
			return
		}

		then()
	})
}

func (f *Frame) abort(err error) {
	if f.state == Free {
		return
	}

	f.log.Debug().Err(err).Msg("websocket connection aborted")
	if f.state == Active && f.handlers != nil && f.handlers.OnClose != nil {
		f.handlers.OnClose(f, CloseAbnormal, err.Error())
	}

	f.release()
}

func (f *Frame) release() {
	if f.state == Free {
		return
	}

	f.state = Free
	f.buff, f.message = nil, nil
	_ = f.conn.Close()
	if f.onFree != nil {
		f.onFree()
	}
}
