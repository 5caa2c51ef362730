package transport

import (
	"errors"
	"net"
)

var (
	// ErrTooLong is passed to ReadUntilAsync callbacks when the delimiter didn't show up
	// within the limit.
	ErrTooLong = errors.New("delimiter not found within the limit")
	// ErrClosed is passed to callbacks of operations issued after the connection was closed.
	ErrClosed = net.ErrClosed
)

type (
	// ReadCallback receives the read data or an error. The data is valid only until the next
	// read is issued.
	ReadCallback func(data []byte, err error)
	// WriteCallback is called once the whole buffer was written or the write failed.
	WriteCallback func(err error)
)

// Conn is an asynchronous client connection. Every operation completes by calling its
// callback, and callbacks of a single connection are never run concurrently, so the code
// driven by them needs no locking. Errors are always terminal: after a callback received a
// non-nil error, the connection must be closed.
type Conn interface {
	// ReadAsync reads at most max bytes. Non-positive max means "as much as available".
	ReadAsync(max int, cb ReadCallback)
	// ReadUntilAsync reads until delim shows up. The delimiter is included into the data, and
	// anything read beyond it is kept for the next read.
	ReadUntilAsync(delim []byte, max int, cb ReadCallback)
	// WriteAsync writes the whole b. The buffer must not be modified until cb is called.
	// Writes reach the wire in the order they were issued.
	WriteAsync(b []byte, cb WriteCallback)
	// Pushback makes b being returned by the next read before anything else.
	Pushback(b []byte)
	// Offload runs work off the I/O path and resumes with then on the connection's sequence.
	Offload(work, then func())
	Remote() net.Addr
	Close() error
}

// Scheduler executes offloaded work.
type Scheduler interface {
	Submit(task func()) error
}
