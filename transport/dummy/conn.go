// Package dummy provides an in-memory scripted connection for tests and benchmarks.
package dummy

import (
	"errors"
	"io"
	"net"

	"github.com/indigo-web/ember/transport"
)

var _ transport.Conn = new(Conn)

// ErrWriteFailed is returned by writes of a connection with FailWrites set.
var ErrWriteFailed = errors.New("write failed")

// Conn returns the scripted pieces one per read, then io.EOF. Everything written is collected.
type Conn struct {
	reads     [][]byte
	pointer   int
	loop      bool
	buff      []byte
	pending   []byte
	until     []byte
	written   []byte
	writes    int
	failAfter int
	seq       transport.Sequence
	closed    bool
	offloaded int
	remote    net.Addr
}

func NewConn(reads ...[]byte) *Conn {
	return &Conn{
		reads:     reads,
		failAfter: -1,
		remote:    &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 54321},
	}
}

// NewConnString is NewConn for strings.
func NewConnString(reads ...string) *Conn {
	pieces := make([][]byte, len(reads))
	for i, r := range reads {
		pieces[i] = []byte(r)
	}

	return NewConn(pieces...)
}

// Loop makes the script restart instead of returning io.EOF. Used by benchmarks.
func (c *Conn) Loop() *Conn {
	c.loop = true
	return c
}

// FailWritesAfter makes every write starting from the n-th (zero-based) one fail.
func (c *Conn) FailWritesAfter(n int) *Conn {
	c.failAfter = n
	return c
}

// Run serves the connection the same way the real transports do: the handler is called and
// every continuation is executed until nothing is left.
func (c *Conn) Run(handler func(transport.Conn)) {
	c.seq.Post(func() {
		handler(c)
	})
	_ = c.Close()
}

func (c *Conn) ReadAsync(limit int, cb transport.ReadCallback) {
	c.seq.Post(func() {
		cb(c.read(limit))
	})
}

func (c *Conn) read(limit int) ([]byte, error) {
	data := c.pending
	c.pending = nil

	if len(data) == 0 {
		if c.closed {
			return nil, transport.ErrClosed
		}

		if c.pointer >= len(c.reads) {
			if !c.loop || len(c.reads) == 0 {
				return nil, io.EOF
			}

			c.pointer = 0
		}

		// readers are allowed to modify the returned data, so the script itself is kept intact
		c.buff = append(c.buff[:0], c.reads[c.pointer]...)
		data = c.buff
		c.pointer++
	}

	if limit > 0 && len(data) > limit {
		data, c.pending = data[:limit], data[limit:]
	}

	return data, nil
}

func (c *Conn) ReadUntilAsync(delim []byte, limit int, cb transport.ReadCallback) {
	transport.ReadUntil(c, &c.until, delim, limit, cb)
}

func (c *Conn) WriteAsync(b []byte, cb transport.WriteCallback) {
	c.seq.Post(func() {
		switch {
		case c.closed:
			cb(transport.ErrClosed)
		case c.failAfter >= 0 && c.writes >= c.failAfter:
			c.writes++
			cb(ErrWriteFailed)
		default:
			c.writes++
			c.written = append(c.written, b...)
			cb(nil)
		}
	})
}

func (c *Conn) Pushback(b []byte) {
	c.pending = b
}

func (c *Conn) Offload(work, then func()) {
	c.seq.Post(func() {
		c.offloaded++
		work()
		then()
	})
}

func (c *Conn) Remote() net.Addr {
	return c.remote
}

func (c *Conn) Close() error {
	c.closed = true
	return nil
}

// Written returns everything written so far.
func (c *Conn) Written() []byte {
	return c.written
}

// Writes returns the number of write calls.
func (c *Conn) Writes() int {
	return c.writes
}

// Offloaded returns the number of Offload calls.
func (c *Conn) Offloaded() int {
	return c.offloaded
}

func (c *Conn) Closed() bool {
	return c.closed
}

// Reset clears the written data, so the connection can be served again.
func (c *Conn) Reset() {
	c.written = c.written[:0]
	c.pointer, c.writes, c.offloaded = 0, 0, 0
	c.pending = nil
	c.closed = false
}
