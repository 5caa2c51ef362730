package transport

import (
	"net"
	"time"

	"github.com/indigo-web/ember/config"
	"github.com/indigo-web/ember/internal/timer"
)

var _ Conn = new(NetConn)

// NetConn adapts a blocking net.Conn to the asynchronous Conn interface. It's meant to be
// driven by a goroutine per connection: Serve hands the connection to the handler and keeps
// executing the issued operations until there are none left.
type NetConn struct {
	conn      net.Conn
	timeout   time.Duration
	buff      []byte
	pending   []byte
	until     []byte
	scheduler Scheduler
	seq       Sequence
	closed    bool
}

func NewNetConn(conn net.Conn, cfg config.NET, scheduler Scheduler) *NetConn {
	return &NetConn{
		conn:      conn,
		timeout:   cfg.ReadTimeout,
		buff:      make([]byte, cfg.ReadBufferSize),
		scheduler: scheduler,
	}
}

// Serve runs the handler and every continuation it schedules. Returns when the connection
// has nothing to do anymore, closing it.
func (c *NetConn) Serve(handler func(Conn)) {
	c.seq.Post(func() {
		handler(c)
	})
	_ = c.Close()
}

func (c *NetConn) ReadAsync(limit int, cb ReadCallback) {
	c.seq.Post(func() {
		cb(c.read(limit))
	})
}

func (c *NetConn) read(limit int) ([]byte, error) {
	if len(c.pending) > 0 {
		data := c.pending
		if limit > 0 && len(data) > limit {
			data, c.pending = data[:limit], data[limit:]
		} else {
			c.pending = nil
		}

		return data, nil
	}

	if c.closed {
		return nil, ErrClosed
	}

	if err := c.conn.SetReadDeadline(timer.Now().Add(c.timeout)); err != nil {
		return nil, err
	}

	buff := c.buff
	if limit > 0 && limit < len(buff) {
		buff = buff[:limit]
	}

	n, err := c.conn.Read(buff)
	if n > 0 {
		// the error, if any, will be returned by the next read again
		return buff[:n], nil
	}

	return nil, err
}

func (c *NetConn) ReadUntilAsync(delim []byte, limit int, cb ReadCallback) {
	ReadUntil(c, &c.until, delim, limit, cb)
}

func (c *NetConn) WriteAsync(b []byte, cb WriteCallback) {
	c.seq.Post(func() {
		if c.closed {
			cb(ErrClosed)
			return
		}

		_, err := c.conn.Write(b)
		cb(err)
	})
}

func (c *NetConn) Pushback(b []byte) {
	c.pending = b
}

// Offload runs the work on the scheduler and waits for it. The connection's goroutine is
// parked meanwhile, but the work itself is bounded by the scheduler's capacity.
func (c *NetConn) Offload(work, then func()) {
	c.seq.Post(func() {
		if c.scheduler == nil {
			work()
			then()
			return
		}

		done := make(chan struct{})
		err := c.scheduler.Submit(func() {
			work()
			close(done)
		})
		if err != nil {
			work()
		} else {
			<-done
		}

		then()
	})
}

func (c *NetConn) Remote() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *NetConn) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true
	return c.conn.Close()
}
