package eventloop

import (
	"io"
	"net"
	"sync/atomic"

	"github.com/indigo-web/ember/internal/timer"
	"github.com/indigo-web/ember/transport"
	"github.com/panjf2000/gnet/v2"
)

var _ transport.Conn = new(conn)

// conn lives on its event loop. Everything except lastActive is touched only from there:
// gnet runs the callbacks of a connection, its write completions and wakeups on the loop
// owning it.
type conn struct {
	gc         gnet.Conn
	scheduler  transport.Scheduler
	seq        transport.Sequence
	inbox      []byte
	offset     int
	pending    []byte
	until      []byte
	waiting    func()
	inflight   int
	closed     bool
	closeErr   error
	lastActive atomic.Int64
}

func newConn(gc gnet.Conn, scheduler transport.Scheduler) *conn {
	c := &conn{
		gc:        gc,
		scheduler: scheduler,
	}
	c.touch()

	return c
}

func (c *conn) touch() {
	c.lastActive.Store(timer.Now().UnixMilli())
}

// post runs the task on the connection's sequence. Once the sequence drains without anything
// left to wait for, the handler abandoned the connection, so it's closed.
func (c *conn) post(task func()) {
	c.seq.Post(task)
	if c.seq.Idle() && c.waiting == nil && c.inflight == 0 && !c.closed {
		_ = c.Close()
	}
}

func (c *conn) onTraffic() {
	data, _ := c.gc.Next(-1)
	if len(data) == 0 {
		return
	}

	c.touch()
	c.inbox = append(c.inbox, data...)
	c.wakeReader()
}

func (c *conn) onClose(err error) {
	c.closed = true
	c.closeErr = err
	c.wakeReader()
}

func (c *conn) wakeReader() {
	if c.waiting != nil {
		w := c.waiting
		c.waiting = nil
		c.post(w)
	}
}

func (c *conn) ReadAsync(limit int, cb transport.ReadCallback) {
	c.post(func() {
		c.tryRead(limit, cb)
	})
}

func (c *conn) tryRead(limit int, cb transport.ReadCallback) {
	if len(c.pending) > 0 {
		data := c.pending
		if limit > 0 && len(data) > limit {
			data, c.pending = data[:limit], data[limit:]
		} else {
			c.pending = nil
		}

		cb(data, nil)
		return
	}

	if c.offset == len(c.inbox) {
		c.inbox, c.offset = c.inbox[:0], 0
	}

	if c.offset < len(c.inbox) {
		end := len(c.inbox)
		if limit > 0 {
			end = min(end, c.offset+limit)
		}

		data := c.inbox[c.offset:end]
		c.offset = end
		cb(data, nil)
		return
	}

	if c.closed {
		err := c.closeErr
		if err == nil {
			err = io.EOF
		}

		cb(nil, err)
		return
	}

	c.waiting = func() {
		c.tryRead(limit, cb)
	}
}

func (c *conn) ReadUntilAsync(delim []byte, limit int, cb transport.ReadCallback) {
	transport.ReadUntil(c, &c.until, delim, limit, cb)
}

func (c *conn) WriteAsync(b []byte, cb transport.WriteCallback) {
	c.post(func() {
		if c.closed {
			cb(transport.ErrClosed)
			return
		}

		c.inflight++
		err := c.gc.AsyncWrite(b, func(_ gnet.Conn, err error) error {
			c.inflight--
			c.post(func() {
				cb(err)
			})

			return nil
		})
		if err != nil {
			c.inflight--
			cb(err)
		}
	})
}

func (c *conn) Pushback(b []byte) {
	c.pending = b
}

func (c *conn) Offload(work, then func()) {
	c.post(func() {
		if c.scheduler == nil {
			work()
			then()
			return
		}

		c.inflight++
		err := c.scheduler.Submit(func() {
			work()
			// the wakeup callback is executed on the loop owning the connection
			_ = c.gc.Wake(func(_ gnet.Conn, _ error) error {
				c.inflight--
				c.post(then)
				return nil
			})
		})
		if err != nil {
			c.inflight--
			work()
			then()
		}
	})
}

func (c *conn) Remote() net.Addr {
	return c.gc.RemoteAddr()
}

func (c *conn) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true
	return c.gc.Close()
}
