// Package eventloop implements the transport on top of gnet event loops. Connections aren't
// bound to goroutines, so it scales to large numbers of mostly idle clients.
package eventloop

import (
	"context"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indigo-web/ember/config"
	"github.com/indigo-web/ember/internal/timer"
	"github.com/indigo-web/ember/transport"
	"github.com/panjf2000/gnet/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

var _ transport.Transport = new(Engine)

// sweepPeriod is how often idle connections are looked for.
const sweepPeriod = time.Second

type Engine struct {
	gnet.BuiltinEventEngine
	addr      string
	cfg       config.NET
	scheduler transport.Scheduler
	cb        func(transport.Conn)
	conns     *xsync.MapOf[int, *conn]
	engine    gnet.Engine
	booted    chan struct{}
	stopped   atomic.Bool
	wg        sync.WaitGroup
}

func New(scheduler transport.Scheduler) *Engine {
	return &Engine{
		scheduler: scheduler,
		conns:     xsync.NewMapOf[int, *conn](xsync.WithPresize(1024)),
		booted:    make(chan struct{}),
	}
}

func (e *Engine) Bind(addr string) error {
	// gnet binds the socket by itself in Run, so only the address is validated here.
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}

	e.addr = addr
	return nil
}

func (e *Engine) Listen(cfg config.NET, cb func(transport.Conn)) error {
	e.cfg, e.cb = cfg, cb

	loops := cfg.EventLoops
	if loops <= 0 && cfg.Multicore {
		loops = runtime.NumCPU()
	}

	options := []gnet.Option{
		gnet.WithMulticore(cfg.Multicore),
		gnet.WithReusePort(true),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithReadBufferCap(cfg.ReadBufferSize),
		gnet.WithTicker(cfg.ReadTimeout > 0),
	}
	if loops > 0 {
		options = append(options, gnet.WithNumEventLoop(loops))
	}

	return gnet.Run(e, "tcp://"+e.addr, options...)
}

// Stop shuts the engine down. Unlike the TCP transport, gnet closes the served connections
// along with the listener.
func (e *Engine) Stop() {
	if !e.stopped.CompareAndSwap(false, true) {
		return
	}

	select {
	case <-e.booted:
		_ = e.engine.Stop(context.Background())
	default:
	}
}

func (*Engine) Close() {}

func (e *Engine) Wait() {
	e.wg.Wait()
}

// Active returns the number of currently open connections.
func (e *Engine) Active() int {
	return e.conns.Size()
}

func (e *Engine) OnBoot(eng gnet.Engine) gnet.Action {
	e.engine = eng
	close(e.booted)
	if e.stopped.Load() {
		return gnet.Shutdown
	}

	return gnet.None
}

func (e *Engine) OnOpen(gc gnet.Conn) ([]byte, gnet.Action) {
	c := newConn(gc, e.scheduler)
	gc.SetContext(c)
	e.conns.Store(gc.Fd(), c)
	e.wg.Add(1)

	c.post(func() {
		e.cb(c)
	})

	return nil, gnet.None
}

func (e *Engine) OnTraffic(gc gnet.Conn) gnet.Action {
	if c, ok := gc.Context().(*conn); ok {
		c.onTraffic()
	}

	return gnet.None
}

func (e *Engine) OnClose(gc gnet.Conn, err error) gnet.Action {
	if c, ok := gc.Context().(*conn); ok {
		e.conns.Delete(gc.Fd())
		c.onClose(err)
		e.wg.Done()
	}

	return gnet.None
}

// OnTick closes connections that stayed silent for longer than the read timeout.
func (e *Engine) OnTick() (time.Duration, gnet.Action) {
	deadline := timer.Now().Add(-e.cfg.ReadTimeout).UnixMilli()
	e.conns.Range(func(_ int, c *conn) bool {
		if c.lastActive.Load() < deadline {
			_ = c.gc.Close()
		}

		return true
	})

	return sweepPeriod, gnet.None
}
