package transport

import (
	"sync/atomic"

	"github.com/indigo-web/ember/config"
)

// Transport is a listener delivering accepted connections to the callback.
type Transport interface {
	Bind(addr string) error
	// Listen blocks until Stop is called or the listener fails.
	Listen(cfg config.NET, cb func(conn Conn)) error
	// Stop makes Listen return as soon as possible. Served connections are left alone.
	Stop()
	Close()
	// Wait blocks until all the served connections are done.
	Wait()
}

// Supervisor runs several transports at once. Once any of them fails, the rest are stopped.
type Supervisor struct {
	stopped *atomic.Bool
	ts      []boundTransport
	// stopch transfers whether to wait for the served connections.
	stopch chan bool
	done   chan struct{}
}

func NewSupervisor() Supervisor {
	return Supervisor{
		stopped: new(atomic.Bool),
		stopch:  make(chan bool),
		done:    make(chan struct{}),
	}
}

// Add binds the transport. On failure, all the transports bound so far are closed.
func (s *Supervisor) Add(addr string, transport Transport, cb func(Conn)) error {
	if err := transport.Bind(addr); err != nil {
		s.close()
		return err
	}

	s.ts = append(s.ts, boundTransport{
		cb: cb,
		t:  transport,
	})

	return nil
}

// Run blocks until either a transport fails or the supervisor is stopped.
func (s *Supervisor) Run(cfg config.NET) error {
	if len(s.ts) == 0 {
		return nil
	}

	errch := make(chan error)

	for _, t := range s.ts {
		go func(t boundTransport) {
			errch <- t.t.Listen(cfg, t.cb)
		}(t)
	}

	select {
	case err := <-errch:
		s.stop(true)
		drain(errch, len(s.ts)-1)

		return err
	case graceful := <-s.stopch:
		s.stop(graceful)
		drain(errch, len(s.ts))
		close(s.done)

		return nil
	}
}

// Stop closes the listeners without waiting for the served connections.
func (s *Supervisor) Stop() {
	s.shutdown(false)
}

// GracefulStop closes the listeners and waits until every served connection is done.
func (s *Supervisor) GracefulStop() {
	s.shutdown(true)
}

func (s *Supervisor) shutdown(graceful bool) {
	if s.stopped.Load() {
		return
	}

	s.stopch <- graceful
	<-s.done
}

func (s *Supervisor) stop(graceful bool) {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}

	for _, t := range s.ts {
		t.t.Stop()
	}

	for _, t := range s.ts {
		if graceful {
			t.t.Wait()
		}

		t.t.Close()
	}
}

func (s *Supervisor) close() {
	for _, t := range s.ts {
		t.t.Close()
	}
}

type boundTransport struct {
	cb func(conn Conn)
	t  Transport
}

func drain(ch <-chan error, n int) {
	for range n {
		<-ch
	}
}
