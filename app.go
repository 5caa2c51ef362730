// Package ember is an embeddable HTTP/1.x server. App binds the listeners, wires the
// protocol engine to them and manages their lifetime.
package ember

import (
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/indigo-web/ember/config"
	"github.com/indigo-web/ember/http/codec"
	"github.com/indigo-web/ember/internal/address"
	"github.com/indigo-web/ember/internal/protocol/http1"
	"github.com/indigo-web/ember/metrics"
	"github.com/indigo-web/ember/router"
	"github.com/indigo-web/ember/session"
	"github.com/indigo-web/ember/transport"
	"github.com/indigo-web/ember/transport/eventloop"
	"github.com/rs/zerolog"
)

type transportConstructor func(scheduler transport.Scheduler) (transport.Transport, error)

type listener struct {
	addr        string
	kind        string
	constructor transportConstructor
}

type App struct {
	cfg        *config.Config
	log        *zerolog.Logger
	codecs     []codec.Codec
	sessions   *session.Store
	metrics    *metrics.Metrics
	listeners  []listener
	hooks      hooks
	supervisor transport.Supervisor
}

// New returns an App listening on addr over plain TCP.
func New(addr string) *App {
	a := &App{
		cfg:        config.Default(),
		codecs:     codec.Default(),
		supervisor: transport.NewSupervisor(),
	}

	return a.Listen(addr)
}

// Tune replaces the default config.
func (a *App) Tune(cfg *config.Config) *App {
	a.cfg = cfg
	return a
}

// Logger replaces the default console logger.
func (a *App) Logger(log zerolog.Logger) *App {
	a.log = &log
	return a
}

// Codecs replaces the set of compression codecs. The order defines the server's preference
// for routes listing none.
func (a *App) Codecs(codecs ...codec.Codec) *App {
	a.codecs = codecs
	return a
}

// Sessions enables sessions for routes asking for them.
func (a *App) Sessions(store *session.Store) *App {
	a.sessions = store
	return a
}

func (a *App) Metrics(m *metrics.Metrics) *App {
	a.metrics = m
	return a
}

// NotifyOnStart calls the callback once all the listeners are bound.
func (a *App) NotifyOnStart(cb func()) *App {
	a.hooks.OnStart = cb
	return a
}

// NotifyOnStop calls the callback once all the listeners are down.
func (a *App) NotifyOnStop(cb func()) *App {
	a.hooks.OnStop = cb
	return a
}

// Listen adds a plain TCP listener. Every connection is served by its own goroutine.
func (a *App) Listen(addr string) *App {
	return a.listen(addr, "tcp", func(scheduler transport.Scheduler) (transport.Transport, error) {
		return transport.NewTCP(scheduler), nil
	})
}

// EventLoop adds a plain listener driven by event loops instead of goroutines.
func (a *App) EventLoop(addr string) *App {
	return a.listen(addr, "eventloop", func(scheduler transport.Scheduler) (transport.Transport, error) {
		return eventloop.New(scheduler), nil
	})
}

// HTTPS adds a TLS listener using the certificate and the key from the files.
func (a *App) HTTPS(addr, cert, key string) *App {
	return a.listen(addr, "https", func(scheduler transport.Scheduler) (transport.Transport, error) {
		certificate, err := tls.LoadX509KeyPair(cert, key)
		if err != nil {
			return nil, fmt.Errorf("ember: https: %w", err)
		}

		return transport.NewTLS(&tls.Config{Certificates: []tls.Certificate{certificate}}, scheduler), nil
	})
}

// AutoHTTPS adds a TLS listener with certificates obtained via ACME. On localhost, a
// self-signed certificate is generated instead.
func (a *App) AutoHTTPS(addr string, domains ...string) *App {
	return a.listen(addr, "https", func(scheduler transport.Scheduler) (transport.Transport, error) {
		cfg, err := autoTLSConfig(addr, domains, a.logger())
		if err != nil {
			return nil, fmt.Errorf("ember: auto https: %w", err)
		}

		return transport.NewTLS(cfg, scheduler), nil
	})
}

func (a *App) listen(addr, kind string, constructor transportConstructor) *App {
	a.listeners = append(a.listeners, listener{
		addr:        address.Normalize(addr),
		kind:        kind,
		constructor: constructor,
	})

	return a
}

// Serve compiles the router, binds all the listeners and blocks until the App is stopped
// or any listener fails.
func (a *App) Serve(r *router.MapRouter) error {
	log := a.logger()

	if err := r.Compile(); err != nil {
		return err
	}

	pool, err := transport.NewPool(a.cfg.Gateway.Workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	transports := make([]transport.Transport, len(a.listeners))
	for i, l := range a.listeners {
		if transports[i], err = l.constructor(pool); err != nil {
			return err
		}
	}

	cb := http1.Serve(&http1.Env{
		Config:   a.cfg,
		Router:   r,
		Codecs:   a.codecs,
		Sessions: a.sessions,
		Log:      log,
		Metrics:  a.metrics,
	})

	for i, l := range a.listeners {
		if err = a.supervisor.Add(l.addr, transports[i], cb); err != nil {
			return fmt.Errorf("ember: bind %s: %w", l.addr, err)
		}

		log.Info().Str("addr", l.addr).Str("transport", l.kind).Msg("listening")
	}

	callIfNotNil(a.hooks.OnStart)
	err = a.supervisor.Run(a.cfg.NET)
	if err != nil {
		log.Error().Err(err).Msg("listener failed")
	} else {
		log.Info().Msg("stopped")
	}

	callIfNotNil(a.hooks.OnStop)
	return err
}

// Stop closes the listeners and breaks the served connections. Blocks until done.
func (a *App) Stop() {
	a.supervisor.Stop()
}

// GracefulStop closes the listeners and waits for the served connections to finish.
func (a *App) GracefulStop() {
	a.supervisor.GracefulStop()
}

func (a *App) logger() zerolog.Logger {
	if a.log == nil {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}).
			Level(a.cfg.Log.Level).
			With().Timestamp().
			Logger()
		a.log = &log
	}

	return *a.log
}

type hooks struct {
	OnStart, OnStop func()
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}
