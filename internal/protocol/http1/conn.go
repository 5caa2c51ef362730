package http1

import (
	"errors"
	"io"
	"strings"

	"github.com/indigo-web/ember/config"
	"github.com/indigo-web/ember/gateway"
	"github.com/indigo-web/ember/http"
	"github.com/indigo-web/ember/http/codec"
	"github.com/indigo-web/ember/http/method"
	"github.com/indigo-web/ember/http/proto"
	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/kv"
	"github.com/indigo-web/ember/metrics"
	"github.com/indigo-web/ember/router"
	"github.com/indigo-web/ember/session"
	"github.com/indigo-web/ember/transport"
	"github.com/indigo-web/ember/websocket"
	"github.com/rs/zerolog"
)

var errMisdirected = status.NewError(status.MisdirectedRequest, "no site serves the host")

// Env is shared by all the connections of a server. It must not be modified once serving
// started.
type Env struct {
	Config   *config.Config
	Router   *router.MapRouter
	Codecs   []codec.Codec
	Sessions *session.Store
	Log      zerolog.Logger
	Metrics  *metrics.Metrics
}

// Serve returns the callback accepting connections from transports.
func Serve(env *Env) func(transport.Conn) {
	return func(conn transport.Conn) {
		NewConnection(env, conn).Start()
	}
}

// Connection drives a single client connection: it reads requests, runs them through the
// matched route and writes the responses back. Every method is called on the connection's
// callback sequence.
type Connection struct {
	env      *Env
	cfg      *config.Config
	conn     transport.Conn
	log      zerolog.Logger
	request  *http.Request
	response *http.Response
	parser   *RequestParser
	ser      serializer
	codecs   *codec.Cache
	site     *router.SiteEntry
	route    *router.RouteEntry

	chunked   ChunkedDecoder
	memory    memorySink
	sink      bodySink
	bodyLeft  int64
	bodyRead  uint64
	bodyLimit uint64

	ranges     []Range
	rangeBody  []byte
	compressed []byte
	errorBody  []byte
	stream     fileStream

	served   int
	closing  bool
	broken   bool
	released bool

	ws *websocket.Frame
	gw *gateway.Frame
}

func NewConnection(env *Env, conn transport.Conn) *Connection {
	cfg := env.Config
	response := http.NewResponse()
	request := http.NewRequest(kv.NewPrealloc(cfg.Headers.Number.Default), response, nil)

	c := &Connection{
		env:      env,
		cfg:      cfg,
		conn:     conn,
		request:  request,
		response: response,
		parser:   NewRequestParser(cfg, request),
		ser: newSerializer(
			make([]byte, 0, cfg.NET.ReadBufferSize), cfg.Headers.Default, cfg.HTTP.ServerName,
		),
		codecs: codec.NewCache(env.Codecs),
	}

	c.log = env.Log
	if remote := conn.Remote(); remote != nil {
		c.log = env.Log.With().Str("remote", remote.String()).Logger()
	}
	c.memory.request = request

	return c
}

// Start begins serving the connection.
func (c *Connection) Start() {
	c.env.Metrics.ConnectionOpened()
	c.readHead()
}

func (c *Connection) readHead() {
	c.conn.ReadAsync(c.cfg.NET.ReadBufferSize, c.onHead)
}

func (c *Connection) onHead(data []byte, err error) {
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, transport.ErrClosed) {
			c.log.Debug().Err(err).Msg("read failed")
		}

		c.release()
		return
	}

	done, extra, err := c.parser.Feed(data)
	if !done {
		c.readHead()
		return
	}

	if len(extra) > 0 {
		c.conn.Pushback(extra)
	}

	if err != nil {
		c.env.Metrics.ParseError()
		c.log.Debug().Err(err).Msg("bad request")
		c.closing = true
		c.finish(c.request.Respond().Error(err))
		return
	}

	c.dispatch()
}

func (c *Connection) dispatch() {
	request := c.request
	request.Remote = c.conn.Remote()
	c.site, c.route = c.env.Router.Match(request.Host, request.Path, request.Vars)
	route := c.route

	switch {
	case c.site == nil:
		c.refuse(request.Respond().Error(errMisdirected))
		return
	case route == nil:
		c.refuse(request.Respond().Error(status.ErrNotFound))
		return
	case !route.Methods.Has(request.Method):
		c.refuse(request.Respond().
			Error(status.ErrMethodNotAllowed).
			SetHeader("Allow", route.Methods.String()))
		return
	case route.Auth != nil && !route.Auth.Authorize(request.Headers):
		c.refuse(request.Respond().
			Error(status.ErrUnauthorized).
			SetHeader("WWW-Authenticate", route.Auth.Challenge()))
		return
	case route.WebSocket != nil && strings.EqualFold(request.Upgrade, "websocket"):
		c.upgrade()
		return
	}

	c.bodyLimit = c.cfg.Body.MaxSize
	if route.MaxBodySize > 0 {
		c.bodyLimit = min(c.bodyLimit, route.MaxBodySize)
	}

	if request.ContentLength > 0 && uint64(request.ContentLength) > c.bodyLimit {
		request.Transition(http.PayloadExceeded)
		c.closing = true
		c.finish(request.Respond().Error(status.ErrBodyTooLarge))
		return
	}

	c.readBody()
}

// refuse responds without consuming the body. The connection can't be reused if there
// was one, as the next request's boundary is unknown.
func (c *Connection) refuse(response *http.Response) {
	if c.request.Chunked || c.request.ContentLength > 0 {
		c.closing = true
	}

	c.finish(response)
}

func (c *Connection) readBody() {
	request := c.request
	if !request.Chunked && request.ContentLength <= 0 {
		request.Transition(http.Empty)
		c.handle()
		return
	}

	c.memory.buff = c.memory.buff[:0]
	c.sink = &c.memory
	if boundary, ok := Boundary(request.ContentType); ok {
		c.sink = newPartsSink(
			request, boundary, c.route.UploadDir, c.cfg.Body.InMemory, c.cfg.Body.UploadBufferSize,
		)
	}

	c.bodyLeft = request.ContentLength
	c.bodyRead = 0
	c.chunked.Reset()
	c.conn.ReadAsync(c.cfg.NET.ReadBufferSize, c.onBody)
}

func (c *Connection) onBody(data []byte, err error) {
	if err != nil {
		c.log.Debug().Err(err).Msg("connection lost while receiving the body")
		c.sink.abort()
		c.request.Transition(http.Lost)
		c.release()
		return
	}

	done, err := c.consume(data)
	if err == nil && done {
		err = c.sink.end()
	}

	switch {
	case err != nil:
		c.bodyFailed(err)
	case done:
		c.handle()
	default:
		c.conn.ReadAsync(c.cfg.NET.ReadBufferSize, c.onBody)
	}
}

func (c *Connection) consume(data []byte) (done bool, err error) {
	if c.request.Chunked {
		decoded, consumed, finished, err := c.chunked.Decode(data)
		if err != nil {
			return false, err
		}

		if finished && consumed < len(data) {
			c.conn.Pushback(data[consumed:])
		}

		data, done = data[:decoded], finished
	} else {
		n := min(int64(len(data)), c.bodyLeft)
		if int(n) < len(data) {
			c.conn.Pushback(data[n:])
		}

		data = data[:n]
		c.bodyLeft -= n
		done = c.bodyLeft == 0
	}

	c.bodyRead += uint64(len(data))
	if c.bodyRead > c.bodyLimit {
		return false, status.ErrBodyTooLarge
	}

	if len(data) > 0 {
		err = c.sink.write(data)
	}

	return done, err
}

func (c *Connection) bodyFailed(err error) {
	c.sink.abort()
	state, httpErr := bodyState(err)
	c.request.Transition(state)
	c.closing = true
	if state == http.SaveException {
		c.log.Warn().Err(err).Msg("failed to store the upload")
	} else {
		c.log.Debug().Err(err).Str("state", state.String()).Msg("body rejected")
	}

	c.finish(c.request.Respond().Error(httpErr))
}

func (c *Connection) handle() {
	request, route := c.request, c.route

	if route.Sessions && c.env.Sessions != nil {
		if err := c.loadSession(); err != nil {
			c.log.Warn().Err(err).Msg("failed to load the session")
			c.complete(request.Respond().Error(status.ErrInternalServerError))
			return
		}
	}

	if route.Handler != nil {
		c.complete(route.Handler(request))
		return
	}

	c.serveStatic()
}

func (c *Connection) loadSession() error {
	var id string
	if jar, err := c.request.Cookies(); err == nil {
		id = jar.Value(session.CookieName)
	}

	sess, err := c.env.Sessions.Load(id)
	if err != nil {
		return err
	}

	c.request.Session = sess
	return nil
}

func (c *Connection) serveStatic() {
	request, route := c.request, c.route
	file, err := route.Resolve(request.Path)
	if err != nil {
		c.complete(request.Respond().Error(err))
		return
	}

	if route.IsGateway(file) {
		c.gw = gateway.NewFrame(c.conn, c.cfg.Gateway, route.Script, c.log)
		c.gw.Run(request, file, func(response *http.Response) {
			c.gw = nil
			c.complete(response)
		})
		return
	}

	if request.Method != method.GET && request.Method != method.HEAD {
		c.complete(request.Respond().
			Error(status.ErrMethodNotAllowed).
			SetHeader("Allow", method.NewSet(method.GET, method.HEAD).String()))
		return
	}

	response := request.Respond().File(file, c.cfg.HTTP.FileBufferThreshold)
	if fields := response.Reveal(); fields.Code == status.OK {
		fields.ContentType = route.MIMEOf(file)
		size := int64(len(fields.Body))
		if fields.Streamed() {
			size = fields.FileSize
		}

		fields.ETag = etag(fields.LastModified.UnixNano(), size)
	}

	c.complete(response)
}

// complete persists the session, if any, and finishes the response.
func (c *Connection) complete(response *http.Response) {
	if response == nil {
		response = c.request.Respond()
	}

	if sess := c.request.Session; sess != nil {
		if err := c.env.Sessions.Save(sess); err != nil {
			c.log.Warn().Err(err).Str("session", sess.ID).Msg("failed to save the session")
		} else if sess.Fresh {
			response.Cookie(c.env.Sessions.Cookie(sess))
		}
	}

	c.finish(response)
}

func (c *Connection) upgrade() {
	accept, protocol, err := websocket.Negotiate(c.request.Headers)
	if err != nil {
		response := c.request.Respond().Error(err)
		if errors.Is(err, websocket.ErrUnsupportedVersion) {
			response.SetHeader("Sec-WebSocket-Version", websocket.Version)
		}

		c.refuse(response)
		return
	}

	s := &c.ser
	s.reset()
	s.appendStatusLine(proto.HTTP11, status.SwitchingProtocols, "")
	s.appendKnownHeader("Upgrade: ", "websocket")
	s.appendKnownHeader("Connection: ", "Upgrade")
	s.appendKnownHeader("Sec-WebSocket-Accept: ", accept)
	if len(protocol) > 0 {
		s.appendKnownHeader("Sec-WebSocket-Protocol: ", protocol)
	}
	s.crlf()

	c.env.Metrics.Response(status.SwitchingProtocols, len(s.buff))
	c.conn.WriteAsync(s.buff, func(err error) {
		if err != nil {
			c.Break()
			return
		}

		c.ws = websocket.NewFrame(c.conn, c.cfg.WebSocket, c.route.WebSocket, c.log, c.env.Metrics).
			OnFree(c.release)
		c.ws.Protocol = protocol
		c.ws.Start()
	})
}

// next prepares the connection for the following request, or releases it.
func (c *Connection) next() {
	c.served++
	if c.closing {
		c.release()
		return
	}

	c.request.Reset()
	c.response.Clear()
	c.site, c.route, c.sink = nil, nil, nil
	c.readHead()
}

// Break abandons the connection after a transport failure. Nothing is written anymore.
func (c *Connection) Break() {
	c.broken = true
	if !c.request.ContentState().Terminal() {
		c.request.Transition(http.Lost)
	}

	c.release()
}

func (c *Connection) release() {
	if c.released {
		return
	}

	c.released = true
	c.stream.close()
	c.response.Clear()
	_ = c.conn.Close()
	c.env.Metrics.ConnectionClosed()
}
