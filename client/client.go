// Package client implements a minimal HTTP/1 client driven by the same asynchronous
// transport the server uses.
package client

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/indigo-web/ember/config"
	"github.com/indigo-web/ember/http/method"
	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/internal/protocol/http1"
	"github.com/indigo-web/ember/transport"
	"github.com/rs/zerolog"
)

var (
	ErrBodyTooLarge = errors.New("client: response body exceeds the limit")
	errIncomplete   = errors.New("client: incomplete response head")
)

var headTerminator = []byte("\r\n\r\n")

type Client struct {
	cfg    *config.Config
	dialer net.Dialer
	log    zerolog.Logger
}

func New(cfg *config.Config, log zerolog.Logger) *Client {
	return &Client{cfg: cfg, log: log}
}

// Do sends the request over a fresh connection to addr and reads the response. The
// connection is closed afterwards.
func (c *Client) Do(ctx context.Context, addr string, request *Request) (*Response, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		// unblocks the pending read or write
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	ex := newExchange(c.cfg, request, addr)
	transport.NewNetConn(conn, c.cfg.NET, nil).Serve(ex.Start)

	if ex.err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		c.log.Debug().Err(ex.err).Str("addr", addr).Msg("request failed")
		return nil, ex.err
	}

	return ex.response, nil
}

// Do is Client.Do with the default config and no logging.
func Do(ctx context.Context, addr string, request *Request) (*Response, error) {
	return New(config.Default(), zerolog.Nop()).Do(ctx, addr, request)
}

// exchange writes a single request and reads the response, entirely in callbacks.
type exchange struct {
	cfg      *config.Config
	conn     transport.Conn
	request  *Request
	host     string
	buff     []byte
	head     http1.Response
	parser   *http1.ResponseParser
	chunked  http1.ChunkedDecoder
	left     int64
	body     []byte
	response *Response
	err      error
}

func newExchange(cfg *config.Config, request *Request, host string) *exchange {
	e := &exchange{
		cfg:     cfg,
		request: request,
		host:    host,
	}
	e.parser = http1.NewResponseParser(cfg, &e.head)

	return e
}

func (e *exchange) Start(conn transport.Conn) {
	e.conn = conn
	e.buff = appendRequest(e.buff[:0], e.request, e.host)
	conn.WriteAsync(e.buff, func(err error) {
		if err != nil {
			e.fail(err)
			return
		}

		e.readHead()
	})
}

func (e *exchange) readHead() {
	limit := e.cfg.URI.RequestLineSize.Maximal + e.cfg.Headers.Space.Maximal
	e.conn.ReadUntilAsync(headTerminator, limit, e.onHead)
}

func (e *exchange) onHead(data []byte, err error) {
	if err != nil {
		e.fail(err)
		return
	}

	done, extra, err := e.parser.Feed(data)
	switch {
	case err != nil:
		e.fail(err)
		return
	case !done:
		e.fail(errIncomplete)
		return
	}

	if len(extra) > 0 {
		e.conn.Pushback(extra)
	}

	head := &e.head
	if head.Code >= 100 && head.Code < 200 && head.Code != status.SwitchingProtocols {
		// interim responses, like 100 Continue, are skipped
		e.readHead()
		return
	}

	e.response = &Response{
		Protocol:      head.Protocol,
		Code:          head.Code,
		Status:        strings.Clone(head.Status),
		Headers:       cloneHeaders(head.Headers),
		ContentLength: head.ContentLength,
		Encoding:      strings.Clone(head.Encoding),
	}

	switch {
	case e.request.Method == method.HEAD, head.Code < 200,
		head.Code == status.NoContent, head.Code == status.NotModified:
		e.finish()
	case head.Chunked:
		e.chunked.Reset()
		e.readBody()
	case head.ContentLength == 0:
		e.finish()
	default:
		e.left = head.ContentLength
		e.readBody()
	}
}

func (e *exchange) readBody() {
	e.conn.ReadAsync(e.cfg.NET.ReadBufferSize, e.onBody)
}

func (e *exchange) onBody(data []byte, err error) {
	untilClose := !e.head.Chunked && e.head.ContentLength < 0

	if err != nil {
		if untilClose && errors.Is(err, io.EOF) {
			e.finish()
			return
		}

		e.fail(err)
		return
	}

	var done bool
	switch {
	case e.head.Chunked:
		decoded, _, finished, err := e.chunked.Decode(data)
		if err != nil {
			e.fail(err)
			return
		}

		data, done = data[:decoded], finished
	case untilClose:
	default:
		n := min(int64(len(data)), e.left)
		data = data[:n]
		e.left -= n
		done = e.left == 0
	}

	e.body = append(e.body, data...)
	if uint64(len(e.body)) > e.cfg.Body.MaxSize {
		e.fail(ErrBodyTooLarge)
		return
	}

	if done {
		e.finish()
		return
	}

	e.readBody()
}

func (e *exchange) finish() {
	e.response.Body = e.body
	_ = e.conn.Close()
}

func (e *exchange) fail(err error) {
	e.err = err
	_ = e.conn.Close()
}
