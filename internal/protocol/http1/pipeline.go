package http1

import (
	"errors"
	"html"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/ember/http"
	"github.com/indigo-web/ember/http/codec"
	"github.com/indigo-web/ember/http/method"
	"github.com/indigo-web/ember/http/mime"
	"github.com/indigo-web/ember/http/proto"
	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/internal/response"
	"github.com/indigo-web/ember/internal/timer"
	"github.com/indigo-web/utils/strcomp"
)

const byterangesBoundaryLength = 24

// content describes what is going to be sent after the head.
type content struct {
	code        status.Code
	text        string
	contentType string
	body        []byte
	length      int64
	// offset is where the window of a streamed file begins.
	offset       int64
	streamed     bool
	encoding     string
	compressor   codec.Compressor
	contentRange []byte
}

// finish renders and writes the response, then moves on to the next request.
func (c *Connection) finish(resp *http.Response) {
	fields := resp.Reveal()
	if fields.Code == status.Silent || c.broken || c.released {
		c.release()
		return
	}

	if fields.Code >= 400 && !fields.Rendered {
		c.renderError(fields)
	}

	if !c.keepAlive() {
		c.closing = true
	}

	ct := c.negotiate(fields)
	c.writeHead(fields, &ct)

	bodyless := c.request.Method == method.HEAD || ct.code == status.NotModified ||
		ct.code < 200 || ct.code == status.NoContent

	if ct.streamed && !bodyless {
		c.stream.open(fields.File, ct.offset, ct.length, ct.compressor)
		fields.File = nil
		c.writeStreamHead(ct.code)
		return
	}

	if !bodyless {
		c.ser.buff = append(c.ser.buff, ct.body...)
	}

	c.env.Metrics.Response(ct.code, len(c.ser.buff))
	c.conn.WriteAsync(c.ser.buff, c.onWritten)
}

func (c *Connection) onWritten(err error) {
	if err != nil {
		c.log.Debug().Err(err).Msg("write failed")
		c.Break()
		return
	}

	c.next()
}

// negotiate applies conditional requests, ranges and compression.
func (c *Connection) negotiate(fields *response.Fields) (ct content) {
	ct = content{
		code:        fields.Code,
		text:        fields.Status,
		contentType: fields.ContentType,
		body:        fields.Body,
		length:      int64(len(fields.Body)),
		streamed:    fields.Streamed(),
	}

	if ct.streamed {
		ct.length = fields.FileSize
	}

	if ct.code != status.OK {
		return ct
	}

	if c.notModified(fields) {
		ct.code, ct.text = status.NotModified, ""
		ct.body, ct.length, ct.streamed = nil, 0, false
		return ct
	}

	if value := c.request.Headers.Value("range"); len(value) > 0 && c.request.Method == method.GET {
		if c.applyRanges(&ct, value) {
			return ct
		}
	}

	c.compress(fields, &ct)
	return ct
}

// applyRanges reports whether the ranges were applied. Malformed Range headers are ignored
// and the whole content is sent.
func (c *Connection) applyRanges(ct *content, value string) bool {
	total := ct.length
	ranges, err := ParseRange(value, total, c.ranges[:0])
	c.ranges = ranges

	switch {
	case errors.Is(err, status.ErrRequestedRangeNotSatisfiable):
		ct.code, ct.text = status.RequestedRangeNotSatisfiable, ""
		ct.body, ct.length, ct.streamed = nil, 0, false
		ct.contentRange = AppendUnsatisfiedRange(nil, total)
		return true
	case err != nil:
		return false
	case len(ranges) == 1:
		r := ranges[0]
		ct.code, ct.text = status.PartialContent, ""
		ct.contentRange = AppendContentRange(nil, r, total)
		if ct.streamed {
			ct.offset = r.Offset
		} else {
			ct.body = ct.body[r.Offset : r.Offset+r.Length]
		}

		ct.length = r.Length
		return true
	case ct.streamed:
		// several windows of a file are served as a whole
		return false
	default:
		boundary := uniuri.NewLen(byterangesBoundaryLength)
		c.rangeBody = AppendByteRanges(c.rangeBody[:0], ct.body, ranges, ct.contentType, boundary)
		ct.code, ct.text = status.PartialContent, ""
		ct.body, ct.length = c.rangeBody, int64(len(c.rangeBody))
		ct.contentType = mime.ByteRanges + "; boundary=" + boundary
		return true
	}
}

func (c *Connection) notModified(fields *response.Fields) bool {
	headers := c.request.Headers

	if match, found := headers.Get("if-none-match"); found {
		return len(fields.ETag) > 0 && etagMatches(match, fields.ETag)
	}

	since, found := headers.Get("if-modified-since")
	if !found || fields.LastModified.IsZero() {
		return false
	}

	t, err := timer.ParseHTTP(since)
	return err == nil && !fields.LastModified.Truncate(1e9).After(t)
}

func etagMatches(header, etag string) bool {
	for header != "" {
		var candidate string
		candidate, header, _ = strings.Cut(header, ",")
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}

	return false
}

func etag(modtime, size int64) string {
	buff := make([]byte, 0, 36)
	buff = append(buff, '"')
	buff = strconv.AppendInt(buff, modtime, 16)
	buff = append(buff, '-')
	buff = strconv.AppendInt(buff, size, 16)
	return string(append(buff, '"'))
}

// compress picks the coding both the route and the client agree on. Buffered bodies are
// compressed straight away, falling back to identity on failure. Streamed ones are
// compressed chunk by chunk later.
func (c *Connection) compress(fields *response.Fields, ct *content) {
	route := c.route
	if route == nil || fields.Headers.Has("content-encoding") {
		return
	}

	name := fields.Filename
	if len(name) == 0 {
		name = c.request.Path
	}

	policy := route.Compression
	if !policy.Eligible(name, int(ct.length)) {
		return
	}

	tokens := policy.Codecs
	if len(tokens) == 0 {
		tokens = c.codecs.Tokens()
	}

	params := codec.Params{
		Level:      policy.Level,
		WindowBits: policy.WindowBits,
		MemLevel:   policy.MemLevel,
	}

	for _, token := range tokens {
		if !accepts(c.request.AcceptEncoding, token) {
			continue
		}

		compressor, err := c.codecs.Get(token, params)
		if err != nil || compressor == nil {
			c.log.Debug().Err(err).Str("coding", token).Msg("compressor unavailable")
			continue
		}

		if ct.streamed {
			ct.encoding, ct.compressor = token, compressor
			return
		}

		out, err := codec.Compress(compressor, c.compressed[:0], ct.body)
		if err != nil {
			c.log.Debug().Err(err).Str("coding", token).Msg("compression failed")
			return
		}

		c.compressed = out
		ct.body, ct.length, ct.encoding = out, int64(len(out)), token
		return
	}
}

func accepts(tokens []string, coding string) bool {
	for _, token := range tokens {
		if token == "*" || strcomp.EqualFold(token, coding) {
			return true
		}
	}

	return false
}

func (c *Connection) keepAlive() bool {
	if c.closing {
		return false
	}

	limit := c.cfg.HTTP.KeepAliveMaxCount
	if limit == 0 || c.served+1 >= limit {
		return false
	}

	connection := c.request.Connection
	if hasToken(connection, "close") {
		return false
	}

	if c.request.Protocol == proto.HTTP10 {
		return hasToken(connection, "keep-alive")
	}

	return true
}

func hasToken(value, token string) bool {
	for value != "" {
		var t string
		t, value, _ = strings.Cut(value, ",")
		if strcomp.EqualFold(strings.TrimSpace(t), token) {
			return true
		}
	}

	return false
}

// renderError replaces the body by the error document of the site, or by a minimal page.
func (c *Connection) renderError(fields *response.Fields) {
	if fields.File != nil {
		_ = fields.File.Close()
		fields.File, fields.FileSize = nil, 0
	}

	fields.LastModified, fields.ETag = time.Time{}, ""
	fields.Rendered = true

	if page, found := c.site.ErrorPage(c.route, fields.Code); found {
		body, err := os.ReadFile(page)
		if err == nil {
			fields.Body = body
			fields.ContentType = mime.Resolve(page, nil)
			return
		}

		c.log.Warn().Err(err).Str("page", page).Msg("error page is unavailable")
	}

	text := fields.Status
	if len(text) == 0 {
		text = status.Text(fields.Code)
	}

	text = html.EscapeString(text)

	code := strconv.Itoa(int(fields.Code))
	buff := c.errorBody[:0]
	buff = append(buff, "<!DOCTYPE html><html><head><title>"...)
	buff = append(buff, code...)
	buff = append(buff, ' ')
	buff = append(buff, text...)
	buff = append(buff, "</title></head><body><h1>"...)
	buff = append(buff, code...)
	buff = append(buff, ' ')
	buff = append(buff, text...)
	buff = append(buff, "</h1></body></html>"...)
	c.errorBody = buff

	fields.Body = buff
	fields.ContentType = mime.HTML
}

// writeHead renders the head in the following order: Date, Connection, Accept-Ranges,
// Content-Type, Content-Encoding, Content-Range, Content-Length or Transfer-Encoding,
// caching headers, CORS, route headers, handler headers, Set-Cookie and default headers.
func (c *Connection) writeHead(fields *response.Fields, ct *content) {
	s := &c.ser
	s.reset()

	text := ct.text
	if ct.code != fields.Code {
		text = ""
	}

	s.appendStatusLine(c.request.Protocol, ct.code, text)
	s.appendHeader("Date", timer.Date())
	if c.closing {
		s.appendHeader("Connection", "close")
	} else {
		s.appendHeader("Connection", "keep-alive")
	}

	success := ct.code < 400
	if success && ct.code != status.NotModified {
		s.appendHeader("Accept-Ranges", "bytes")
	}

	if ct.code != status.NotModified {
		s.appendHeader("Content-Type", ct.contentType)
	}

	if len(ct.encoding) > 0 {
		s.appendHeader("Content-Encoding", ct.encoding)
		s.appendHeader("Vary", "Accept-Encoding")
	}

	if ct.contentRange != nil {
		s.appendKnownHeader("Content-Range: ", string(ct.contentRange))
	}

	switch {
	case ct.code == status.NotModified, ct.code < 200, ct.code == status.NoContent:
	case ct.streamed && ct.compressor != nil:
		s.appendKnownHeader("Transfer-Encoding: ", "chunked")
	default:
		s.appendContentLength(ct.length)
	}

	if success {
		c.appendCaching(fields)
	}

	c.appendCORS()

	if success && c.route != nil && c.route.Headers != nil {
		s.appendHeaders(c.route.Headers)
	}

	s.appendHeaders(fields.Headers)
	s.appendCookies(fields.Cookies)
	s.finalize()
}

func (c *Connection) appendCaching(fields *response.Fields) {
	s := &c.ser
	if c.route != nil && c.route.MaxAge > 0 {
		s.appendHeader("Cache-Control", "max-age="+strconv.FormatInt(int64(c.route.MaxAge.Seconds()), 10))
	}

	if !fields.LastModified.IsZero() {
		s.appendHeader("Last-Modified", timer.FormatHTTP(fields.LastModified))
	}

	if len(fields.ETag) > 0 {
		s.appendHeader("ETag", fields.ETag)
	}
}

func (c *Connection) appendCORS() {
	if c.route == nil {
		return
	}

	if origin, ok := c.route.AllowOrigin(c.request.Headers.Value("origin")); ok {
		c.ser.appendHeader("Access-Control-Allow-Origin", origin)
		c.ser.appendHeader("Vary", "Origin")
	}
}
