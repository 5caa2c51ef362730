package http1

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/indigo-web/ember/config"
	"github.com/indigo-web/ember/http"
	"github.com/indigo-web/ember/http/method"
	"github.com/indigo-web/ember/http/proto"
	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/internal/uridecode"
	"github.com/indigo-web/ember/kv"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
)

// headAccumulator collects fragments until the whole head is present. Once the boundary is
// found, the head is tokenized at once, so the results are identical for any fragmentation.
type headAccumulator struct {
	buff    []byte
	limit   int
	scanned int
	done    bool
}

// feed returns the complete head (if any) and the part of data following it.
func (h *headAccumulator) feed(data []byte) (head, extra []byte, overflow bool) {
	if h.done {
		h.buff = h.buff[:0]
		h.scanned = 0
		h.done = false
	}

	if len(h.buff) == 0 {
		data = skipLeadingEmptyLines(data)
	}

	prev := len(h.buff)
	h.buff = append(h.buff, data...)
	boundary := HeaderBoundary(h.buff[h.scanned:])
	if boundary == -1 {
		// the terminator is at most 4 bytes long, so it may start up to 3 bytes before the
		// end of what was already scanned.
		h.scanned = max(0, len(h.buff)-3)
		if len(h.buff) > h.limit {
			return nil, nil, true
		}

		return nil, nil, false
	}

	boundary += h.scanned
	if boundary > h.limit {
		return nil, nil, true
	}

	h.done = true
	extra = data[boundary-prev:]
	h.buff = h.buff[:boundary]

	return h.buff, extra, false
}

func skipLeadingEmptyLines(data []byte) []byte {
	for len(data) > 0 && (data[0] == '\r' || data[0] == '\n') {
		data = data[1:]
	}

	return data
}

// RequestParser fills the request from the incoming byte stream.
type RequestParser struct {
	cfg        *config.Config
	request    *http.Request
	acc        headAccumulator
	head       RequestHead
	decodeBuff []byte
	pathBuff   []byte
}

func NewRequestParser(cfg *config.Config, request *http.Request) *RequestParser {
	return &RequestParser{
		cfg:     cfg,
		request: request,
		acc: headAccumulator{
			buff:  make([]byte, 0, cfg.URI.RequestLineSize.Default+cfg.Headers.Space.Default),
			limit: cfg.URI.RequestLineSize.Maximal + cfg.Headers.Space.Maximal,
		},
		head: RequestHead{
			Headers: make([]Header, 0, cfg.Headers.Number.Default),
		},
		decodeBuff: make([]byte, 0, cfg.URI.RequestLineSize.Default),
		pathBuff:   make([]byte, 0, cfg.URI.RequestLineSize.Default),
	}
}

// Feed consumes the next fragment. done is set once the whole head was parsed, in which
// case extra holds the bytes following it (the beginning of the body or of the next request).
func (p *RequestParser) Feed(data []byte) (done bool, extra []byte, err error) {
	raw, extra, overflow := p.acc.feed(data)
	if overflow {
		p.acc.done = true
		if bytes.IndexByte(p.acc.buff, '\n') == -1 {
			return true, nil, status.ErrURITooLong
		}

		return true, nil, status.ErrHeaderFieldsTooLarge
	}

	if raw == nil {
		return false, nil, nil
	}

	p.head.Headers = p.head.Headers[:0]
	if _, err = ParseRequest(raw, &p.head); err != nil {
		return true, extra, status.ErrBadRequest
	}

	return true, extra, p.fill()
}

func (p *RequestParser) fill() error {
	request, head := p.request, &p.head

	if len(head.Path)+len(head.Query) > p.cfg.URI.RequestLineSize.Maximal {
		return status.ErrURITooLong
	}

	request.Protocol = proto.FromMinor(head.Minor)
	if request.Protocol == proto.Unknown {
		return status.ErrHTTPVersionNotSupported
	}

	request.Method = method.Parse(uf.B2S(head.Method))
	if request.Method == method.Unknown {
		return status.ErrNotImplemented
	}

	request.URI = uf.B2S(head.Path)
	if head.Query != nil {
		// the query directly follows the path and the question mark in the same buffer
		request.URI = uf.B2S(head.Path[:len(head.Path)+1+len(head.Query)])
	}
	request.Query = uf.B2S(head.Query)

	decoded, err := uridecode.Decode(head.Path, p.decodeBuff[:0])
	if err != nil {
		return err
	}

	p.pathBuff = uridecode.ConstructPath(p.pathBuff[:0], decoded)
	request.Path = uf.B2S(p.pathBuff)

	if len(head.Headers) > p.cfg.Headers.Number.Maximal {
		return status.ErrTooManyHeaders
	}

	return applyHeaders(p.cfg, request, head.Headers)
}

func applyHeaders(cfg *config.Config, request *http.Request, headers []Header) error {
	for _, header := range headers {
		key, value := uf.B2S(header.Name), uf.B2S(header.Value)
		request.Headers.Add(key, value)

		switch {
		case strcomp.EqualFold(key, "content-length"):
			length, err := parseContentLength(value)
			if err != nil {
				return err
			}

			if request.ContentLength != -1 && request.ContentLength != length {
				return status.ErrBadContentLength
			}

			request.ContentLength = length
		case strcomp.EqualFold(key, "transfer-encoding"):
			chunked, err := parseTransferEncoding(value)
			if err != nil {
				return err
			}

			request.Chunked = request.Chunked || chunked
		case strcomp.EqualFold(key, "content-type"):
			request.ContentType = value
		case strcomp.EqualFold(key, "host"):
			request.Host = value
		case strcomp.EqualFold(key, "connection"):
			request.Connection = value
		case strcomp.EqualFold(key, "upgrade"):
			request.Upgrade = value
		case strcomp.EqualFold(key, "accept-encoding"):
			request.AcceptEncoding = appendAcceptEncoding(
				request.AcceptEncoding, value, cfg.Headers.MaxAcceptEncodingTokens,
			)
		}
	}

	if request.Chunked {
		// Transfer-Encoding overrides Content-Length
		request.ContentLength = -1
	}

	return nil
}

func parseContentLength(value string) (int64, error) {
	if len(value) == 0 || len(value) > 18 {
		return 0, status.ErrBadContentLength
	}

	var length int64
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return 0, status.ErrBadContentLength
		}

		length = length*10 + int64(value[i]-'0')
	}

	return length, nil
}

// parseTransferEncoding reports whether the body is chunked. Codings other than chunked and
// identity aren't supported for requests.
func parseTransferEncoding(value string) (chunked bool, err error) {
	for value != "" {
		var token string
		token, value, _ = strings.Cut(value, ",")
		token = strings.TrimSpace(token)

		switch {
		case len(token) == 0, strcomp.EqualFold(token, "identity"):
		case strcomp.EqualFold(token, "chunked"):
			chunked = true
		default:
			return false, status.ErrUnsupportedEncoding
		}
	}

	return chunked, nil
}

// appendAcceptEncoding collects the codings the client accepts. Tokens explicitly refused
// with q=0 are skipped.
func appendAcceptEncoding(tokens []string, value string, limit int) []string {
	for value != "" && len(tokens) < limit {
		var token string
		token, value, _ = strings.Cut(value, ",")
		token, params, _ := strings.Cut(token, ";")
		token = strings.TrimSpace(token)
		if len(token) == 0 || refused(params) {
			continue
		}

		tokens = append(tokens, strings.ToLower(token))
	}

	return tokens
}

func refused(params string) bool {
	params = strings.TrimSpace(params)
	q, found := strings.CutPrefix(params, "q=")
	if !found {
		return false
	}

	weight, err := strconv.ParseFloat(q, 64)
	return err == nil && weight == 0
}

// Response is the head of a response read by the client.
type Response struct {
	Code          status.Code
	Status        string
	Protocol      proto.Proto
	Headers       *kv.Storage
	ContentLength int64
	Chunked       bool
	Encoding      string
	Connection    string
}

func (r *Response) reset() {
	r.Code = 0
	r.Status = ""
	r.Protocol = proto.Unknown
	r.Headers.Clear()
	r.ContentLength = -1
	r.Chunked = false
	r.Encoding = ""
	r.Connection = ""
}

// ResponseParser is the client-side twin of RequestParser.
type ResponseParser struct {
	cfg      *config.Config
	response *Response
	acc      headAccumulator
	head     ResponseHead
}

func NewResponseParser(cfg *config.Config, response *Response) *ResponseParser {
	if response.Headers == nil {
		response.Headers = kv.NewPrealloc(cfg.Headers.Number.Default)
	}

	return &ResponseParser{
		cfg:      cfg,
		response: response,
		acc: headAccumulator{
			limit: cfg.URI.RequestLineSize.Maximal + cfg.Headers.Space.Maximal,
		},
	}
}

func (p *ResponseParser) Feed(data []byte) (done bool, extra []byte, err error) {
	raw, extra, overflow := p.acc.feed(data)
	if overflow {
		p.acc.done = true
		return true, nil, status.ErrHeaderFieldsTooLarge
	}

	if raw == nil {
		return false, nil, nil
	}

	p.response.reset()
	p.head.Headers = p.head.Headers[:0]
	if _, err = ParseResponse(raw, &p.head); err != nil {
		return true, extra, err
	}

	resp := p.response
	resp.Code = status.Code(p.head.Status)
	resp.Status = uf.B2S(p.head.Message)
	resp.Protocol = proto.FromMinor(p.head.Minor)

	for _, header := range p.head.Headers {
		key, value := uf.B2S(header.Name), uf.B2S(header.Value)
		resp.Headers.Add(key, value)

		switch {
		case strcomp.EqualFold(key, "content-length"):
			if resp.ContentLength, err = parseContentLength(value); err != nil {
				return true, extra, err
			}
		case strcomp.EqualFold(key, "transfer-encoding"):
			resp.Chunked = strings.Contains(strings.ToLower(value), "chunked")
		case strcomp.EqualFold(key, "content-encoding"):
			resp.Encoding = strings.ToLower(strings.TrimSpace(value))
		case strcomp.EqualFold(key, "connection"):
			resp.Connection = value
		}
	}

	if resp.Chunked {
		resp.ContentLength = -1
	}

	return true, extra, nil
}
