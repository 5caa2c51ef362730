package http

import (
	"context"
	"net"
	"strings"

	"github.com/indigo-web/ember/http/cookie"
	"github.com/indigo-web/ember/http/method"
	"github.com/indigo-web/ember/http/mime"
	"github.com/indigo-web/ember/http/proto"
	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/internal/urlencoded"
	"github.com/indigo-web/ember/kv"
	"github.com/indigo-web/ember/session"
)

// Handler produces a response for the request. It's called on the connection's own
// callback sequence, so it must not block for long.
type Handler func(*Request) *Response

// Request is the parsed request head together with the body state. A single instance is
// owned by a connection and reused across pipelined requests.
type Request struct {
	Method method.Method
	// Path is decoded and normalized, so it never contains `..` segments.
	Path string
	// URI is the request target exactly as it was received.
	URI      string
	Query    string
	Protocol proto.Proto
	Headers  *kv.Storage
	// ContentLength is -1 when unknown.
	ContentLength  int64
	Chunked        bool
	ContentType    string
	Host           string
	Connection     string
	Upgrade        string
	AcceptEncoding []string
	// Body is set when the whole body is cached in memory.
	Body []byte
	// Resources are the multipart parts uploaded along with the request.
	Resources []Resource
	Remote    net.Addr
	Session   *session.Session
	// Vars are named groups captured by the route pattern.
	Vars *kv.Storage
	Ctx  context.Context

	state         ContentState
	cookies       cookie.Jar
	cookiesParsed bool
	cookiesErr    error
	params        *kv.Storage
	paramsParsed  bool
	paramsErr     error
	form          *kv.Storage
	formParsed    bool
	formErr       error
	decodeBuff    []byte
	response      *Response
}

func NewRequest(headers *kv.Storage, response *Response, remote net.Addr) *Request {
	return &Request{
		ContentLength: -1,
		Headers:       headers,
		Vars:          kv.New(),
		Remote:        remote,
		Ctx:           context.Background(),
		response:      response,
	}
}

// Respond returns the response builder, cleared from anything left by previous requests.
func (r *Request) Respond() *Response {
	return r.response.Clear()
}

// Cookies returns the cookies sent by the client. They're parsed once and cached.
func (r *Request) Cookies() (cookie.Jar, error) {
	if r.cookiesParsed {
		return r.cookies, r.cookiesErr
	}

	if r.cookies == nil {
		r.cookies = cookie.NewJar()
	}

	r.cookiesParsed = true
	for value := range r.Headers.Values("cookie") {
		if err := cookie.Parse(r.cookies, value); err != nil {
			r.cookiesErr = err
			break
		}
	}

	return r.cookies, r.cookiesErr
}

// Params returns the decoded query parameters. They're parsed once and cached.
func (r *Request) Params() (*kv.Storage, error) {
	if !r.paramsParsed {
		r.paramsParsed = true
		r.params = clearOrNew(r.params)
		r.decodeBuff, r.paramsErr = urlencoded.Parse(r.Query, r.params, r.decodeBuff)
	}

	return r.params, r.paramsErr
}

// Form returns the decoded fields of an urlencoded body. The body must be cached in memory
// already, otherwise the form is empty.
func (r *Request) Form() (*kv.Storage, error) {
	if r.formParsed {
		return r.form, r.formErr
	}

	r.formParsed = true
	r.form = clearOrNew(r.form)
	mediaType, _, _ := strings.Cut(r.ContentType, ";")
	if !strings.EqualFold(strings.TrimSpace(mediaType), mime.FormUrlencoded) {
		r.formErr = status.ErrUnsupportedEncoding
		return r.form, r.formErr
	}

	r.decodeBuff, r.formErr = urlencoded.Parse(string(r.Body), r.form, r.decodeBuff)
	return r.form, r.formErr
}

func clearOrNew(storage *kv.Storage) *kv.Storage {
	if storage == nil {
		return kv.New()
	}

	storage.Clear()
	return storage
}

// ContentState returns the current state of the request body.
func (r *Request) ContentState() ContentState {
	return r.state
}

// Transition moves the body into the next state. Illegal transitions are ignored and
// reported by returning false.
func (r *Request) Transition(next ContentState) bool {
	if !r.state.CanTransition(next) {
		return false
	}

	r.state = next
	return true
}

// Reset prepares the request for the next one on the same connection. Allocated memory is
// retained.
func (r *Request) Reset() {
	r.Method = method.Unknown
	r.Path = ""
	r.URI = ""
	r.Query = ""
	r.Protocol = proto.Unknown
	r.Headers.Clear()
	r.ContentLength = -1
	r.Chunked = false
	r.ContentType = ""
	r.Host = ""
	r.Connection = ""
	r.Upgrade = ""
	r.AcceptEncoding = r.AcceptEncoding[:0]
	r.Body = nil
	r.Resources = r.Resources[:0]
	r.Session = nil
	r.Vars.Clear()
	r.Ctx = context.Background()
	r.state = NotLoaded
	r.cookiesParsed = false
	r.cookiesErr = nil
	r.paramsParsed, r.paramsErr = false, nil
	r.formParsed, r.formErr = false, nil
	if r.cookies != nil {
		r.cookies.Clear()
	}
}
