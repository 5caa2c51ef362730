package client

import (
	"strconv"

	"github.com/indigo-web/ember/http/method"
	"github.com/indigo-web/ember/http/proto"
	"github.com/indigo-web/ember/kv"
	"github.com/indigo-web/utils/strcomp"
)

type Request struct {
	Method  method.Method
	Path    string
	Query   Query
	Proto   proto.Proto
	Headers *kv.Storage
	Body    []byte
}

func NewRequest(m method.Method, path string) *Request {
	return &Request{
		Method:  m,
		Path:    path,
		Query:   NewQuery(),
		Proto:   proto.HTTP11,
		Headers: kv.New(),
	}
}

func (r *Request) WithHeader(key, value string) *Request {
	r.Headers.Add(key, value)
	return r
}

func (r *Request) WithQuery(key string, values ...string) *Request {
	r.Query.WithValue(key, values...)
	return r
}

func (r *Request) WithBody(body []byte) *Request {
	r.Body = body
	return r
}

// appendRequest serializes the request. Host and Content-Length are added unless set
// explicitly.
func appendRequest(dst []byte, r *Request, host string) []byte {
	dst = append(dst, r.Method.String()...)
	dst = append(dst, ' ')
	if len(r.Path) == 0 {
		dst = append(dst, '/')
	} else {
		dst = append(dst, r.Path...)
	}

	if len(r.Query) > 0 {
		dst = append(dst, '?')
		dst = r.Query.appendTo(dst)
	}

	protocol := r.Proto
	if protocol == proto.Unknown {
		protocol = proto.HTTP11
	}

	dst = append(dst, ' ')
	dst = append(dst, protocol.String()...)
	dst = append(dst, "\r\n"...)

	hasHost, hasLength := false, false
	for key, value := range r.Headers.Iter() {
		hasHost = hasHost || strcomp.EqualFold(key, "host")
		hasLength = hasLength || strcomp.EqualFold(key, "content-length")
		dst = appendHeader(dst, key, value)
	}

	if !hasHost && len(host) > 0 {
		dst = appendHeader(dst, "Host", host)
	}

	if !hasLength && (len(r.Body) > 0 || expectsBody(r.Method)) {
		dst = appendHeader(dst, "Content-Length", strconv.Itoa(len(r.Body)))
	}

	dst = append(dst, "\r\n"...)
	return append(dst, r.Body...)
}

func appendHeader(dst []byte, key, value string) []byte {
	dst = append(dst, key...)
	dst = append(dst, ": "...)
	dst = append(dst, value...)
	return append(dst, "\r\n"...)
}

func expectsBody(m method.Method) bool {
	return m == method.POST || m == method.PUT || m == method.PATCH
}
