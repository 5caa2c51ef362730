package http

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/indigo-web/ember/http/cookie"
	"github.com/indigo-web/ember/http/mime"
	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/internal/response"
	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
)

type Response struct {
	fields *response.Fields
}

// NewResponse returns a new instance of the Response object with status code set to 200 OK,
// pre-allocated space for response headers and text/html content-type.
// NOTE: it's recommended to use Request.Respond() method inside of handlers, if there's no
// clear reason otherwise
func NewResponse() *Response {
	return &Response{response.NewFields()}
}

// Code sets a Response code. status.Silent drops the response without writing anything.
func (r *Response) Code(code status.Code) *Response {
	r.fields.Code = code
	return r
}

// Status sets a custom status text.
func (r *Response) Status(status string) *Response {
	r.fields.Status = status
	return r
}

// ContentType sets a custom Content-Type header value.
func (r *Response) ContentType(value mime.MIME) *Response {
	r.fields.ContentType = value
	return r
}

// Header adds header values to the key. Existing values are kept.
func (r *Response) Header(key string, values ...string) *Response {
	for _, value := range values {
		r.fields.Headers.Add(key, value)
	}

	return r
}

// SetHeader overwrites the value of the header.
func (r *Response) SetHeader(key, value string) *Response {
	r.fields.Headers.Set(key, value)
	return r
}

// String sets the response's body to the passed string
func (r *Response) String(body string) *Response {
	return r.Bytes(uf.S2B(body))
}

// Bytes sets the response's body to passed slice WITHOUT COPYING. Changing
// the passed slice later will affect the response by itself
func (r *Response) Bytes(body []byte) *Response {
	r.fields.Body = body
	return r
}

// Write implements io.Writer interface. It always returns n=len(b) and err=nil
func (r *Response) Write(b []byte) (n int, err error) {
	r.fields.Body = append(r.fields.Body, b...)
	return len(b), nil
}

// TryFile opens the file and attaches it to the response. Small files are read into the
// body straight away, big ones are streamed by the connection later.
func (r *Response) TryFile(path string, threshold int64) (*Response, error) {
	fd, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, status.ErrNotFound
		}

		return r, status.ErrForbidden
	}

	stat, err := fd.Stat()
	if err != nil {
		_ = fd.Close()
		return r, status.ErrInternalServerError
	}

	if stat.IsDir() {
		_ = fd.Close()
		return r, status.ErrNotFound
	}

	r.fields.Filename = filepath.Base(path)
	r.fields.LastModified = stat.ModTime()
	r.fields.ContentType = mime.Resolve(path, nil)

	if stat.Size() > threshold {
		r.fields.File = fd
		r.fields.FileSize = stat.Size()
		return r, nil
	}

	defer fd.Close()
	body := make([]byte, stat.Size())
	if _, err = fd.ReadAt(body, 0); err != nil && stat.Size() > 0 {
		return r, status.ErrInternalServerError
	}

	return r.Bytes(body), nil
}

// File does the same as TryFile does, except returned error is being implicitly wrapped
// by Error
func (r *Response) File(path string, threshold int64) *Response {
	resp, err := r.TryFile(path, threshold)
	if err != nil {
		return r.Error(err)
	}

	return resp
}

// Cookie adds cookies. They'll be later rendered as a set of Set-Cookie headers
func (r *Response) Cookie(cookies ...cookie.Cookie) *Response {
	r.fields.Cookies = append(r.fields.Cookies, cookies...)
	return r
}

// TryJSON receives a model (must be a pointer to the structure) and returns a new Response
// object and an error
func (r *Response) TryJSON(model any) (*Response, error) {
	r.fields.Body = r.fields.Body[:0]
	stream := json.ConfigDefault.BorrowStream(r)
	stream.WriteVal(model)
	err := stream.Flush()
	json.ConfigDefault.ReturnStream(stream)

	return r.ContentType(mime.JSON), err
}

// JSON does the same as TryJSON does, except returned error is being implicitly wrapped
// by Error
func (r *Response) JSON(model any) *Response {
	resp, err := r.TryJSON(model)
	if err != nil {
		return r.Error(err)
	}

	return resp
}

// Error returns a response builder with an error set. If passed err is nil, nothing will happen.
// If an instance of status.HTTPError is passed, error code will be automatically set. Custom
// codes can be passed, however only first will be used. By default, the error is
// status.ErrInternalServerError
func (r *Response) Error(err error, code ...status.Code) *Response {
	if err == nil {
		return r
	}

	var httpErr status.HTTPError
	if errors.As(err, &httpErr) {
		return r.Code(httpErr.Code)
	}

	c := status.InternalServerError
	if len(code) > 0 {
		c = code[0]
	}

	return r.Code(c)
}

// Drop makes the connection write nothing and release the socket.
func (r *Response) Drop() *Response {
	return r.Code(status.Silent)
}

// Reveal returns a struct with values, filled by builder. Used mostly in internal purposes
func (r *Response) Reveal() *response.Fields {
	return r.fields
}

// Clear discards everything was done with Response object before
func (r *Response) Clear() *Response {
	if r.fields.File != nil {
		_ = r.fields.File.Close()
	}

	r.fields.Clear()
	return r
}

// Respond is a predicate to request.Respond(). May be used as a dummy handler
func Respond(request *Request) *Response {
	return request.Respond()
}

// Code is a predicate to request.Respond().Code(...)
func Code(request *Request, code status.Code) *Response {
	return request.Respond().Code(code)
}

// String is a predicate to request.Respond().String(...)
func String(request *Request, str string) *Response {
	return request.Respond().String(str)
}

// JSON is a predicate to request.Respond().JSON(...)
func JSON(request *Request, model any) *Response {
	return request.Respond().JSON(model)
}

// Error is a predicate to request.Respond().Error(...)
func Error(request *Request, err error, code ...status.Code) *Response {
	return request.Respond().Error(err, code...)
}
