package status

type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	ErrBadRequest                   = NewError(BadRequest, "bad request")
	ErrURIDecoding                  = NewError(BadRequest, "invalid urlencoded sequence")
	ErrBadChunk                     = NewError(BadRequest, "malformed chunk-encoded data")
	ErrBadMultipart                 = NewError(BadRequest, "malformed multipart body")
	ErrBadContentLength             = NewError(BadRequest, "bad Content-Length value")
	ErrUnauthorized                 = NewError(Unauthorized, "unauthorized")
	ErrForbidden                    = NewError(Forbidden, "forbidden")
	ErrNotFound                     = NewError(NotFound, "not found")
	ErrMethodNotAllowed             = NewError(MethodNotAllowed, "method not allowed")
	ErrLengthRequired               = NewError(LengthRequired, "length required")
	ErrPreconditionFailed           = NewError(PreconditionFailed, "precondition failed")
	ErrBodyTooLarge                 = NewError(RequestEntityTooLarge, "request body is too large")
	ErrURITooLong                   = NewError(RequestURITooLong, "request URI too long")
	ErrUnsupportedEncoding          = NewError(UnsupportedMediaType, "encoding is not supported")
	ErrRequestedRangeNotSatisfiable = NewError(RequestedRangeNotSatisfiable, "requested range is not satisfiable")
	ErrHeaderFieldsTooLarge         = NewError(RequestHeaderFieldsTooLarge, "too large headers section")
	ErrTooManyHeaders               = NewError(RequestHeaderFieldsTooLarge, "too many headers")
	ErrInternalServerError          = NewError(InternalServerError, "internal server error")
	ErrNotImplemented               = NewError(NotImplemented, "not implemented")
	ErrBadGateway                   = NewError(BadGateway, "bad gateway")
	ErrServiceUnavailable           = NewError(ServiceUnavailable, "service unavailable")
	ErrHTTPVersionNotSupported      = NewError(HTTPVersionNotSupported, "HTTP version not supported")
	ErrInsufficientStorage          = NewError(InsufficientStorage, "insufficient storage")
)
