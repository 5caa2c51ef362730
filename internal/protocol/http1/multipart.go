package http1

import (
	"errors"
	"strings"

	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/kv"
)

var (
	ErrMalformedMultipart = status.ErrBadMultipart
	// ErrAborted is returned when one of the handler's callbacks refused to continue.
	ErrAborted = errors.New("multipart parsing aborted by the handler")
)

// MultipartHandler receives the events of the multipart parser. Header fields, header values
// and part data may arrive split into several slices, exactly how they were fragmented on
// the wire. Slices are only valid for the duration of the call. Returning false aborts the
// parsing.
type MultipartHandler interface {
	OnPartBegin() bool
	OnHeaderField(data []byte) bool
	OnHeaderValue(data []byte) bool
	OnHeadersComplete() bool
	OnPartData(data []byte) bool
	OnPartEnd() bool
	OnBodyEnd() bool
}

type multipartState uint8

const (
	eMultipartStart multipartState = iota
	eMultipartStartBoundary
	eMultipartHeaderFieldStart
	eMultipartHeaderField
	eMultipartHeaderFieldWaiting
	eMultipartHeaderValueStart
	eMultipartHeaderValue
	eMultipartHeaderValueWaiting
	eMultipartResourceStart
	eMultipartResource
	eMultipartResourceBoundaryWaiting
	eMultipartResourceBoundary
	eMultipartResourceWaiting
	eMultipartResourceHyphen
	eMultipartResourceEnd
	eMultipartEnd
)

// MultipartParser is a resumable multipart/form-data decoder. Bytes looking like the
// beginning of a delimiter are held in the lookbehind buffer until it's clear whether they
// are one. On mismatch they're replayed as part data, so nothing is lost nor duplicated
// regardless of how the body is fragmented.
type MultipartParser struct {
	handler    MultipartHandler
	delimiter  []byte
	lookbehind []byte
	index      int
	state      multipartState
	// fieldSeen is set once the current header line got a byte of its name. Only an empty
	// line terminates the headers.
	fieldSeen bool
}

func NewMultipartParser(boundary string, handler MultipartHandler) *MultipartParser {
	delimiter := make([]byte, 0, len(boundary)+2)
	delimiter = append(delimiter, '-', '-')
	delimiter = append(delimiter, boundary...)

	return &MultipartParser{
		handler:    handler,
		delimiter:  delimiter,
		lookbehind: make([]byte, len(delimiter)+4),
	}
}

// Done reports whether the closing delimiter was met.
func (p *MultipartParser) Done() bool {
	return p.state == eMultipartEnd
}

// Feed parses the next fragment. On error, the returned offset points at the offending byte.
// Anything after the closing delimiter is ignored.
func (p *MultipartParser) Feed(data []byte) (int, error) {
	var (
		mark    int
		handler = p.handler
	)

	for i := 0; i < len(data); i++ {
		c := data[i]
		last := i == len(data)-1

		switch p.state {
		case eMultipartStart:
			p.index = 0
			p.state = eMultipartStartBoundary
			fallthrough
		case eMultipartStartBoundary:
			switch {
			case p.index == len(p.delimiter):
				if c != '\r' {
					return i, ErrMalformedMultipart
				}

				p.index++
			case p.index == len(p.delimiter)+1:
				if c != '\n' {
					return i, ErrMalformedMultipart
				}

				p.index = 0
				p.state = eMultipartHeaderFieldStart
				if !handler.OnPartBegin() {
					return i, ErrAborted
				}
			default:
				if c != p.delimiter[p.index] {
					return i, ErrMalformedMultipart
				}

				p.index++
			}
		case eMultipartHeaderFieldStart:
			mark = i
			p.fieldSeen = false
			p.state = eMultipartHeaderField
			fallthrough
		case eMultipartHeaderField:
			switch {
			case c == '\r':
				if p.fieldSeen {
					return i, ErrMalformedMultipart
				}

				p.state = eMultipartHeaderFieldWaiting
			case c == ':':
				if !p.fieldSeen {
					return i, ErrMalformedMultipart
				}

				if !handler.OnHeaderField(data[mark:i]) {
					return i, ErrAborted
				}

				p.state = eMultipartHeaderValueStart
			case !isToken(c):
				return i, ErrMalformedMultipart
			default:
				p.fieldSeen = true
				if last && !handler.OnHeaderField(data[mark:i+1]) {
					return i, ErrAborted
				}
			}
		case eMultipartHeaderFieldWaiting:
			if c != '\n' {
				return i, ErrMalformedMultipart
			}

			p.state = eMultipartResourceStart
			if !handler.OnHeadersComplete() {
				return i, ErrAborted
			}
		case eMultipartHeaderValueStart:
			if c == ' ' || c == '\t' {
				break
			}

			mark = i
			p.state = eMultipartHeaderValue
			fallthrough
		case eMultipartHeaderValue:
			switch {
			case c == '\r':
				if !handler.OnHeaderValue(data[mark:i]) {
					return i, ErrAborted
				}

				p.state = eMultipartHeaderValueWaiting
			case last:
				if !handler.OnHeaderValue(data[mark : i+1]) {
					return i, ErrAborted
				}
			}
		case eMultipartHeaderValueWaiting:
			if c != '\n' {
				return i, ErrMalformedMultipart
			}

			p.state = eMultipartHeaderFieldStart
		case eMultipartResourceStart:
			p.state = eMultipartResource
			i--
		case eMultipartResource:
			// the resource state is entered either from ResourceStart or after a replayed
			// lookbehind, and in both cases the current byte begins the data run.
			mark = i
			for ; i < len(data) && data[i] != '\r'; i++ {
			}

			if mark < i && !handler.OnPartData(data[mark:i]) {
				return i, ErrAborted
			}

			if i < len(data) {
				p.lookbehind[0] = '\r'
				p.state = eMultipartResourceBoundaryWaiting
			}
		case eMultipartResourceBoundaryWaiting:
			if c == '\n' {
				p.lookbehind[1] = '\n'
				p.index = 0
				p.state = eMultipartResourceBoundary
				break
			}

			if !handler.OnPartData(p.lookbehind[:1]) {
				return i, ErrAborted
			}

			p.state = eMultipartResource
			i--
		case eMultipartResourceBoundary:
			if p.delimiter[p.index] != c {
				if !handler.OnPartData(p.lookbehind[:2+p.index]) {
					return i, ErrAborted
				}

				p.state = eMultipartResource
				i--
				break
			}

			p.lookbehind[2+p.index] = c
			p.index++
			if p.index == len(p.delimiter) {
				if !handler.OnPartEnd() {
					return i, ErrAborted
				}

				p.state = eMultipartResourceWaiting
			}
		case eMultipartResourceWaiting:
			switch c {
			case '-':
				p.state = eMultipartResourceHyphen
			case '\r':
				p.state = eMultipartResourceEnd
			default:
				return i, ErrMalformedMultipart
			}
		case eMultipartResourceHyphen:
			if c != '-' {
				return i, ErrMalformedMultipart
			}

			p.state = eMultipartEnd
			if !handler.OnBodyEnd() {
				return i, ErrAborted
			}
		case eMultipartResourceEnd:
			if c != '\n' {
				return i, ErrMalformedMultipart
			}

			p.state = eMultipartHeaderFieldStart
			if !handler.OnPartBegin() {
				return i, ErrAborted
			}
		case eMultipartEnd:
			return len(data), nil
		}
	}

	return len(data), nil
}

// Boundary extracts the boundary parameter from a multipart Content-Type value.
func Boundary(contentType string) (boundary string, ok bool) {
	mediaType, params, _ := strings.Cut(contentType, ";")
	if !strings.EqualFold(strings.TrimSpace(mediaType), "multipart/form-data") {
		return "", false
	}

	for params != "" {
		var param string
		param, params, _ = strings.Cut(params, ";")
		key, value, _ := strings.Cut(strings.TrimSpace(param), "=")
		if strings.EqualFold(key, "boundary") {
			value = strings.Trim(value, `"`)
			return value, len(value) > 0 && len(value) <= 70
		}
	}

	return "", false
}

// DispositionParams parses the Content-Disposition of a part into the form name and the
// file name.
func DispositionParams(headers *kv.Storage) (name, filename string) {
	value := headers.Value("content-disposition")
	_, params, _ := strings.Cut(value, ";")

	for params != "" {
		var param string
		param, params, _ = strings.Cut(params, ";")
		key, val, _ := strings.Cut(strings.TrimSpace(param), "=")
		val = strings.Trim(val, `"`)

		switch strings.ToLower(key) {
		case "name":
			name = val
		case "filename":
			filename = val
		}
	}

	return name, filename
}
