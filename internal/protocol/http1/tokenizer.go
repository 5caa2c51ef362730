package http1

import (
	"bytes"
	"errors"
	"strings"
)

var (
	// ErrMalformed reports a syntactically broken start line or header block.
	ErrMalformed = errors.New("malformed HTTP message")
	// ErrIncomplete reports that the data ended in the middle of the head. Once the boundary
	// was confirmed by HeaderBoundary, this means the caller passed a wrong slice.
	ErrIncomplete = errors.New("incomplete HTTP message")
)

// Header is a single header line. Continuation lines (starting with SP or HTAB) are reported
// as headers with an empty name and are never folded into the previous one.
type Header struct {
	Name, Value []byte
}

type RequestHead struct {
	Method []byte
	// Path is everything before the first `?` of the request target, Query everything after.
	Path    []byte
	Query   []byte
	Minor   int
	Headers []Header
}

type ResponseHead struct {
	Minor   int
	Status  int
	Message []byte
	Headers []Header
}

// HeaderBoundary returns the offset right past the empty line terminating the head, or -1
// if there's no such line yet. Both CRLF and bare LF line endings are recognized.
func HeaderBoundary(data []byte) int {
	for offset := 0; ; {
		lf := bytes.IndexByte(data[offset:], '\n')
		if lf == -1 {
			return -1
		}

		lf += offset
		switch {
		case lf+1 < len(data) && data[lf+1] == '\n':
			return lf + 2
		case lf+2 < len(data) && data[lf+1] == '\r' && data[lf+2] == '\n':
			return lf + 3
		}

		offset = lf + 1
	}
}

// ParseRequest tokenizes the request line and the header block in a single pass. Headers are
// appended to head.Headers. The returned offset points right past the terminating empty line.
func ParseRequest(data []byte, head *RequestHead) (int, error) {
	c := cursor{data: data}
	c.skipEmptyLines()

	method := c.token()
	if len(method) == 0 || !c.consume(' ') {
		return c.fail()
	}

	target := c.until(' ')
	if len(target) == 0 || !c.consume(' ') {
		return c.fail()
	}

	head.Method = method
	head.Path, head.Query = target, nil
	if q := bytes.IndexByte(target, '?'); q != -1 {
		head.Path, head.Query = target[:q], target[q+1:]
	}

	minor, ok := c.version()
	if !ok || !c.eol() {
		return c.fail()
	}

	head.Minor = minor
	headers, err := c.headers(head.Headers)
	head.Headers = headers
	if err != nil {
		return 0, err
	}

	return c.pos, nil
}

// ParseResponse tokenizes the status line and the header block. The reason phrase may be
// absent.
func ParseResponse(data []byte, head *ResponseHead) (int, error) {
	c := cursor{data: data}

	minor, ok := c.version()
	if !ok || !c.consume(' ') {
		return c.fail()
	}

	code, ok := c.statusCode()
	if !ok {
		return c.fail()
	}

	head.Minor, head.Status, head.Message = minor, code, nil
	if c.consume(' ') {
		head.Message = c.untilEOL()
	}

	if !c.eol() {
		return c.fail()
	}

	headers, err := c.headers(head.Headers)
	head.Headers = headers
	if err != nil {
		return 0, err
	}

	return c.pos, nil
}

// ParseHeaders tokenizes a bare header block, like multipart part headers or chunked trailers.
func ParseHeaders(data []byte, headers []Header) ([]Header, int, error) {
	c := cursor{data: data}
	headers, err := c.headers(headers)
	if err != nil {
		return headers, 0, err
	}

	return headers, c.pos, nil
}

type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) fail() (int, error) {
	switch rest := len(c.data) - c.pos; {
	case rest <= 0, rest == 1 && c.data[c.pos] == '\r':
		return 0, ErrIncomplete
	default:
		return 0, ErrMalformed
	}
}

func (c *cursor) skipEmptyLines() {
	for c.pos < len(c.data) {
		switch c.data[c.pos] {
		case '\r':
			if c.pos+1 < len(c.data) && c.data[c.pos+1] == '\n' {
				c.pos += 2
				continue
			}
		case '\n':
			c.pos++
			continue
		}

		return
	}
}

func (c *cursor) consume(char byte) bool {
	if c.pos < len(c.data) && c.data[c.pos] == char {
		c.pos++
		return true
	}

	return false
}

// token returns the longest run of token characters.
func (c *cursor) token() []byte {
	start := c.pos
	for c.pos < len(c.data) && isToken(c.data[c.pos]) {
		c.pos++
	}

	return c.data[start:c.pos]
}

// until returns the run of printable characters ending at the delimiter, or at the first
// character that isn't printable. The delimiter isn't consumed.
func (c *cursor) until(delim byte) []byte {
	start := c.pos
	for c.pos < len(c.data) {
		char := c.data[c.pos]
		if char == delim || !isPrintable(char) {
			break
		}

		c.pos++
	}

	return c.data[start:c.pos]
}

// untilEOL returns everything up to the line ending. Control characters other than HTAB
// terminate the run, so the following eol() check fails on them.
func (c *cursor) untilEOL() []byte {
	start := c.pos
	for c.pos < len(c.data) {
		char := c.data[c.pos]
		if char == '\r' || char == '\n' || isControl(char) {
			break
		}

		c.pos++
	}

	return c.data[start:c.pos]
}

// eol consumes CRLF or a bare LF. A CR that isn't followed by LF is a failure.
func (c *cursor) eol() bool {
	if c.consume('\n') {
		return true
	}

	if c.pos+1 < len(c.data) && c.data[c.pos] == '\r' && c.data[c.pos+1] == '\n' {
		c.pos += 2
		return true
	}

	return false
}

func (c *cursor) version() (minor int, ok bool) {
	const prefix = "HTTP/1."

	rest := c.data[c.pos:]
	if len(rest) < len(prefix)+1 {
		if strings.HasPrefix(prefix, string(rest)) {
			// cut in the middle of the version, so report it as incomplete
			c.pos = len(c.data)
		}

		return 0, false
	}

	if string(rest[:len(prefix)]) != prefix {
		return 0, false
	}

	digit := rest[len(prefix)]
	if digit < '0' || digit > '9' {
		return 0, false
	}

	c.pos += len(prefix) + 1
	return int(digit - '0'), true
}

func (c *cursor) statusCode() (code int, ok bool) {
	rest := c.data[c.pos:]
	for i := 0; i < 3; i++ {
		if i == len(rest) {
			c.pos = len(c.data)
			return 0, false
		}

		if rest[i] < '0' || rest[i] > '9' {
			return 0, false
		}

		code = code*10 + int(rest[i]-'0')
	}

	c.pos += 3
	return code, true
}

func (c *cursor) headers(headers []Header) ([]Header, error) {
	for {
		if c.pos >= len(c.data) {
			return headers, ErrIncomplete
		}

		if c.eol() {
			return headers, nil
		}

		var name []byte
		switch c.data[c.pos] {
		case ' ', '\t':
			// continuation line: reported with an empty name, the value is everything after
			// the leading whitespace.
		default:
			name = c.token()
			if len(name) == 0 || !c.consume(':') {
				_, err := c.fail()
				return headers, err
			}
		}

		c.skipWhitespace()
		value := trimRight(c.untilEOL())
		if !c.eol() {
			_, err := c.fail()
			return headers, err
		}

		headers = append(headers, Header{Name: name, Value: value})
	}
}

func (c *cursor) skipWhitespace() {
	for c.pos < len(c.data) && (c.data[c.pos] == ' ' || c.data[c.pos] == '\t') {
		c.pos++
	}
}

func trimRight(value []byte) []byte {
	for len(value) > 0 && (value[len(value)-1] == ' ' || value[len(value)-1] == '\t') {
		value = value[:len(value)-1]
	}

	return value
}

// isControl reports control characters, excluding HTAB.
func isControl(c byte) bool {
	return (c < 0x20 && c != '\t') || c == 0x7F
}

func isPrintable(c byte) bool {
	return c > 0x20 && c != 0x7F
}

var tokenTable = func() (table [256]bool) {
	for c := '0'; c <= '9'; c++ {
		table[c] = true
	}

	for c := 'a'; c <= 'z'; c++ {
		table[c] = true
		table[c-'a'+'A'] = true
	}

	for _, c := range "!#$%&'*+-.^_`|~" {
		table[c] = true
	}

	return table
}()

func isToken(c byte) bool {
	return tokenTable[c]
}
