package http1

import (
	"strconv"

	"github.com/indigo-web/ember/http/cookie"
	"github.com/indigo-web/ember/http/proto"
	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/kv"
	"github.com/indigo-web/utils/strcomp"
)

const crlf = "\r\n"

// serializer renders response heads into a single reusable buffer. Bodies of buffered
// responses are appended to the same buffer, so the whole response goes out in one write.
type serializer struct {
	buff           []byte
	defaultHeaders defaultHeaders
}

func newSerializer(buff []byte, defaults map[string]string, serverName string) serializer {
	return serializer{
		buff:           buff,
		defaultHeaders: preprocessDefaultHeaders(defaults, serverName),
	}
}

func (s *serializer) reset() {
	s.buff = s.buff[:0]
	s.defaultHeaders.Reset()
}

func (s *serializer) appendStatusLine(protocol proto.Proto, code status.Code, text string) {
	if protocol != proto.HTTP10 {
		// in case the request line was malformed, parser had no chance of reaching the
		// protocol, so the most capable one is used.
		protocol = proto.HTTP11
	}

	s.buff = append(s.buff, protocol.String()...)
	s.sp()
	s.buff = strconv.AppendInt(s.buff, int64(code), 10)
	s.sp()

	if len(text) == 0 {
		text = status.Text(code)
	}

	s.buff = append(s.buff, text...)
	s.crlf()
}

// appendHeader writes a complete header field line. Default headers with the same key
// are excluded.
func (s *serializer) appendHeader(key, value string) {
	s.defaultHeaders.Exclude(key)
	s.buff = append(s.buff, key...)
	s.colonsp()
	s.buff = append(s.buff, value...)
	s.crlf()
}

func (s *serializer) appendHeaders(headers *kv.Storage) {
	for _, pair := range headers.Expose() {
		s.appendHeader(pair.Key, pair.Value)
	}
}

// appendKnownHeader differs from appendHeader only by the fact that the key is known to already
// have a colon and a space included.
func (s *serializer) appendKnownHeader(key, value string) {
	s.buff = append(s.buff, key...)
	s.buff = append(s.buff, value...)
	s.crlf()
}

func (s *serializer) appendContentLength(value int64) {
	s.buff = append(s.buff, "Content-Length: "...)
	s.buff = strconv.AppendInt(s.buff, value, 10)
	s.crlf()
}

func (s *serializer) appendCookies(cookies []cookie.Cookie) {
	for _, c := range cookies {
		s.buff = cookie.Append(s.buff, c)
	}
}

// finalize writes the default headers which weren't overridden and terminates
// the head.
func (s *serializer) finalize() {
	for _, header := range s.defaultHeaders {
		if header.Excluded {
			continue
		}

		s.buff = append(s.buff, header.Full...)
	}

	s.crlf()
}

func (s *serializer) sp() {
	s.buff = append(s.buff, ' ')
}

func (s *serializer) colonsp() {
	s.buff = append(s.buff, ':', ' ')
}

func (s *serializer) crlf() {
	s.buff = append(s.buff, crlf...)
}

func preprocessDefaultHeaders(headers map[string]string, serverName string) defaultHeaders {
	processed := make(defaultHeaders, 0, len(headers)+1)

	if len(serverName) > 0 {
		if _, overridden := headers["Server"]; !overridden {
			processed = append(processed, newDefaultHeader("Server", serverName))
		}
	}

	for key, value := range headers {
		processed = append(processed, newDefaultHeader(key, value))
	}

	return processed
}

func newDefaultHeader(key, value string) defaultHeader {
	serialized := key + ": " + value + crlf
	return defaultHeader{
		// we let the GC release all the values of the map, as here we're using only
		// the brand-new line without keeping the original string
		Key:  serialized[:len(key)],
		Full: serialized,
	}
}

type defaultHeader struct {
	Excluded bool
	Key      string
	Full     string
}

type defaultHeaders []defaultHeader

func (d defaultHeaders) Exclude(key string) {
	for i, header := range d {
		if strcomp.EqualFold(header.Key, key) {
			d[i].Excluded = true
			return
		}
	}
}

func (d defaultHeaders) Reset() {
	for i := range d {
		d[i].Excluded = false
	}
}
