package client

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/indigo-web/ember/http/codec"
	"github.com/indigo-web/ember/http/proto"
	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/kv"
)

type Response struct {
	Protocol proto.Proto
	Code     status.Code
	Status   string
	Headers  *kv.Storage
	// ContentLength is -1 for chunked responses and the ones delimited by the connection
	// close.
	ContentLength int64
	Encoding      string
	Body          []byte
}

// Decoded returns the body with the content coding undone.
func (r *Response) Decoded() ([]byte, error) {
	if len(r.Encoding) == 0 || r.Encoding == "identity" {
		return r.Body, nil
	}

	c := codec.NewCache(codec.Default()).Lookup(r.Encoding)
	if c == nil {
		return nil, fmt.Errorf("client: unsupported content coding %q", r.Encoding)
	}

	reader, err := c.Decompress(bytes.NewReader(r.Body))
	if err != nil {
		return nil, err
	}

	defer reader.Close()
	return io.ReadAll(reader)
}

// cloneHeaders copies the headers out of the parser's buffer.
func cloneHeaders(headers *kv.Storage) *kv.Storage {
	clone := kv.NewPrealloc(headers.Len())
	for key, value := range headers.Iter() {
		clone.Add(strings.Clone(key), strings.Clone(value))
	}

	return clone
}
