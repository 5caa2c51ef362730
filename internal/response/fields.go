package response

import (
	"os"
	"time"

	"github.com/indigo-web/ember/http/cookie"
	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/kv"
)

const DefaultContentType = "text/html"

// Fields is everything a handler produces. The connection consumes it when finishing the
// response.
type Fields struct {
	Code        status.Code
	Status      string
	ContentType string
	Headers     *kv.Storage
	Cookies     []cookie.Cookie
	// Body is buffered and may be mutated in place by compression or range slicing.
	Body []byte
	// File is used instead of Body when the content is streamed from the disk.
	File     *os.File
	FileSize int64
	// Filename is the name the content originates from. Compression patterns and MIME
	// resolution look at it.
	Filename     string
	LastModified time.Time
	ETag         string
	// Rendered marks error responses which already carry their final body.
	Rendered bool
}

func NewFields() *Fields {
	return &Fields{
		Code:        status.OK,
		ContentType: DefaultContentType,
		Headers:     kv.NewPrealloc(7),
	}
}

func (f *Fields) Clear() {
	f.Code = status.OK
	f.Status = ""
	f.ContentType = DefaultContentType
	f.Headers.Clear()
	f.Cookies = f.Cookies[:0]
	f.Body = nil
	f.File = nil
	f.FileSize = 0
	f.Filename = ""
	f.LastModified = time.Time{}
	f.ETag = ""
	f.Rendered = false
}

// Streamed reports whether the content comes from a file rather than the buffer.
func (f *Fields) Streamed() bool {
	return f.File != nil
}
