package http

import (
	"os"
	"time"

	"github.com/indigo-web/ember/kv"
)

// Resource is a piece of content: either an uploaded multipart part or a file from the
// disk. It's either kept in memory or refers to an on-disk path.
type Resource struct {
	// Path is the location on the disk. Empty for in-memory resources.
	Path     string
	InMemory bool
	Data     []byte
	// Length is the declared length. For uploads it's known only after the part ends.
	Length  int64
	MIME    string
	Headers *kv.Storage
	// Name is the form field name and Filename the client-side file name, both coming
	// from the Content-Disposition header of the part.
	Name     string
	Filename string
	ModTime  time.Time
	State    ContentState
}

// Open opens the on-disk resource for reading.
func (r *Resource) Open() (*os.File, error) {
	return os.Open(r.Path)
}

// Bytes returns the content, reading it from the disk when needed.
func (r *Resource) Bytes() ([]byte, error) {
	if r.InMemory {
		return r.Data, nil
	}

	return os.ReadFile(r.Path)
}
