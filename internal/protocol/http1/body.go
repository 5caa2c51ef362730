package http1

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"github.com/indigo-web/ember/http"
	"github.com/indigo-web/ember/http/mime"
	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/kv"
)

// bodySink receives the decoded body.
type bodySink interface {
	write(data []byte) error
	// end is called once the whole body was received.
	end() error
	// abort drops everything received so far. The body isn't handled anymore.
	abort()
}

// memorySink caches the whole body in the request.
type memorySink struct {
	request *http.Request
	buff    []byte
}

func (m *memorySink) write(data []byte) error {
	m.buff = append(m.buff, data...)
	return nil
}

func (m *memorySink) end() error {
	m.request.Body = m.buff
	m.request.Transition(http.Cached)
	return nil
}

func (m *memorySink) abort() {}

// partsSink decodes multipart/form-data bodies into the request's resources. Parts with
// a file name are stored in the upload directory, if there's one, everything else is kept
// in memory.
type partsSink struct {
	request   *http.Request
	parser    *MultipartParser
	uploadDir string
	inMemory  int
	buffSize  int

	part    *http.Resource
	file    *os.File
	writer  *bufio.Writer
	field   []byte
	value   []byte
	inValue bool
	failure error
}

func newPartsSink(request *http.Request, boundary, uploadDir string, inMemory, buffSize int) *partsSink {
	p := &partsSink{
		request:   request,
		uploadDir: uploadDir,
		inMemory:  inMemory,
		buffSize:  buffSize,
	}
	p.parser = NewMultipartParser(boundary, p)

	return p
}

func (p *partsSink) write(data []byte) error {
	if _, err := p.parser.Feed(data); err != nil {
		if p.failure != nil {
			return p.failure
		}

		return err
	}

	return nil
}

func (p *partsSink) end() error {
	if !p.parser.Done() {
		p.discard()
		return ErrMalformedMultipart
	}

	if p.request.ContentState() == http.WantsSave {
		p.request.Transition(http.Saved)
	} else {
		p.request.Transition(http.Cached)
	}

	return nil
}

// abort removes the part being received along with all the parts already stored.
func (p *partsSink) abort() {
	p.discard()

	for _, part := range p.request.Resources {
		if part.State == http.Saved {
			_ = os.Remove(part.Path)
		}
	}

	p.request.Resources = p.request.Resources[:0]
}

// discard removes the file of the part being received, if any.
func (p *partsSink) discard() {
	if p.file != nil {
		_ = p.file.Close()
		_ = os.Remove(p.file.Name())
		p.file = nil
	}
}

func (p *partsSink) OnPartBegin() bool {
	p.part = &http.Resource{Headers: kv.New()}
	p.field, p.value, p.inValue = p.field[:0], p.value[:0], false
	return true
}

func (p *partsSink) OnHeaderField(data []byte) bool {
	if p.inValue {
		p.commitHeader()
	}

	p.field = append(p.field, data...)
	return true
}

func (p *partsSink) OnHeaderValue(data []byte) bool {
	p.inValue = true
	p.value = append(p.value, data...)
	return true
}

func (p *partsSink) commitHeader() {
	p.part.Headers.Add(string(p.field), strings.TrimSpace(string(p.value)))
	p.field, p.value, p.inValue = p.field[:0], p.value[:0], false
}

func (p *partsSink) OnHeadersComplete() bool {
	if p.inValue || len(p.field) > 0 {
		p.commitHeader()
	}

	part := p.part
	part.Name, part.Filename = DispositionParams(part.Headers)
	part.MIME = part.Headers.ValueOr("content-type", mime.Plain)

	if len(p.uploadDir) == 0 || len(part.Filename) == 0 {
		part.InMemory = true
		part.State = http.Cached
		return true
	}

	file, err := os.CreateTemp(p.uploadDir, "upload-*")
	if err != nil {
		return p.fail(err)
	}

	p.request.Transition(http.WantsSave)
	part.Path = file.Name()
	part.State = http.WantsSave
	p.file = file
	if p.writer == nil {
		p.writer = bufio.NewWriterSize(file, p.buffSize)
	} else {
		p.writer.Reset(file)
	}

	return true
}

func (p *partsSink) OnPartData(data []byte) bool {
	part := p.part
	part.Length += int64(len(data))

	if p.file == nil {
		if len(part.Data)+len(data) > p.inMemory && len(p.uploadDir) == 0 && len(part.Filename) > 0 {
			// a file without a place to store it is only accepted while small enough
			p.failure = status.ErrBodyTooLarge
			return false
		}

		part.Data = append(part.Data, data...)
		return true
	}

	if _, err := p.writer.Write(data); err != nil {
		return p.fail(err)
	}

	return true
}

func (p *partsSink) OnPartEnd() bool {
	part := p.part
	if p.file != nil {
		err := p.writer.Flush()
		if cerr := p.file.Close(); err == nil {
			err = cerr
		}

		p.file = nil
		if err != nil {
			_ = os.Remove(part.Path)
			return p.fail(err)
		}

		part.State = http.Saved
	}

	p.request.Resources = append(p.request.Resources, *part)
	p.part = nil
	return true
}

func (p *partsSink) OnBodyEnd() bool {
	return true
}

func (p *partsSink) fail(err error) bool {
	p.discard()
	p.failure = errors.Join(errSave, err)
	return false
}

var errSave = errors.New("failed to store the upload")

// bodyState maps the body consumption error onto the terminal content state and the
// response error.
func bodyState(err error) (http.ContentState, error) {
	switch {
	case errors.Is(err, errSave):
		return http.SaveException, status.ErrInsufficientStorage
	case errors.Is(err, status.ErrBodyTooLarge):
		return http.PayloadExceeded, status.ErrBodyTooLarge
	default:
		return http.Corrupted, status.ErrBadRequest
	}
}
