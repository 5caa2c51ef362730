package http1

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/indigo-web/ember/http/codec"
	"github.com/indigo-web/ember/http/status"
)

var errShortFile = errors.New("file is shorter than announced")

// fileStream is a window of a file being written to the connection chunk by chunk. With a
// compressor, every chunk is compressed and framed using the chunked transfer encoding.
type fileStream struct {
	file       *os.File
	offset     int64
	remaining  int64
	compressor codec.Compressor
	buff       []byte
	out        bytes.Buffer
	chunk      []byte
	framed     []byte
	code       status.Code
	written    int
}

func (s *fileStream) open(file *os.File, offset, length int64, compressor codec.Compressor) {
	s.file, s.offset, s.remaining = file, offset, length
	s.compressor = compressor
	s.out.Reset()
	if compressor != nil {
		compressor.Reset(&s.out)
	}
}

// read fills the chunk with the next portion of the file. It runs off the connection's
// sequence.
func (s *fileStream) read(chunkSize int) error {
	size := min(int64(chunkSize), s.remaining)
	if int64(cap(s.buff)) < size {
		s.buff = make([]byte, size)
	}

	buff := s.buff[:size]
	n, err := s.file.ReadAt(buff, s.offset)
	if n < len(buff) {
		if err == nil || errors.Is(err, io.EOF) {
			err = errShortFile
		}

		return err
	}

	s.offset += size
	s.remaining -= size
	s.chunk = buff

	return nil
}

// compress replaces the chunk by its compressed and framed version.
func (s *fileStream) compress() error {
	s.out.Reset()
	if _, err := s.compressor.Write(s.chunk); err != nil {
		return err
	}

	if s.remaining == 0 {
		if err := s.compressor.Close(); err != nil {
			return err
		}
	}

	s.framed = s.framed[:0]
	if s.out.Len() > 0 {
		s.framed = AppendChunk(s.framed, s.out.Bytes())
	}

	if s.remaining == 0 {
		s.framed = AppendLastChunk(s.framed)
	}

	s.chunk = s.framed
	return nil
}

func (s *fileStream) close() {
	if s.file != nil {
		_ = s.file.Close()
	}

	s.file, s.compressor = nil, nil
	s.remaining = 0
}

func (c *Connection) writeStreamHead(code status.Code) {
	c.stream.code = code
	c.stream.written = len(c.ser.buff)
	c.conn.WriteAsync(c.ser.buff, c.onStreamWritten)
}

func (c *Connection) onStreamWritten(err error) {
	if err != nil {
		c.log.Debug().Err(err).Msg("write failed while streaming a file")
		c.Break()
		return
	}

	if c.stream.remaining == 0 {
		c.streamDone()
		return
	}

	if c.stream.compressor != nil {
		c.processFileCompressChunk()
	} else {
		c.processFileChunk()
	}
}

// processFileChunk reads the next chunk off the connection's sequence and writes it as is.
func (c *Connection) processFileChunk() {
	s := &c.stream
	size := c.cfg.HTTP.FileChunkSize
	c.offloadChunk(func() error {
		return s.read(size)
	})
}

// processFileCompressChunk does the same, but the chunk is compressed and framed before
// being written. The last one carries the terminating zero-length chunk.
func (c *Connection) processFileCompressChunk() {
	s := &c.stream
	size := c.cfg.HTTP.FileChunkSize
	c.offloadChunk(func() error {
		if err := s.read(size); err != nil {
			return err
		}

		return s.compress()
	})
}

func (c *Connection) offloadChunk(work func() error) {
	var err error

	c.conn.Offload(func() {
		err = work()
	}, func() {
		if c.released {
			return
		}

		if err != nil {
			c.log.Warn().Err(err).Msg("failed to stream the file")
			c.Break()
			return
		}

		s := &c.stream
		if len(s.chunk) == 0 {
			// the compressor kept the whole chunk to itself
			c.onStreamWritten(nil)
			return
		}

		s.written += len(s.chunk)
		c.conn.WriteAsync(s.chunk, c.onStreamWritten)
	})
}

func (c *Connection) streamDone() {
	c.env.Metrics.Response(c.stream.code, c.stream.written)
	c.stream.close()
	c.next()
}
