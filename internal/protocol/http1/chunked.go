package http1

import (
	"strconv"

	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/internal/hexconv"
)

type chunkedState uint8

const (
	eChunkSize chunkedState = iota
	eChunkExt
	eChunkSizeLF
	eChunkData
	eChunkDataCR
	eChunkDataLF
	eChunkTrailerHead
	eChunkTrailerMiddle
	eChunkTrailerLF
)

// maxChunkSizeDigits is how many hex digits fit into uint64.
const maxChunkSizeDigits = 16

// ErrBadChunk is returned on malformed chunk sizes, framing or trailers.
var ErrBadChunk = status.ErrBadChunk

// ChunkedDecoder decodes the chunked transfer coding in place. It keeps its state between
// calls, so the input may be split at arbitrary offsets, producing exactly the same output.
type ChunkedDecoder struct {
	state     chunkedState
	digits    int
	remaining uint64
}

// Decode decodes buf in place: the payload is moved into buf[:decoded]. If done is set, the
// terminal chunk and the trailers were consumed and buf[consumed:] is what follows the body.
// Otherwise the whole buf was consumed and more data is needed.
func (c *ChunkedDecoder) Decode(buf []byte) (decoded, consumed int, done bool, err error) {
	dst := 0

	for src := 0; src < len(buf); {
		char := buf[src]

		switch c.state {
		case eChunkSize:
			if digit := hexconv.Halfbyte[char]; digit != hexconv.Invalid {
				if c.digits == maxChunkSizeDigits {
					return dst, src, false, ErrBadChunk
				}

				c.remaining = c.remaining<<4 | uint64(digit)
				c.digits++
				src++
				continue
			}

			if c.digits == 0 {
				return dst, src, false, ErrBadChunk
			}

			switch char {
			case ';', ' ', '\t':
				c.state = eChunkExt
			case '\r':
				c.state = eChunkSizeLF
			case '\n':
				c.endSizeLine()
			default:
				return dst, src, false, ErrBadChunk
			}

			src++
		case eChunkExt:
			// extensions are ignored altogether
			switch char {
			case '\r':
				c.state = eChunkSizeLF
			case '\n':
				c.endSizeLine()
			}

			src++
		case eChunkSizeLF:
			if char != '\n' {
				return dst, src, false, ErrBadChunk
			}

			c.endSizeLine()
			src++
		case eChunkData:
			n := min(uint64(len(buf)-src), c.remaining)
			dst += copy(buf[dst:], buf[src:src+int(n)])
			src += int(n)
			c.remaining -= n
			if c.remaining == 0 {
				c.state = eChunkDataCR
			}
		case eChunkDataCR:
			switch char {
			case '\r':
				c.state = eChunkDataLF
			case '\n':
				c.state = eChunkSize
			default:
				return dst, src, false, ErrBadChunk
			}

			src++
		case eChunkDataLF:
			if char != '\n' {
				return dst, src, false, ErrBadChunk
			}

			c.state = eChunkSize
			src++
		case eChunkTrailerHead:
			switch char {
			case '\r':
				c.state = eChunkTrailerLF
			case '\n':
				c.Reset()
				return dst, src + 1, true, nil
			default:
				if isControl(char) {
					return dst, src, false, ErrBadChunk
				}

				c.state = eChunkTrailerMiddle
			}

			src++
		case eChunkTrailerMiddle:
			if char == '\n' {
				c.state = eChunkTrailerHead
			}

			src++
		case eChunkTrailerLF:
			if char != '\n' {
				return dst, src, false, ErrBadChunk
			}

			c.Reset()
			return dst, src + 1, true, nil
		}
	}

	return dst, len(buf), false, nil
}

func (c *ChunkedDecoder) endSizeLine() {
	c.digits = 0
	if c.remaining == 0 {
		c.state = eChunkTrailerHead
		return
	}

	c.state = eChunkData
}

// Reset brings the decoder back to its initial state.
func (c *ChunkedDecoder) Reset() {
	*c = ChunkedDecoder{}
}

// AppendChunk frames data as a single chunk. Empty data is skipped, as it would otherwise
// terminate the body.
func AppendChunk(dst, data []byte) []byte {
	if len(data) == 0 {
		return dst
	}

	dst = strconv.AppendUint(dst, uint64(len(data)), 16)
	dst = append(dst, '\r', '\n')
	dst = append(dst, data...)
	return append(dst, '\r', '\n')
}

// AppendLastChunk appends the terminal chunk without trailers.
func AppendLastChunk(dst []byte) []byte {
	return append(dst, "0\r\n\r\n"...)
}
