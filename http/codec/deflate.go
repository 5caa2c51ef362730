package codec

import (
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// NewDeflate returns the `deflate` codec, which by HTTP's definition is zlib-framed.
func NewDeflate() Codec {
	return baseCodec{
		token: "deflate",
		newInst: func(params Params) (Compressor, error) {
			if params.WindowBits > 15 {
				return gzip.NewWriterLevel(nil, level(params.Level, gzip.DefaultCompression))
			}

			return zlib.NewWriterLevel(nil, level(params.Level, zlib.DefaultCompression))
		},
		decompress: func(r io.Reader) (io.ReadCloser, error) {
			return zlib.NewReader(r)
		},
	}
}

func NewGZIP() Codec {
	return baseCodec{
		token: "gzip",
		newInst: func(params Params) (Compressor, error) {
			return gzip.NewWriterLevel(nil, level(params.Level, gzip.DefaultCompression))
		},
		decompress: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
	}
}

func level(lvl, def int) int {
	if lvl <= 0 {
		return def
	}

	return min(lvl, 9)
}
