package codec

import (
	"io"

	"github.com/andybalholm/brotli"
)

func NewBrotli() Codec {
	return baseCodec{
		token: "br",
		newInst: func(params Params) (Compressor, error) {
			opts := brotli.WriterOptions{Quality: brotli.DefaultCompression}
			if params.Level > 0 {
				opts.Quality = min(params.Level, brotli.BestCompression)
			}

			if params.WindowBits > 0 {
				opts.LGWin = max(10, min(params.WindowBits, 24))
			}

			return brotli.NewWriterOptions(nil, opts), nil
		},
		decompress: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(brotli.NewReader(r)), nil
		},
	}
}
