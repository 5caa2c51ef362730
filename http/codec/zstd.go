package codec

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

func NewZSTD() Codec {
	return baseCodec{
		token: "zstd",
		newInst: func(params Params) (Compressor, error) {
			opts := []zstd.EOption{zstd.WithEncoderConcurrency(1)}
			if params.Level > 0 {
				opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(params.Level)))
			}

			if params.WindowBits >= 10 {
				opts = append(opts, zstd.WithWindowSize(1<<min(params.WindowBits, 27)))
			}

			return zstd.NewWriter(nil, opts...)
		},
		decompress: func(r io.Reader) (io.ReadCloser, error) {
			dec, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}

			return dec.IOReadCloser(), nil
		},
	}
}
