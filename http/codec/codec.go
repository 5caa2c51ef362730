package codec

import (
	"bytes"
	"io"
)

// Params tune a compressor. Zero values mean library defaults.
type Params struct {
	// Level is the compression level in the codec's own scale. Negative and zero values
	// select the default one.
	Level int
	// WindowBits is the base two logarithm of the window size. For deflate, values above
	// 15 select the gzip framing instead of zlib, the way zlib's deflateInit2 does.
	WindowBits int
	// MemLevel is accepted for configuration compatibility. None of the backing libraries
	// expose it, so it's ignored.
	MemLevel int
}

type Codec interface {
	// Token returns a coding token associated with the codec itself.
	Token() string
	// New returns a fresh compressor instance. It must be reset before the first use.
	New(params Params) (Compressor, error)
	// Decompress wraps the reader into a decompressing one.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

type Compressor interface {
	io.WriteCloser
	// Reset discards the state and binds the compressor to the new destination.
	Reset(w io.Writer)
}

// Compress compresses src as a whole and appends the result to dst.
func Compress(c Compressor, dst, src []byte) ([]byte, error) {
	buff := bytes.NewBuffer(dst)
	c.Reset(buff)

	if _, err := c.Write(src); err != nil {
		return nil, err
	}

	if err := c.Close(); err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// Default returns all the supported codecs, ordered by the server's preference.
func Default() []Codec {
	return []Codec{NewBrotli(), NewZSTD(), NewGZIP(), NewDeflate()}
}

// Cache keeps a single compressor per token, so consecutive responses on the same connection
// don't allocate new ones. Compressors are recreated whenever the requested params change.
type Cache struct {
	codecs  []Codec
	entries []cacheEntry
}

type cacheEntry struct {
	params Params
	inst   Compressor
}

func NewCache(codecs []Codec) *Cache {
	return &Cache{
		codecs:  codecs,
		entries: make([]cacheEntry, len(codecs)),
	}
}

// Get returns a compressor for the token, or nil if no codec is registered under it.
func (c *Cache) Get(token string, params Params) (Compressor, error) {
	for i, cd := range c.codecs {
		if cd.Token() != token {
			continue
		}

		entry := &c.entries[i]
		if entry.inst == nil || entry.params != params {
			inst, err := cd.New(params)
			if err != nil {
				return nil, err
			}

			*entry = cacheEntry{params: params, inst: inst}
		}

		return entry.inst, nil
	}

	return nil, nil
}

// Lookup returns a codec registered under the token.
func (c *Cache) Lookup(token string) Codec {
	for _, cd := range c.codecs {
		if cd.Token() == token {
			return cd
		}
	}

	return nil
}

// Tokens lists the tokens of all the registered codecs.
func (c *Cache) Tokens() []string {
	tokens := make([]string, len(c.codecs))
	for i, cd := range c.codecs {
		tokens[i] = cd.Token()
	}

	return tokens
}

type baseCodec struct {
	token      string
	newInst    func(Params) (Compressor, error)
	decompress func(io.Reader) (io.ReadCloser, error)
}

func (b baseCodec) Token() string {
	return b.token
}

func (b baseCodec) New(params Params) (Compressor, error) {
	return b.newInst(params)
}

func (b baseCodec) Decompress(r io.Reader) (io.ReadCloser, error) {
	return b.decompress(r)
}
