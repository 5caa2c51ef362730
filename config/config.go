package config

import (
	"time"

	"github.com/rs/zerolog"
)

type (
	HeadersNumber struct {
		Default, Maximal int
	}

	HeadersSpace struct {
		Default, Maximal int
	}

	URIRequestLineSize struct {
		Default, Maximal int
	}
)

type (
	URI struct {
		// RequestLineSize limits the request line. The Default value is the initial capacity
		// of the buffer accumulating the request head, the Maximal one produces 414 once exceeded.
		RequestLineSize URIRequestLineSize
	}

	Headers struct {
		// Number is responsible for headers storage size.
		// Default value is an initial size of allocated headers storage.
		// Maximal value is maximum number of headers allowed to be presented
		Number HeadersNumber
		// Space limits the amount of memory occupied by request headers.
		Space HeadersSpace
		// MaxAcceptEncodingTokens is a limit for the buffer storing accepted by a client encodings.
		MaxAcceptEncodingTokens int
		// Default headers are headers to be included into every response implicitly, unless
		// explicitly overridden.
		Default map[string]string `test:"nullable"`
	}

	Body struct {
		// MaxSize describes the maximal size of a body, that can be processed. Routes may
		// tighten it even more.
		MaxSize uint64
		// InMemory is the threshold below which multipart parts are cached in memory even if
		// the route has an upload directory configured.
		InMemory int
		// UploadBufferSize is the size of the buffer used when flushing uploads onto the disk.
		UploadBufferSize int
	}

	NET struct {
		// ReadBufferSize is a size of buffer in bytes which will be used to read from
		// socket
		ReadBufferSize int
		// ReadTimeout controls the maximal lifetime of IDLE connections. If no data was
		// received in this period of time, it'll be closed.
		ReadTimeout time.Duration
		// AcceptLoopInterruptPeriod controls how often will the Accept() call be interrupted
		// in order to check whether it's time to stop. Defaults to 5 seconds.
		AcceptLoopInterruptPeriod time.Duration
		// Multicore makes the event-loop transport spawn one loop per CPU core.
		Multicore bool
		// EventLoops is the exact number of event loops. Overrides Multicore if positive.
		EventLoops int `test:"nullable"`
	}

	HTTP struct {
		// KeepAliveMaxCount is how many requests a single connection may serve. Zero
		// disables keep-alive altogether.
		KeepAliveMaxCount int
		// FileBufferThreshold is the size beyond which static files aren't buffered but
		// streamed from the disk.
		FileBufferThreshold int64
		// FileChunkSize is how much of a streamed file is read and written at once.
		FileChunkSize int
		// ServerName is sent in the Server header. Empty value disables the header.
		ServerName string `test:"nullable"`
	}

	WebSocket struct {
		// MaxPayload limits a single frame. Frames announcing more are answered by the close
		// frame with 1009 (message too big).
		MaxPayload uint64
		// ReadBufferSize is how much is requested from the transport at once.
		ReadBufferSize int
	}

	Gateway struct {
		// Workers is the size of the worker pool running scripts.
		Workers int
		// Entry is the name of the function executed by the script engine.
		Entry string
	}

	Log struct {
		Level zerolog.Level
	}
)

// Config holds settings used across various parts of ember, mainly restrictions, limitations
// and pre-allocations.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	URI       URI
	Headers   Headers
	Body      Body
	NET       NET
	HTTP      HTTP
	WebSocket WebSocket
	Gateway   Gateway
	Log       Log
}

// Default returns default config. Those are initially well-balanced, however maximal defaults
// are pretty permitting.
func Default() *Config {
	return &Config{
		URI: URI{
			RequestLineSize: URIRequestLineSize{
				Default: 2 * 1024,
				// most web-entities limit it to 4-8kb, 16kb is therefore pretty tolerant.
				Maximal: 16 * 1024,
			},
		},
		Headers: Headers{
			Number: HeadersNumber{
				Default: 10,
				Maximal: 50,
			},
			Space: HeadersSpace{
				Default: 1 * 1024,  // 1kb for headers must be fairly enough in most cases.
				Maximal: 16 * 1024, // However, there also might be extremely long cookies.
			},
			MaxAcceptEncodingTokens: 20,
			Default:                 make(map[string]string),
		},
		Body: Body{
			MaxSize:          512 * 1024 * 1024, // 512 megabytes
			InMemory:         64 * 1024,
			UploadBufferSize: 32 * 1024,
		},
		NET: NET{
			ReadBufferSize:            4 * 1024,
			ReadTimeout:               90 * time.Second,
			AcceptLoopInterruptPeriod: 5 * time.Second,
			Multicore:                 true,
		},
		HTTP: HTTP{
			KeepAliveMaxCount:   100,
			FileBufferThreshold: 256 * 1024,
			FileChunkSize:       64 * 1024,
			ServerName:          "ember",
		},
		WebSocket: WebSocket{
			MaxPayload:     16 * 1024 * 1024,
			ReadBufferSize: 4 * 1024,
		},
		Gateway: Gateway{
			Workers: 64,
			Entry:   "main",
		},
		Log: Log{
			Level: zerolog.InfoLevel,
		},
	}
}
