// Package gateway runs per-route scripts producing responses. The script engine itself is
// external and consumed through the Script interface.
package gateway

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/indigo-web/ember/config"
	"github.com/indigo-web/ember/http"
	"github.com/indigo-web/ember/http/mime"
	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/transport"
	json "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

// Script is a single compiled module of the script engine. A new instance is created for
// every request, so implementations need no synchronization.
type Script interface {
	// Prepare exposes the request environment and payload to the script.
	Prepare(env map[string]string, input Input) error
	LoadCode(path string) error
	Compile() error
	// Execute runs the entry function. A non-nil error means the script raised an
	// exception, which is described by ExceptionString.
	Execute(entry string) (Result, error)
	ExceptionString() string
}

// Input is the request payload, the script's stdin. It's only valid until the script
// finishes.
type Input struct {
	Body      []byte
	Resources []http.Resource
}

// Factory instantiates a script engine.
type Factory func() Script

// Result is what the script produced. If Value is set, it's rendered as a JSON envelope,
// otherwise HTML is sent as is.
type Result struct {
	Code    status.Code
	Headers map[string]string
	HTML    string
	Value   any
}

type envelope struct {
	Status int `json:"status"`
	Result any `json:"result"`
}

// Frame runs a single script execution for a connection.
type Frame struct {
	conn    transport.Conn
	cfg     config.Gateway
	factory Factory
	log     zerolog.Logger
}

func NewFrame(conn transport.Conn, cfg config.Gateway, factory Factory, log zerolog.Logger) *Frame {
	return &Frame{
		conn:    conn,
		cfg:     cfg,
		factory: factory,
		log:     log,
	}
}

// Run executes the script at path off the I/O path and resumes with the response filled in.
func (f *Frame) Run(request *http.Request, path string, then func(*http.Response)) {
	var (
		env       = Environment(request, path)
		input     = Input{Body: request.Body, Resources: request.Resources}
		result    Result
		err       error
		exception string
	)

	f.conn.Offload(func() {
		result, exception, err = f.execute(env, input, path)
	}, func() {
		then(f.respond(request, result, exception, err))
	})
}

func (f *Frame) execute(env map[string]string, input Input, path string) (result Result, exception string, err error) {
	script := f.factory()

	if err = script.Prepare(env, input); err != nil {
		return result, "", fmt.Errorf("prepare: %w", err)
	}

	if err = script.LoadCode(path); err != nil {
		return result, "", fmt.Errorf("load %s: %w", path, err)
	}

	if err = script.Compile(); err != nil {
		return result, script.ExceptionString(), fmt.Errorf("compile: %w", err)
	}

	result, err = script.Execute(f.cfg.Entry)
	if err != nil {
		return result, script.ExceptionString(), err
	}

	return result, "", nil
}

func (f *Frame) respond(request *http.Request, result Result, exception string, err error) *http.Response {
	response := request.Respond()
	if err != nil {
		f.log.Error().Err(err).Str("path", request.Path).Str("exception", exception).Msg("gateway script failed")
		response.Code(status.InternalServerError)
		if len(exception) > 0 {
			response.String("<pre>" + html.EscapeString(exception) + "</pre>")
			response.Reveal().Rendered = true
		}

		return response
	}

	code := result.Code
	if code == 0 {
		code = status.OK
	}

	response.Code(code)
	for key, value := range result.Headers {
		response.SetHeader(key, value)
	}

	if result.Value == nil {
		return response.ContentType(mime.HTML).String(result.HTML)
	}

	body, err := json.Marshal(envelope{Status: int(code), Result: result.Value})
	if err != nil {
		return response.Error(err)
	}

	return response.ContentType(mime.JSON).Bytes(body)
}

// Environment builds the CGI-like set of variables exposed to scripts.
func Environment(request *http.Request, path string) map[string]string {
	env := make(map[string]string, 8+request.Headers.Len())
	env["REQUEST_METHOD"] = request.Method.String()
	env["REQUEST_URI"] = request.URI
	env["PATH_INFO"] = request.Path
	env["QUERY_STRING"] = request.Query
	env["SCRIPT_FILENAME"] = path
	env["SERVER_PROTOCOL"] = request.Protocol.String()
	env["CONTENT_LENGTH"] = strconv.FormatInt(max(request.ContentLength, 0), 10)
	env["CONTENT_TYPE"] = request.ContentType
	if request.Remote != nil {
		env["REMOTE_ADDR"] = request.Remote.String()
	}

	for key, value := range request.Headers.Iter() {
		name := "HTTP_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		if prev, found := env[name]; found {
			value = prev + ", " + value
		}

		env[name] = value
	}

	return env
}
