package router

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/indigo-web/ember/gateway"
	"github.com/indigo-web/ember/http"
	"github.com/indigo-web/ember/http/method"
	"github.com/indigo-web/ember/http/mime"
	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/kv"
	"github.com/indigo-web/ember/websocket"
)

// Compression is the per-route compression policy.
type Compression struct {
	Enabled bool
	// MinLength is the smallest body worth compressing.
	MinLength int
	// Patterns are path.Match patterns of compressible file names. Empty list makes
	// everything eligible.
	Patterns []string
	Level    int
	MemLevel int
	// WindowBits above 15 selects gzip framing for deflate, the same as 15|16 does.
	WindowBits int
	// Codecs lists the content codings in the order of preference. Empty list means all
	// the known ones.
	Codecs []string
}

// Eligible reports whether the content is allowed to be compressed.
func (c Compression) Eligible(filename string, length int) bool {
	if !c.Enabled || length < c.MinLength {
		return false
	}

	if len(c.Patterns) == 0 {
		return true
	}

	return matchAny(c.Patterns, filename)
}

// RouteEntry is a single route together with its policy. Entries must not be modified
// after the router was compiled.
type RouteEntry struct {
	// Pattern is a regular expression the whole path must match. Named groups are
	// exposed via Request.Vars.
	Pattern string
	// Methods restricts allowed methods. Empty set allows everything.
	Methods method.Set
	// Root is the directory static files are served from.
	Root string
	// Index files are tried in order when a directory is requested.
	Index       []string
	Compression Compression
	// MaxAge sets Cache-Control: max-age for static content. Zero disables the header.
	MaxAge time.Duration
	Auth   *BasicAuth
	// MIME overrides the built-in table by extensions.
	MIME map[string]mime.MIME
	// Gateway are path.Match patterns of files executed by Script instead of being served.
	Gateway []string
	Script  gateway.Factory
	// WebSocket makes the route accept websocket upgrades.
	WebSocket *websocket.Handlers
	// Headers are added to every successful response verbatim.
	Headers *kv.Storage
	// CORS is the list of allowed origins. "*" allows every origin.
	CORS       []string
	ErrorPages map[status.Code]string
	// MaxBodySize tightens the global body limit. Zero keeps the global one.
	MaxBodySize uint64
	// UploadDir makes multipart parts being stored on the disk instead of the memory.
	UploadDir string
	Sessions  bool
	// Handler produces responses for routes which aren't backed by static files.
	Handler http.Handler

	re *regexp.Regexp
}

func (r *RouteEntry) compile() (err error) {
	r.re, err = regexp.Compile("^(?:" + r.Pattern + ")$")
	return err
}

func (r *RouteEntry) match(path string, vars *kv.Storage) bool {
	groups := r.re.FindStringSubmatch(path)
	if groups == nil {
		return false
	}

	if vars != nil {
		for i, name := range r.re.SubexpNames() {
			if i > 0 && len(name) > 0 {
				vars.Add(name, groups[i])
			}
		}
	}

	return true
}

// Resolve maps the normalized request path onto a file under the route's root. Directories
// are resolved by the index files.
func (r *RouteEntry) Resolve(requestPath string) (string, error) {
	if len(r.Root) == 0 {
		return "", status.ErrNotFound
	}

	file := filepath.Join(r.Root, filepath.FromSlash(path.Clean("/"+requestPath)))
	stat, err := os.Stat(file)
	if err != nil {
		return "", status.ErrNotFound
	}

	if !stat.IsDir() {
		return file, nil
	}

	for _, index := range r.Index {
		candidate := filepath.Join(file, index)
		if stat, err = os.Stat(candidate); err == nil && !stat.IsDir() {
			return candidate, nil
		}
	}

	return "", status.ErrNotFound
}

// IsGateway reports whether the file must be executed rather than served.
func (r *RouteEntry) IsGateway(file string) bool {
	return r.Script != nil && matchAny(r.Gateway, file)
}

// AllowOrigin returns the value for Access-Control-Allow-Origin, if the origin is allowed.
func (r *RouteEntry) AllowOrigin(origin string) (string, bool) {
	if len(origin) == 0 {
		return "", false
	}

	for _, allowed := range r.CORS {
		switch {
		case allowed == "*":
			return "*", true
		case strings.EqualFold(allowed, origin):
			return origin, true
		}
	}

	return "", false
}

// MIMEOf resolves the MIME type of the file, taking the overrides into account.
func (r *RouteEntry) MIMEOf(filename string) mime.MIME {
	return mime.Resolve(filename, r.MIME)
}

func matchAny(patterns []string, file string) bool {
	base := path.Base(filepath.ToSlash(file))
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}

		if ok, _ := path.Match(pattern, filepath.ToSlash(file)); ok {
			return true
		}
	}

	return false
}
