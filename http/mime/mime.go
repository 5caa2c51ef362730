package mime

import (
	"sort"
	"strings"

	"github.com/indigo-web/utils/strcomp"
)

type MIME = string

const (
	OctetStream    MIME = "application/octet-stream"
	Plain          MIME = "text/plain"
	HTML           MIME = "text/html"
	XML            MIME = "text/xml"
	JSON           MIME = "application/json"
	YAML           MIME = "application/yaml"
	PDF            MIME = "application/pdf"
	FormUrlencoded MIME = "application/x-www-form-urlencoded"
	Multipart      MIME = "multipart/form-data"
	ByteRanges     MIME = "multipart/byteranges"
	ZIP            MIME = "application/zip"
	GZIP           MIME = "application/gzip"
	ZSTD           MIME = "application/zstd"
	AVIF           MIME = "image/avif"
	CSS            MIME = "text/css"
	CSV            MIME = "text/csv"
	GIF            MIME = "image/gif"
	JPEG           MIME = "image/jpeg"
	PNG            MIME = "image/png"
	SVG            MIME = "image/svg+xml"
	ICO            MIME = "image/vnd.microsoft.icon"
	WEBP           MIME = "image/webp"
	JS             MIME = "text/javascript"
	WASM           MIME = "application/wasm"
	MP3            MIME = "audio/mpeg"
	MP4            MIME = "video/mp4"
	WEBM           MIME = "video/webm"
	OGG            MIME = "audio/ogg"
	WOFF           MIME = "font/woff"
	WOFF2          MIME = "font/woff2"
	TTF            MIME = "font/ttf"
	Markdown       MIME = "text/markdown"
	TAR            MIME = "application/x-tar"
)

type entry struct {
	ext  string
	mime MIME
}

// table must stay sorted by extension, as lookups are binary searches over it.
var table = [...]entry{
	{"avif", AVIF},
	{"bin", OctetStream},
	{"css", CSS},
	{"csv", CSV},
	{"gif", GIF},
	{"gz", GZIP},
	{"htm", HTML},
	{"html", HTML},
	{"ico", ICO},
	{"jpeg", JPEG},
	{"jpg", JPEG},
	{"js", JS},
	{"json", JSON},
	{"md", Markdown},
	{"mjs", JS},
	{"mp3", MP3},
	{"mp4", MP4},
	{"ogg", OGG},
	{"pdf", PDF},
	{"png", PNG},
	{"svg", SVG},
	{"tar", TAR},
	{"ttf", TTF},
	{"txt", Plain},
	{"wasm", WASM},
	{"webm", WEBM},
	{"webp", WEBP},
	{"woff", WOFF},
	{"woff2", WOFF2},
	{"xml", XML},
	{"yaml", YAML},
	{"yml", YAML},
	{"zip", ZIP},
	{"zst", ZSTD},
}

// ByExtension looks the extension (with or without the leading dot) up in the built-in
// table. Returns an empty string if nothing was found.
func ByExtension(ext string) MIME {
	ext = strings.TrimPrefix(ext, ".")
	if len(ext) == 0 {
		return ""
	}

	i := sort.Search(len(table), func(i int) bool {
		return compareFold(table[i].ext, ext) >= 0
	})
	if i < len(table) && strcomp.EqualFold(table[i].ext, ext) {
		return table[i].mime
	}

	return ""
}

// Resolve picks a MIME for the filename: the built-in table goes first, the custom
// overrides (extension without a dot -> MIME) second and OctetStream is the last resort.
func Resolve(filename string, custom map[string]MIME) MIME {
	ext := Ext(filename)
	if m := ByExtension(ext); len(m) > 0 {
		return m
	}

	for key, m := range custom {
		if strcomp.EqualFold(strings.TrimPrefix(key, "."), ext) {
			return m
		}
	}

	return OctetStream
}

// Ext returns the extension of the last path segment without the dot.
func Ext(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		switch filename[i] {
		case '.':
			return filename[i+1:]
		case '/':
			return ""
		}
	}

	return ""
}

// Complies returns whether two MIMEs are compatible. Empty MIME is
// considered compatible with any other MIME
func Complies(mime MIME, with string) bool {
	if sep := strings.IndexByte(with, ';'); sep != -1 {
		with = with[:sep]
	}

	return len(with) == 0 || with == mime
}

// compareFold compares the table key, which is always lower-cased, against an arbitrary
// cased extension.
func compareFold(key, ext string) int {
	for i := 0; i < len(key) && i < len(ext); i++ {
		c := ext[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}

		switch {
		case key[i] < c:
			return -1
		case key[i] > c:
			return 1
		}
	}

	return len(key) - len(ext)
}
