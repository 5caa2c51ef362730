package uridecode

import (
	"bytes"
	"unicode/utf8"

	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/internal/hexconv"
)

// Decode normalizes the URI by translating escaped characters into their true form. Both
// %XX and the non-standard %uXXXX forms are recognized, the latter being encoded as UTF-8.
// The source is returned unchanged if nothing needs to be decoded.
func Decode(src, buff []byte) ([]byte, error) {
	i := bytes.IndexByte(src, '%')
	if i == -1 {
		return src, nil
	}

	for ; i != -1; i = bytes.IndexByte(src, '%') {
		buff = append(buff, src[:i]...)
		src = src[i+1:]

		if len(src) > 0 && (src[0] == 'u' || src[0] == 'U') {
			if len(src) < 5 {
				return nil, status.ErrURIDecoding
			}

			r, ok := hexconv.Parse(src[1:5])
			if !ok {
				return nil, status.ErrURIDecoding
			}

			buff = utf8.AppendRune(buff, rune(r))
			src = src[5:]
			continue
		}

		if len(src) < 2 {
			return nil, status.ErrURIDecoding
		}

		hi, lo := hexconv.Halfbyte[src[0]], hexconv.Halfbyte[src[1]]
		if hi == hexconv.Invalid || lo == hexconv.Invalid {
			return nil, status.ErrURIDecoding
		}

		buff = append(buff, hi<<4|lo)
		src = src[2:]
	}

	return append(buff, src...), nil
}

// ConstructPath normalizes the decoded path and appends it to dst: repeating slashes are
// collapsed, `.` segments are dropped and `..` segments remove the previous one. It's
// impossible to climb above the root, so the result always starts with a slash and never
// contains `..` segments.
func ConstructPath(dst, path []byte) []byte {
	root := len(dst)
	out := append(dst, '/')

	for len(path) > 0 {
		var segment []byte
		if slash := bytes.IndexByte(path, '/'); slash != -1 {
			segment, path = path[:slash], path[slash+1:]
		} else {
			segment, path = path, nil
		}

		switch string(segment) {
		case "", ".":
			continue
		case "..":
			out = out[:root+len(parent(out[root:]))]
			continue
		}

		if len(out)-root > 1 {
			out = append(out, '/')
		}

		out = append(out, segment...)
	}

	return out
}

func parent(path []byte) []byte {
	if len(path) <= 1 {
		return path
	}

	return path[:max(bytes.LastIndexByte(path, '/'), 1)]
}
