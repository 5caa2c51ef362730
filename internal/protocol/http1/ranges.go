package http1

import (
	"errors"
	"strconv"
	"strings"

	"github.com/indigo-web/ember/http/status"
)

// maxRanges limits how many windows a single Range header may request.
const maxRanges = 16

// ErrMalformedRange is returned for Range values that must be ignored: unknown units, broken
// syntax or too many ranges. The whole body is served in that case.
var ErrMalformedRange = errors.New("malformed range")

// Range is a satisfiable window of a body.
type Range struct {
	Offset, Length int64
}

// GetRange resolves a single range-spec against a body of total bytes. A negative start means
// a suffix range (the last end bytes), a negative end means "until the end of the body". The
// resulting window always lies within [0, total).
func GetRange(start, end, total int64) (offset, length int64, ok bool) {
	switch {
	case total <= 0:
		return 0, 0, false
	case start < 0:
		if end <= 0 {
			return 0, 0, false
		}

		offset = total - min(end, total)
		return offset, total - offset, true
	case start >= total:
		return 0, 0, false
	case end < 0 || end >= total:
		end = total - 1
	}

	return start, end - start + 1, true
}

// ParseRange parses a Range header value and appends the satisfiable windows to dst, keeping
// the order they were requested in. If no window is satisfiable, the returned error is
// status.ErrRequestedRangeNotSatisfiable.
func ParseRange(value string, total int64, dst []Range) ([]Range, error) {
	set, found := strings.CutPrefix(strings.TrimSpace(value), "bytes=")
	if !found || len(set) == 0 {
		return dst, ErrMalformedRange
	}

	initial, requested := len(dst), 0
	for set != "" {
		var spec string
		spec, set, _ = strings.Cut(set, ",")
		spec = strings.TrimSpace(spec)
		if len(spec) == 0 {
			continue
		}

		if requested++; requested > maxRanges {
			return dst[:initial], ErrMalformedRange
		}

		start, end, err := parseRangeSpec(spec)
		if err != nil {
			return dst[:initial], err
		}

		if offset, length, ok := GetRange(start, end, total); ok {
			dst = append(dst, Range{Offset: offset, Length: length})
		}
	}

	switch {
	case requested == 0:
		return dst, ErrMalformedRange
	case len(dst) == initial:
		return dst, status.ErrRequestedRangeNotSatisfiable
	default:
		return dst, nil
	}
}

func parseRangeSpec(spec string) (start, end int64, err error) {
	first, last, found := strings.Cut(spec, "-")
	if !found || (len(first) == 0 && len(last) == 0) {
		return 0, 0, ErrMalformedRange
	}

	start, end = -1, -1
	if len(first) > 0 {
		if start, err = parseRangePos(first); err != nil {
			return 0, 0, err
		}
	}

	if len(last) > 0 {
		if end, err = parseRangePos(last); err != nil {
			return 0, 0, err
		}
	}

	if start >= 0 && end >= 0 && start > end {
		return 0, 0, ErrMalformedRange
	}

	return start, end, nil
}

func parseRangePos(pos string) (int64, error) {
	for i := 0; i < len(pos); i++ {
		if pos[i] < '0' || pos[i] > '9' {
			return 0, ErrMalformedRange
		}
	}

	n, err := strconv.ParseInt(pos, 10, 64)
	if err != nil {
		return 0, ErrMalformedRange
	}

	return n, nil
}

// AppendContentRange renders the Content-Range value of a satisfied window.
func AppendContentRange(dst []byte, r Range, total int64) []byte {
	dst = append(dst, "bytes "...)
	dst = strconv.AppendInt(dst, r.Offset, 10)
	dst = append(dst, '-')
	dst = strconv.AppendInt(dst, r.Offset+r.Length-1, 10)
	dst = append(dst, '/')
	return strconv.AppendInt(dst, total, 10)
}

// AppendUnsatisfiedRange renders the Content-Range value of a 416 response.
func AppendUnsatisfiedRange(dst []byte, total int64) []byte {
	dst = append(dst, "bytes */"...)
	return strconv.AppendInt(dst, total, 10)
}

// AppendByteRanges renders a multipart/byteranges body. Every part carries its own
// Content-Type and Content-Range, in the order the ranges were requested.
func AppendByteRanges(dst, body []byte, ranges []Range, contentType, boundary string) []byte {
	total := int64(len(body))

	for _, r := range ranges {
		dst = append(dst, "--"...)
		dst = append(dst, boundary...)
		dst = append(dst, "\r\nContent-Type: "...)
		dst = append(dst, contentType...)
		dst = append(dst, "\r\nContent-Range: "...)
		dst = AppendContentRange(dst, r, total)
		dst = append(dst, "\r\n\r\n"...)
		dst = append(dst, body[r.Offset:r.Offset+r.Length]...)
		dst = append(dst, "\r\n"...)
	}

	dst = append(dst, "--"...)
	dst = append(dst, boundary...)
	return append(dst, "--\r\n"...)
}
