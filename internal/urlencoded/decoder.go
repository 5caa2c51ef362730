// Package urlencoded decodes application/x-www-form-urlencoded data, which is also the
// format of query strings.
package urlencoded

import (
	"strings"

	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/internal/hexconv"
	"github.com/indigo-web/ember/kv"
)

// Decode unescapes %XX sequences and pluses. The result is appended to dst, unless there
// was nothing to unescape, in which case src is returned as is.
func Decode(src string, dst []byte) (decoded string, buffer []byte, err error) {
	if strings.IndexByte(src, '%') == -1 && strings.IndexByte(src, '+') == -1 {
		return src, dst, nil
	}

	head := len(dst)
	for i := 0; i < len(src); i++ {
		switch c := src[i]; c {
		case '+':
			dst = append(dst, ' ')
		case '%':
			if len(src)-i < 3 {
				return "", dst, status.ErrURIDecoding
			}

			a, b := hexconv.Halfbyte[src[i+1]], hexconv.Halfbyte[src[i+2]]
			if a|b > 0x0f {
				return "", dst, status.ErrURIDecoding
			}

			dst = append(dst, a<<4|b)
			i += 2
		default:
			dst = append(dst, c)
		}
	}

	return string(dst[head:]), dst, nil
}

// Parse splits the data into the pairs and adds them decoded into the storage. Pairs with
// no equality sign get an empty value, and empty pairs are skipped.
func Parse(data string, into *kv.Storage, buff []byte) ([]byte, error) {
	for data != "" {
		var pair string
		pair, data, _ = strings.Cut(data, "&")
		if len(pair) == 0 {
			continue
		}

		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, b, err := Decode(rawKey, buff[:0])
		if err != nil {
			return b, err
		}

		key = strings.Clone(key)
		value, b, err := Decode(rawValue, b[:0])
		if err != nil {
			return b, err
		}

		into.Add(key, strings.Clone(value))
		buff = b
	}

	return buff, nil
}
