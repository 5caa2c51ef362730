package transport

import "bytes"

// ReadUntil implements ReadUntilAsync on top of ReadAsync and Pushback. The accumulator is
// reused between calls, so the delivered data is valid until the next ReadUntil.
func ReadUntil(conn Conn, acc *[]byte, delim []byte, limit int, cb ReadCallback) {
	*acc = (*acc)[:0]
	readUntil(conn, acc, delim, limit, 0, cb)
}

func readUntil(conn Conn, acc *[]byte, delim []byte, limit, scanned int, cb ReadCallback) {
	conn.ReadAsync(0, func(data []byte, err error) {
		if err != nil {
			cb(nil, err)
			return
		}

		*acc = append(*acc, data...)
		if idx := bytes.Index((*acc)[scanned:], delim); idx != -1 {
			end := scanned + idx + len(delim)
			if end > limit {
				cb(nil, ErrTooLong)
				return
			}

			if rest := (*acc)[end:]; len(rest) > 0 {
				conn.Pushback(rest)
			}

			cb((*acc)[:end], nil)
			return
		}

		if len(*acc) >= limit {
			cb(nil, ErrTooLong)
			return
		}

		readUntil(conn, acc, delim, limit, max(0, len(*acc)-len(delim)+1), cb)
	})
}
