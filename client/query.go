package client

import (
	"net/url"
	"slices"
)

// Query holds the query parameters of an outgoing request.
type Query map[string][]string

func NewQuery() Query {
	return make(Query)
}

func (q Query) WithValue(key string, values ...string) Query {
	q[key] = append(q[key], values...)
	return q
}

// appendTo renders the query with keys sorted, so the output is stable.
func (q Query) appendTo(dst []byte) []byte {
	keys := make([]string, 0, len(q))
	for key := range q {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for i, key := range keys {
		for j, value := range q[key] {
			if i > 0 || j > 0 {
				dst = append(dst, '&')
			}

			dst = append(dst, url.QueryEscape(key)...)
			dst = append(dst, '=')
			dst = append(dst, url.QueryEscape(value)...)
		}
	}

	return dst
}
