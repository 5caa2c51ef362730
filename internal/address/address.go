package address

import (
	"net"
	"strings"
)

const DefaultHost = "0.0.0.0"

// Normalize fills the host in when only the port is given, e.g. ":8080".
func Normalize(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return DefaultHost + addr
	}

	return addr
}

func IsLocalhost(addr string) bool {
	host := Host(addr)
	if strings.EqualFold(host, "localhost") {
		return true
	}

	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Host strips the port, if any. IPv6 brackets are removed as well.
func Host(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.Trim(addr, "[]")
	}

	return host
}
