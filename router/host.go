package router

import (
	"strings"

	"golang.org/x/net/idna"
)

// NormalizeHost brings the host into the form sites are matched by: lower-cased ASCII
// (punycode) without the www. prefix and without default ports.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "www.")

	name, port := host, ""
	if colon := strings.LastIndexByte(host, ':'); colon != -1 && !strings.HasSuffix(host, "]") {
		name, port = host[:colon], host[colon+1:]
	}

	switch port {
	case "80", "443":
		// trim only default ports. Non-default must always be presented
		port = ""
	}

	if ascii, err := idna.Lookup.ToASCII(name); err == nil {
		name = ascii
	}

	if len(port) > 0 {
		return name + ":" + port
	}

	return name
}

// TrimPort returns the host without the port.
func TrimPort(host string) string {
	if colon := strings.LastIndexByte(host, ':'); colon != -1 && !strings.HasSuffix(host, "]") {
		return host[:colon]
	}

	return host
}
