// Package hostport splits and joins node addresses that may or may not carry
// a port. Bare IPv6 addresses must be bracketed, since an unbracketed one
// cannot be told apart from host:port.
package hostport

import (
	"errors"
	"net"
	"strings"
)

// Split splits a network address of the form "host", "host:port", "[host]",
// "[host]:port", "[ipv6-host%zone]", or "[ipv6-host%zone]:port" into host or
// ipv6-host%zone and port. Port will be an empty string if not supplied.
func Split(hostport string) (host string, port string, err error) {
	if hostport == "" {
		return "", "", nil
	}

	// Limit literal brackets to max one open and one closed
	openPos := strings.Index(hostport, "[")
	if openPos != strings.LastIndex(hostport, "[") {
		return "", "", errors.New("too many '['")
	}
	closePos := strings.Index(hostport, "]")
	if closePos != strings.LastIndex(hostport, "]") {
		return "", "", errors.New("too many ']'")
	}

	var rawport string
	switch {
	case openPos > -1:
		if openPos != 0 {
			return "", "", errors.New("nothing can come before '['")
		}
		if closePos == -1 {
			return "", "", errors.New("missing ']'")
		}
		host = hostport[1:closePos]
		rawport = hostport[closePos+1:]
	case closePos > -1:
		return "", "", errors.New("missing '['")
	default:
		// No literal brackets, split on the last :
		splitPos := strings.LastIndex(hostport, ":")
		if splitPos < 0 {
			return hostport, "", nil
		}
		host = hostport[:splitPos]
		rawport = hostport[splitPos:]
	}

	if rawport != "" {
		if strings.LastIndex(rawport, ":") != 0 {
			return "", "", errors.New("poorly separated or formatted port")
		}
		port = rawport[1:]
	}
	return host, port, nil
}

// Join returns address as host:port, using defaultPort when address does not
// carry one
func Join(address, defaultPort string) (string, error) {
	host, port, err := Split(address)
	if err != nil {
		return "", err
	}
	if host == "" {
		return "", errors.New("missing host")
	}
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(host, port), nil
}
