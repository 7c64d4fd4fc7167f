package utils

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// AddrToURL turns a listen address (`host:port` or `:port`) into an http URL.
func AddrToURL(addr string) (string, error) {
	if strings.Contains(addr, "://") {
		return "", fmt.Errorf("address must not contain a scheme: %q", addr)
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	if port == "" {
		return "", fmt.Errorf("missing port in %q", addr)
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return "http://" + net.JoinHostPort(host, port), nil
}
