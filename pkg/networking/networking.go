// Package networking provides the small amount of network plumbing the
// authorization-code client needs: picking a port for the loopback callback
// server, validating endpoint URLs before they are used, and a shared HTTP
// client shape that tests can substitute.
package networking

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	// HTTPTimeout is the timeout for outgoing HTTP requests.
	HTTPTimeout = 30 * time.Second

	// TLSHandshakeTimeout is the timeout for the TLS handshake on outgoing requests.
	TLSHandshakeTimeout = 10 * time.Second

	// ResponseHeaderTimeout is the timeout for receiving response headers on outgoing requests.
	ResponseHeaderTimeout = 10 * time.Second
)

// HTTPClient is the interface consumed by code that performs HTTP requests,
// satisfied by *http.Client and by test doubles.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultClient returns an HTTP client with the package timeouts applied.
func DefaultClient() *http.Client {
	return &http.Client{
		Timeout: HTTPTimeout,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
		},
	}
}

// FindOrUsePort checks if the provided port is available or finds an available
// port if none is provided. If port is 0, an ephemeral port is selected by the
// kernel. Returns the selected port.
func FindOrUsePort(port int) (int, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return 0, fmt.Errorf("port %d is not available: %w", port, err)
	}
	selected := listener.Addr().(*net.TCPAddr).Port
	if err := listener.Close(); err != nil {
		return 0, fmt.Errorf("failed to release probe listener: %w", err)
	}
	return selected, nil
}

// ValidateEndpointURL validates that an OAuth endpoint URL is absolute and
// uses HTTPS, with an exception for loopback addresses to allow local
// development against test identity providers.
func ValidateEndpointURL(endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must be absolute: %s", endpoint)
	}

	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		if isLoopbackHost(parsed.Hostname()) {
			return nil
		}
		return fmt.Errorf("HTTP is only allowed for loopback addresses: %s", endpoint)
	default:
		return fmt.Errorf("unsupported URL scheme %q: %s", parsed.Scheme, endpoint)
	}
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
