package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

// Version returns the build version embedded in the binary.
func Version() string {
	return strings.TrimSpace(version)
}

type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

// RoundTrip implements the http.RoundTripper interface.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original request's headers
	// which might be shared or reused
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.transport.RoundTrip(req)
}

// HTTPClient returns a default http client with the EnergiWatch user-agent set.
// A zero timeout means the caller's context is the only deadline.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &userAgentTransport{
			transport: http.DefaultTransport,
			userAgent: "EnergiWatch/" + Version(),
		},
		Timeout: timeout,
	}
}
