package flow

import (
	"fmt"
	"net/url"
)

// AuthorizationURL serializes the context's authorization request onto the
// authorization endpoint as query parameters. Pure: it performs no I/O and
// does not modify the context. Parameter encoding is stable (sorted keys)
// so URLs are reproducible for a given context.
func AuthorizationURL(c *Context) (string, error) {
	endpoint, err := url.Parse(c.Metadata.AuthorizationEndpoint)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}

	// Preserve any query parameters baked into the endpoint itself, with
	// request parameters taking precedence on collision.
	query := endpoint.Query()
	for key, values := range c.AuthorizationRequest.Values() {
		query[key] = values
	}
	endpoint.RawQuery = query.Encode()

	return endpoint.String(), nil
}
