// Package discovery resolves authorization server references into the
// concrete endpoint pair the authorization code flow needs.
//
// A server reference takes one of three forms:
//   - an explicit {authorization_endpoint, token_endpoint} pair, returned
//     unchanged;
//   - a well-known discovery document URL, fetched and validated;
//   - a plain base URL, from which endpoints are derived by convention.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aidant/authorization-code-pkce/pkg/logger"
	"github.com/aidant/authorization-code-pkce/pkg/networking"
	"github.com/aidant/authorization-code-pkce/pkg/oauth"
)

// UserAgent is sent on metadata document requests.
const UserAgent = "authorization-code-pkce/1.0"

// maxResponseSize caps discovery document bodies to prevent DoS.
const maxResponseSize = 1024 * 1024 // 1MB

// Well-known path segments that mark a reference as a discovery document URL.
const (
	wellKnownOAuth = "/.well-known/oauth-authorization-server"
	wellKnownOIDC  = "/.well-known/openid-configuration"
)

// ServerRef references an authorization server either by explicit endpoints
// or by URL. Exactly one of Metadata and URL should be set; Metadata wins if
// both are.
type ServerRef struct {
	Metadata *oauth.ServerMetadata
	URL      string
}

// ServerURL references an authorization server by discovery document URL or
// base URL.
func ServerURL(rawURL string) ServerRef {
	return ServerRef{URL: rawURL}
}

// ServerEndpoints references an authorization server by its explicit
// endpoint pair.
func ServerEndpoints(authorizationEndpoint, tokenEndpoint string) ServerRef {
	return ServerRef{Metadata: &oauth.ServerMetadata{
		AuthorizationEndpoint: authorizationEndpoint,
		TokenEndpoint:         tokenEndpoint,
	}}
}

// Resolver resolves server references, fetching discovery documents over
// HTTP when needed. The zero value is not usable; use NewResolver.
type Resolver struct {
	client networking.HTTPClient
}

// NewResolver creates a resolver. A nil client selects the default HTTP
// client with the standard timeouts.
func NewResolver(client networking.HTTPClient) *Resolver {
	if client == nil {
		client = networking.DefaultClient()
	}
	return &Resolver{client: client}
}

// Resolve turns a server reference into a concrete endpoint pair. This is
// the only part of the flow permitted to perform a network call before the
// user interacts with anything.
func (r *Resolver) Resolve(ctx context.Context, ref ServerRef) (*oauth.ServerMetadata, error) {
	if ref.Metadata != nil {
		if err := validateMetadata(ref.Metadata); err != nil {
			return nil, err
		}
		return ref.Metadata, nil
	}

	if ref.URL == "" {
		return nil, fmt.Errorf("server reference is empty")
	}

	if strings.Contains(ref.URL, wellKnownOAuth) || strings.Contains(ref.URL, wellKnownOIDC) {
		return r.fetchDocument(ctx, ref.URL)
	}

	// Base URL convention: collapse a trailing slash, then append the
	// conventional endpoint paths.
	base := strings.TrimSuffix(ref.URL, "/")
	metadata := &oauth.ServerMetadata{
		AuthorizationEndpoint: base + "/authorize",
		TokenEndpoint:         base + "/token",
	}
	if err := validateMetadata(metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

// fetchDocument retrieves and validates a discovery document.
func (r *Resolver) fetchDocument(ctx context.Context, rawURL string) (*oauth.ServerMetadata, error) {
	if err := networking.ValidateEndpointURL(rawURL); err != nil {
		return nil, fmt.Errorf("invalid discovery URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Debugf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %d", rawURL, resp.StatusCode)
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		return nil, fmt.Errorf("%s: unexpected content-type %q", rawURL, ct)
	}

	var doc oauth.DiscoveryDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: unexpected response: %w", rawURL, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid metadata: %w", rawURL, err)
	}

	return doc.Metadata(), nil
}

// Resolve resolves a server reference using the default resolver.
func Resolve(ctx context.Context, ref ServerRef) (*oauth.ServerMetadata, error) {
	return NewResolver(nil).Resolve(ctx, ref)
}

func validateMetadata(metadata *oauth.ServerMetadata) error {
	if err := networking.ValidateEndpointURL(metadata.AuthorizationEndpoint); err != nil {
		return fmt.Errorf("invalid authorization endpoint: %w", err)
	}
	if err := networking.ValidateEndpointURL(metadata.TokenEndpoint); err != nil {
		return fmt.Errorf("invalid token endpoint: %w", err)
	}
	return nil
}
