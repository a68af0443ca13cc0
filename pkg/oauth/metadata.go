package oauth

import (
	"errors"
)

// ServerMetadata is the resolved endpoint pair of an authorization server.
// Immutable once attached to a flow context.
type ServerMetadata struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
}

// DiscoveryDocument is an OAuth 2.0 Authorization Server Metadata (RFC 8414)
// or OIDC discovery document. Only the fields the client consumes are
// modeled; unknown fields are ignored.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer,omitempty"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint,omitempty"`
	JWKSURI               string `json:"jwks_uri,omitempty"`
}

// Validate checks that the document carries both endpoints the
// authorization code flow requires.
func (d *DiscoveryDocument) Validate() error {
	if d.AuthorizationEndpoint == "" {
		return errors.New("discovery document is missing authorization_endpoint")
	}
	if d.TokenEndpoint == "" {
		return errors.New("discovery document is missing token_endpoint")
	}
	return nil
}

// Metadata returns the endpoint pair of a validated document.
func (d *DiscoveryDocument) Metadata() *ServerMetadata {
	return &ServerMetadata{
		AuthorizationEndpoint: d.AuthorizationEndpoint,
		TokenEndpoint:         d.TokenEndpoint,
	}
}
