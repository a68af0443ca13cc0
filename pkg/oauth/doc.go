// Package oauth provides shared RFC-defined types and constants for the
// OAuth 2.0 authorization code flow: authorization requests and responses,
// access token requests and responses, and authorization server metadata.
// It serves as the wire-format foundation for the flow, discovery, and
// callback packages.
package oauth
