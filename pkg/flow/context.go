// Package flow implements the OAuth 2.0 authorization code flow with PKCE
// for a public client: flow context construction, authorization URL
// building, the code-for-token exchange with its validation rules, and the
// orchestrator composing them end to end.
package flow

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/aidant/authorization-code-pkce/pkg/discovery"
	"github.com/aidant/authorization-code-pkce/pkg/oauth"
	"github.com/aidant/authorization-code-pkce/pkg/pkce"
)

// Parameters are the caller-supplied inputs for one authorization attempt.
type Parameters struct {
	// ClientID is the OAuth client ID. Required.
	ClientID string

	// RedirectURI is the redirect target. Optional; the orchestrator
	// defaults it to the loopback callback server.
	RedirectURI string

	// Scope is the space-separated scope string. Optional.
	Scope string

	// Extra parameters are merged verbatim into the authorization request
	// for server-specific extensions. Values for reserved keys
	// (response_type, code_challenge, code_challenge_method, state) are
	// ignored in favor of generated ones.
	Extra map[string]string
}

// Context holds one in-flight authorization attempt: the resolved server
// metadata, the authorization request for the first leg, and the access
// token request template for the second. A Context is single-use and must
// not be shared across attempts; derive a new one with WithParameters
// instead of mutating.
type Context struct {
	Metadata             *oauth.ServerMetadata
	AuthorizationRequest *oauth.AuthorizationRequest
	AccessTokenRequest   *oauth.AccessTokenRequest
}

// NewContext creates a flow context: it generates the state and PKCE codes
// and resolves the server reference. Challenge derivation and metadata
// resolution are independent and run concurrently; any failure aborts the
// context, no partial context is exposed.
func NewContext(ctx context.Context, ref discovery.ServerRef, params Parameters) (*Context, error) {
	return newContext(ctx, discovery.NewResolver(nil), ref, params)
}

func newContext(
	ctx context.Context,
	resolver *discovery.Resolver,
	ref discovery.ServerRef,
	params Parameters,
) (*Context, error) {
	if params.ClientID == "" {
		return nil, errors.New("client ID is required")
	}

	state, err := pkce.GenerateState()
	if err != nil {
		return nil, err
	}
	verifier, err := pkce.GenerateCodeVerifier()
	if err != nil {
		return nil, err
	}

	var (
		metadata  *oauth.ServerMetadata
		challenge string
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		resolved, err := resolver.Resolve(groupCtx, ref)
		if err != nil {
			return wrapError(ErrorMetadataResolution, err)
		}
		metadata = resolved
		return nil
	})
	group.Go(func() error {
		derived, err := pkce.Challenge(verifier, pkce.MethodS256)
		if err != nil {
			return err
		}
		challenge = derived
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return &Context{
		Metadata: metadata,
		AuthorizationRequest: &oauth.AuthorizationRequest{
			ResponseType:        "code",
			ClientID:            params.ClientID,
			RedirectURI:         params.RedirectURI,
			Scope:               params.Scope,
			State:               state,
			CodeChallenge:       challenge,
			CodeChallengeMethod: string(pkce.MethodS256),
			Extra:               cloneExtra(params.Extra),
		},
		AccessTokenRequest: &oauth.AccessTokenRequest{
			GrantType:    "authorization_code",
			CodeVerifier: verifier,
			RedirectURI:  params.RedirectURI,
			ClientID:     params.ClientID,
		},
	}, nil
}

// WithParameters derives a new context carrying the same generated state,
// verifier, challenge, and metadata, but with the caller-controlled request
// parameters replaced. The receiver is left untouched, so a reissued
// request can never race an in-flight exchange.
func (c *Context) WithParameters(params Parameters) *Context {
	return &Context{
		Metadata: c.Metadata,
		AuthorizationRequest: &oauth.AuthorizationRequest{
			ResponseType:        c.AuthorizationRequest.ResponseType,
			ClientID:            params.ClientID,
			RedirectURI:         params.RedirectURI,
			Scope:               params.Scope,
			State:               c.AuthorizationRequest.State,
			CodeChallenge:       c.AuthorizationRequest.CodeChallenge,
			CodeChallengeMethod: c.AuthorizationRequest.CodeChallengeMethod,
			Extra:               cloneExtra(params.Extra),
		},
		AccessTokenRequest: &oauth.AccessTokenRequest{
			GrantType:    c.AccessTokenRequest.GrantType,
			CodeVerifier: c.AccessTokenRequest.CodeVerifier,
			RedirectURI:  params.RedirectURI,
			ClientID:     params.ClientID,
		},
	}
}

func cloneExtra(extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return nil
	}
	clone := make(map[string]string, len(extra))
	for key, value := range extra {
		clone[key] = value
	}
	return clone
}
