package flow

import (
	"context"
	"encoding/json"
	"errors"

	"golang.org/x/oauth2"

	"github.com/aidant/authorization-code-pkce/pkg/oauth"
)

// Exchange validates the authorization response against the flow context,
// then exchanges the authorization code for an access token.
//
// Validation is ordered and fails fast: absent response, then state
// mismatch, then error-shaped response. The state check runs before the
// error check, so an error response with a wrong state reports a state
// mismatch.
func Exchange(
	ctx context.Context,
	flowCtx *Context,
	response *oauth.AuthorizationResponse,
) (*oauth.AccessTokenSuccessResponse, error) {
	if response == nil {
		return nil, newError(ErrorNoResponse, nil)
	}
	if response.State != flowCtx.AuthorizationRequest.State {
		return nil, newError(ErrorStateMismatch, response)
	}
	if response.IsError() {
		return nil, newError(ErrorAuthorizationCodeErrorResponse, response)
	}

	conf := flowCtx.oauth2Config()
	token, err := conf.Exchange(ctx, response.Code,
		oauth2.SetAuthURLParam("code_verifier", flowCtx.AccessTokenRequest.CodeVerifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, newError(ErrorAccessTokenErrorResponse, tokenErrorBody(retrieveErr))
		}
		// No HTTP response at all; a transport failure, not part of the
		// protocol taxonomy.
		return nil, err
	}

	success := &oauth.AccessTokenSuccessResponse{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		ExpiresIn:    token.ExpiresIn,
		RefreshToken: token.RefreshToken,
	}
	if scope, ok := token.Extra("scope").(string); ok {
		success.Scope = scope
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		success.IDToken = idToken
	}
	return success, nil
}

// oauth2Config maps the flow context onto an oauth2 client configuration.
// AuthStyleInParams keeps the client_id in the form body, as required for
// public clients without a secret.
func (c *Context) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.AccessTokenRequest.ClientID,
		RedirectURL: c.AccessTokenRequest.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.Metadata.AuthorizationEndpoint,
			TokenURL:  c.Metadata.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// tokenErrorBody extracts the error body of a failed token response,
// best-effort. The oauth2 package parses RFC 6749 error bodies itself; for
// anything else we try the raw body, and settle for nil when it is not an
// error document at all.
func tokenErrorBody(retrieveErr *oauth2.RetrieveError) *oauth.AccessTokenErrorResponse {
	if retrieveErr.ErrorCode != "" {
		return &oauth.AccessTokenErrorResponse{
			Error:            retrieveErr.ErrorCode,
			ErrorDescription: retrieveErr.ErrorDescription,
			ErrorURI:         retrieveErr.ErrorURI,
		}
	}

	var body oauth.AccessTokenErrorResponse
	if err := json.Unmarshal(retrieveErr.Body, &body); err == nil && body.Error != "" {
		return &body
	}
	return nil
}
