package flow

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of terminal failure kinds an authorization
// code flow can end in. No failure is recovered automatically; retries mean
// re-running the whole flow with a fresh context.
type ErrorCode string

const (
	// ErrorWindowCreateFailed means the authorization context (the user's
	// browser) could not be opened.
	ErrorWindowCreateFailed ErrorCode = "window-create-failed"

	// ErrorNoResponse means the channel resolved with an absent payload:
	// the callback endpoint was reached outside a genuine redirect.
	ErrorNoResponse ErrorCode = "no-response"

	// ErrorStateMismatch means the response's state does not equal the
	// request's state, evidence of a forged or misrouted callback.
	ErrorStateMismatch ErrorCode = "state-mismatch"

	// ErrorAuthorizationCodeErrorResponse means the authorization server
	// answered the first leg with an error response.
	ErrorAuthorizationCodeErrorResponse ErrorCode = "authorization-code-error-response"

	// ErrorAccessTokenErrorResponse means the token endpoint answered the
	// second leg with a non-success status and an error body.
	ErrorAccessTokenErrorResponse ErrorCode = "access-token-error-response"

	// ErrorMetadataResolution means the server reference could not be
	// resolved to an endpoint pair.
	ErrorMetadataResolution ErrorCode = "metadata-resolution-error"

	// ErrorTimeout means no callback arrived within the flow's wait budget.
	ErrorTimeout ErrorCode = "timeout"
)

// AuthorizationCodeError is the one typed error surfaced by the flow. It
// tags the failure with a code from the closed enumeration and carries the
// raw offending server response, if any, for caller diagnostics.
type AuthorizationCodeError struct {
	Code ErrorCode

	// Response is the *oauth.AuthorizationResponse or
	// *oauth.AccessTokenErrorResponse that triggered the failure; nil when
	// no server response was involved.
	Response any

	cause error
}

func (e *AuthorizationCodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.cause)
	}
	return string(e.Code)
}

func (e *AuthorizationCodeError) Unwrap() error {
	return e.cause
}

func newError(code ErrorCode, response any) *AuthorizationCodeError {
	return &AuthorizationCodeError{Code: code, Response: response}
}

func wrapError(code ErrorCode, cause error) *AuthorizationCodeError {
	return &AuthorizationCodeError{Code: code, cause: cause}
}

// AsAuthorizationCodeError unwraps err into an *AuthorizationCodeError if
// one is in its chain.
func AsAuthorizationCodeError(err error) (*AuthorizationCodeError, bool) {
	var flowErr *AuthorizationCodeError
	ok := errors.As(err, &flowErr)
	return flowErr, ok
}
