package oauth

import (
	"net/url"
)

// Authorization endpoint error codes from RFC 6749 section 4.1.2.1.
const (
	ErrorAccessDenied            = "access_denied"
	ErrorInvalidRequest          = "invalid_request"
	ErrorInvalidScope            = "invalid_scope"
	ErrorServerError             = "server_error"
	ErrorTemporarilyUnavailable  = "temporarily_unavailable"
	ErrorUnauthorizedClient      = "unauthorized_client"
	ErrorUnsupportedResponseType = "unsupported_response_type"
)

// Token endpoint error codes from RFC 6749 section 5.2.
const (
	ErrorInvalidClient        = "invalid_client"
	ErrorInvalidGrant         = "invalid_grant"
	ErrorUnsupportedGrantType = "unsupported_grant_type"
)

// ReservedParameters are authorization request keys whose values are always
// generated by the client. Caller-supplied values for these keys are ignored.
var ReservedParameters = []string{"response_type", "code_challenge", "code_challenge_method", "state"}

// AuthorizationRequest holds the query parameters of the first leg of the
// authorization code flow. All fields are fixed at context creation except
// Extra, which carries caller pass-through parameters for server-specific
// extensions.
type AuthorizationRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Extra               map[string]string
}

// Values serializes the request as form/query values. Empty fields are
// omitted rather than serialized as empty strings, and reserved keys in
// Extra cannot shadow the generated fields.
func (r *AuthorizationRequest) Values() url.Values {
	values := url.Values{}
	for key, value := range r.Extra {
		if value != "" && !isReserved(key) {
			values.Set(key, value)
		}
	}
	setNonEmpty(values, "response_type", r.ResponseType)
	setNonEmpty(values, "client_id", r.ClientID)
	setNonEmpty(values, "redirect_uri", r.RedirectURI)
	setNonEmpty(values, "scope", r.Scope)
	setNonEmpty(values, "state", r.State)
	setNonEmpty(values, "code_challenge", r.CodeChallenge)
	setNonEmpty(values, "code_challenge_method", r.CodeChallengeMethod)
	return values
}

// AccessTokenRequest holds the form body of the second leg, the
// code-for-token exchange. Code is filled in once the authorization
// response arrives.
type AccessTokenRequest struct {
	GrantType    string
	Code         string
	CodeVerifier string
	RedirectURI  string
	ClientID     string
}

// Values serializes the request as an application/x-www-form-urlencoded
// body. Empty fields are omitted.
func (r *AccessTokenRequest) Values() url.Values {
	values := url.Values{}
	setNonEmpty(values, "grant_type", r.GrantType)
	setNonEmpty(values, "code", r.Code)
	setNonEmpty(values, "code_verifier", r.CodeVerifier)
	setNonEmpty(values, "redirect_uri", r.RedirectURI)
	setNonEmpty(values, "client_id", r.ClientID)
	return values
}

// AuthorizationResponse is the response delivered on the redirect target
// URL: either a success shape carrying a code, or an error shape carrying
// an error code. A nil *AuthorizationResponse means no response was
// received at all.
type AuthorizationResponse struct {
	Code             string `json:"code,omitempty"`
	State            string `json:"state,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

// IsError reports whether the response is the error shape.
func (r *AuthorizationResponse) IsError() bool {
	return r != nil && r.Error != ""
}

// ParseAuthorizationResponse extracts an authorization response from
// redirect callback query parameters. It returns nil when the query carries
// neither a code nor an error, which happens when the callback endpoint is
// visited outside a genuine redirect.
func ParseAuthorizationResponse(query url.Values) *AuthorizationResponse {
	if query.Get("code") == "" && query.Get("error") == "" {
		return nil
	}
	return &AuthorizationResponse{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
		ErrorURI:         query.Get("error_uri"),
	}
}

// AccessTokenSuccessResponse is the JSON body of a successful token
// endpoint response, returned to the caller verbatim.
type AccessTokenSuccessResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// AccessTokenErrorResponse is the JSON body of a failed token endpoint
// response, signaled by a non-2xx HTTP status.
type AccessTokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

func setNonEmpty(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}

func isReserved(key string) bool {
	for _, reserved := range ReservedParameters {
		if key == reserved {
			return true
		}
	}
	return false
}
