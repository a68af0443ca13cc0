package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidant/authorization-code-pkce/pkg/oauth"
)

func TestResolveExplicitEndpoints(t *testing.T) {
	t.Parallel()

	ref := ServerEndpoints("https://idp.example/oauth/authorize", "https://idp.example/oauth/token")
	metadata, err := Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "https://idp.example/oauth/authorize", metadata.AuthorizationEndpoint)
	assert.Equal(t, "https://idp.example/oauth/token", metadata.TokenEndpoint)
}

func TestResolveExplicitEndpointsRejectsPlainHTTP(t *testing.T) {
	t.Parallel()

	ref := ServerEndpoints("http://idp.example/authorize", "http://idp.example/token")
	_, err := Resolve(context.Background(), ref)
	assert.ErrorContains(t, err, "invalid authorization endpoint")
}

func TestResolveBaseURLConvention(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  string
	}{
		{name: "without trailing slash", ref: "https://idp.example"},
		{name: "with trailing slash", ref: "https://idp.example/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			metadata, err := Resolve(context.Background(), ServerURL(tt.ref))
			require.NoError(t, err)
			assert.Equal(t, "https://idp.example/authorize", metadata.AuthorizationEndpoint)
			assert.Equal(t, "https://idp.example/token", metadata.TokenEndpoint)
		})
	}
}

func TestResolveEmptyReference(t *testing.T) {
	t.Parallel()

	_, err := Resolve(context.Background(), ServerRef{})
	assert.ErrorContains(t, err, "server reference is empty")
}

func TestResolveDiscoveryDocument(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/.well-known/openid-configuration", r.URL.Path)
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"issuer": "https://idp.example",
			"authorization_endpoint": "https://idp.example/oauth/authorize",
			"token_endpoint": "https://idp.example/oauth/token",
			"jwks_uri": "https://idp.example/.well-known/jwks.json"
		}`))
	}))
	defer server.Close()

	metadata, err := Resolve(context.Background(), ServerURL(server.URL+"/.well-known/openid-configuration"))
	require.NoError(t, err)
	assert.Equal(t, "https://idp.example/oauth/authorize", metadata.AuthorizationEndpoint)
	assert.Equal(t, "https://idp.example/oauth/token", metadata.TokenEndpoint)
}

func TestResolveDiscoveryDocumentMissingEndpoint(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"authorization_endpoint": "https://idp.example/oauth/authorize"}`))
	}))
	defer server.Close()

	_, err := Resolve(context.Background(), ServerURL(server.URL+"/.well-known/oauth-authorization-server"))
	assert.ErrorContains(t, err, "missing token_endpoint")
}

func TestResolveDiscoveryDocumentBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := Resolve(context.Background(), ServerURL(server.URL+"/.well-known/openid-configuration"))
	assert.ErrorContains(t, err, "HTTP 404")
}

func TestResolveDiscoveryDocumentWrongContentType(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	_, err := Resolve(context.Background(), ServerURL(server.URL+"/.well-known/openid-configuration"))
	assert.ErrorContains(t, err, "unexpected content-type")
}

func TestResolverInjectedClient(t *testing.T) {
	t.Parallel()

	called := false
	client := &fakeClient{handler: func(req *http.Request) (*http.Response, error) {
		called = true
		rec := httptest.NewRecorder()
		rec.Header().Set("Content-Type", "application/json")
		_, _ = rec.WriteString(`{
			"authorization_endpoint": "https://idp.example/authorize",
			"token_endpoint": "https://idp.example/token"
		}`)
		return rec.Result(), nil
	}}

	metadata, err := NewResolver(client).Resolve(
		context.Background(),
		ServerURL("https://idp.example/.well-known/openid-configuration"),
	)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, &oauth.ServerMetadata{
		AuthorizationEndpoint: "https://idp.example/authorize",
		TokenEndpoint:         "https://idp.example/token",
	}, metadata)
}

type fakeClient struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (c *fakeClient) Do(req *http.Request) (*http.Response, error) {
	return c.handler(req)
}
