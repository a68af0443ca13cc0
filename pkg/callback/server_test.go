package callback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidant/authorization-code-pkce/pkg/channel"
	"github.com/aidant/authorization-code-pkce/pkg/oauth"
)

func newTestServer(t *testing.T, broker *channel.Broker, channelName string) *Server {
	t.Helper()
	server, err := NewServer(broker, channelName, 0)
	require.NoError(t, err)
	server.ackWait = 100 * time.Millisecond
	return server
}

// waiterResult captures what the flow side observed during a callback.
type waiterResult struct {
	msg channel.Message
	err error
}

// runWaiter mimics the flow orchestrator: subscribe, receive, acknowledge.
func runWaiter(broker *channel.Broker, channelName string) <-chan waiterResult {
	results := make(chan waiterResult, 1)
	port := broker.Open(channelName)
	sub := port.Subscribe()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msg, err := sub.Wait(ctx)
		if err == nil {
			port.Publish(channel.AckResponseReceived)
		}
		results <- waiterResult{msg: msg, err: err}
	}()
	return results
}

func TestCallbackPublishesSuccessResponse(t *testing.T) {
	t.Parallel()

	broker := channel.NewBroker()
	server := newTestServer(t, broker, "flow-1")
	results := runWaiter(broker, "flow-1")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/callback?code=XYZ&state=S1", nil)
	server.Handler().ServeHTTP(rec, req)

	result := <-results
	require.NoError(t, result.err)
	response, ok := result.msg.(*oauth.AuthorizationResponse)
	require.True(t, ok)
	assert.Equal(t, "XYZ", response.Code)
	assert.Equal(t, "S1", response.State)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "close this window")
}

func TestCallbackPublishesErrorResponse(t *testing.T) {
	t.Parallel()

	broker := channel.NewBroker()
	server := newTestServer(t, broker, "flow-1")
	results := runWaiter(broker, "flow-1")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/callback?error=access_denied&state=S1", nil)
	server.Handler().ServeHTTP(rec, req)

	result := <-results
	require.NoError(t, result.err)
	response, ok := result.msg.(*oauth.AuthorizationResponse)
	require.True(t, ok)
	assert.Equal(t, "access_denied", response.Error)
	assert.Equal(t, "S1", response.State)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_denied")
}

func TestCallbackEscapesErrorDescription(t *testing.T) {
	t.Parallel()

	broker := channel.NewBroker()
	server := newTestServer(t, broker, "flow-1")
	_ = runWaiter(broker, "flow-1")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/callback?error=access_denied&error_description=%3Cscript%3Ealert(1)%3C/script%3E", nil)
	server.Handler().ServeHTTP(rec, req)

	assert.NotContains(t, rec.Body.String(), "<script>")
	assert.Contains(t, rec.Body.String(), "&lt;script&gt;")
}

func TestCallbackWithoutRedirectParamsPublishesAbsent(t *testing.T) {
	t.Parallel()

	broker := channel.NewBroker()
	server := newTestServer(t, broker, "flow-1")
	results := runWaiter(broker, "flow-1")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/callback", nil)
	server.Handler().ServeHTTP(rec, req)

	result := <-results
	require.NoError(t, result.err)
	response, ok := result.msg.(*oauth.AuthorizationResponse)
	require.True(t, ok)
	assert.Nil(t, response)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCallbackWithoutAckStillRenders(t *testing.T) {
	t.Parallel()

	broker := channel.NewBroker()
	server := newTestServer(t, broker, "flow-1")

	// Nobody is waiting and nobody acknowledges; the handler must still
	// finish once its ack wait elapses.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/callback?code=XYZ&state=S1", nil)

	done := make(chan struct{})
	go func() {
		server.Handler().ServeHTTP(rec, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not finish without an acknowledgement")
	}
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRootServesInformationalPage(t *testing.T) {
	t.Parallel()

	broker := channel.NewBroker()
	server := newTestServer(t, broker, "flow-1")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "complete the authentication flow")
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestServerStartAndShutdown(t *testing.T) {
	t.Parallel()

	broker := channel.NewBroker()
	server := newTestServer(t, broker, "flow-1")
	require.NoError(t, server.Start())

	// Subscribe before the redirect arrives, as the orchestrator does.
	results := runWaiter(broker, "flow-1")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		resp, err := http.Get(server.RedirectURI() + "?code=XYZ&state=S1")
		if err == nil {
			_ = resp.Body.Close()
		}
	}()

	result := <-results
	require.NoError(t, result.err)
	wg.Wait()

	require.NoError(t, server.Shutdown(context.Background()))
}
