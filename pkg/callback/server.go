// Package callback runs the responder side of the authorization code flow:
// a loopback HTTP server that receives the authorization server's redirect,
// extracts the authorization response from the landing URL, and republishes
// it to the waiting flow over the shared channel.
package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aidant/authorization-code-pkce/pkg/channel"
	"github.com/aidant/authorization-code-pkce/pkg/logger"
	"github.com/aidant/authorization-code-pkce/pkg/networking"
	"github.com/aidant/authorization-code-pkce/pkg/oauth"
)

const (
	// CallbackPath is the path the authorization server redirects back to.
	CallbackPath = "/callback"

	// shutdownTimeout bounds graceful server shutdown.
	shutdownTimeout = 5 * time.Second

	// defaultAckWait bounds how long the handler holds the redirect request
	// open waiting for the waiter's acknowledgement before rendering the
	// terminal page anyway.
	defaultAckWait = 5 * time.Second
)

// Server is the loopback HTTP server hosting the redirect target for one
// flow. Each flow gets its own server and its own channel name, so
// concurrently running flows cannot cross-wire.
type Server struct {
	broker      *channel.Broker
	channelName string
	port        int
	server      *http.Server
	ackWait     time.Duration
}

// NewServer creates a callback server for the given flow channel. If port is
// zero an ephemeral port is selected.
func NewServer(broker *channel.Broker, channelName string, port int) (*Server, error) {
	if broker == nil {
		broker = channel.Default()
	}

	selected, err := networking.FindOrUsePort(port)
	if err != nil {
		return nil, fmt.Errorf("failed to find available port: %w", err)
	}

	return &Server{
		broker:      broker,
		channelName: channelName,
		port:        selected,
		ackWait:     defaultAckWait,
	}, nil
}

// Port returns the port the server is bound to.
func (s *Server) Port() int {
	return s.port
}

// RedirectURI returns the redirect URI to register with the authorization
// request.
func (s *Server) RedirectURI() string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", s.port, CallbackPath)
}

// Handler returns the server's HTTP handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleRoot)
	r.Get(CallbackPath, s.handleCallback)
	return r
}

// Start begins serving on the selected port. It returns once the listener
// is accepting connections; serve errors after that are logged.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Debugf("Callback server listening on %s", s.RedirectURI())
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warnf("Callback server stopped: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// handleCallback runs inside the responder context when the redirect lands.
// It parses the authorization response off the landing URL query, publishes
// it on the shared channel exactly once, then waits once for the waiter's
// acknowledgement before rendering the terminal page.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	response := oauth.ParseAuthorizationResponse(r.URL.Query())

	port := s.broker.Open(s.channelName)

	// Subscribe before publishing: the waiter may acknowledge immediately,
	// and an acknowledgement published before we listen would be lost.
	ackSub := port.Subscribe()
	if response == nil {
		// Not a genuine redirect; the flow treats this as an absent response.
		port.Publish((*oauth.AuthorizationResponse)(nil))
	} else {
		port.Publish(response)
	}

	ackCtx, cancel := context.WithTimeout(r.Context(), s.ackWait)
	defer cancel()
	if _, err := ackSub.Wait(ackCtx); err != nil {
		logger.Debugf("No acknowledgement received for callback: %v", err)
	}

	switch {
	case response == nil:
		writePendingPage(w)
	case response.IsError():
		writeErrorPage(w, response)
	default:
		writeSuccessPage(w)
	}
}

// handleRoot serves an informational page for anything that is not the
// redirect target.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writePendingPage(w)
}
