package flow

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"github.com/aidant/authorization-code-pkce/pkg/callback"
	"github.com/aidant/authorization-code-pkce/pkg/channel"
	"github.com/aidant/authorization-code-pkce/pkg/discovery"
	"github.com/aidant/authorization-code-pkce/pkg/logger"
	"github.com/aidant/authorization-code-pkce/pkg/oauth"
)

// DefaultTimeout bounds how long a flow waits for the authorization
// callback before failing with the timeout error code.
const DefaultTimeout = 5 * time.Minute

// channelPrefix namespaces flow channel names on the broker.
const channelPrefix = "authorization-code-pkce/"

// Options tune one flow run. The zero value selects sensible defaults.
type Options struct {
	// CallbackPort fixes the loopback callback port; 0 selects an
	// ephemeral port.
	CallbackPort int

	// Timeout bounds the wait for the authorization callback. Defaults to
	// DefaultTimeout.
	Timeout time.Duration

	// NoBrowser prints the authorization URL instead of opening a browser.
	NoBrowser bool

	// Broker overrides the process-wide channel broker.
	Broker *channel.Broker

	// Resolver overrides the metadata resolver.
	Resolver *discovery.Resolver

	// HTTPClient overrides the client used for the token exchange.
	HTTPClient *http.Client

	// openBrowser is a test seam; defaults to browser.OpenURL.
	openBrowser func(url string) error
}

// Result is the terminal value of a successful flow.
type Result struct {
	// Token is the token endpoint's success response, verbatim.
	Token *oauth.AccessTokenSuccessResponse

	// Claims holds unverified JWT claims extracted from the ID token if
	// present, otherwise from the access token. Nil when neither parses
	// as a JWT (opaque tokens). Callers must not trust these claims
	// without verification; they are a convenience for display.
	Claims jwt.MapClaims
}

// Run executes the whole authorization code flow: context creation,
// callback server setup, browser handoff, callback wait, and code
// exchange. It is a strictly linear state machine; every failure is
// terminal for this flow instance and a retry means calling Run again,
// which generates a fresh context.
func Run(ctx context.Context, ref discovery.ServerRef, params Parameters, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	broker := opts.Broker
	if broker == nil {
		broker = channel.Default()
	}
	resolver := opts.Resolver
	if resolver == nil {
		if opts.HTTPClient != nil {
			resolver = discovery.NewResolver(opts.HTTPClient)
		} else {
			resolver = discovery.NewResolver(nil)
		}
	}
	open := opts.openBrowser
	if open == nil {
		open = browser.OpenURL
	}

	// Each flow gets its own channel and its own callback server, so
	// concurrently running flows cannot cross-wire.
	channelName := channelPrefix + uuid.NewString()

	server, err := callback.NewServer(broker, channelName, opts.CallbackPort)
	if err != nil {
		return nil, err
	}
	if params.RedirectURI == "" {
		params.RedirectURI = server.RedirectURI()
	}

	flowCtx, err := newContext(ctx, resolver, ref, params)
	if err != nil {
		return nil, err
	}

	authURL, err := AuthorizationURL(flowCtx)
	if err != nil {
		return nil, err
	}

	if err := server.Start(); err != nil {
		return nil, err
	}
	defer func() {
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shut down callback server: %v", err)
		}
	}()

	// Subscribe before opening the browser so a fast redirect cannot slip
	// past the waiter.
	port := broker.Open(channelName)
	sub := port.Subscribe()
	defer sub.Cancel()

	if opts.NoBrowser {
		logger.Infof("Open the following URL in your browser to continue: %s", authURL)
	} else {
		logger.Debugf("Opening browser to: %s", authURL)
		if err := open(authURL); err != nil {
			return nil, wrapError(ErrorWindowCreateFailed, err)
		}
	}

	logger.Info("Waiting for authorization callback...")
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	msg, err := sub.Wait(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, wrapError(ErrorTimeout, err)
		}
		return nil, err
	}

	// Acknowledge receipt so the responder can release its context.
	port.Publish(channel.AckResponseReceived)

	response, _ := msg.(*oauth.AuthorizationResponse)

	exchangeCtx := ctx
	if opts.HTTPClient != nil {
		exchangeCtx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	token, err := Exchange(exchangeCtx, flowCtx, response)
	if err != nil {
		return nil, err
	}

	logger.Info("Authorization code flow completed")
	return &Result{Token: token, Claims: extractClaims(token)}, nil
}

// extractClaims pulls unverified claims out of the returned tokens,
// preferring the OIDC ID token. Opaque tokens yield nil.
func extractClaims(token *oauth.AccessTokenSuccessResponse) jwt.MapClaims {
	if token.IDToken != "" {
		if claims, err := parseUnverifiedClaims(token.IDToken); err == nil {
			return claims
		}
	}
	claims, err := parseUnverifiedClaims(token.AccessToken)
	if err != nil {
		logger.Debugf("Token is not a JWT, no claims extracted: %v", err)
		return nil
	}
	return claims
}

func parseUnverifiedClaims(tokenString string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("failed to extract claims")
	}
	return claims, nil
}
