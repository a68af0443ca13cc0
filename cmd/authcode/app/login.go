package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aidant/authorization-code-pkce/pkg/discovery"
	"github.com/aidant/authorization-code-pkce/pkg/flow"
	"github.com/aidant/authorization-code-pkce/pkg/logger"
)

var loginFlags struct {
	issuer       string
	authorizeURL string
	tokenURL     string
	clientID     string
	redirectURI  string
	scope        string
	extraParams  map[string]string
	callbackPort int
	timeout      time.Duration
	noBrowser    bool
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Run the authorization code flow and print the token response",
		Long: `Login runs the authorization code flow with PKCE against an authorization
server and prints the token endpoint's JSON response to stdout.

The server is located in one of three ways, checked in order:

  --issuer         an OIDC issuer or RFC 8414 metadata URL to discover
                   endpoints from
  --authorize-url  together with --token-url, the endpoints directly
  a base URL passed as the positional argument, with /authorize and
  /token appended

Flags can also be set through AUTHCODE_* environment variables, for
example AUTHCODE_CLIENT_ID.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLogin,
	}

	cmd.Flags().StringVar(&loginFlags.issuer, "issuer", "", "Issuer or metadata URL to discover endpoints from")
	cmd.Flags().StringVar(&loginFlags.authorizeURL, "authorize-url", "", "Authorization endpoint URL")
	cmd.Flags().StringVar(&loginFlags.tokenURL, "token-url", "", "Token endpoint URL")
	cmd.Flags().StringVar(&loginFlags.clientID, "client-id", "", "OAuth client ID")
	cmd.Flags().StringVar(&loginFlags.redirectURI, "redirect-uri", "", "Redirect URI (defaults to the loopback callback server)")
	cmd.Flags().StringVar(&loginFlags.scope, "scope", "", "Space-separated scopes to request")
	cmd.Flags().StringToStringVar(&loginFlags.extraParams, "param", nil, "Extra authorization request parameters (key=value)")
	cmd.Flags().IntVar(&loginFlags.callbackPort, "callback-port", 0, "Port for the callback server (0 selects an ephemeral port)")
	cmd.Flags().DurationVar(&loginFlags.timeout, "timeout", flow.DefaultTimeout, "How long to wait for the authorization callback")
	cmd.Flags().BoolVar(&loginFlags.noBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")

	for _, name := range []string{"issuer", "client-id", "scope"} {
		if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			logger.Errorf("Error binding %s flag: %v", name, err)
		}
	}

	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	clientID := viper.GetString("client-id")
	if clientID == "" {
		return fmt.Errorf("a client ID is required (--client-id or AUTHCODE_CLIENT_ID)")
	}

	ref, err := loginServerRef(args)
	if err != nil {
		return err
	}

	result, err := flow.Run(cmd.Context(), ref, flow.Parameters{
		ClientID:    clientID,
		RedirectURI: loginFlags.redirectURI,
		Scope:       viper.GetString("scope"),
		Extra:       loginFlags.extraParams,
	}, &flow.Options{
		CallbackPort: loginFlags.callbackPort,
		Timeout:      loginFlags.timeout,
		NoBrowser:    loginFlags.noBrowser,
	})
	if err != nil {
		if flowErr, ok := flow.AsAuthorizationCodeError(err); ok {
			return fmt.Errorf("authorization failed (%s): %w", flowErr.Code, err)
		}
		return err
	}

	if sub, ok := result.Claims["sub"].(string); ok {
		logger.Infof("Authenticated as %s", sub)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result.Token)
}

// loginServerRef builds the server reference from the issuer flag, the
// explicit endpoint flags, or the positional base URL, in that order.
func loginServerRef(args []string) (discovery.ServerRef, error) {
	issuer := viper.GetString("issuer")

	switch {
	case issuer != "":
		return discovery.ServerURL(issuer), nil
	case loginFlags.authorizeURL != "" || loginFlags.tokenURL != "":
		if loginFlags.authorizeURL == "" || loginFlags.tokenURL == "" {
			return discovery.ServerRef{}, fmt.Errorf("--authorize-url and --token-url must be provided together")
		}
		return discovery.ServerEndpoints(loginFlags.authorizeURL, loginFlags.tokenURL), nil
	case len(args) == 1:
		return discovery.ServerURL(args[0]), nil
	default:
		return discovery.ServerRef{}, fmt.Errorf("an authorization server is required (--issuer, --authorize-url/--token-url, or a base URL argument)")
	}
}
