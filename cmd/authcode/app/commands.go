// Package app provides the entry point for the authcode command-line application.
package app

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aidant/authorization-code-pkce/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "authcode",
	DisableAutoGenTag: true,
	Short:             "Obtain OAuth 2.0 access tokens with the authorization code flow and PKCE",
	Long: `authcode runs the OAuth 2.0 authorization code flow with PKCE as a public
client. It starts a loopback callback server, opens the system browser to the
authorization endpoint, waits for the redirect, and exchanges the resulting
code for tokens at the token endpoint.

Endpoints can be discovered from an OIDC issuer or provided directly.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the authcode CLI.
func NewRootCmd() *cobra.Command {
	viper.SetEnvPrefix("authcode")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(newLoginCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}
