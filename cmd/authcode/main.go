// Package main is the entry point for the authcode CLI.
package main

import (
	"os"

	"github.com/aidant/authorization-code-pkce/cmd/authcode/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
