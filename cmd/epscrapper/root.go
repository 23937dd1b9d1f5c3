// Package main provides the entry point for the epscrapper CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for epscrapper.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epscrapper",
		Short: "Endpoint collector for authenticated web applications",
		Long: `epscrapper maps the endpoint surface of a web application behind a login.

It opens the login page in a real browser window, waits for you to finish
authenticating, then records every URL the application touches: links and
form actions found in the DOM plus the network requests the pages fire.
Results are written to a file and saved for later comparison with the diff
command.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewDiffCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
