// Package main provides the entry point for the handlescan CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for handlescan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handlescan",
		Short: "Hunt for a username across social networks",
		Long: `handlescan checks whether a username is claimed on social networks and
other account-bearing sites. Each site receives exactly one HTTP probe,
and the response is classified by the site's detection rule.

Probes go out directly by default. Use --tor to route them through an
embedded Tor daemon, --external-tor for a daemon you already run, or
--proxy for your own SOCKS5 or HTTP proxy.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewVerifyCmd())
	cmd.AddCommand(NewCompareCmd())
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
