// Package main is the entry point for the uptrends CLI.
//
// The poller can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	uptrends run -c config.yaml         # Poll on the configured schedule
//	uptrends run -c config.yaml --once  # Run a single cycle and exit
//	uptrends validate -c config.yaml    # Validate configuration
//	uptrends tokens                     # List supported date tokens
//	uptrends version                    # Show version info
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/uptrends"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "uptrends",
	Short: "Scheduled poller for the Uptrends API",
	Long: `uptrends polls the Uptrends monitoring API on a schedule and writes
every response as structured records.

Quick start:
  1. Create a config file (uptrends.yaml)
  2. Run: uptrends run -c uptrends.yaml

Example config:
  schedule:
    every: 1h
  auth:
    user: ${UPTRENDS_USER}
    password: ${UPTRENDS_PASSWORD}
  operations:
    probes: probes
    alerts:
      path: probegroups/<id>/Alerts
      parameters:
        Start: yesterday
        End: today`,
	SilenceUsage: true,
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this uptrends binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "uptrends %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

// tokensCmd lists the date tokens accepted as parameter values.
var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List the supported date tokens",
	Long: `List the parameter values that are replaced by a date on every cycle.
Dates are rendered as yyyy/MM/dd; other values are sent unchanged.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(uptrends.DateTokens(), "\n"))
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(tokensCmd)
}
