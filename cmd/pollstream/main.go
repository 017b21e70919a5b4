// Package main is the entry point for the pollstream CLI.
//
// Usage:
//
//	pollstream tail -c streams.yaml              # Poll configured streams to stdout
//	pollstream tail --uri https://x --interval 1m # Poll a single resource
//	pollstream validate -c streams.yaml          # Validate configuration
//	pollstream version                           # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "pollstream",
	Short: "Poll HTTP resources as a stream",
	Long: `pollstream repeatedly fetches HTTP resources and writes every
successful response body to stdout, in the order responses arrive.

Failed polls (transport errors and any status other than 200) are logged
to stderr as JSON and never stop the stream.

Example config:
  streams:
    - name: prices
      uri: https://example.com/prices
      interval: 30s`,
}

// Execute runs the root command.
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
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pollstream %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
