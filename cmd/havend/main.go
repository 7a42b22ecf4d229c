// Havend is the local companion daemon for the HavenMind UI shell.
//
// It keeps the connection to the hosted backend healthy: reachability
// probes, retries, session expiry handling and realtime-driven cache
// refreshes all live here, behind a small local HTTP API the UI polls.
//
// Usage:
//
//	# Start with defaults (config from environment)
//	havend serve
//
//	# Start with a config file
//	havend serve --config /etc/havend/config.yaml
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "havend",
	Short: "HavenMind companion daemon",
	Long: `havend keeps the HavenMind app connected: it monitors backend
reachability, retries transient failures, reacts to session expiry and
serves cached wellness data to the UI shell over a local HTTP API.`,
	Version: version + " (" + gitCommit + ")",
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
