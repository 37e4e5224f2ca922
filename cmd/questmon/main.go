// Package main is the entry point for the questmon CLI.
//
// The monitor can be run either as a library (SDK) or as a standalone
// binary with YAML configuration. This CLI provides the standalone
// binary approach.
//
// Usage:
//
//	questmon watch -c config.yaml    # Run the monitor
//	questmon validate -c config.yaml # Validate configuration
//	questmon version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
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
	Use:   "questmon",
	Short: "A resource monitor client for PC and Quest headsets",
	Long: `questmon keeps a live mirror of a resource-monitor backend.

It polls the backend on two cadences (fast for device status, slow for
metrics), maintains a hierarchical state tree, and streams every change
to stdout and over an optional HTTP inspect server.

Quick start:
  1. Create a config file (questmon.yaml)
  2. Run: questmon watch -c questmon.yaml
  3. (optional) Open http://localhost:9000/state for a snapshot

Example config:
  base_url: http://127.0.0.1:8000
  fast_interval: 2s
  slow_interval: 10s
  listen: 127.0.0.1:9000`,
	// No Run/RunE means this just shows help when called without subcommands
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
	Long:  `Print the version, commit hash, and build date of this questmon binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("questmon %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
