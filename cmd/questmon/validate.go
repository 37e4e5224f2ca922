package main

import (
	"fmt"

	"github.com/Syaviii/Quest-Resource-Monitor/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the monitor.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a monitor configuration file without starting it.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  questmon validate -c config.yaml
  questmon validate --config /etc/questmon/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	display := func(d config.Duration) string {
		if d == 0 {
			return "default"
		}
		return d.Duration().String()
	}

	inspect := cfg.Listen
	if inspect == "" {
		inspect = "disabled"
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Base URL:      %s\n", cfg.BaseURL)
	fmt.Printf("  Fast interval: %s\n", display(cfg.FastInterval))
	fmt.Printf("  Slow interval: %s\n", display(cfg.SlowInterval))
	fmt.Printf("  Inspect:       %s\n", inspect)

	return nil
}
