package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/uptrends/config"
)

// validateCmd validates a config file without polling.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an uptrends configuration file without polling.

This command parses the YAML, expands environment variables, and validates
all fields including operation paths, credentials and the schedule. It's
useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  uptrends validate -c config.yaml`,
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

	ops, err := config.BuildOperations(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	direct := len(cfg.Operations)
	fromGrids := len(ops) - direct

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Schedule:   %s\n", scheduleString(cfg.Schedule))
	fmt.Fprintf(out, "  Port:       %d\n", cfg.Port)
	fmt.Fprintf(out, "  Output:     %s\n", cfg.Output)
	fmt.Fprintf(out, "  Operations: %d direct + %d from grids = %d total\n",
		direct, fromGrids, len(ops))

	return nil
}

func scheduleString(m map[string]string) string {
	for k, v := range m {
		return k + " " + v
	}
	return ""
}
