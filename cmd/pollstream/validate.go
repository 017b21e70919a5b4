package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pollstream/config"
)

// validateCmd validates a config file without polling anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a pollstream configuration file without polling.

This command parses the YAML, expands environment variables, validates all
fields and builds every stream once, so option errors surface too.

Example:
  pollstream validate -c streams.yaml`,
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

	for _, src := range config.BuildSources(cfg, nil) {
		s, err := src.New()
		if err != nil {
			return fmt.Errorf("invalid config: stream %s: %w", src.Name, err)
		}
		s.Destroy(nil)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Streams: %d\n", len(cfg.Streams))
	for _, sc := range cfg.Streams {
		interval := "on demand"
		if sc.Interval != nil {
			interval = "every " + sc.Interval.Duration().String()
		}
		fmt.Fprintf(out, "  - %s: %s (%s)\n", sc.Name, sc.URI, interval)
	}

	return nil
}
