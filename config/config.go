// Package config provides YAML configuration parsing for the pollstream CLI.
//
// This package describes streams in a file, as an alternative to building
// them programmatically with the pollstream package.
//
// Example configuration:
//
//	streams:
//	  - name: prices
//	    uri: https://example.com/prices?since=${SINCE:-0}
//	    interval: 30s
//	    timeout: 5s
//	    headers:
//	      Authorization: Bearer ${TOKEN}
//	    query:
//	      format: csv
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/pollstream"
)

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Streams defines the resources to poll.
	Streams []StreamConfig `yaml:"streams"`
}

// StreamConfig defines a single polled resource.
type StreamConfig struct {
	// Name identifies the stream in output and logs. Must be unique.
	Name string `yaml:"name"`

	// URI is the remote resource.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URI string `yaml:"uri"`

	// Method is accepted for compatibility but every poll uses GET.
	Method string `yaml:"method"`

	// Interval enables automatic polling at this period.
	// Must be positive when present.
	Interval *Duration `yaml:"interval"`

	// Polling turns automatic polling on or off explicitly.
	Polling *bool `yaml:"polling"`

	// PullOnDemand controls whether reads dispatch requests. Defaults to
	// false when an interval is set, so interval streams are timer-driven,
	// and true otherwise.
	PullOnDemand *bool `yaml:"pull_on_demand"`

	// Timeout is the per-request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Headers are sent with each request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Query parameters are added to each request.
	// Values support environment variable substitution.
	Query map[string]string `yaml:"query"`

	// ObjectMode emits whole records instead of a byte stream.
	ObjectMode bool `yaml:"object_mode"`

	// HighWaterMark bounds buffered data: bytes, or records in object mode.
	HighWaterMark int `yaml:"high_water_mark"`
}

// UnmarshalYAML implements yaml.Unmarshaler for StreamConfig.
//
// A stream definition must be a mapping; anything else is rejected with an
// error wrapping [pollstream.ErrInvalidArgument].
func (s *StreamConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: line %d: stream definition must be a mapping, got %s",
			pollstream.ErrInvalidArgument, node.Line, kindName(node.Kind))
	}
	// alias type to avoid infinite recursion
	type raw StreamConfig
	return node.Decode((*raw)(s))
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown node"
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URI, header and query values.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if len(c.Streams) == 0 {
		return errors.New("at least one stream must be defined")
	}

	seen := make(map[string]struct{}, len(c.Streams))
	for i := range c.Streams {
		sc := &c.Streams[i]

		if sc.Name == "" {
			return fmt.Errorf("streams[%d]: name is required", i)
		}
		if _, dup := seen[sc.Name]; dup {
			return fmt.Errorf("streams[%d]: duplicate stream name %q", i, sc.Name)
		}
		seen[sc.Name] = struct{}{}

		if sc.URI == "" {
			return fmt.Errorf("streams[%d] (%s): uri is required", i, sc.Name)
		}
		expanded, err := expandEnvVars(sc.URI)
		if err != nil {
			return fmt.Errorf("streams[%d] (%s): uri: %w", i, sc.Name, err)
		}
		sc.URI = expanded

		parsedURL, err := url.Parse(sc.URI)
		if err != nil {
			return fmt.Errorf("streams[%d] (%s): invalid uri: %w", i, sc.Name, err)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("streams[%d] (%s): uri scheme must be http or https, got %q", i, sc.Name, parsedURL.Scheme)
		}

		if err := expandValues(sc.Headers); err != nil {
			return fmt.Errorf("streams[%d] (%s): headers%w", i, sc.Name, err)
		}
		if err := expandValues(sc.Query); err != nil {
			return fmt.Errorf("streams[%d] (%s): query%w", i, sc.Name, err)
		}

		if sc.Interval != nil && sc.Interval.Duration() <= 0 {
			return fmt.Errorf("streams[%d] (%s): %w: interval must be positive, got %s",
				i, sc.Name, pollstream.ErrInvalidArgument, sc.Interval.Duration())
		}

		if sc.Timeout.Duration() < 0 {
			return fmt.Errorf("streams[%d] (%s): timeout cannot be negative, got %s",
				i, sc.Name, sc.Timeout.Duration())
		}

		if sc.HighWaterMark < 0 {
			return fmt.Errorf("streams[%d] (%s): high_water_mark cannot be negative, got %d",
				i, sc.Name, sc.HighWaterMark)
		}
	}

	return nil
}

// expandValues expands environment variables in every value of m in place.
// Errors are prefixed with the offending key in brackets.
func expandValues(m map[string]string) error {
	for k, v := range m {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("[%s]: %w", k, err)
		}
		m[k] = expanded
	}
	return nil
}
