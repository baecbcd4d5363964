// Package config provides YAML configuration parsing for the Uptrends poller.
//
// This package enables running the poller as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	schedule:
//	  every: 1h
//	auth:
//	  user: ${UPTRENDS_USER}
//	  password: ${UPTRENDS_PASSWORD}
//	metadata_target: "@metadata"
//
//	operations:
//	  probes: probes
//	  alerts:
//	    path: probegroups/0123456789abcdef0123456789abcdef/Alerts
//	    parameters:
//	      Start: yesterday
//	      End: today
//	    type: alert
//
//	grids:
//	  - name: probe-detail
//	    path_template: "probes/{{.probe}}"
//	    dimensions:
//	      probe: [0123456789abcdef0123456789abcdef]
package config

import (
	"fmt"
	"os"
	"regexp"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/uptrends/codec"
	"github.com/jpalmerr/uptrends/internal/poller"
	"github.com/jpalmerr/uptrends/internal/registry"
)

// Output values.
const (
	OutputStdout = "stdout"
	OutputNone   = "none"
)

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Schedule holds exactly one of "cron", "every", "at" or "in".
	Schedule map[string]string `yaml:"schedule"`

	// Auth holds "user" and "password" for the API.
	Auth map[string]any `yaml:"auth"`

	// Operations maps a name to a bare path or to an object with "path",
	// optional "parameters" and optional "type".
	Operations map[string]any `yaml:"operations"`

	// Grids defines operation grids that expand via cartesian product.
	Grids []GridConfig `yaml:"grids"`

	// Target nests decoded payloads under a field reference.
	Target string `yaml:"target"`

	// MetadataTarget enables request metadata under a field reference.
	MetadataTarget string `yaml:"metadata_target"`

	// Codec is "json" (default), "json_lines" or "plain".
	Codec string `yaml:"codec"`

	// Timezone is the IANA zone "today" is taken in. Defaults to local time.
	Timezone string `yaml:"timezone"`

	// Port serves recent records, live events and metrics. 0 disables it.
	Port int `yaml:"port"`

	// RecordHistory is how many recent records the HTTP server keeps.
	RecordHistory int `yaml:"record_history"`

	// Output is "stdout" (default, one JSON record per line) or "none".
	Output string `yaml:"output"`

	// Host overrides the hostname reported in metadata.
	Host string `yaml:"host"`

	// BaseURL overrides the API root, e.g. for a mock server.
	BaseURL string `yaml:"base_url"`

	HTTP HTTPConfig `yaml:"http"`
}

// HTTPConfig tunes the HTTP client.
type HTTPConfig struct {
	// Timeout applies to each attempt. Defaults to 30s.
	Timeout Duration `yaml:"timeout"`

	// MaxRetries is the number of retries; nil keeps the default of 2.
	MaxRetries *int `yaml:"max_retries"`

	// RateLimit caps requests per second. 0 is unlimited.
	RateLimit float64 `yaml:"rate_limit"`

	// MaxConcurrency bounds requests in flight. Defaults to 8.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// GridConfig defines an operation grid that expands via cartesian product.
//
// For example, with dimensions {group: [a, b], window: [day, week]}, the
// grid expands to 4 operations.
type GridConfig struct {
	// Name is the base name for generated operations.
	Name string `yaml:"name"`

	// PathTemplate is a Go template for generating operation paths.
	// Dimension keys are available as template variables: {{.group}}
	PathTemplate string `yaml:"path_template"`

	// Dimensions maps dimension names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`

	// Parameters are shared by all generated operations.
	Parameters map[string]string `yaml:"parameters"`

	// Type is the type label for all generated operations.
	Type string `yaml:"type"`
}

// Duration wraps time.Duration for YAML unmarshalling. Besides Go
// durations it accepts day ("d") and week ("w") units.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := poller.ParseDuration(s)
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

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
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

// expandNode expands environment variables in every scalar value of the
// document. Mapping keys are left alone.
func expandNode(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		expanded, err := expandEnvVars(n.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		if expanded != n.Value {
			n.Value = expanded
			// plain scalars are re-resolved so "${PORT}" can become an int
			if n.Style == 0 {
				n.Tag = ""
			}
		}
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			if err := expandNode(n.Content[i]); err != nil {
				return err
			}
		}
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			if err := expandNode(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
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
// Environment variables are expanded in every value. Defaults are applied
// for Codec ("json") and Output ("stdout"). Validation errors wrap
// [registry.ErrInvalidConfig].
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc.Kind == 0 {
		return nil, fmt.Errorf("%w: configuration is empty", registry.ErrInvalidConfig)
	}
	if err := expandNode(&doc); err != nil {
		return nil, err
	}

	var cfg Config
	if err := doc.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Codec == "" {
		cfg.Codec = "json"
	}
	if cfg.Output == "" {
		cfg.Output = OutputStdout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration without building anything.
func (c *Config) Validate() error {
	if _, err := poller.TriggerFromMap(c.Schedule); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	if len(c.Operations) > 0 {
		if _, err := registry.Normalize(c.Operations, c.Auth); err != nil {
			return err
		}
	} else if _, err := registry.NormalizeCredentials(c.Auth); err != nil {
		return err
	}

	if _, err := codec.ByName(c.Codec); err != nil {
		return fmt.Errorf("%w: codec: %s", registry.ErrInvalidConfig, err)
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("%w: timezone %q: %s", registry.ErrInvalidConfig, c.Timezone, err)
		}
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be between 0 and 65535, got %d", registry.ErrInvalidConfig, c.Port)
	}
	if c.RecordHistory < 0 {
		return fmt.Errorf("%w: record_history cannot be negative", registry.ErrInvalidConfig)
	}

	switch c.Output {
	case OutputStdout, OutputNone:
	default:
		return fmt.Errorf("%w: output must be %q or %q, got %q", registry.ErrInvalidConfig, OutputStdout, OutputNone, c.Output)
	}

	if err := c.HTTP.validate(); err != nil {
		return err
	}

	for i := range c.Grids {
		if err := c.Grids[i].validate(i); err != nil {
			return err
		}
	}

	if len(c.Operations) == 0 && len(c.Grids) == 0 {
		return fmt.Errorf("%w: at least one operation or grid must be defined", registry.ErrInvalidConfig)
	}
	return nil
}

func (h HTTPConfig) validate() error {
	if h.Timeout.Duration() < 0 {
		return fmt.Errorf("%w: http.timeout cannot be negative", registry.ErrInvalidConfig)
	}
	if h.MaxRetries != nil && *h.MaxRetries < 0 {
		return fmt.Errorf("%w: http.max_retries cannot be negative", registry.ErrInvalidConfig)
	}
	if h.RateLimit < 0 {
		return fmt.Errorf("%w: http.rate_limit cannot be negative", registry.ErrInvalidConfig)
	}
	if h.MaxConcurrency < 0 {
		return fmt.Errorf("%w: http.max_concurrency cannot be negative", registry.ErrInvalidConfig)
	}
	return nil
}

func (g GridConfig) validate(i int) error {
	if g.Name == "" {
		return fmt.Errorf("%w: grids[%d]: name is required", registry.ErrInvalidConfig, i)
	}
	if g.PathTemplate == "" {
		return fmt.Errorf("%w: grids[%d] (%s): path_template is required", registry.ErrInvalidConfig, i, g.Name)
	}

	// fail fast before SDK tries to use invalid template
	if _, err := template.New("").Parse(g.PathTemplate); err != nil {
		return fmt.Errorf("%w: grids[%d] (%s): invalid path_template: %s", registry.ErrInvalidConfig, i, g.Name, err)
	}

	if len(g.Dimensions) == 0 {
		return fmt.Errorf("%w: grids[%d] (%s): at least one dimension is required", registry.ErrInvalidConfig, i, g.Name)
	}
	for dimName, dimValues := range g.Dimensions {
		if len(dimValues) == 0 {
			return fmt.Errorf("%w: grids[%d] (%s): dimension %q has no values", registry.ErrInvalidConfig, i, g.Name, dimName)
		}
		seen := make(map[string]struct{}, len(dimValues))
		for _, v := range dimValues {
			if _, exists := seen[v]; exists {
				return fmt.Errorf("%w: grids[%d] (%s): dimension %q has duplicate value %q", registry.ErrInvalidConfig, i, g.Name, dimName, v)
			}
			seen[v] = struct{}{}
		}
	}
	return nil
}
