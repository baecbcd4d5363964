package uptrends

import (
	"fmt"
)

// gridConfig holds configuration during operation grid construction.
type gridConfig struct {
	pathTemplate string
	dimensions   map[string][]string
	parameters   map[string]string
	typ          string
}

// GridOption configures operation grid generation.
// GridOption implements the functional options pattern for [NewOperationGrid].
type GridOption func(*gridConfig) error

// WithPathTemplate sets the path template for operation generation.
// The template uses Go's text/template syntax with dimension keys as variables.
//
// Example:
//
//	WithPathTemplate("probegroups/{{.group}}/Alerts")
//
// Returns an error if the template string is empty.
func WithPathTemplate(tmpl string) GridOption {
	return func(cfg *gridConfig) error {
		if tmpl == "" {
			return fmt.Errorf("%w: path template required", ErrInvalidConfig)
		}
		cfg.pathTemplate = tmpl
		return nil
	}
}

// WithDimensions sets the dimension values for cartesian product expansion.
// Each key in the map becomes a template variable, and the cartesian product
// of all values generates the operations.
//
// Returns an error if the map is empty, any dimension has no values,
// or any value is an empty string.
func WithDimensions(dims map[string][]string) GridOption {
	return func(cfg *gridConfig) error {
		if len(dims) == 0 {
			return fmt.Errorf("%w: at least one dimension required", ErrInvalidConfig)
		}
		for k, vals := range dims {
			if len(vals) == 0 {
				return fmt.Errorf("%w: dimension '%s' has no values", ErrInvalidConfig, k)
			}
			for i, v := range vals {
				if v == "" {
					return fmt.Errorf("%w: dimension '%s' contains empty value at index %d", ErrInvalidConfig, k, i)
				}
			}
		}
		cfg.dimensions = dims
		return nil
	}
}

// WithGridParameters sets query parameters shared by all generated
// operations. Values may be date tokens.
func WithGridParameters(params map[string]string) GridOption {
	return func(cfg *gridConfig) error {
		for k, v := range params {
			if k == "" {
				return fmt.Errorf("%w: parameter name cannot be empty", ErrInvalidConfig)
			}
			cfg.parameters[k] = v
		}
		return nil
	}
}

// WithGridType sets the type label of all generated operations.
func WithGridType(typ string) GridOption {
	return func(cfg *gridConfig) error {
		cfg.typ = typ
		return nil
	}
}
