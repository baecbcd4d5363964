package uptrends

import (
	"fmt"
	"strings"
)

// operationConfig holds mutable state during operation construction.
type operationConfig struct {
	parameters map[string]string
	typ        string
}

// OperationOption is a function that configures an [Operation] during construction.
//
// OperationOption implements the functional options pattern, allowing optional
// configuration to be passed to [NewOperation] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithParameters], [WithParameter], [WithType].
type OperationOption func(*operationConfig) error

// WithParameters adds query parameters to the operation.
//
// Values naming a date token (see [DateTokens]) are resolved on every cycle;
// all other values are sent as is. The "format" parameter is always sent as
// "json" and cannot be overridden.
//
// Example:
//
//	op, err := uptrends.NewOperation("alerts", path,
//	    uptrends.WithParameters(map[string]string{"Start": "yesterday", "End": "today"}),
//	)
//
// Returns an error if a parameter name is empty.
func WithParameters(params map[string]string) OperationOption {
	return func(cfg *operationConfig) error {
		for k, v := range params {
			if strings.TrimSpace(k) == "" {
				return fmt.Errorf("%w: parameter name cannot be empty", ErrInvalidConfig)
			}
			cfg.parameters[k] = v
		}
		return nil
	}
}

// WithParameter adds a single query parameter to the operation.
//
// Returns an error if the name is empty.
func WithParameter(name, value string) OperationOption {
	return WithParameters(map[string]string{name: value})
}

// WithType sets the type label attached to every record produced by the
// operation. Records that already carry a "type" field keep it.
func WithType(typ string) OperationOption {
	return func(cfg *operationConfig) error {
		cfg.typ = typ
		return nil
	}
}
