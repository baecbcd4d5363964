package uptrends

import (
	"sort"

	"github.com/jpalmerr/uptrends/internal/dates"
	"github.com/jpalmerr/uptrends/internal/registry"
)

// BaseURL is the Uptrends API root every operation path is relative to.
const BaseURL = registry.BaseURL

// Operation is a single named GET request against the Uptrends API.
//
// Operation is immutable after creation via [NewOperation]. All fields are
// private with getter methods that return copies of mutable data (maps),
// ensuring the operation cannot be modified after construction.
//
// Operations are configured using the functional options pattern with
// [OperationOption] functions such as [WithParameters], [WithParameter]
// and [WithType].
type Operation struct {
	op registry.Operation
}

// Name returns the operation's identifier.
// The name is used in logs, metrics and record metadata, and must be unique
// within a [Poller].
func (o Operation) Name() string {
	return o.op.Name()
}

// Path returns the normalized API path, relative to [BaseURL] and without a
// leading slash.
func (o Operation) Path() string {
	return o.op.Path()
}

// Parameters returns a copy of the operation's query parameters. Date
// tokens are returned unresolved.
func (o Operation) Parameters() map[string]string {
	return o.op.Parameters()
}

// Type returns the type label attached to records, or "" if none was set.
func (o Operation) Type() string {
	return o.op.Type()
}

// NewOperation creates an [Operation] with the given name, path and options.
//
// The path must start with probes, probegroups or checkpointservers,
// optionally followed by a 32 character id and any suffix. A fully
// qualified URL under [BaseURL] is accepted and shortened.
//
// Options are applied in order using the functional options pattern.
//
// Returns an error wrapping [ErrInvalidConfig] if the name is empty, the
// path is not allowed, or an option is invalid.
//
// Example:
//
//	op, err := uptrends.NewOperation("alerts",
//	    "probegroups/0123456789abcdef0123456789abcdef/Alerts",
//	    uptrends.WithParameter("Start", "yesterday"),
//	    uptrends.WithType("alert"),
//	)
func NewOperation(name, path string, opts ...OperationOption) (Operation, error) {
	cfg := &operationConfig{
		parameters: make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Operation{}, err
		}
	}

	op, err := registry.NewOperation(name, path, cfg.parameters, cfg.typ)
	if err != nil {
		return Operation{}, err
	}
	return Operation{op: op}, nil
}

// DateTokens returns the parameter values that are resolved to dates, sorted
// alphabetically.
func DateTokens() []string {
	tokens := dates.Tokens()
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = string(t)
	}
	sort.Strings(out)
	return out
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
