// Package registry validates and normalizes the configured Uptrends
// operations and the credentials shared by all of them.
//
// Normalization happens once at startup. The resulting [Registry] is
// immutable: accessors hand out copies, so it can be read from any number
// of goroutines without locking.
package registry

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// BaseURL is the Uptrends API root every operation path is relative to.
const BaseURL = "https://api.uptrends.com/v3/"

// ErrInvalidConfig is wrapped by every configuration error in this package.
var ErrInvalidConfig = errors.New("invalid configuration")

// pathPattern is the allow-list: a known root, optionally followed by a
// 32 character id segment and an arbitrary suffix.
var pathPattern = regexp.MustCompile(`\A/?(probes|probegroups|checkpointservers)(/[0-9A-Za-z]{32}(/.*)?)?\z`)

// Credentials authenticate every request against the API.
type Credentials struct {
	User     string
	Password string
}

// Operation is a single named GET request definition.
type Operation struct {
	name       string
	path       string
	parameters map[string]string
	typ        string
}

// NewOperation validates the path and returns an immutable [Operation].
func NewOperation(name, path string, parameters map[string]string, typ string) (Operation, error) {
	if strings.TrimSpace(name) == "" {
		return Operation{}, fmt.Errorf("%w: operation name cannot be empty", ErrInvalidConfig)
	}
	normalized, err := NormalizePath(path)
	if err != nil {
		return Operation{}, fmt.Errorf("%w: operation %q: %s", ErrInvalidConfig, name, err)
	}

	params := make(map[string]string, len(parameters))
	for k, v := range parameters {
		if k == "" {
			return Operation{}, fmt.Errorf("%w: operation %q: parameter name cannot be empty", ErrInvalidConfig, name)
		}
		params[k] = v
	}

	return Operation{name: name, path: normalized, parameters: params, typ: typ}, nil
}

// Name returns the operation's identifier.
func (o Operation) Name() string { return o.name }

// Path returns the validated path relative to [BaseURL], without a leading slash.
func (o Operation) Path() string { return o.path }

// Type returns the optional type label, or "".
func (o Operation) Type() string { return o.typ }

// Parameters returns a copy of the raw query parameters (tokens unresolved).
func (o Operation) Parameters() map[string]string {
	cp := make(map[string]string, len(o.parameters))
	for k, v := range o.parameters {
		cp[k] = v
	}
	return cp
}

// NormalizePath strips an optional fully qualified base URL, validates the
// remainder against the allow-list and drops the leading slash.
func NormalizePath(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	p = strings.TrimPrefix(p, BaseURL)
	if !pathPattern.MatchString(p) {
		return "", fmt.Errorf("path %q is not an allowed API path (expected probes, probegroups or checkpointservers)", raw)
	}
	return strings.TrimPrefix(p, "/"), nil
}

// Registry is the immutable set of operations plus shared credentials.
type Registry struct {
	operations  map[string]Operation
	credentials Credentials
}

// New builds a registry from already validated operations.
func New(ops []Operation, creds Credentials) (*Registry, error) {
	if err := validateCredentials(creds); err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: at least one operation is required", ErrInvalidConfig)
	}

	m := make(map[string]Operation, len(ops))
	for _, op := range ops {
		if op.name == "" {
			return nil, fmt.Errorf("%w: operation name cannot be empty", ErrInvalidConfig)
		}
		if _, exists := m[op.name]; exists {
			return nil, fmt.Errorf("%w: duplicate operation name %q", ErrInvalidConfig, op.name)
		}
		m[op.name] = op
	}
	return &Registry{operations: m, credentials: creds}, nil
}

// Credentials returns the shared credentials.
func (r *Registry) Credentials() Credentials { return r.credentials }

// Len returns the number of operations.
func (r *Registry) Len() int { return len(r.operations) }

// Get returns the operation with the given name.
func (r *Registry) Get(name string) (Operation, bool) {
	op, ok := r.operations[name]
	return op, ok
}

// Operations returns all operations sorted by name.
func (r *Registry) Operations() []Operation {
	out := make([]Operation, 0, len(r.operations))
	for _, op := range r.operations {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Normalize turns raw, untyped configuration (as decoded from YAML or JSON)
// into a [Registry].
//
// rawOperations maps an operation name to either a bare path string or an
// object with "path", optional "parameters" (a mapping) and optional "type".
// rawAuth must contain non-empty "user" and "password" values.
func Normalize(rawOperations map[string]any, rawAuth map[string]any) (*Registry, error) {
	creds, err := NormalizeCredentials(rawAuth)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rawOperations))
	for name := range rawOperations {
		names = append(names, name)
	}
	sort.Strings(names)

	ops := make([]Operation, 0, len(names))
	for _, name := range names {
		op, err := normalizeOperation(name, rawOperations[name])
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return New(ops, creds)
}

// NormalizeCredentials validates a raw auth mapping.
func NormalizeCredentials(rawAuth map[string]any) (Credentials, error) {
	if rawAuth == nil {
		return Credentials{}, fmt.Errorf("%w: auth is required", ErrInvalidConfig)
	}
	for k := range rawAuth {
		if k != "user" && k != "password" {
			return Credentials{}, fmt.Errorf("%w: auth: unknown key %q", ErrInvalidConfig, k)
		}
	}
	user, _ := rawAuth["user"].(string)
	password, _ := rawAuth["password"].(string)
	creds := Credentials{User: user, Password: password}
	return creds, validateCredentials(creds)
}

func validateCredentials(c Credentials) error {
	if c.User == "" {
		return fmt.Errorf("%w: auth: user is required", ErrInvalidConfig)
	}
	if c.Password == "" {
		return fmt.Errorf("%w: auth: password is required", ErrInvalidConfig)
	}
	return nil
}

func normalizeOperation(name string, raw any) (Operation, error) {
	switch v := raw.(type) {
	case string:
		return NewOperation(name, v, nil, "")
	case map[string]any:
		return normalizeStructured(name, v)
	case map[any]any:
		m, err := stringKeys(v)
		if err != nil {
			return Operation{}, fmt.Errorf("%w: operation %q: %s", ErrInvalidConfig, name, err)
		}
		return normalizeStructured(name, m)
	case nil:
		return Operation{}, fmt.Errorf("%w: operation %q: path is required", ErrInvalidConfig, name)
	default:
		return Operation{}, fmt.Errorf("%w: operation %q: expected a path or an object, got %T", ErrInvalidConfig, name, raw)
	}
}

func normalizeStructured(name string, m map[string]any) (Operation, error) {
	for k := range m {
		switch k {
		case "path", "parameters", "type":
		default:
			return Operation{}, fmt.Errorf("%w: operation %q: unknown key %q", ErrInvalidConfig, name, k)
		}
	}

	path, ok := m["path"].(string)
	if !ok || path == "" {
		return Operation{}, fmt.Errorf("%w: operation %q: path is required", ErrInvalidConfig, name)
	}

	var typ string
	if rawType, present := m["type"]; present && rawType != nil {
		s, ok := rawType.(string)
		if !ok {
			return Operation{}, fmt.Errorf("%w: operation %q: type must be a string, got %T", ErrInvalidConfig, name, rawType)
		}
		typ = s
	}

	params, err := normalizeParameters(m["parameters"])
	if err != nil {
		return Operation{}, fmt.Errorf("%w: operation %q: %s", ErrInvalidConfig, name, err)
	}

	return NewOperation(name, path, params, typ)
}

func normalizeParameters(raw any) (map[string]string, error) {
	var m map[string]any
	switch v := raw.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]any:
		m = v
	case map[string]string:
		return v, nil
	case map[any]any:
		converted, err := stringKeys(v)
		if err != nil {
			return nil, err
		}
		m = converted
	default:
		return nil, fmt.Errorf("parameters must be a mapping, got %T", raw)
	}

	out := make(map[string]string, len(m))
	for k, v := range m {
		s, err := literal(v)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %s", k, err)
		}
		out[k] = s
	}
	return out, nil
}

func stringKeys(m map[any]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		s, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("invalid parameter key %v (%T): keys must be strings", k, k)
		}
		out[s] = v
	}
	return out, nil
}

// literal renders a scalar parameter value as it is sent on the wire.
func literal(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("value must be a scalar, got %T", v)
	}
}
