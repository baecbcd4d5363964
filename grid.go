package uptrends

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/template"
)

// NewOperationGrid creates multiple operations from a path template and
// dimensions using cartesian product expansion.
//
// The path template uses Go's text/template syntax. Dimension values are
// path-escaped before interpolation. Missing template keys cause an error
// (fail-fast).
//
// Each operation is named "<base>-<v1>-<v2>" with the values ordered by
// alphabetically sorted dimension keys.
//
// Example:
//
//	ops, err := uptrends.NewOperationGrid("probe-detail",
//	    uptrends.WithPathTemplate("probes/{{.probe}}"),
//	    uptrends.WithDimensions(map[string][]string{
//	        "probe": {"0123456789abcdef0123456789abcdef"},
//	    }),
//	    uptrends.WithGridParameters(map[string]string{"Start": "first_day_of_current_month"}),
//	)
//	// usable with WithOperations(ops...)
func NewOperationGrid(baseName string, opts ...GridOption) ([]Operation, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, fmt.Errorf("%w: grid name cannot be empty", ErrInvalidConfig)
	}

	cfg := &gridConfig{
		parameters: make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.pathTemplate == "" {
		return nil, fmt.Errorf("%w: grid %q: path template required", ErrInvalidConfig, baseName)
	}
	if len(cfg.dimensions) == 0 {
		return nil, fmt.Errorf("%w: grid %q: at least one dimension required", ErrInvalidConfig, baseName)
	}

	// missingkey=error for fail-fast behaviour
	tmpl, err := template.New("path").Option("missingkey=error").Parse(cfg.pathTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: grid %q: invalid path template: %s", ErrInvalidConfig, baseName, err)
	}

	combinations := cartesianProduct(cfg.dimensions)
	ops := make([]Operation, 0, len(combinations))
	for _, combo := range combinations {
		path, err := executeTemplate(tmpl, pathEscapeMap(combo))
		if err != nil {
			return nil, fmt.Errorf("%w: grid %q: template execution failed: %s", ErrInvalidConfig, baseName, err)
		}

		name := formatOperationName(baseName, combo)
		opOpts := []OperationOption{WithParameters(cfg.parameters)}
		if cfg.typ != "" {
			opOpts = append(opOpts, WithType(cfg.typ))
		}

		op, err := NewOperation(name, path, opOpts...)
		if err != nil {
			return nil, fmt.Errorf("grid operation %q: %w", name, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// cartesianProduct generates all combinations of dimension values.
// Keys are sorted alphabetically for deterministic output.
// Values maintain their original slice order.
//
// Example:
//
//	Input:  {"x": ["a","b"], "y": ["1","2"]}
//	Output: [{"x":"a","y":"1"}, {"x":"a","y":"2"}, {"x":"b","y":"1"}, {"x":"b","y":"2"}]
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	keys := sortedKeys(dims)
	total := 1
	for _, k := range keys {
		if len(dims[k]) == 0 {
			return nil
		}
		total *= len(dims[k])
	}

	result := make([]map[string]string, 0, total)
	indices := make([]int, len(keys))
	for {
		combo := make(map[string]string, len(keys))
		for i, k := range keys {
			combo[k] = dims[k][indices[i]]
		}
		result = append(result, combo)

		// increment indices (rightmost first)
		for i := len(keys) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(dims[keys[i]]) {
				break
			}
			indices[i] = 0
			if i == 0 {
				return result
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// pathEscapeMap returns a new map with all values escaped for a path segment.
func pathEscapeMap(m map[string]string) map[string]string {
	result := make(map[string]string, len(m))
	for k, v := range m {
		result[k] = url.PathEscape(v)
	}
	return result
}

// executeTemplate renders the template with the given data.
func executeTemplate(tmpl *template.Template, data map[string]string) (string, error) {
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatOperationName creates a name in the format "base-v1-v2".
func formatOperationName(baseName string, combo map[string]string) string {
	parts := []string{baseName}
	for _, k := range sortedKeys(combo) {
		parts = append(parts, combo[k])
	}
	return strings.Join(parts, "-")
}
