// Package request turns an operation into a ready to send request
// descriptor, resolving date tokens against the cycle's reference date.
package request

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jpalmerr/uptrends/internal/dates"
	"github.com/jpalmerr/uptrends/internal/registry"
)

// FormatParam is always sent and cannot be overridden by configuration.
const FormatParam = "format"

// Descriptor is a fully resolved GET request. It is built fresh each cycle.
type Descriptor struct {
	// URL is the base URL joined with the operation path, without a query.
	URL string

	// Query holds the resolved query parameters, including format=json.
	Query url.Values

	// Credentials are sent eagerly as basic auth.
	Credentials registry.Credentials
}

// String returns the full URL including the encoded query.
func (d Descriptor) String() string {
	if len(d.Query) == 0 {
		return d.URL
	}
	return d.URL + "?" + d.Query.Encode()
}

// Params returns the resolved query as a flat map.
func (d Descriptor) Params() map[string]string {
	out := make(map[string]string, len(d.Query))
	for k := range d.Query {
		out[k] = d.Query.Get(k)
	}
	return out
}

// Build resolves parameters for path against today. Values naming a date
// token are replaced by the resolved date; anything else is passed through.
// baseURL defaults to [registry.BaseURL] when empty.
func Build(baseURL, path string, parameters map[string]string, creds registry.Credentials, today time.Time) (Descriptor, error) {
	if baseURL == "" {
		baseURL = registry.BaseURL
	}

	query := make(url.Values, len(parameters)+1)
	for k, v := range parameters {
		if k == "" {
			return Descriptor{}, fmt.Errorf("%w: invalid parameter name %q", registry.ErrInvalidConfig, k)
		}
		value := v
		if tok, ok := dates.Lookup(v); ok {
			resolved, err := dates.Format(tok, today)
			if err != nil {
				return Descriptor{}, fmt.Errorf("parameter %q: %w", k, err)
			}
			value = resolved
		}
		query.Set(k, value)
	}
	query.Set(FormatParam, "json")

	return Descriptor{
		URL:         strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(path, "/"),
		Query:       query,
		Credentials: creds,
	}, nil
}

// ForOperation is [Build] for a registry operation.
func ForOperation(baseURL string, op registry.Operation, creds registry.Credentials, today time.Time) (Descriptor, error) {
	return Build(baseURL, op.Path(), op.Parameters(), creds, today)
}
