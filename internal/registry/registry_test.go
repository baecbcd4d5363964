package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groupID = "0123456789abcdef0123456789abcdef"

var validAuth = map[string]any{"user": "api-user", "password": "secret"}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"bare root", "probes", "probes", false},
		{"leading slash", "/probes", "probes", false},
		{"checkpointservers", "checkpointservers", "checkpointservers", false},
		{"group detail", "probegroups/" + groupID + "/detail", "probegroups/" + groupID + "/detail", false},
		{"bare id", "probes/" + groupID, "probes/" + groupID, false},
		{"fully qualified", BaseURL + "probegroups/" + groupID + "/Alerts", "probegroups/" + groupID + "/Alerts", false},
		{"unknown root", "widgets", "", true},
		{"short id", "probes/" + groupID[:31] + "/detail", "", true},
		{"long id", "probes/" + groupID + "X", "", true},
		{"non alphanumeric id", "probes/" + strings.Repeat("-", 32) + "/x", "", true},
		{"root prefix only", "probesx", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "not an allowed API path")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_BareAndStructured(t *testing.T) {
	raw := map[string]any{
		"all-probes": "probes",
		"alerts": map[string]any{
			"path":       "/probegroups/" + groupID + "/Alerts",
			"parameters": map[string]any{"Start": "yesterday", "Count": 50, "Full": true},
			"type":       "alert",
		},
	}

	reg, err := Normalize(raw, validAuth)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	assert.Equal(t, Credentials{User: "api-user", Password: "secret"}, reg.Credentials())

	probes, ok := reg.Get("all-probes")
	require.True(t, ok)
	assert.Equal(t, "probes", probes.Path())
	assert.Empty(t, probes.Parameters())
	assert.Empty(t, probes.Type())

	alerts, ok := reg.Get("alerts")
	require.True(t, ok)
	assert.Equal(t, "probegroups/"+groupID+"/Alerts", alerts.Path())
	assert.Equal(t, "alert", alerts.Type())
	assert.Equal(t, map[string]string{"Start": "yesterday", "Count": "50", "Full": "true"}, alerts.Parameters())

	ops := reg.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, "alerts", ops[0].Name())
	assert.Equal(t, "all-probes", ops[1].Name())
}

func TestNormalize_YAMLStyleMaps(t *testing.T) {
	raw := map[string]any{
		"op": map[any]any{
			"path":       "probes",
			"parameters": map[any]any{"Start": "today"},
		},
	}
	reg, err := Normalize(raw, validAuth)
	require.NoError(t, err)
	op, _ := reg.Get("op")
	assert.Equal(t, map[string]string{"Start": "today"}, op.Parameters())
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		ops     map[string]any
		auth    map[string]any
		wantMsg string
	}{
		{"missing auth", map[string]any{"a": "probes"}, nil, "auth is required"},
		{"missing user", map[string]any{"a": "probes"}, map[string]any{"password": "x"}, "user is required"},
		{"missing password", map[string]any{"a": "probes"}, map[string]any{"user": "x"}, "password is required"},
		{"unknown auth key", map[string]any{"a": "probes"}, map[string]any{"user": "x", "password": "y", "token": "z"}, `unknown key "token"`},
		{"no operations", map[string]any{}, validAuth, "at least one operation"},
		{"bad path", map[string]any{"w": "widgets"}, validAuth, `operation "w"`},
		{"unknown key", map[string]any{"a": map[string]any{"path": "probes", "method": "POST"}}, validAuth, `operation "a": unknown key "method"`},
		{"missing path", map[string]any{"a": map[string]any{"type": "x"}}, validAuth, "path is required"},
		{"parameters not a map", map[string]any{"a": map[string]any{"path": "probes", "parameters": "today"}}, validAuth, "parameters must be a mapping"},
		{"non-string parameter key", map[string]any{"a": map[string]any{"path": "probes", "parameters": map[any]any{1: "x"}}}, validAuth, "invalid parameter key"},
		{"nested parameter value", map[string]any{"a": map[string]any{"path": "probes", "parameters": map[string]any{"x": []any{1}}}}, validAuth, "must be a scalar"},
		{"type not a string", map[string]any{"a": map[string]any{"path": "probes", "type": 3}}, validAuth, "type must be a string"},
		{"null operation", map[string]any{"a": nil}, validAuth, "path is required"},
		{"list operation", map[string]any{"a": []any{"probes"}}, validAuth, "expected a path or an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.ops, tt.auth)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestNew_DuplicateNames(t *testing.T) {
	a, err := NewOperation("dup", "probes", nil, "")
	require.NoError(t, err)
	b, err := NewOperation("dup", "probegroups", nil, "")
	require.NoError(t, err)

	_, err = New([]Operation{a, b}, Credentials{User: "u", Password: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate operation name "dup"`)
}

func TestOperation_ParametersAreCopied(t *testing.T) {
	params := map[string]string{"Start": "today"}
	op, err := NewOperation("op", "probes", params, "")
	require.NoError(t, err)

	params["Start"] = "changed"
	got := op.Parameters()
	assert.Equal(t, "today", got["Start"])

	got["Start"] = "mutated"
	assert.Equal(t, "today", op.Parameters()["Start"])
}
