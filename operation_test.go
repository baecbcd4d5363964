package uptrends

import (
	"errors"
	"testing"
)

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name     string
		opName   string
		path     string
		wantPath string
		wantErr  bool
	}{
		{"root", "probes", "probes", "probes", false},
		{"leading slash", "groups", "/probegroups", "probegroups", false},
		{"id and suffix", "alerts", "probegroups/" + testProbeID + "/Alerts", "probegroups/" + testProbeID + "/Alerts", false},
		{"full URL", "servers", BaseURL + "checkpointservers", "checkpointservers", false},
		{"empty name", "", "probes", "", true},
		{"unknown root", "x", "monitors", "", true},
		{"short id", "x", "probes/abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := NewOperation(tt.opName, tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("NewOperation() error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOperation() error = %v", err)
			}
			if op.Path() != tt.wantPath {
				t.Errorf("Path() = %q, want %q", op.Path(), tt.wantPath)
			}
			if op.Name() != tt.opName {
				t.Errorf("Name() = %q, want %q", op.Name(), tt.opName)
			}
		})
	}
}

func TestNewOperation_Options(t *testing.T) {
	op, err := NewOperation("alerts", "probes",
		WithParameters(map[string]string{"Start": "yesterday", "End": "today"}),
		WithParameter("Sorting", "Descending"),
		WithType("alert"),
	)
	if err != nil {
		t.Fatalf("NewOperation() error = %v", err)
	}

	params := op.Parameters()
	if len(params) != 3 || params["Start"] != "yesterday" || params["Sorting"] != "Descending" {
		t.Errorf("Parameters() = %v", params)
	}
	if op.Type() != "alert" {
		t.Errorf("Type() = %q, want alert", op.Type())
	}

	// the returned map is a copy
	params["Start"] = "changed"
	if op.Parameters()["Start"] != "yesterday" {
		t.Error("modifying Parameters() result changed the operation")
	}
}

func TestWithParameter_EmptyName(t *testing.T) {
	_, err := NewOperation("x", "probes", WithParameter(" ", "v"))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestDateTokens(t *testing.T) {
	tokens := DateTokens()
	if len(tokens) != 24 {
		t.Fatalf("DateTokens() returned %d tokens, want 24", len(tokens))
	}
	for i := 1; i < len(tokens); i++ {
		if tokens[i-1] > tokens[i] {
			t.Fatalf("DateTokens() not sorted at %d: %q > %q", i, tokens[i-1], tokens[i])
		}
	}

	found := false
	for _, tok := range tokens {
		if tok == "first_day_of_previous_month" {
			found = true
		}
	}
	if !found {
		t.Error("DateTokens() is missing first_day_of_previous_month")
	}
}
