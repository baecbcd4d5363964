package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const (
	mockUser     = "demo"
	mockPassword = "demo"
	mockGroupID  = "0123456789abcdef0123456789abcdef"
)

// NewMockUptrendsAPI returns a handler imitating a small slice of the
// Uptrends v3 API: probes, probe groups, their alerts and checkpoint
// servers. Requests need basic auth demo/demo; roughly one in ten fails
// with 503 so retries show up in the logs.
func NewMockUptrendsAPI() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v3/probes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{
			{"ProbeGuid": "11111111111111111111111111111111", "ProbeName": "Website", "IsActive": true},
			{"ProbeGuid": "22222222222222222222222222222222", "ProbeName": "Checkout API", "IsActive": true},
		})
	})

	mux.HandleFunc("/v3/probegroups", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{
			{"ProbeGroupGuid": mockGroupID, "Name": "Production"},
		})
	})

	mux.HandleFunc("/v3/probegroups/"+mockGroupID+"/Alerts", func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("Start")
		end := r.URL.Query().Get("End")
		writeJSON(w, []map[string]any{
			{"AlertGuid": randomID(), "Type": "Error", "Start": start, "End": end},
			{"AlertGuid": randomID(), "Type": "Ok", "Start": start, "End": end},
		})
	})

	mux.HandleFunc("/v3/checkpointservers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{
			{"CheckpointName": "Amsterdam", "IpAddress": "203.0.113.10"},
			{"CheckpointName": "Sydney", "IpAddress": "203.0.113.20"},
		})
	})

	return withMockAuth(withFlakiness(mux))
}

func withMockAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != mockUser || pass != mockPassword {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, map[string]string{"Message": "Authorization has been denied for this request."})
			return
		}
		if r.URL.Query().Get("format") != "json" {
			http.Error(w, "format=json is required", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withFlakiness(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.Intn(100)) * time.Millisecond)

		if rand.Intn(10) == 0 {
			slog.Info("mock api failing request", "path", r.URL.Path)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func randomID() string {
	var b strings.Builder
	for i := 0; i < 32; i++ {
		fmt.Fprintf(&b, "%x", rand.Intn(16))
	}
	return b.String()
}
