// Standalone mock Uptrends API for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/uptrends run -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	json "github.com/goccy/go-json"
)

const groupID = "0123456789abcdef0123456789abcdef"

func main() {
	fmt.Println("Mock Uptrends API starting on :9999 (user demo, password demo)")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	mux := http.NewServeMux()
	mux.HandleFunc("/v3/probes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{
			{"ProbeGuid": "11111111111111111111111111111111", "ProbeName": "Website"},
		})
	})
	mux.HandleFunc("/v3/probegroups/"+groupID+"/Alerts", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		slog.Info("alerts requested", "start", q.Get("Start"), "end", q.Get("End"))
		writeJSON(w, []map[string]any{
			{"Type": "Error", "Start": q.Get("Start"), "End": q.Get("End")},
		})
	})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "demo" || pass != "demo" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})

	if err := http.ListenAndServe(":9999", handler); err != nil {
		slog.Error("mock server error", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
