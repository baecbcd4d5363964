package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/uptrends"
	"github.com/jpalmerr/uptrends/record"
)

func main() {
	// start mock API (see mock_server.go)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		slog.Error("failed to start mock api", "error", err)
		os.Exit(1)
	}
	go func() { _ = http.Serve(ln, NewMockUptrendsAPI()) }()
	baseURL := fmt.Sprintf("http://%s/v3/", ln.Addr())

	alerts, err := uptrends.NewOperation("alerts",
		"probegroups/"+mockGroupID+"/Alerts",
		uptrends.WithParameters(map[string]string{"Start": "yesterday", "End": "today"}),
		uptrends.WithType("alert"),
	)
	if err != nil {
		slog.Error("failed to create operation", "error", err)
		os.Exit(1)
	}
	probes, _ := uptrends.NewOperation("probes", "probes")
	servers, _ := uptrends.NewOperation("checkpoints", "checkpointservers", uptrends.WithType("checkpoint"))

	p, err := uptrends.New(
		uptrends.WithOperations(alerts, probes, servers),
		uptrends.WithCredentials(mockUser, mockPassword),
		uptrends.WithSchedule(uptrends.Every(10*time.Second)),
		uptrends.WithBaseURL(baseURL),
		uptrends.WithMetadataTarget("@metadata"),
		uptrends.WithSink(record.NewWriterSink(os.Stdout)),
		uptrends.WithPort(8080),
		uptrends.WithResultCallback(func(r uptrends.Result) {
			if !r.Succeeded() {
				slog.Warn("operation failed", "operation", r.Operation, "error", r.Err)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create poller", "error", err)
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "  Uptrends poller demo")
	fmt.Fprintln(os.Stderr, "  Records are written to stdout every 10s.")
	fmt.Fprintln(os.Stderr, "  Recent records: http://localhost:8080/api/records")
	fmt.Fprintln(os.Stderr, "  Live events:    http://localhost:8080/api/sse")
	fmt.Fprintln(os.Stderr, "  Metrics:        http://localhost:8080/metrics")
	fmt.Fprintln(os.Stderr, "  Press Ctrl+C to stop")
	fmt.Fprintln(os.Stderr)

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil {
		slog.Error("poller error", "error", err)
		os.Exit(1)
	}
}
