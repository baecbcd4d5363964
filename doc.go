// Package uptrends polls the Uptrends monitoring API on a schedule and turns
// every response into structured records.
//
// uptrends is designed as an SDK-first library: operations, credentials and
// the schedule are configured programmatically with functional options, and
// the same engine backs the uptrends command.
//
// # Quick Start
//
// Define operations and run the poller with graceful shutdown:
//
//	probes, _ := uptrends.NewOperation("probes", "probes")
//	alerts, _ := uptrends.NewOperation("alerts",
//	    "probegroups/0123456789abcdef0123456789abcdef/Alerts",
//	    uptrends.WithParameter("Start", "yesterday"),
//	    uptrends.WithParameter("End", "today"),
//	    uptrends.WithType("alert"),
//	)
//
//	p, err := uptrends.New(
//	    uptrends.WithOperations(probes, alerts),
//	    uptrends.WithCredentials(user, password),
//	    uptrends.WithSchedule(uptrends.Every(time.Hour)),
//	    uptrends.WithSink(record.NewWriterSink(os.Stdout)),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	p.Run(ctx) // blocks until ctx is cancelled, Stop is called, or a one-shot schedule fired
//
// # Date Tokens
//
// Parameter values naming a date token are resolved once per cycle against
// the current date, for example "yesterday", "first_day_of_previous_month"
// or "monday_of_current_week". Full dates are sent as 2006/01/02. Any other
// value is sent unchanged. See [DateTokens].
//
// # Schedules
//
// Exactly one schedule drives the poller: [Cron], [Every], [At] or [In].
// Cycles never overlap; a cycle that overruns its interval delays the next
// one instead of running concurrently.
//
// # Records
//
// Each response body is decoded by a codec (JSON by default) into one record
// per document or array element. Failed requests produce a single record
// tagged "_http_request_failure". Records are delivered to every configured
// [record.Sink].
//
// # Architecture
//
// uptrends consists of several internal packages (under internal/):
//
//   - internal/dates: Date token resolution
//   - internal/registry: Operation and credential validation
//   - internal/request: Per-cycle request building
//   - internal/poller: HTTP client, dispatch/collect engine and schedule driver
//   - internal/outcome: Response to record mapping
//   - internal/store: In-memory recent records with pub/sub
//   - internal/server: HTTP server with REST API, Server-Sent Events and metrics
//   - internal/metrics: Prometheus metrics
//
// The internal packages are not part of the public API and may change
// without notice.
package uptrends
