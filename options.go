package uptrends

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jpalmerr/uptrends/codec"
	"github.com/jpalmerr/uptrends/record"
)

// pollerConfig holds mutable state during Poller construction.
type pollerConfig struct {
	operations      []Operation
	user            string
	password        string
	schedule        Schedule
	target          string
	metadataTarget  string
	codec           codec.Codec
	sinks           []record.Sink
	logger          *slog.Logger
	port            int
	history         int
	httpTimeout     time.Duration
	maxRetries      int
	rateLimit       float64
	maxConcurrency  int
	baseURL         string
	location        *time.Location
	clock           func() time.Time
	host            string
	resultCallbacks []func(Result)
}

// Option is a function that configures a [Poller] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*pollerConfig) error

// WithOperation adds a single [Operation] to the registry.
//
// Can be called multiple times. At least one operation must be configured
// for [New] to succeed, and names must be unique.
func WithOperation(op Operation) Option {
	return func(cfg *pollerConfig) error {
		cfg.operations = append(cfg.operations, op)
		return nil
	}
}

// WithOperations adds multiple [Operation] values to the registry.
//
// Equivalent to calling [WithOperation] multiple times; pairs naturally with
// [NewOperationGrid].
func WithOperations(ops ...Operation) Option {
	return func(cfg *pollerConfig) error {
		cfg.operations = append(cfg.operations, ops...)
		return nil
	}
}

// WithCredentials sets the API user and password, sent as basic auth with
// every request. Both are required.
func WithCredentials(user, password string) Option {
	return func(cfg *pollerConfig) error {
		if user == "" || password == "" {
			return fmt.Errorf("%w: user and password are required", ErrInvalidConfig)
		}
		cfg.user = user
		cfg.password = password
		return nil
	}
}

// WithSchedule sets when cycles run. Required.
//
// Example:
//
//	p, err := uptrends.New(
//	    uptrends.WithOperation(op),
//	    uptrends.WithCredentials(user, password),
//	    uptrends.WithSchedule(uptrends.Cron("*/15 * * * *")),
//	)
func WithSchedule(s Schedule) Option {
	return func(cfg *pollerConfig) error {
		if err := s.valid(); err != nil {
			return err
		}
		cfg.schedule = s
		return nil
	}
}

// WithTarget nests every decoded payload under the given field reference,
// e.g. "uptrends" or "[uptrends][response]". By default the payload is the
// record root.
func WithTarget(field string) Option {
	return func(cfg *pollerConfig) error {
		if strings.TrimSpace(field) == "" {
			return fmt.Errorf("%w: target cannot be empty", ErrInvalidConfig)
		}
		cfg.target = field
		return nil
	}
}

// WithMetadataTarget enables request metadata (host, url, name, parameters,
// runtime, and for responses code, headers, message and retry count) under
// the given field reference, e.g. "@metadata".
func WithMetadataTarget(field string) Option {
	return func(cfg *pollerConfig) error {
		if strings.TrimSpace(field) == "" {
			return fmt.Errorf("%w: metadata target cannot be empty", ErrInvalidConfig)
		}
		cfg.metadataTarget = field
		return nil
	}
}

// WithCodec sets how response bodies are decoded. Defaults to [codec.JSON].
func WithCodec(c codec.Codec) Option {
	return func(cfg *pollerConfig) error {
		if c == nil {
			return errors.New("codec cannot be nil")
		}
		cfg.codec = c
		return nil
	}
}

// WithSink adds a destination for records. Can be called multiple times;
// every record goes to every sink in registration order.
//
// Sinks are called from the cycle goroutine and should not block for long.
// Errors and panics in a sink are logged and the record is dropped.
func WithSink(s record.Sink) Option {
	return func(cfg *pollerConfig) error {
		if s == nil {
			return errors.New("sink cannot be nil")
		}
		cfg.sinks = append(cfg.sinks, s)
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Poller instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *pollerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithPort starts an HTTP server exposing recent records, live events and
// metrics on the given port. Zero (the default) disables the server.
//
// Returns an error if the port is outside the valid range (0-65535).
func WithPort(port int) Option {
	return func(cfg *pollerConfig) error {
		if port < 0 || port > 65535 {
			return errors.New("port must be between 0 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithRecordHistory sets how many recent records the HTTP server can show.
// Defaults to 500.
func WithRecordHistory(n int) Option {
	return func(cfg *pollerConfig) error {
		if n <= 0 {
			return errors.New("record history must be positive")
		}
		cfg.history = n
		return nil
	}
}

// WithHTTPTimeout sets the timeout of each request attempt. Defaults to 30s.
func WithHTTPTimeout(d time.Duration) Option {
	return func(cfg *pollerConfig) error {
		if d <= 0 {
			return errors.New("http timeout must be positive")
		}
		cfg.httpTimeout = d
		return nil
	}
}

// WithMaxRetries sets how often a request is retried after a transport
// error or a 429/502/503/504 response. Zero disables retries. Defaults to 2.
func WithMaxRetries(n int) Option {
	return func(cfg *pollerConfig) error {
		if n < 0 {
			return errors.New("max retries cannot be negative")
		}
		if n == 0 {
			n = -1
		}
		cfg.maxRetries = n
		return nil
	}
}

// WithRateLimit caps requests per second across all operations. By default
// requests are not rate limited.
func WithRateLimit(perSecond float64) Option {
	return func(cfg *pollerConfig) error {
		if perSecond <= 0 {
			return errors.New("rate limit must be positive")
		}
		cfg.rateLimit = perSecond
		return nil
	}
}

// WithMaxConcurrency sets the maximum number of requests in flight within a
// cycle. Defaults to 8.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *pollerConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithBaseURL points the poller at a different API root, mainly for tests
// and mock servers. Defaults to [BaseURL].
func WithBaseURL(u string) Option {
	return func(cfg *pollerConfig) error {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("%w: base URL must start with http:// or https://", ErrInvalidConfig)
		}
		cfg.baseURL = u
		return nil
	}
}

// WithLocation sets the time zone "today" is taken in when resolving date
// tokens. Defaults to [time.Local].
func WithLocation(loc *time.Location) Option {
	return func(cfg *pollerConfig) error {
		if loc == nil {
			return errors.New("location cannot be nil")
		}
		cfg.location = loc
		return nil
	}
}

// WithClock replaces the clock used to determine "today" and to stamp
// records. Schedule timing always uses the real clock.
func WithClock(now func() time.Time) Option {
	return func(cfg *pollerConfig) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = now
		return nil
	}
}

// WithHost sets the host reported in record metadata. Defaults to the
// machine hostname.
func WithHost(host string) Option {
	return func(cfg *pollerConfig) error {
		cfg.host = host
		return nil
	}
}

// WithResultCallback registers a function called once per operation after
// every cycle, after its records were delivered.
//
// Multiple callbacks may be registered; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They run on the cycle goroutine
// and a slow callback delays the next cycle. Panics within callbacks are
// recovered and logged.
//
// Nil callbacks are silently ignored.
func WithResultCallback(cb func(Result)) Option {
	return func(cfg *pollerConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.resultCallbacks = append(cfg.resultCallbacks, cb)
		return nil
	}
}
