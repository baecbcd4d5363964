package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/jpalmerr/uptrends/internal/dates"
	"github.com/jpalmerr/uptrends/internal/registry"
	"github.com/jpalmerr/uptrends/internal/request"
)

// Outcome is the result of one request: exactly one of Response and
// Failure is set.
type Outcome struct {
	Response *Response
	Failure  *Failure
}

// Succeeded reports whether the request produced a response.
func (o Outcome) Succeeded() bool {
	return o.Response != nil
}

// Result pairs an operation with its outcome for one cycle.
type Result struct {
	Operation registry.Operation
	Request   request.Descriptor
	Outcome   Outcome
	Elapsed   time.Duration
}

// Name returns the operation name.
func (r Result) Name() string {
	return r.Operation.Name()
}

// EngineConfig configures an [Engine].
type EngineConfig struct {
	Registry *registry.Registry
	Client   *Client

	// BaseURL overrides [registry.BaseURL].
	BaseURL string

	// Now is the process clock. Defaults to time.Now.
	Now func() time.Time

	// Location is the zone "today" is taken in. Defaults to time.Local.
	Location *time.Location

	Logger *slog.Logger
}

// Engine runs one dispatch/collect cycle over every registered operation.
type Engine struct {
	registry *registry.Registry
	client   *Client
	baseURL  string
	now      func() time.Time
	location *time.Location
	logger   *slog.Logger
}

// NewEngine creates an [Engine].
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		registry: cfg.Registry,
		client:   cfg.Client,
		baseURL:  cfg.BaseURL,
		now:      cfg.Now,
		location: cfg.Location,
		logger:   cfg.Logger,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.location == nil {
		e.location = time.Local
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.client == nil {
		e.client = NewClient(ClientConfig{Logger: e.logger})
	}
	return e
}

// Today returns the reference date for a cycle.
func (e *Engine) Today() time.Time {
	return dates.Truncate(e.now().In(e.location))
}

// RunCycle submits one request per operation, waits for the whole batch and
// returns one result per operation, ordered by operation name.
//
// Today is read once, so every operation in the cycle resolves date tokens
// against the same reference date. A request that cannot be built (for
// example an unresolvable parameter) becomes a failure for that operation
// only.
func (e *Engine) RunCycle(ctx context.Context) []Result {
	today := e.Today()
	ops := e.registry.Operations()
	creds := e.registry.Credentials()

	results := make([]Result, len(ops))
	started := time.Now()

	batch := e.client.Parallel()
	for i, op := range ops {
		results[i].Operation = op

		desc, err := request.ForOperation(e.baseURL, op, creds, today)
		if err != nil {
			results[i].Outcome = Outcome{Failure: &Failure{Err: err, Backtrace: errorChain(err)}}
			results[i].Elapsed = time.Since(started)
			continue
		}
		results[i].Request = desc

		e.logger.Debug("fetching operation", "operation", op.Name(), "url", desc.String())

		// each callback owns slot i; no other goroutine touches it
		slot := &results[i]
		batch.Get(desc,
			func(resp Response) {
				slot.Outcome = Outcome{Response: &resp}
				slot.Elapsed = time.Since(started)
			},
			func(f *Failure) {
				slot.Outcome = Outcome{Failure: f}
				slot.Elapsed = time.Since(started)
			},
		)
	}

	batch.Execute(ctx)
	return results
}
