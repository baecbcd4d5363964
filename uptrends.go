package uptrends

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/uptrends/codec"
	"github.com/jpalmerr/uptrends/internal/metrics"
	"github.com/jpalmerr/uptrends/internal/outcome"
	"github.com/jpalmerr/uptrends/internal/poller"
	"github.com/jpalmerr/uptrends/internal/registry"
	"github.com/jpalmerr/uptrends/internal/server"
	"github.com/jpalmerr/uptrends/internal/store"
	"github.com/jpalmerr/uptrends/record"
)

// Poller runs the configured Uptrends operations on a schedule and turns
// every response into records.
//
// Poller is created using [New] with functional options and started with
// [Poller.Run]. Each cycle resolves date tokens against a single reference
// date, fires all requests in parallel, waits for every one of them and then
// delivers records to the sinks. Cycles never overlap.
//
// The typical lifecycle is:
//
//	p, err := uptrends.New(
//	    uptrends.WithOperation(op),
//	    uptrends.WithCredentials(user, password),
//	    uptrends.WithSchedule(uptrends.Every(time.Hour)),
//	    uptrends.WithSink(record.NewWriterSink(os.Stdout)),
//	)
//	if err != nil {
//	    slog.Error("failed to create poller", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	p.Run(ctx) // blocks until ctx is cancelled or Stop is called
type Poller struct {
	operations      []Operation
	schedule        Schedule
	port            int
	logger          *slog.Logger
	now             func() time.Time
	resultCallbacks []func(Result)

	client *poller.Client
	engine *poller.Engine
	mapper *outcome.Mapper
	store  *store.MemoryStore
	driver *poller.Driver

	// cycleMu keeps scheduled cycles and RunOnce from overlapping.
	cycleMu sync.Mutex
}

// New creates a new [Poller] instance with the given options.
//
// At least one operation, the credentials and a schedule are required.
// Other options have sensible defaults:
//   - Codec: JSON
//   - HTTP timeout: 30 seconds, 2 retries
//   - Max concurrency: 8
//   - Port: 0 (no HTTP server)
//
// Returns an error wrapping [ErrInvalidConfig] if the configuration is
// incomplete, an operation name is duplicated, or any option is invalid.
func New(opts ...Option) (*Poller, error) {
	cfg := &pollerConfig{
		operations: []Operation{},
		history:    store.DefaultHistory,
		baseURL:    BaseURL,
		location:   time.Local,
		clock:      time.Now,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.schedule.valid(); err != nil {
		return nil, err
	}

	ops := make([]registry.Operation, len(cfg.operations))
	for i, op := range cfg.operations {
		ops[i] = op.op
	}
	reg, err := registry.New(ops, registry.Credentials{User: cfg.user, Password: cfg.password})
	if err != nil {
		return nil, err
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.codec == nil {
		cfg.codec = codec.JSON{}
	}

	history := store.NewMemoryStore(cfg.history)
	sinks := append(record.MultiSink{}, cfg.sinks...)
	sinks = append(sinks, history)

	client := poller.NewClient(poller.ClientConfig{
		Timeout:        cfg.httpTimeout,
		MaxRetries:     cfg.maxRetries,
		RateLimit:      cfg.rateLimit,
		MaxConcurrency: cfg.maxConcurrency,
		Logger:         logger,
	})

	p := &Poller{
		operations:      cfg.operations,
		schedule:        cfg.schedule,
		port:            cfg.port,
		logger:          logger,
		now:             cfg.clock,
		resultCallbacks: cfg.resultCallbacks,
		client:          client,
		store:           history,
		engine: poller.NewEngine(poller.EngineConfig{
			Registry: reg,
			Client:   client,
			BaseURL:  cfg.baseURL,
			Now:      cfg.clock,
			Location: cfg.location,
			Logger:   logger,
		}),
		mapper: outcome.New(outcome.Config{
			Codec:          cfg.codec,
			Target:         cfg.target,
			MetadataTarget: cfg.metadataTarget,
			Host:           cfg.host,
			Sink:           sinks,
			Now:            cfg.clock,
			Logger:         logger,
		}),
	}
	p.driver = poller.NewDriver(cfg.schedule.trigger, func(ctx context.Context) {
		p.cycle(ctx)
	}, logger)
	return p, nil
}

// Run starts the schedule and blocks until it ends.
//
// Run returns when ctx is cancelled, when [Poller.Stop] is called, or after
// the single cycle of an [At] or [In] schedule. A cycle that is already
// running when the poller stops is always completed and its records are
// delivered. If a port was configured, the HTTP server runs alongside and
// shuts down when Run returns.
//
// Run can be called once. Returns an error if the HTTP server cannot start
// or the schedule cannot fire (an [At] time in the past).
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("uptrends poller starting",
		"operation_count", len(p.operations),
		"schedule", p.schedule.String(),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer p.client.Close()

	if p.port > 0 && runCtx.Err() == nil {
		httpServer := server.NewServer(p.store, p.port, metrics.Handler(), p.logger)
		if err := httpServer.Start(runCtx); err != nil {
			// let the driver run out so Done is closed
			p.driver.Stop()
			_ = p.driver.Run(runCtx)
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	if err := p.driver.Run(runCtx); err != nil {
		return fmt.Errorf("schedule %s: %w", p.schedule, err)
	}
	p.logger.Info("uptrends poller stopped")
	return nil
}

// RunOnce runs a single cycle immediately, independent of the schedule, and
// returns one [Result] per operation ordered by name. Records are delivered
// to the sinks as usual. If a scheduled cycle is in progress, RunOnce waits
// for it to finish first.
func (p *Poller) RunOnce(ctx context.Context) []Result {
	return p.cycle(ctx)
}

// Stop ends the schedule. No new cycle starts after Stop returns; a cycle
// in progress is finished first. Stop is idempotent and may be called
// before [Poller.Run].
func (p *Poller) Stop() {
	p.driver.Stop()
}

// Done is closed once [Poller.Run] has returned.
func (p *Poller) Done() <-chan struct{} {
	return p.driver.Done()
}

// Operations returns a copy of the configured operations.
//
// The returned slice is a copy; modifying it does not affect the Poller.
// Each [Operation] in the slice is immutable.
func (p *Poller) Operations() []Operation {
	cp := make([]Operation, len(p.operations))
	copy(cp, p.operations)
	return cp
}

// Schedule returns the configured schedule.
func (p *Poller) Schedule() Schedule {
	return p.schedule
}

// Port returns the configured HTTP port, or 0 if the server is disabled.
func (p *Poller) Port() int {
	return p.port
}

// cycle runs all operations once, delivers their records and reports each
// outcome to the store and the result callbacks.
func (p *Poller) cycle(ctx context.Context) []Result {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	cycleID := uuid.NewString()
	started := time.Now()
	logger := p.logger.With("cycle_id", cycleID)
	logger.Debug("cycle started")

	results := p.engine.RunCycle(ctx)
	checkedAt := p.now()

	out := make([]Result, 0, len(results))
	failed := 0
	for _, res := range results {
		delivered := p.mapper.EmitResult(ctx, res)

		// store update first (callbacks fire after data is persisted)
		p.store.Update(toOperationStatus(res, delivered, checkedAt))

		public := toPublicResult(res, delivered, checkedAt)
		for _, cb := range p.resultCallbacks {
			invokeCallbackSafe(cb, public.clone(), logger)
		}
		if !public.Succeeded() {
			failed++
		}
		out = append(out, public)
	}

	elapsed := time.Since(started)
	metrics.RecordCycle(elapsed)
	logger.Info("cycle completed",
		"operations", len(results),
		"failed", failed,
		"duration_ms", elapsed.Milliseconds(),
	)
	return out
}

// toOperationStatus converts an engine result to a store status.
func toOperationStatus(res poller.Result, records int, checkedAt time.Time) store.OperationStatus {
	st := store.OperationStatus{
		Name:           res.Name(),
		URL:            res.Request.String(),
		Type:           res.Operation.Type(),
		Succeeded:      res.Outcome.Succeeded(),
		RuntimeSeconds: res.Elapsed.Seconds(),
		Records:        records,
		CheckedAt:      checkedAt,
	}
	if resp := res.Outcome.Response; resp != nil {
		st.Code = resp.Code
	}
	if f := res.Outcome.Failure; f != nil {
		s := f.Error()
		st.Error = &s
	}
	return st
}

// invokeCallbackSafe calls a result callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Result), result Result, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("result callback panicked",
				"panic", r,
				"operation", result.Operation,
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(result)
}
