// Package outcome turns the results of a polling cycle into output records
// and hands them to a sink.
//
// A successful exchange yields one record per decoded payload, or exactly
// one empty record when the body is empty. A failed exchange yields a single
// record carrying an "http_request_failure" field and the
// [FailureTag] tag. Problems while building or emitting a record are logged
// and the record is dropped; they never reach the caller.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/uptrends/codec"
	"github.com/jpalmerr/uptrends/internal/metrics"
	"github.com/jpalmerr/uptrends/internal/poller"
	"github.com/jpalmerr/uptrends/record"
)

const (
	// FailureField holds the description of a failed request.
	FailureField = "http_request_failure"

	// FailureTag marks records produced from failed requests.
	FailureTag = "_http_request_failure"

	// TypeField receives the operation's type label.
	TypeField = "type"
)

// Config configures a [Mapper].
type Config struct {
	// Codec decodes response bodies. Defaults to [codec.JSON].
	Codec codec.Codec

	// Target nests every decoded payload under this field reference.
	// Empty means the payload becomes the record root.
	Target string

	// MetadataTarget is where request metadata is written. Empty disables
	// metadata.
	MetadataTarget string

	// Host is reported in metadata. Defaults to the machine hostname.
	Host string

	// Sink receives records from [Mapper.Emit]. Nil discards them.
	Sink record.Sink

	// Now stamps records. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Mapper converts [poller.Result] values into records.
type Mapper struct {
	codec          codec.Codec
	target         string
	metadataTarget string
	host           string
	sink           record.Sink
	now            func() time.Time
	logger         *slog.Logger
}

// New creates a [Mapper].
func New(cfg Config) *Mapper {
	m := &Mapper{
		codec:          cfg.Codec,
		target:         cfg.Target,
		metadataTarget: cfg.MetadataTarget,
		host:           cfg.Host,
		sink:           cfg.Sink,
		now:            cfg.Now,
		logger:         cfg.Logger,
	}
	if m.codec == nil {
		m.codec = codec.JSON{}
	}
	if m.host == "" {
		if h, err := os.Hostname(); err == nil {
			m.host = h
		}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// ToRecords maps one result to its records. Records that cannot be built
// are logged, counted as dropped and left out.
func (m *Mapper) ToRecords(res poller.Result) []*record.Record {
	if !res.Outcome.Succeeded() {
		rec, err := m.failureRecord(res)
		if err != nil {
			m.drop(res, err)
			return nil
		}
		return []*record.Record{rec}
	}
	return m.successRecords(res)
}

// Emit maps every result and sends the records to the sink. It returns the
// number of records delivered.
func (m *Mapper) Emit(ctx context.Context, results []poller.Result) int {
	total := 0
	for _, res := range results {
		total += m.EmitResult(ctx, res)
	}
	return total
}

// EmitResult maps a single result and sends its records to the sink. Sink
// errors are logged and the record is dropped. It returns the number of
// records delivered.
func (m *Mapper) EmitResult(ctx context.Context, res poller.Result) int {
	m.observe(res)

	delivered := 0
	for _, rec := range m.ToRecords(res) {
		if m.sink != nil {
			if err := m.safeEmit(ctx, rec); err != nil {
				m.drop(res, err)
				continue
			}
		}
		metrics.RecordEmitted(res.Name())
		delivered++
	}
	return delivered
}

func (m *Mapper) observe(res poller.Result) {
	if res.Outcome.Succeeded() {
		metrics.RecordRequest(res.Name(), metrics.OutcomeSuccess, res.Elapsed, res.Outcome.Response.RetryCount)
		m.logger.Debug("operation succeeded",
			"operation", res.Name(),
			"code", res.Outcome.Response.Code,
			"runtime_seconds", res.Elapsed.Seconds(),
		)
		return
	}
	f := failureOf(res)
	metrics.RecordRequest(res.Name(), metrics.OutcomeFailure, res.Elapsed, f.RetryCount)
	m.logger.Warn("operation failed",
		"operation", res.Name(),
		"url", res.Request.String(),
		"error", f.Error(),
	)
}

// errNoOutcome describes a result that carries neither a response nor a
// failure.
var errNoOutcome = errors.New("request produced no outcome")

func failureOf(res poller.Result) *poller.Failure {
	if f := res.Outcome.Failure; f != nil {
		return f
	}
	return &poller.Failure{Err: errNoOutcome, Backtrace: []string{errNoOutcome.Error()}}
}

func (m *Mapper) drop(res poller.Result, err error) {
	metrics.RecordDropped(res.Name())
	m.logger.Error("record dropped",
		"operation", res.Name(),
		"error", err.Error(),
	)
}

func (m *Mapper) successRecords(res poller.Result) []*record.Record {
	resp := res.Outcome.Response
	ts := m.now()

	if len(resp.Body) == 0 {
		rec := record.New(ts)
		if err := m.decorate(rec, res); err != nil {
			m.drop(res, err)
			return nil
		}
		return []*record.Record{rec}
	}

	payloads, err := m.safeDecode(resp.Body)
	if err != nil && len(payloads) == 0 {
		m.drop(res, err)
		return nil
	}
	if err != nil {
		m.logger.Warn("partial decode", "operation", res.Name(), "error", err.Error())
	}

	out := make([]*record.Record, 0, len(payloads))
	for _, p := range payloads {
		rec, err := m.payloadRecord(p, ts)
		if err == nil {
			err = m.decorate(rec, res)
		}
		if err != nil {
			m.drop(res, err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (m *Mapper) payloadRecord(p codec.Payload, ts time.Time) (*record.Record, error) {
	var rec *record.Record
	switch {
	case m.target != "":
		rec = record.New(ts)
		if err := rec.Set(m.target, p.Value); err != nil {
			return nil, fmt.Errorf("target %q: %w", m.target, err)
		}
	default:
		if fields, ok := p.Value.(map[string]any); ok {
			rec = record.FromMap(fields, ts)
		} else {
			rec = record.New(ts)
			if err := rec.Set(codec.MessageField, p.Value); err != nil {
				return nil, err
			}
		}
	}
	for _, tag := range p.Tags {
		rec.Tag(tag)
	}
	return rec, nil
}

// decorate attaches metadata and the type label.
func (m *Mapper) decorate(rec *record.Record, res poller.Result) error {
	if err := m.applyMetadata(rec, res); err != nil {
		return err
	}
	if typ := res.Operation.Type(); typ != "" && !rec.Has(TypeField) {
		if err := rec.Set(TypeField, typ); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mapper) failureRecord(res poller.Result) (*record.Record, error) {
	rec := record.New(m.now())
	if err := m.applyMetadata(rec, res); err != nil {
		return nil, err
	}

	f := failureOf(res)
	backtrace := make([]any, 0, len(f.Backtrace))
	for _, line := range f.Backtrace {
		backtrace = append(backtrace, line)
	}
	if err := rec.Set(FailureField, map[string]any{
		"url":             res.Request.String(),
		"error":           f.Error(),
		"backtrace":       backtrace,
		"runtime_seconds": res.Elapsed.Seconds(),
	}); err != nil {
		return nil, err
	}
	rec.Tag(FailureTag)
	return rec, nil
}

func (m *Mapper) applyMetadata(rec *record.Record, res poller.Result) error {
	if m.metadataTarget == "" {
		return nil
	}
	if err := rec.Set(m.metadataTarget, m.metadata(res)); err != nil {
		return fmt.Errorf("metadata target %q: %w", m.metadataTarget, err)
	}
	return nil
}

func (m *Mapper) metadata(res poller.Result) map[string]any {
	params := make(map[string]any, len(res.Request.Query))
	for k, v := range res.Request.Params() {
		params[k] = v
	}

	md := map[string]any{
		"host":            m.host,
		"name":            res.Name(),
		"url":             res.Request.String(),
		"parameters":      params,
		"runtime_seconds": res.Elapsed.Seconds(),
	}
	if resp := res.Outcome.Response; resp != nil {
		md["code"] = resp.Code
		md["response_headers"] = flattenHeaders(resp.Headers)
		md["response_message"] = resp.Message
		md["times_retried"] = resp.RetryCount
	}
	return md
}

// flattenHeaders lowercases header names; repeated headers become a list.
func flattenHeaders(h map[string][]string) map[string]any {
	out := make(map[string]any, len(h))
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values := h[k]
		name := strings.ToLower(k)
		if len(values) == 1 {
			out[name] = values[0]
			continue
		}
		list := make([]any, 0, len(values))
		for _, v := range values {
			list = append(list, v)
		}
		out[name] = list
	}
	return out
}

// safeDecode calls the codec with panic recovery. A panic is logged with a
// correlation id and reported as an error.
func (m *Mapper) safeDecode(body []byte) (payloads []codec.Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			m.logger.Error("codec panic",
				"correlation_id", correlationID,
				"codec", m.codec.Name(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			payloads = nil
			err = fmt.Errorf("codec panic (correlation_id: %s)", correlationID)
		}
	}()
	return m.codec.Decode(body)
}

// safeEmit calls the sink with panic recovery.
func (m *Mapper) safeEmit(ctx context.Context, rec *record.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			m.logger.Error("sink panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("sink panic (correlation_id: %s)", correlationID)
		}
	}()
	if rec == nil {
		return errors.New("nil record")
	}
	return m.sink.Emit(ctx, rec)
}
