package uptrends

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jpalmerr/uptrends/codec"
	"github.com/jpalmerr/uptrends/record"
)

func TestOptions_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		wantErr bool
	}{
		{"credentials", WithCredentials("user", "secret"), false},
		{"credentials missing user", WithCredentials("", "secret"), true},
		{"credentials missing password", WithCredentials("user", ""), true},
		{"schedule", WithSchedule(Cron("0 * * * *")), false},
		{"schedule invalid cron", WithSchedule(Cron("not a cron")), true},
		{"schedule zero", WithSchedule(Schedule{}), true},
		{"target", WithTarget("[uptrends][response]"), false},
		{"target empty", WithTarget("  "), true},
		{"metadata target", WithMetadataTarget("@metadata"), false},
		{"metadata target empty", WithMetadataTarget(""), true},
		{"codec", WithCodec(codec.Plain{}), false},
		{"codec nil", WithCodec(nil), true},
		{"sink", WithSink(record.SinkFunc(func(context.Context, *record.Record) error { return nil })), false},
		{"sink nil", WithSink(nil), true},
		{"logger nil", WithLogger(nil), true},
		{"port zero", WithPort(0), false},
		{"port max", WithPort(65535), false},
		{"port negative", WithPort(-1), true},
		{"port too large", WithPort(65536), true},
		{"record history", WithRecordHistory(10), false},
		{"record history zero", WithRecordHistory(0), true},
		{"http timeout", WithHTTPTimeout(time.Second), false},
		{"http timeout zero", WithHTTPTimeout(0), true},
		{"max retries zero", WithMaxRetries(0), false},
		{"max retries negative", WithMaxRetries(-1), true},
		{"rate limit", WithRateLimit(2.5), false},
		{"rate limit zero", WithRateLimit(0), true},
		{"max concurrency", WithMaxConcurrency(4), false},
		{"max concurrency zero", WithMaxConcurrency(0), true},
		{"base url", WithBaseURL("http://127.0.0.1:8080/v3/"), false},
		{"base url without scheme", WithBaseURL("api.uptrends.com"), true},
		{"location", WithLocation(time.UTC), false},
		{"location nil", WithLocation(nil), true},
		{"clock nil", WithClock(nil), true},
		{"host", WithHost("poller-1"), false},
		{"nil callback", WithResultCallback(nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &pollerConfig{}
			err := tt.opt(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("option error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWithMaxRetries_ZeroDisablesRetries(t *testing.T) {
	cfg := &pollerConfig{}
	if err := WithMaxRetries(0)(cfg); err != nil {
		t.Fatalf("WithMaxRetries(0) error = %v", err)
	}
	if cfg.maxRetries >= 0 {
		t.Errorf("maxRetries = %d, want a negative value meaning no retries", cfg.maxRetries)
	}
}

func TestWithCredentials_WrapsInvalidConfig(t *testing.T) {
	err := WithCredentials("", "")(&pollerConfig{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestWithOperations_Appends(t *testing.T) {
	a := mustOperation(t, "a", "probes")
	b := mustOperation(t, "b", "probegroups")
	c := mustOperation(t, "c", "checkpointservers")

	cfg := &pollerConfig{}
	for _, opt := range []Option{WithOperation(a), WithOperations(b, c)} {
		if err := opt(cfg); err != nil {
			t.Fatalf("option error = %v", err)
		}
	}
	if len(cfg.operations) != 3 {
		t.Fatalf("got %d operations, want 3", len(cfg.operations))
	}
	if cfg.operations[2].Name() != "c" {
		t.Errorf("operations out of order: %v", cfg.operations)
	}
}

func TestWithSink_MultipleSinksReceiveEveryRecord(t *testing.T) {
	ts := jsonServer(t, `[{"a":1},{"a":2}]`)
	first, second := &collectSink{}, &collectSink{}
	p := newTestPoller(t, ts.URL, WithSink(first), WithSink(second))

	p.RunOnce(context.Background())

	if first.len() != 2 || second.len() != 2 {
		t.Errorf("sinks received %d and %d records, want 2 each", first.len(), second.len())
	}
}

func TestWithTarget_NestsPayload(t *testing.T) {
	ts := jsonServer(t, `{"Id":"x"}`)
	sink := &collectSink{}
	p := newTestPoller(t, ts.URL, WithSink(sink), WithTarget("uptrends"))

	p.RunOnce(context.Background())

	if sink.len() != 1 {
		t.Fatalf("sink received %d records, want 1", sink.len())
	}
	if v, ok := sink.records[0].Get("[uptrends][Id]"); !ok || v != "x" {
		t.Errorf("[uptrends][Id] = %v, want x", v)
	}
}

func TestWithCodec_Plain(t *testing.T) {
	ts := jsonServer(t, `{"not":"decoded"}`)
	sink := &collectSink{}
	p := newTestPoller(t, ts.URL, WithSink(sink), WithCodec(codec.Plain{}))

	p.RunOnce(context.Background())

	if sink.len() != 1 {
		t.Fatalf("sink received %d records, want 1", sink.len())
	}
	if v, _ := sink.records[0].Get(codec.MessageField); v != `{"not":"decoded"}` {
		t.Errorf("message = %v", v)
	}
}
