package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/uptrends/internal/registry"
	"github.com/jpalmerr/uptrends/internal/request"
)

func testDescriptor(t *testing.T, baseURL, path string) request.Descriptor {
	t.Helper()
	d, err := request.Build(baseURL, path, nil, registry.Credentials{User: "user", Password: "secret"}, time.Now())
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return d
}

func fastClient() *Client {
	return NewClient(ClientConfig{
		Timeout:       time.Second,
		RetryInterval: time.Millisecond,
		Logger:        testLogger(),
	})
}

// TestClient_ConnectionReuse verifies that the HTTP client reuses connections
// when making sequential requests to the same host.
func TestClient_ConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()

	client := fastClient()
	desc := testDescriptor(t, server.URL, "probes")

	var reusedCount int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount++
			}
		},
	}

	const numRequests = 5
	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		if _, failure := client.Get(ctx, desc); failure != nil {
			t.Fatalf("request %d failed: %v", i, failure)
		}
	}

	expectedMinReuse := numRequests - 2 // allow some tolerance
	if reusedCount < expectedMinReuse {
		t.Errorf("expected at least %d reused connections, got %d out of %d requests",
			expectedMinReuse, reusedCount, numRequests)
	}
}

// TestClient_Close verifies that Close() is safe to call and idempotent.
func TestClient_Close(t *testing.T) {
	client := fastClient()
	client.Close()
	client.Close()

	var nilClient *Client
	nilClient.Close()
}

// TestClient_SendsBasicAuthAndFormat verifies credentials go out on the first
// request and format=json is always in the query.
func TestClient_SendsBasicAuthAndFormat(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("format = %q, want json", got)
		}
		if r.URL.Path != "/probes" {
			t.Errorf("path = %q, want /probes", r.URL.Path)
		}
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	resp, failure := fastClient().Get(context.Background(), testDescriptor(t, server.URL, "probes"))
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if resp.Code != http.StatusOK {
		t.Errorf("Code = %d, want 200", resp.Code)
	}
	if resp.Message != "OK" {
		t.Errorf("Message = %q, want OK", resp.Message)
	}
	if resp.Headers.Get("X-Test") != "yes" {
		t.Errorf("expected X-Test header to be captured")
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %q", resp.Body)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly one request (no auth challenge), got %d", calls.Load())
	}
}

// TestClient_NonSuccessStatusIsResponse verifies that a 4xx/5xx status is a
// response, not a failure.
func TestClient_NonSuccessStatusIsResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resp, failure := fastClient().Get(context.Background(), testDescriptor(t, server.URL, "probes"))
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if resp.Code != http.StatusNotFound {
		t.Errorf("Code = %d, want 404", resp.Code)
	}
	if resp.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", resp.RetryCount)
	}
}

// TestClient_RetriesRetryableStatus verifies 503 responses are retried and
// the retry count is reported on the final response.
func TestClient_RetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, failure := fastClient().Get(context.Background(), testDescriptor(t, server.URL, "probes"))
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if resp.Code != http.StatusOK {
		t.Errorf("Code = %d, want 200", resp.Code)
	}
	if resp.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", resp.RetryCount)
	}
}

// TestClient_RetriesExhaustedReturnsLastResponse verifies that once retries
// run out on a retryable status the last response is returned.
func TestClient_RetriesExhaustedReturnsLastResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	resp, failure := fastClient().Get(context.Background(), testDescriptor(t, server.URL, "probes"))
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if resp.Code != http.StatusBadGateway {
		t.Errorf("Code = %d, want 502", resp.Code)
	}
	if got := calls.Load(); got != int32(DefaultMaxRetries+1) {
		t.Errorf("expected %d attempts, got %d", DefaultMaxRetries+1, got)
	}
	if resp.RetryCount != DefaultMaxRetries {
		t.Errorf("RetryCount = %d, want %d", resp.RetryCount, DefaultMaxRetries)
	}
}

// TestClient_TransportErrorIsFailure verifies an unreachable host produces a
// failure with a populated backtrace.
func TestClient_TransportErrorIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(ClientConfig{
		Timeout:       time.Second,
		MaxRetries:    1,
		RetryInterval: time.Millisecond,
		Logger:        testLogger(),
	})
	_, failure := client.Get(context.Background(), testDescriptor(t, url, "probes"))
	if failure == nil {
		t.Fatal("expected failure for closed server")
	}
	if failure.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", failure.RetryCount)
	}
	if len(failure.Backtrace) == 0 {
		t.Error("expected backtrace to be populated")
	}
	if !strings.Contains(failure.Error(), "request failed") {
		t.Errorf("unexpected error message: %v", failure)
	}
}

// TestClient_Timeout verifies a slow server results in a failure.
func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(ClientConfig{
		Timeout:    50 * time.Millisecond,
		MaxRetries: -1,
		Logger:     testLogger(),
	})
	_, failure := client.Get(context.Background(), testDescriptor(t, server.URL, "probes"))
	if failure == nil {
		t.Fatal("expected timeout failure")
	}
	if !errors.Is(failure, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", failure.Err)
	}
}

// TestBatch_DeliversEveryOutcome verifies Execute runs one callback per
// queued request and blocks until all of them have returned.
func TestBatch_DeliversEveryOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	client := NewClient(ClientConfig{MaxRetries: -1, Logger: testLogger()})

	var mu sync.Mutex
	successes, failures := 0, 0
	onSuccess := func(Response) { mu.Lock(); successes++; mu.Unlock() }
	onFailure := func(*Failure) { mu.Lock(); failures++; mu.Unlock() }

	batch := client.Parallel()
	for i := 0; i < 4; i++ {
		batch.Get(testDescriptor(t, server.URL, "probes"), onSuccess, onFailure)
	}
	batch.Get(testDescriptor(t, closedURL, "probes"), onSuccess, onFailure)

	if batch.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", batch.Len())
	}

	batch.Execute(context.Background())

	if successes != 4 || failures != 1 {
		t.Errorf("got %d successes and %d failures, want 4 and 1", successes, failures)
	}
	if batch.Len() != 0 {
		t.Errorf("expected batch to be empty after Execute, got %d", batch.Len())
	}
}

// TestBatch_RunsInParallel verifies that requests in one batch overlap.
func TestBatch_RunsInParallel(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		inFlight.Add(-1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{MaxConcurrency: 3, Logger: testLogger()})
	batch := client.Parallel()
	for i := 0; i < 6; i++ {
		batch.Get(testDescriptor(t, server.URL, "probes"), nil, nil)
	}
	batch.Execute(context.Background())

	if got := peak.Load(); got < 2 || got > 3 {
		t.Errorf("peak concurrency = %d, want between 2 and 3", got)
	}
}

// TestBatch_CallbackPanicIsContained verifies a panicking callback does not
// crash the batch or stop other callbacks.
func TestBatch_CallbackPanicIsContained(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := fastClient()
	var delivered atomic.Int32

	batch := client.Parallel()
	batch.Get(testDescriptor(t, server.URL, "probes"), func(Response) { panic("boom") }, nil)
	batch.Get(testDescriptor(t, server.URL, "probes"), func(Response) { delivered.Add(1) }, nil)
	batch.Execute(context.Background())

	if delivered.Load() != 1 {
		t.Errorf("expected the healthy callback to run, got %d", delivered.Load())
	}
}

// TestBatch_EmptyExecute verifies executing an empty batch returns immediately.
func TestBatch_EmptyExecute(t *testing.T) {
	fastClient().Parallel().Execute(context.Background())
}

func TestErrorChain(t *testing.T) {
	inner := errors.New("connection refused")
	err := errors.Join(errors.New("first"), wrapErr("dial", inner))

	chain := errorChain(err)
	if len(chain) < 3 {
		t.Fatalf("expected at least 3 entries, got %v", chain)
	}
	last := chain[len(chain)-1]
	if !strings.Contains(last, "connection refused") {
		t.Errorf("expected innermost error last, got %q", last)
	}
}

type wrapped struct {
	msg string
	err error
}

func (w wrapped) Error() string { return w.msg + ": " + w.err.Error() }
func (w wrapped) Unwrap() error { return w.err }

func wrapErr(msg string, err error) error { return wrapped{msg: msg, err: err} }
