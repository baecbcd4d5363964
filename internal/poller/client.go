package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/jpalmerr/uptrends/internal/request"
)

const maxResponseBodySize = 16 << 20 // 16MB

// connection pooling limits; all requests go to a single API host
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Client defaults.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxRetries     = 2
	DefaultMaxConcurrency = 8
	DefaultRetryInterval  = 500 * time.Millisecond
)

// Response is a completed HTTP exchange. Any status code is a Response;
// only transport level problems become a [Failure].
type Response struct {
	// Code is the HTTP status code.
	Code int

	// Message is the reason phrase, e.g. "OK".
	Message string

	// Headers are the response headers.
	Headers http.Header

	// Body is the response body, limited to 16MB.
	Body []byte

	// RetryCount is how many times the request was retried before this response.
	RetryCount int
}

// Failure describes a request that produced no usable response.
type Failure struct {
	Err error

	// Backtrace is the chain of wrapped error messages, outermost first,
	// or the goroutine stack for recovered panics.
	Backtrace []string

	RetryCount int
}

// Error implements error.
func (f *Failure) Error() string {
	if f == nil || f.Err == nil {
		return "request failed"
	}
	return f.Err.Error()
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error { return f.Err }

// ClientConfig tunes the HTTP collaborator.
type ClientConfig struct {
	// Timeout applies to each attempt. Zero means [DefaultTimeout].
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Negative disables retries; zero means [DefaultMaxRetries].
	MaxRetries int

	// RetryInterval is the initial backoff interval. Zero means [DefaultRetryInterval].
	RetryInterval time.Duration

	// RateLimit caps requests per second across the client. Zero is unlimited.
	RateLimit float64

	// MaxConcurrency bounds requests in flight within a batch.
	MaxConcurrency int

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper

	Logger *slog.Logger
}

// Client performs authenticated GET requests against the API, either one at
// a time with [Client.Get] or as a parallel [Batch].
type Client struct {
	httpClient     *http.Client
	timeout        time.Duration
	maxRetries     int
	retryInterval  time.Duration
	maxConcurrency int
	limiter        *rate.Limiter
	logger         *slog.Logger
}

// NewClient creates a [Client] from cfg, applying defaults.
func NewClient(cfg ClientConfig) *Client {
	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			MaxConnsPerHost:     defaultMaxConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
		}
	}

	c := &Client{
		// no client level timeout - each attempt gets its own context deadline
		httpClient:     &http.Client{Transport: transport},
		timeout:        cfg.Timeout,
		maxRetries:     cfg.MaxRetries,
		retryInterval:  cfg.RetryInterval,
		maxConcurrency: cfg.MaxConcurrency,
		limiter:        rate.NewLimiter(rate.Inf, 1),
		logger:         cfg.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxRetries == 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.retryInterval <= 0 {
		c.retryInterval = DefaultRetryInterval
	}
	if c.maxConcurrency <= 0 {
		c.maxConcurrency = DefaultMaxConcurrency
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// errRetryableStatus signals the retry loop that a response is worth retrying.
type errRetryableStatus struct {
	code int
}

func (e errRetryableStatus) Error() string {
	return fmt.Sprintf("retryable status %d", e.code)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout
}

// Get performs the request, retrying transport errors and 429/502/503/504
// responses with exponential backoff. When retries are exhausted on a
// retryable status the last response is returned as is.
func (c *Client) Get(ctx context.Context, d request.Descriptor) (Response, *Failure) {
	attempts := 0
	var last *Response

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval

	resp, err := backoff.Retry(ctx, func() (Response, error) {
		attempts++
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}

		r, err := c.fetch(ctx, d)
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, backoff.Permanent(err)
			}
			return Response{}, err
		}
		if retryableStatus(r.Code) && attempts <= c.maxRetries {
			last = &r
			return Response{}, errRetryableStatus{code: r.Code}
		}
		return r, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Debug("retrying request", "url", d.URL, "error", err.Error(), "wait", wait.String())
		}),
	)

	retries := attempts - 1
	if err != nil {
		var status errRetryableStatus
		if errors.As(err, &status) && last != nil {
			last.RetryCount = retries
			return *last, nil
		}
		return Response{}, &Failure{Err: err, Backtrace: errorChain(err), RetryCount: retries}
	}
	resp.RetryCount = retries
	return resp, nil
}

// fetch performs a single attempt.
func (c *Client) fetch(ctx context.Context, d request.Descriptor) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.String(), nil)
	if err != nil {
		return Response{}, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	// credentials go out with the first request, no challenge round trip
	req.SetBasicAuth(d.Credentials.User, d.Credentials.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response body: %w", err)
	}

	return Response{
		Code:    resp.StatusCode,
		Message: reasonPhrase(resp),
		Headers: resp.Header.Clone(),
		Body:    body,
	}, nil
}

// reasonPhrase extracts "OK" from a status line like "200 OK".
func reasonPhrase(resp *http.Response) string {
	msg := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return msg
}

// errorChain flattens wrapped and joined errors into their messages.
func errorChain(err error) []string {
	var out []string
	seen := make(map[string]struct{})
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		msg := fmt.Sprintf("%T: %s", e, e.Error())
		if _, dup := seen[msg]; !dup {
			seen[msg] = struct{}{}
			out = append(out, msg)
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}

// Close closes idle connections. The client stays usable.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}

// Parallel starts a new batch of requests.
func (c *Client) Parallel() *Batch {
	return &Batch{client: c}
}

// Batch queues requests and fires them concurrently on [Batch.Execute].
type Batch struct {
	client *Client

	mu   sync.Mutex
	jobs []batchJob
}

type batchJob struct {
	desc      request.Descriptor
	onSuccess func(Response)
	onFailure func(*Failure)
}

// Get queues a request. Exactly one of the callbacks runs during Execute,
// on a pool goroutine. Callbacks may run concurrently with each other.
func (b *Batch) Get(d request.Descriptor, onSuccess func(Response), onFailure func(*Failure)) *Batch {
	b.mu.Lock()
	b.jobs = append(b.jobs, batchJob{desc: d, onSuccess: onSuccess, onFailure: onFailure})
	b.mu.Unlock()
	return b
}

// Len returns the number of queued requests.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}

// Execute runs every queued request and blocks until all callbacks have
// returned. The queue is empty afterwards.
func (b *Batch) Execute(ctx context.Context) {
	b.mu.Lock()
	jobs := b.jobs
	b.jobs = nil
	b.mu.Unlock()

	if len(jobs) == 0 {
		return
	}

	workers := b.client.maxConcurrency
	if workers > len(jobs) {
		workers = len(jobs)
	}

	p := pool.New().WithMaxGoroutines(workers)
	for _, j := range jobs {
		j := j
		p.Go(func() { b.client.runJob(ctx, j) })
	}
	p.Wait()
}

// runJob performs one request and delivers its outcome. A panic before a
// callback ran is delivered as a failure; a panic inside a callback is logged.
func (c *Client) runJob(ctx context.Context, j batchJob) {
	delivered := false

	var catcher panics.Catcher
	catcher.Try(func() {
		resp, failure := c.Get(ctx, j.desc)
		delivered = true
		if failure != nil {
			if j.onFailure != nil {
				j.onFailure(failure)
			}
			return
		}
		if j.onSuccess != nil {
			j.onSuccess(resp)
		}
	})

	r := catcher.Recovered()
	if r == nil {
		return
	}
	if !delivered && j.onFailure != nil {
		j.onFailure(&Failure{
			Err:       r.AsError(),
			Backtrace: strings.Split(strings.TrimSpace(string(r.Stack)), "\n"),
		})
		return
	}
	c.logger.Error("request callback panicked", "url", j.desc.URL, "panic", r.String())
}
