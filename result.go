package uptrends

import (
	"time"

	"github.com/jpalmerr/uptrends/internal/poller"
)

// Result holds the outcome of one operation in one cycle.
//
// Result is a snapshot and contains everything about the request except the
// decoded records, which go to the configured sinks. The Body field preserves
// the raw response for debugging or custom processing.
type Result struct {
	// Operation is the name of the operation.
	Operation string

	// Type is the operation's type label, if any.
	Type string

	// URL is the request URL including the resolved query.
	URL string

	// Parameters are the resolved query parameters.
	Parameters map[string]string

	// Elapsed is the time from cycle start until the outcome was known.
	Elapsed time.Duration

	// CheckedAt is when the cycle finished.
	CheckedAt time.Time

	// Err is set when the request produced no response (transport error,
	// timeout, invalid request). An HTTP error status is not an Err.
	Err error

	// StatusCode is the HTTP status code. Zero if Err is set.
	StatusCode int

	// Body is the response body, limited to 16MB.
	Body []byte

	// RetryCount is how many times the request was retried.
	RetryCount int

	// Records is the number of records delivered to the sinks.
	Records int
}

// Succeeded reports whether the request produced an HTTP response.
func (r Result) Succeeded() bool {
	return r.Err == nil
}

// toPublicResult converts an engine result to the public type.
// Creates defensive copies of mutable fields to prevent data races.
func toPublicResult(res poller.Result, records int, checkedAt time.Time) Result {
	out := Result{
		Operation:  res.Name(),
		Type:       res.Operation.Type(),
		URL:        res.Request.String(),
		Parameters: copyMap(res.Request.Params()),
		Elapsed:    res.Elapsed,
		CheckedAt:  checkedAt,
		Records:    records,
	}
	if f := res.Outcome.Failure; f != nil {
		out.Err = f
		out.RetryCount = f.RetryCount
		return out
	}
	if resp := res.Outcome.Response; resp != nil {
		out.StatusCode = resp.Code
		out.Body = copyBytes(resp.Body)
		out.RetryCount = resp.RetryCount
	}
	return out
}

// clone returns a copy that shares no mutable data with r.
func (r Result) clone() Result {
	r.Parameters = copyMap(r.Parameters)
	r.Body = copyBytes(r.Body)
	return r
}

// copyBytes returns a copy of the byte slice, or nil if input is nil.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
