package store

import (
	"time"

	"github.com/jpalmerr/uptrends/record"
)

// OperationStatus is the latest outcome of one operation.
//
// OperationStatus is the storage representation used by the REST API and
// SSE. It is decoupled from the poller's internal types.
type OperationStatus struct {
	// Name is the operation name.
	Name string `json:"name"`

	// URL is the resolved request URL including the query.
	URL string `json:"url"`

	// Type is the operation's type label, if any.
	Type string `json:"type,omitempty"`

	// Succeeded is false when the request produced no response.
	Succeeded bool `json:"succeeded"`

	// Code is the HTTP status code; zero for failures.
	Code int `json:"code,omitempty"`

	// RuntimeSeconds is the elapsed time since the cycle started.
	RuntimeSeconds float64 `json:"runtime_seconds"`

	// Records is the number of records delivered for this outcome.
	Records int `json:"records"`

	// CheckedAt is when the outcome was stored.
	CheckedAt time.Time `json:"checked_at"`

	// Error describes a failure. nil on success.
	Error *string `json:"error"`
}

// Event kinds.
const (
	KindStatus = "status"
	KindRecord = "record"
)

// Event is a single update delivered to subscribers. Exactly one of Status
// and Record is set, matching Kind.
type Event struct {
	Kind   string           `json:"kind"`
	Status *OperationStatus `json:"status,omitempty"`
	Record *record.Record   `json:"record,omitempty"`
}

// Store defines storage and subscription for polling output.
//
// Store implementations must be safe for concurrent access. A Store is also
// a [record.Sink], so it can sit directly behind the outcome mapper.
type Store interface {
	record.Sink

	// Update stores an operation status and notifies all subscribers.
	// Statuses are keyed by Name, so later updates replace earlier ones.
	Update(status OperationStatus)

	// Statuses returns the latest status of every operation, sorted by name.
	Statuses() []OperationStatus

	// Records returns up to limit of the most recent records, oldest first.
	// A limit <= 0 returns the whole history.
	Records(limit int) []*record.Record

	// Subscribe returns a channel that receives events.
	// The returned channel has a buffer; slow consumers may miss events.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Event

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Event)
}
