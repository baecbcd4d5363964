package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jpalmerr/uptrends/record"
)

// DefaultHistory is the number of records a [MemoryStore] keeps by default.
const DefaultHistory = 500

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Operation statuses are keyed by name, with new results replacing previous
// values. Records are kept in a fixed size ring; once it is full the oldest
// record is overwritten.
//
// Subscribers receive events via buffered channels (buffer size 100). Events
// are sent non-blocking; if a subscriber's buffer is full, the event is
// dropped for that subscriber to prevent blocking the polling cycle.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]OperationStatus
	ring     []*record.Record
	next     int
	full     bool

	subscribers map[chan Event]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] keeping up to history
// records. A history <= 0 means [DefaultHistory].
func NewMemoryStore(history int) *MemoryStore {
	if history <= 0 {
		history = DefaultHistory
	}
	return &MemoryStore{
		statuses:    make(map[string]OperationStatus),
		ring:        make([]*record.Record, history),
		subscribers: make(map[chan Event]struct{}),
	}
}

// Update stores an [OperationStatus] and notifies all subscribers.
func (m *MemoryStore) Update(status OperationStatus) {
	m.mu.Lock()
	m.statuses[status.Name] = status
	m.mu.Unlock()

	m.notifySubscribers(Event{Kind: KindStatus, Status: &status})
}

// Emit appends a record to the history and notifies all subscribers.
func (m *MemoryStore) Emit(_ context.Context, r *record.Record) error {
	if r == nil {
		return errors.New("nil record")
	}

	m.mu.Lock()
	m.ring[m.next] = r
	m.next = (m.next + 1) % len(m.ring)
	if m.next == 0 {
		m.full = true
	}
	m.mu.Unlock()

	m.notifySubscribers(Event{Kind: KindRecord, Record: r})
	return nil
}

// Statuses returns a snapshot of all operation statuses sorted by name.
func (m *MemoryStore) Statuses() []OperationStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]OperationStatus, 0, len(m.statuses))
	for _, status := range m.statuses {
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Records returns up to limit of the most recent records, oldest first.
// A limit of zero or less returns the whole history.
func (m *MemoryStore) Records(limit int) []*record.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	size := m.next
	start := 0
	if m.full {
		size = len(m.ring)
		start = m.next
	}
	if limit > 0 && limit < size {
		start = (start + size - limit) % len(m.ring)
		size = limit
	}

	out := make([]*record.Record, 0, size)
	for i := 0; i < size; i++ {
		out = append(out, m.ring[(start+i)%len(m.ring)])
	}
	return out
}

// Subscribe creates a new subscription and returns a channel for receiving
// events.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers is non-blocking: a full subscriber buffer drops the event
// for that subscriber.
func (m *MemoryStore) notifySubscribers(ev Event) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
			// subscriber is slow, drop the event
		}
	}
}
