package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	json "github.com/goccy/go-json"
)

// Sink receives finished records. Implementations must be safe for
// concurrent use.
type Sink interface {
	Emit(ctx context.Context, r *Record) error
}

// SinkFunc adapts a function to the [Sink] interface.
type SinkFunc func(ctx context.Context, r *Record) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, r *Record) error {
	return f(ctx, r)
}

// WriterSink writes records to an io.Writer as JSON lines.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriterSink returns a [WriterSink] writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w)}
}

// Emit encodes r as a single line.
func (s *WriterSink) Emit(_ context.Context, r *Record) error {
	if r == nil {
		return errors.New("nil record")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(r); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return nil
}

// MultiSink delivers each record to every sink in order. All sinks are
// attempted; their errors are joined.
type MultiSink []Sink

// Emit forwards r to every sink.
func (m MultiSink) Emit(ctx context.Context, r *Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
