// Package record defines the structured output record produced for every
// polled response and the sinks that receive them.
//
// A [Record] is a tree of fields addressed by field references: a plain
// top-level name ("message") or a bracketed path ("[uptrends][Id]"). Tags
// are kept in the "tags" field, as pipelines downstream expect.
package record

import (
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// TimestampField holds the creation time of the record.
	TimestampField = "@timestamp"

	// TagsField holds the record's tags.
	TagsField = "tags"
)

// ErrInvalidFieldReference is returned for malformed field references.
var ErrInvalidFieldReference = errors.New("invalid field reference")

// Record is a single output record. It is not safe for concurrent mutation;
// a record is built by one goroutine and then handed to a sink.
type Record struct {
	fields map[string]any
	tags   []string
}

// New returns an empty record stamped with ts.
func New(ts time.Time) *Record {
	r := &Record{fields: make(map[string]any)}
	r.fields[TimestampField] = ts.UTC().Format(time.RFC3339Nano)
	return r
}

// FromMap returns a record whose root fields are a copy of m. A "tags"
// entry in m is taken over as tags. The timestamp is only set when m does
// not carry one.
func FromMap(m map[string]any, ts time.Time) *Record {
	r := New(ts)
	for k, v := range m {
		if k == TagsField {
			r.takeTags(v)
			continue
		}
		r.fields[k] = v
	}
	return r
}

func (r *Record) takeTags(v any) {
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			r.Tag(s)
		}
	case []any:
		for _, s := range t {
			if str, ok := s.(string); ok {
				r.Tag(str)
			}
		}
	case string:
		r.Tag(t)
	}
}

// Set assigns v to the field addressed by ref, creating intermediate
// objects as needed.
func (r *Record) Set(ref string, v any) error {
	path, err := parseRef(ref)
	if err != nil {
		return err
	}
	if len(path) == 1 && path[0] == TagsField {
		r.tags = nil
		r.takeTags(v)
		return nil
	}

	node := r.fields
	for i, key := range path[:len(path)-1] {
		next, exists := node[key]
		if !exists {
			child := make(map[string]any)
			node[key] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot set %s: [%s] is a %T, not an object",
				ref, strings.Join(path[:i+1], "]["), next)
		}
		node = child
	}
	node[path[len(path)-1]] = v
	return nil
}

// Get returns the value addressed by ref.
func (r *Record) Get(ref string) (any, bool) {
	path, err := parseRef(ref)
	if err != nil {
		return nil, false
	}
	if len(path) == 1 && path[0] == TagsField {
		if len(r.tags) == 0 {
			return nil, false
		}
		return r.Tags(), true
	}

	var current any = r.fields
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Has reports whether ref is set.
func (r *Record) Has(ref string) bool {
	_, ok := r.Get(ref)
	return ok
}

// Tag adds tag unless it is already present.
func (r *Record) Tag(tag string) {
	for _, t := range r.tags {
		if t == tag {
			return
		}
	}
	r.tags = append(r.tags, tag)
}

// HasTag reports whether tag is present.
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Tags returns a copy of the record's tags.
func (r *Record) Tags() []string {
	if len(r.tags) == 0 {
		return nil
	}
	return append([]string(nil), r.tags...)
}

// Fields returns a shallow copy of the root fields including tags.
func (r *Record) Fields() map[string]any {
	out := make(map[string]any, len(r.fields)+1)
	for k, v := range r.fields {
		out[k] = v
	}
	if len(r.tags) > 0 {
		out[TagsField] = r.Tags()
	}
	return out
}

// MarshalJSON encodes the record as a flat JSON object.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

// parseRef splits "name" or "[a][b]" into its path segments.
func parseRef(ref string) ([]string, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrInvalidFieldReference)
	}
	if !strings.HasPrefix(ref, "[") {
		if strings.ContainsAny(ref, "[]") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFieldReference, ref)
		}
		return []string{ref}, nil
	}

	var path []string
	rest := ref
	for rest != "" {
		if rest[0] != '[' {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFieldReference, ref)
		}
		end := strings.IndexByte(rest, ']')
		if end <= 1 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFieldReference, ref)
		}
		segment := rest[1:end]
		if strings.ContainsAny(segment, "[") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFieldReference, ref)
		}
		path = append(path, segment)
		rest = rest[end+1:]
	}
	return path, nil
}
