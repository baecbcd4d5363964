// Package codec decodes HTTP response bodies into zero or more payloads.
//
// Built-in codecs:
//
//   - [JSON]: one payload per document; a top-level array yields one
//     payload per element. Bodies that are not valid JSON yield a single
//     {"message": body} payload tagged [JSONParseFailureTag].
//   - [JSONLines]: one JSON document per non-blank line.
//   - [Plain]: a single {"message": body} payload.
package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
)

// JSONParseFailureTag marks payloads whose body could not be parsed.
const JSONParseFailureTag = "_jsonparsefailure"

// MessageField is the field raw text is placed in.
const MessageField = "message"

// Payload is one decoded value plus any tags the codec wants attached.
type Payload struct {
	// Value is usually a map[string]any; scalars and lists are possible.
	Value any
	Tags  []string
}

// Codec decodes a response body.
type Codec interface {
	Name() string
	Decode(body []byte) ([]Payload, error)
}

// ByName returns a built-in codec. An empty name selects [JSON].
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON{}, nil
	case "json_lines":
		return JSONLines{}, nil
	case "plain":
		return Plain{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (expected json, json_lines or plain)", name)
	}
}

// JSON decodes a single JSON document.
type JSON struct{}

// Name implements [Codec].
func (JSON) Name() string { return "json" }

// Decode implements [Codec].
func (JSON) Decode(body []byte) ([]Payload, error) {
	return decodeDocument(body), nil
}

func decodeDocument(body []byte) []Payload {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return []Payload{parseFailure(body)}
	}
	// anything but whitespace after the document is a parse failure
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return []Payload{parseFailure(body)}
	}

	if list, ok := v.([]any); ok {
		out := make([]Payload, 0, len(list))
		for _, item := range list {
			out = append(out, Payload{Value: item})
		}
		return out
	}
	return []Payload{{Value: v}}
}

func parseFailure(body []byte) Payload {
	return Payload{
		Value: map[string]any{MessageField: string(body)},
		Tags:  []string{JSONParseFailureTag},
	}
}

// JSONLines decodes newline delimited JSON.
type JSONLines struct{}

// Name implements [Codec].
func (JSONLines) Name() string { return "json_lines" }

// Decode implements [Codec].
func (JSONLines) Decode(body []byte) ([]Payload, error) {
	var out []Payload
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), len(body)+1)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		out = append(out, decodeDocument(append([]byte(nil), line...))...)
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("scan json lines: %w", err)
	}
	return out, nil
}

// Plain wraps the body as text.
type Plain struct{}

// Name implements [Codec].
func (Plain) Name() string { return "plain" }

// Decode implements [Codec].
func (Plain) Decode(body []byte) ([]Payload, error) {
	return []Payload{{Value: map[string]any{MessageField: string(body)}}}, nil
}
