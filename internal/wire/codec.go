package wire

import (
	"bytes"
	"encoding/json"
	"sort"
)

// TransportMax is the assumed maximum frame size the underlying gRPC
// transport will carry without negotiating a larger message size (4 MiB,
// grpc-go's default `MaxRecvMsgSize`/`MaxSendMsgSize`).
const TransportMax = 4 * 1024 * 1024

// HeadroomBytes is subtracted from TransportMax to leave room for framing
// overhead (gRPC length-prefix header, our own wire envelope fields) that
// isn't part of the three payload vectors the chunker apportions.
const HeadroomBytes = 1024

// EffectiveMax is the default per-fragment ceiling: transport-max minus
// headroom, per spec.md §4.1.
const EffectiveMax = TransportMax - HeadroomBytes

// wireFragment is the JSON shape actually placed on the stream. Field order
// here is cosmetic (JSON objects are unordered); the *meaningful* ordering
// contract (key, output, concerns) lives in internal/chunk, which decides
// what goes in each field, not in this envelope.
type wireFragment struct {
	ID        int32     `json:"id"`
	Direction Direction `json:"direction"`
	Publisher string    `json:"publisher"`
	Plugin    string    `json:"plugin"`
	Query     string    `json:"query"`
	Key       []string  `json:"key"`
	Output    []string  `json:"output"`
	Concerns  []string  `json:"concerns"`
	State     State     `json:"state"`
	Split     bool      `json:"split"`
}

func toWire(q *Query) wireFragment {
	return wireFragment{
		ID:        q.ID,
		Direction: q.Direction,
		Publisher: q.Endpoint.Publisher,
		Plugin:    q.Endpoint.Plugin,
		Query:     q.Endpoint.Query,
		Key:       q.Key,
		Output:    q.Output,
		Concerns:  q.Concerns,
		State:     q.State,
		Split:     q.Split,
	}
}

func fromWire(w wireFragment) *Query {
	return &Query{
		ID:        w.ID,
		Direction: w.Direction,
		Endpoint:  Endpoint{Publisher: w.Publisher, Plugin: w.Plugin, Query: w.Query},
		Key:       w.Key,
		Output:    w.Output,
		Concerns:  w.Concerns,
		State:     w.State,
		Split:     w.Split,
	}
}

// Marshal serializes a single fragment (or a fully reassembled Query, which
// is shaped identically) to its wire bytes.
func Marshal(q *Query) ([]byte, error) {
	return json.Marshal(toWire(q))
}

// Unmarshal parses wire bytes back into a Query/fragment.
func Unmarshal(data []byte) (*Query, error) {
	var w wireFragment
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(w), nil
}

// Size returns the serialized byte length of q, envelope included. The
// chunker does not call it: chunk.Options.EffectiveMax is charged only
// against the payload string bytes of each fragment.
func Size(q *Query) (int, error) {
	b, err := Marshal(q)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Canonicalize returns the canonical JSON form of an arbitrary JSON value:
// object keys sorted, whitespace removed, numbers normalized (a number that
// parses as an int64 is written as that integer, any other as its float64
// value in Go's default shortest form, so 1, 1.0 and 1e0 canonicalize
// alike). This is the key-equality contract the dispatcher's memo cache
// relies on (spec.md §4.3: cache key includes `canonical(key_json)`).
//
// encoding/json already serializes map[string]any with sorted keys, so
// round-tripping through a generic interface{} is sufficient; no
// third-party canonical-JSON library is needed.
func Canonicalize(raw json.RawMessage) (string, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	v = canonicalizeValue(v)
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// canonicalizeValue recursively normalizes maps so that key order in the
// marshaled output is deterministic even through nested structures (Go's
// json.Marshal already sorts map[string]any keys, but we recurse explicitly
// so behavior doesn't depend on encoding/json internals for nested values).
func canonicalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(t))
		for _, k := range keys {
			out[k] = canonicalizeValue(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = canonicalizeValue(e)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t
	default:
		return t
	}
}

// CanonicalizeKeys returns the concatenated canonical form of a whole
// key vector, used to build the dispatcher's cache key.
func CanonicalizeKeys(keys []string) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		c, err := Canonicalize(json.RawMessage(k))
		if err != nil {
			return "", err
		}
		buf.WriteString(c)
	}
	buf.WriteByte(']')
	return buf.String(), nil
}
