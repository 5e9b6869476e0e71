// Package chunk implements the protocol-level split/reassemble transform
// (spec.md §4.1): Chunk splits a logical, complete wire.Query into a
// sequence of wire-sized fragments; Synthesizer (synthesize.go) reverses the
// transform.
package chunk

import (
	"unicode/utf8"

	"github.com/mitre/hipcheck-fabric/internal/wire"
)

// Options configures chunking/synthesis behavior.
type Options struct {
	// EffectiveMax is the per-fragment payload byte budget (spec.md §4.1's
	// EFFECTIVE_MAX). It is charged against the combined bytes of the Key,
	// Output and Concerns string elements placed in one fragment — not the
	// fragment's whole serialized-envelope size. wire.EffectiveMax already
	// reserves headroom for envelope/framing overhead (wire.HeadroomBytes), so no
	// further subtraction happens here.
	EffectiveMax int

	// LegacyCompat enables the backward-compatibility mode described in
	// spec.md §4.1/§9: Key and Output are never left truly empty; a literal
	// "null" sentinel is used in their place.
	LegacyCompat bool
}

// DefaultOptions returns the non-legacy default, per spec.md §9's
// recommendation.
func DefaultOptions() Options {
	return Options{EffectiveMax: wire.EffectiveMax, LegacyCompat: false}
}

// field names a payload vector being drained, in the order spec.md §4.1
// requires (key, then output, then concerns).
type field int

const (
	fieldKey field = iota
	fieldOutput
	fieldConcerns
)

func source(working *wire.Query, f field) *[]string {
	switch f {
	case fieldKey:
		return &working.Key
	case fieldOutput:
		return &working.Output
	default:
		return &working.Concerns
	}
}

func dest(frag *wire.Query, f field) *[]string {
	switch f {
	case fieldKey:
		return &frag.Key
	case fieldOutput:
		return &frag.Output
	default:
		return &frag.Concerns
	}
}

// Chunk splits a complete logical Query (q.State must be SubmitComplete or
// ReplyComplete) into a non-empty sequence of fragments whose concatenation,
// per a Synthesizer, reconstructs q exactly.
func Chunk(q *wire.Query, opts Options) ([]*wire.Query, error) {
	intermediate := wire.InProgressFor(q.State)
	if intermediate == wire.StateUnspecified {
		return nil, wire.NewProtocolError(wire.UnspecifiedQueryState,
			"cannot chunk a query whose terminal state is %s", q.State)
	}
	budget := opts.EffectiveMax
	if budget <= 0 {
		budget = wire.EffectiveMax
	}

	working := q.Clone()
	if opts.LegacyCompat {
		if len(working.Key) == 0 {
			working.Key = []string{"null"}
		}
		if len(working.Output) == 0 {
			working.Output = []string{"null"}
		}
	}

	var fragments []*wire.Query
	for !working.Empty() {
		frag := &wire.Query{
			ID:        working.ID,
			Direction: working.Direction,
			Endpoint:  working.Endpoint,
			State:     intermediate,
		}

		remaining := budget
		progressed := false

	fields:
		for _, f := range [...]field{fieldKey, fieldOutput, fieldConcerns} {
			src := source(working, f)
			dst := dest(frag, f)
			for len(*src) > 0 {
				elem := (*src)[0]
				if len(elem) <= remaining {
					*dst = append(*dst, elem)
					*src = (*src)[1:]
					remaining -= len(elem)
					progressed = true
					continue
				}
				if remaining == 0 {
					break fields
				}
				prefixLen := utf8Boundary(elem, remaining)
				if prefixLen == 0 {
					break fields
				}
				*dst = append(*dst, elem[:prefixLen])
				(*src)[0] = elem[prefixLen:]
				remaining -= prefixLen
				frag.Split = true
				progressed = true
				break fields
			}
		}

		if !progressed {
			return nil, wire.NewProtocolError(wire.MessageTooLargeToChunk,
				"a single element exceeds the per-fragment budget of %d bytes", budget)
		}
		fragments = append(fragments, frag)
	}

	if len(fragments) == 0 {
		// A query with no payload at all still needs exactly one fragment to
		// carry the completion state.
		fragments = append(fragments, &wire.Query{
			ID:        working.ID,
			Direction: working.Direction,
			Endpoint:  working.Endpoint,
			State:     intermediate,
		})
	}
	fragments[len(fragments)-1].State = q.State
	return fragments, nil
}

// utf8Boundary returns the largest i <= min(n, len(s)) such that s[:i] does
// not split a multi-byte UTF-8 rune.
func utf8Boundary(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	if n <= 0 {
		return 0
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
