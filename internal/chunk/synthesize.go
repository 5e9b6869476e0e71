package chunk

import "github.com/mitre/hipcheck-fabric/internal/wire"

// Synthesizer consumes an ordered stream of fragments belonging to one
// logical exchange and yields at most one reassembled wire.Query. Add
// returns a non-nil Query exactly once, on the fragment whose state is a
// Complete state; every call after that is a protocol error.
type Synthesizer struct {
	opts Options

	started   bool
	complete  bool
	expectReq bool // the exchange's direction is pinned by the first fragment
	prevSplit bool

	acc *wire.Query
}

// NewSynthesizer returns an empty Synthesizer ready to receive the first
// fragment of a new logical exchange.
func NewSynthesizer(opts Options) *Synthesizer {
	return &Synthesizer{opts: opts}
}

// Add feeds the next fragment in wire order. It returns the reassembled
// Query once the terminal fragment has been processed, or nil while more
// fragments are still expected.
func (s *Synthesizer) Add(frag *wire.Query) (*wire.Query, error) {
	if s.complete {
		return nil, wire.NewProtocolError(wire.MoreAfterQueryComplete,
			"session %d already completed", frag.ID)
	}

	if !s.started {
		switch {
		case frag.State.IsSubmit():
			s.expectReq = true
		case frag.State.IsReply():
			s.expectReq = false
		default:
			return nil, wire.NewProtocolError(wire.UnspecifiedQueryState,
				"first fragment of session %d has Unspecified state", frag.ID)
		}
		s.started = true
		s.acc = &wire.Query{
			ID:        frag.ID,
			Direction: directionFor(s.expectReq),
			Endpoint:  frag.Endpoint,
		}
	} else {
		if s.expectReq && !frag.State.IsSubmit() {
			return nil, wire.NewProtocolError(wire.ReceivedReplyWhenExpectingSubmitChunk,
				"session %d", frag.ID)
		}
		if !s.expectReq && !frag.State.IsReply() {
			return nil, wire.NewProtocolError(wire.ReceivedSubmitWhenExpectingReplyChunk,
				"session %d", frag.ID)
		}
	}

	spliceAndExtend(s.acc, frag, s.prevSplit, s.opts.LegacyCompat)
	s.prevSplit = frag.Split

	if frag.State.IsComplete() {
		s.complete = true
		s.acc.State = frag.State
		s.acc.Split = false
		return s.acc, nil
	}
	return nil, nil
}

func directionFor(expectReq bool) wire.Direction {
	if expectReq {
		return wire.DirectionRequest
	}
	return wire.DirectionResponse
}

// latestFieldWithData returns which of concerns/output/key is the
// last-touched non-empty field of acc, checked in that order (spec.md
// §4.1's "latest-with-data" rule), or -1 if none has data.
//
// In legacy-compat mode a single-element Output of "" or "null" is treated
// as if Output were empty, since the chunker only ever placed that sentinel
// there to satisfy the "never truly empty" contract, not as real data.
func latestFieldWithData(acc *wire.Query, legacy bool) field {
	if len(acc.Concerns) > 0 {
		return fieldConcerns
	}
	if legacy && len(acc.Output) == 1 && (acc.Output[0] == "" || acc.Output[0] == "null") {
		// fall through to key
	} else if len(acc.Output) > 0 {
		return fieldOutput
	}
	if len(acc.Key) > 0 {
		return fieldKey
	}
	return -1
}

// spliceAndExtend merges frag into acc. If prevSplit is set, the first
// element of frag's latest-with-data field (per acc's current state) is
// concatenated onto acc's last element of that same field before the
// remaining elements of frag are appended normally.
func spliceAndExtend(acc *wire.Query, frag *wire.Query, prevSplit bool, legacy bool) {
	fragKey := append([]string(nil), frag.Key...)
	fragOutput := append([]string(nil), frag.Output...)
	fragConcerns := append([]string(nil), frag.Concerns...)

	if prevSplit {
		switch latestFieldWithData(acc, legacy) {
		case fieldConcerns:
			if len(fragConcerns) > 0 {
				last := len(acc.Concerns) - 1
				acc.Concerns[last] += fragConcerns[0]
				fragConcerns = fragConcerns[1:]
			}
		case fieldOutput:
			if len(fragOutput) > 0 {
				last := len(acc.Output) - 1
				acc.Output[last] += fragOutput[0]
				fragOutput = fragOutput[1:]
			}
		case fieldKey:
			if len(fragKey) > 0 {
				last := len(acc.Key) - 1
				acc.Key[last] += fragKey[0]
				fragKey = fragKey[1:]
			}
		}
	}

	acc.Key = append(acc.Key, fragKey...)
	acc.Output = append(acc.Output, fragOutput...)
	acc.Concerns = append(acc.Concerns, fragConcerns...)
}
