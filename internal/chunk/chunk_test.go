package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitre/hipcheck-fabric/internal/wire"
)

func chunkPayloadBytes(q *wire.Query) int {
	n := 0
	for _, s := range q.Key {
		n += len(s)
	}
	for _, s := range q.Output {
		n += len(s)
	}
	for _, s := range q.Concerns {
		n += len(s)
	}
	return n
}

// Scenario 1 (spec.md §8): chunked UTF-8 key.
func TestChunkUTF8KeyScenario(t *testing.T) {
	q := &wire.Query{
		ID:     0,
		State:  wire.StateReplyComplete,
		Key:    []string{"aこれは実験です"},
		Output: []string{"null"},
	}
	frags, err := Chunk(q, Options{EffectiveMax: 10})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(frags), 3)

	for i, f := range frags {
		assert.LessOrEqual(t, chunkPayloadBytes(f), 10)
		if i < len(frags)-1 {
			assert.Equal(t, wire.StateReplyInProgress, f.State)
		}
	}
	assert.Equal(t, wire.StateReplyComplete, frags[len(frags)-1].State)

	s := NewSynthesizer(DefaultOptions())
	var got *wire.Query
	for _, f := range frags {
		var err error
		got, err = s.Add(f)
		require.NoError(t, err)
	}
	require.NotNil(t, got)
	assert.Equal(t, q.Key, got.Key)
	assert.Equal(t, q.Output, got.Output)
}

// Scenario 6 (spec.md §8): round-trip chunking with concerns.
func TestChunkConcernsScenario(t *testing.T) {
	q := &wire.Query{
		ID:       0,
		State:    wire.StateReplyComplete,
		Key:      []string{"k"},
		Output:   []string{"o"},
		Concerns: []string{"c1", "c2", "< 10", "0123456789", "< 10#2"},
	}
	frags, err := Chunk(q, Options{EffectiveMax: 10})
	require.NoError(t, err)
	for _, f := range frags {
		assert.LessOrEqual(t, chunkPayloadBytes(f), 10)
	}

	s := NewSynthesizer(DefaultOptions())
	var got *wire.Query
	for _, f := range frags {
		var err error
		got, err = s.Add(f)
		require.NoError(t, err)
	}
	require.NotNil(t, got)
	assert.Equal(t, q.Concerns, got.Concerns)
	assert.Equal(t, q.Key, got.Key)
	assert.Equal(t, q.Output, got.Output)
}

func TestChunkUnspecifiedStateErrors(t *testing.T) {
	q := &wire.Query{ID: 1, State: wire.StateUnspecified}
	_, err := Chunk(q, DefaultOptions())
	require.Error(t, err)
	var perr *wire.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, wire.UnspecifiedQueryState, perr.Kind)
}

func TestChunkMessageTooLargeToChunk(t *testing.T) {
	// 'こ' is 3 bytes and cannot be placed in a 2-byte budget.
	q := &wire.Query{ID: 1, State: wire.StateSubmitComplete, Key: []string{"こ"}}
	_, err := Chunk(q, Options{EffectiveMax: 2})
	require.Error(t, err)
	var perr *wire.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, wire.MessageTooLargeToChunk, perr.Kind)
}

func TestChunkEmptyQueryStillEmitsOneFragment(t *testing.T) {
	q := &wire.Query{ID: 5, State: wire.StateSubmitComplete}
	frags, err := Chunk(q, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, wire.StateSubmitComplete, frags[0].State)
}

func TestUtf8BoundaryBacksOff(t *testing.T) {
	s := "aこ" // 'a' (1 byte) + 'こ' (3 bytes)
	assert.Equal(t, 1, utf8Boundary(s, 3))
	assert.Equal(t, 4, utf8Boundary(s, 4))
	assert.Equal(t, 4, utf8Boundary(s, 10))
	assert.Equal(t, 0, utf8Boundary(s, 0))
}
