package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitre/hipcheck-fabric/internal/wire"
)

func TestSynthesizerRejectsMixedDirection(t *testing.T) {
	s := NewSynthesizer(DefaultOptions())
	_, err := s.Add(&wire.Query{ID: 1, State: wire.StateSubmitInProgress, Key: []string{"a"}})
	require.NoError(t, err)

	_, err = s.Add(&wire.Query{ID: 1, State: wire.StateReplyComplete})
	require.Error(t, err)
	var perr *wire.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, wire.ReceivedReplyWhenExpectingSubmitChunk, perr.Kind)
}

func TestSynthesizerRejectsReplyThenSubmit(t *testing.T) {
	s := NewSynthesizer(DefaultOptions())
	_, err := s.Add(&wire.Query{ID: 1, State: wire.StateReplyInProgress})
	require.NoError(t, err)

	_, err = s.Add(&wire.Query{ID: 1, State: wire.StateSubmitComplete})
	require.Error(t, err)
	var perr *wire.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, wire.ReceivedSubmitWhenExpectingReplyChunk, perr.Kind)
}

func TestSynthesizerRejectsUnspecifiedFirstFragment(t *testing.T) {
	s := NewSynthesizer(DefaultOptions())
	_, err := s.Add(&wire.Query{ID: 1, State: wire.StateUnspecified})
	require.Error(t, err)
	var perr *wire.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, wire.UnspecifiedQueryState, perr.Kind)
}

func TestSynthesizerRejectsMoreAfterComplete(t *testing.T) {
	s := NewSynthesizer(DefaultOptions())
	_, err := s.Add(&wire.Query{ID: 1, State: wire.StateSubmitComplete})
	require.NoError(t, err)

	_, err = s.Add(&wire.Query{ID: 1, State: wire.StateSubmitComplete})
	require.Error(t, err)
	var perr *wire.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, wire.MoreAfterQueryComplete, perr.Kind)
}

func TestSynthesizerLegacySentinelSkippedForSplice(t *testing.T) {
	opts := Options{EffectiveMax: 10, LegacyCompat: true}
	q := &wire.Query{
		ID:    2,
		State: wire.StateReplyComplete,
		Key:   []string{"0123456789abcdef"},
	}
	frags, err := Chunk(q, opts)
	require.NoError(t, err)

	s := NewSynthesizer(opts)
	var got *wire.Query
	for _, f := range frags {
		got, err = s.Add(f)
		require.NoError(t, err)
	}
	require.NotNil(t, got)
	assert.Equal(t, []string{"0123456789abcdef"}, got.Key)
	assert.Equal(t, []string{"null"}, got.Output)
}
