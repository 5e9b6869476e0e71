package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	q := &Query{
		ID:        7,
		Direction: DirectionRequest,
		Endpoint:  Endpoint{Publisher: "mitre", Plugin: "git", Query: "commits"},
		Key:       []string{`"abc"`},
		Concerns:  []string{"hello"},
		State:     StateSubmitComplete,
	}
	b, err := Marshal(q)
	require.NoError(t, err)

	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, q.ID, got.ID)
	assert.Equal(t, q.Direction, got.Direction)
	assert.Equal(t, q.Endpoint, got.Endpoint)
	assert.Equal(t, q.State, got.State)
	assert.JSONEq(t, string(q.Key[0]), string(got.Key[0]))
}

func TestCanonicalizeSortsKeys(t *testing.T) {
	a, err := Canonicalize(json.RawMessage(`{"b":1,"a":2}`))
	require.NoError(t, err)
	b, err := Canonicalize(json.RawMessage(`{"a":2,"b":1}`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, `{"a":2,"b":1}`, a)
}

func TestCanonicalizeNested(t *testing.T) {
	got, err := Canonicalize(json.RawMessage(`{"z":[{"y":1,"x":2}],"a":true}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":true,"z":[{"x":2,"y":1}]}`, got)
}

func TestCanonicalizeKeysDiffersOnOrder(t *testing.T) {
	k1, err := CanonicalizeKeys([]string{"1", "2"})
	require.NoError(t, err)
	k2, err := CanonicalizeKeys([]string{"2", "1"})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestSizeMatchesMarshalLength(t *testing.T) {
	q := &Query{ID: 1, Key: []string{`"x"`}}
	b, err := Marshal(q)
	require.NoError(t, err)
	sz, err := Size(q)
	require.NoError(t, err)
	assert.Equal(t, len(b), sz)
}
