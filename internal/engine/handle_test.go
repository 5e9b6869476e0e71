package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitre/hipcheck-fabric/internal/dispatch"
	"github.com/mitre/hipcheck-fabric/internal/wire"
)

type echoBuiltin struct{}

func (echoBuiltin) Route(_ context.Context, _ wire.Endpoint, keys []string) (dispatch.Result, error) {
	return dispatch.Result{Outputs: keys}, nil
}

type recordingRecorder struct {
	concerns []string
}

func (r *recordingRecorder) AddConcern(text string) { r.concerns = append(r.concerns, text) }

func TestHandleQueryDelegatesToDispatcher(t *testing.T) {
	d := dispatch.New(echoBuiltin{}, nil)
	self := wire.Endpoint{Publisher: dispatch.BuiltinPublisher, Plugin: "activity"}
	h := New(d, nil, self)

	out, err := h.Query(context.Background(), wire.Endpoint{Publisher: dispatch.BuiltinPublisher, Plugin: "typo"}, []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, out)
	assert.Equal(t, self, h.Self())
}

func TestHandleAddConcernIsNoOpWithoutRecorder(t *testing.T) {
	d := dispatch.New(echoBuiltin{}, nil)
	h := New(d, nil, wire.Endpoint{Publisher: dispatch.BuiltinPublisher, Plugin: "activity"})
	assert.NotPanics(t, func() { h.AddConcern("should be dropped") })
}

func TestHandleAddConcernForwardsToRecorder(t *testing.T) {
	d := dispatch.New(echoBuiltin{}, nil)
	rec := &recordingRecorder{}
	h := New(d, rec, wire.Endpoint{Publisher: dispatch.BuiltinPublisher, Plugin: "activity"})

	h.AddConcern("commit history looks stale")
	assert.Equal(t, []string{"commit history looks stale"}, rec.concerns)
}
