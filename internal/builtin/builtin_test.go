package builtin

import (
	"context"
	"testing"

	"github.com/mitre/hipcheck-fabric/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityEchoesDaysSinceLastCommit(t *testing.T) {
	r := NewRegistry()
	res, err := r.Route(context.Background(), wire.Endpoint{Publisher: "mitre", Plugin: "activity"},
		[]string{`{"days_since_last_commit":12}`})
	require.NoError(t, err)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, "12", res.Outputs[0])
}

func TestTypoFlagsOneEditAwayName(t *testing.T) {
	r := NewRegistry()
	res, err := r.Route(context.Background(), wire.Endpoint{Publisher: "mitre", Plugin: "typo"},
		[]string{`{"name":"xequests","popular":["requests","numpy"]}`})
	require.NoError(t, err)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, "true", res.Outputs[0])
}

func TestTypoIgnoresExactMatch(t *testing.T) {
	r := NewRegistry()
	res, err := r.Route(context.Background(), wire.Endpoint{Publisher: "mitre", Plugin: "typo"},
		[]string{`{"name":"requests","popular":["requests","numpy"]}`})
	require.NoError(t, err)
	assert.Equal(t, "false", res.Outputs[0])
}

func TestRouteRejectsUnknownPlugin(t *testing.T) {
	r := NewRegistry()
	_, err := r.Route(context.Background(), wire.Endpoint{Publisher: "mitre", Plugin: "nonexistent"}, []string{"1"})
	assert.Error(t, err)
}
