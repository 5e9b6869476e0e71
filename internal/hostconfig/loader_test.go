package hostconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeAppliesDefaultsWithNoFiles(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultHostConfig().Session.InboxCapacity, cfg.InboxCapacity)
	assert.Equal(t, DefaultQueryTimeout, cfg.QueryTimeout)
	assert.Empty(t, cfg.PluginConfig)
}

func TestInitializeMergesUserOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "host.yaml"), []byte(`
session:
  inbox_capacity: 42
query:
  timeout: 5s
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin-manifest.yaml"), []byte(`
plugins:
  mitre/activity:
    window: 90
`), 0o644))

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.InboxCapacity)
	assert.Equal(t, "5s", cfg.QueryTimeout.String())
	require.Contains(t, cfg.PluginConfig, "mitre/activity")
	assert.EqualValues(t, 90, cfg.PluginConfig["mitre/activity"]["window"])
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := &Config{InboxCapacity: 0, EffectiveMaxBytes: 0, QueryTimeout: 0}
	err := cfg.Validate()
	require.Error(t, err)
	var multi *MultiError
	require.ErrorAs(t, err, &multi)
	assert.Len(t, multi.Problems, 3)
}

func TestExpandEnvSubstitutesVariables(t *testing.T) {
	t.Setenv("HIPCHECK_TEST_VALUE", "90s")
	out := ExpandEnv([]byte("timeout: ${HIPCHECK_TEST_VALUE}"))
	assert.Equal(t, "timeout: 90s", string(out))
}
