package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePolicy = `
analyze {
    investigate policy="(gt $/score 0.5)"
    practices weight=10 {
        plugin "mitre/activity" weight=5 policy="(lte $ 30)"
        plugin "mitre/typo" weight=5 policy="(eq $ #f)"
    }
}
`

func writePolicy(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "policy.kdl")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

// runCheck never needs a plugin connection here: the sample policy names
// only mitre/* endpoints, which the dispatcher resolves to the in-process
// builtin registry regardless of any "plugins" block. The CLI target string
// doesn't match either built-in's expected key shape (a real run would get
// its per-leaf keys from upstream data-source queries, out of scope here),
// so both leaves error and the run recommends Investigate.
func TestRunCheckInvestigatesWhenBuiltinKeysDontMatch(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, samplePolicy)

	code, err := runCheck(context.Background(), "example-target", path, dir, "")
	require.NoError(t, err)
	assert.Equal(t, exitInvestigate, code)
}

func TestRunCheckReportsErrorOnMissingPolicyFile(t *testing.T) {
	dir := t.TempDir()
	_, err := runCheck(context.Background(), "example-target", filepath.Join(dir, "nope.kdl"), dir, "")
	require.Error(t, err)
}
