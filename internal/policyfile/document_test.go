package policyfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePolicy = `
plugins {
	plugin "mitre/activity" version="0.1.0" manifest="localhost:50051"
	plugin "mitre/typo" version="0.2.0" manifest="localhost:50052"
}

patch {
	plugin "mitre/activity" {
		config {
			window "90"
		}
	}
}

analyze {
	investigate policy="(gt $/score 0.5)"

	practices weight=10 {
		plugin "mitre/activity" policy="(lte $ 30)" weight=5
		plugin "mitre/typo" policy="(eq $ #f)" weight=5
	}
}
`

func TestParseValidPolicyFile(t *testing.T) {
	doc, err := Parse(samplePolicy)
	require.NoError(t, err)

	require.Len(t, doc.Plugins, 2)
	assert.Equal(t, "localhost:50051", doc.Plugins[0].Manifest)
	assert.Equal(t, "0.1.0", doc.Plugins[0].Version)

	require.Len(t, doc.Patches, 1)
	assert.Equal(t, "90", doc.Patches[0].Config["window"])

	assert.Equal(t, "(gt $/score 0.5)", doc.Investigate)
	require.Len(t, doc.Tree.Children, 1)
	practices := doc.Tree.Children[0]
	assert.Equal(t, "practices", practices.Label)
	require.Len(t, practices.Children, 2)
	assert.InDelta(t, 0.5, practices.Children[0].Weight, 0.001)
}

func TestMissingWeightIsCollectedAsValidationError(t *testing.T) {
	_, err := Parse(`
analyze {
	investigate policy="(gt $ 1)"
	practices {
		plugin "mitre/activity" policy="(lte $ 1)" weight=1
	}
}
`)
	require.Error(t, err)
	var verrs *ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.NotEmpty(t, verrs.Problems)
}

func TestMissingAnalyzeBlockIsRejected(t *testing.T) {
	_, err := Parse(`plugins { plugin "mitre/x" version="1" manifest="localhost:1" }`)
	require.Error(t, err)
}

func TestDuplicatePluginReferenceIsRejected(t *testing.T) {
	_, err := Parse(`
plugins {
	plugin "mitre/activity" version="1" manifest="localhost:1"
	plugin "mitre/activity" version="2" manifest="localhost:2"
}
analyze {
	investigate policy="(gt $ 1)"
	plugin "mitre/activity" policy="(lte $ 1)" weight=1
}
`)
	require.Error(t, err)
}

func TestUnrecognizedTopLevelNodeIsRejected(t *testing.T) {
	_, err := Parse(`
bogus { foo "bar" }
analyze {
	investigate policy="(gt $ 1)"
	plugin "mitre/activity" policy="(lte $ 1)" weight=1
}
`)
	require.Error(t, err)
}
