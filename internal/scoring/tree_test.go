package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitre/hipcheck-fabric/internal/wire"
)

func ep(name string) wire.Endpoint { return wire.Endpoint{Publisher: "mitre", Plugin: name} }

func TestNormalizeWeightsSumToOne(t *testing.T) {
	root := NewCategory("root", 1.0,
		NewCategory("practices", 3,
			NewLeaf("typo", ep("typo"), 1, LeafResult{}),
			NewLeaf("churn", ep("churn"), 2, LeafResult{}),
		),
		NewLeaf("activity", ep("activity"), 1, LeafResult{}),
	)
	require.NoError(t, NormalizeWeights(root))

	var sum float64
	for _, c := range root.Children {
		sum += c.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	practices := root.Children[0]
	sum = 0
	for _, c := range practices.Children {
		sum += c.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestEvaluateWeightedSum(t *testing.T) {
	root := NewCategory("root", 1.0,
		NewLeaf("a", ep("a"), 0.5, LeafResult{Failed: false}),
		NewLeaf("b", ep("b"), 0.5, LeafResult{Failed: true}),
	)
	res := Evaluate(root)
	assert.Equal(t, 0.5, res.Score)
	assert.Len(t, res.Leaves, 2)
}

func TestEvaluateNestedAncestorWeights(t *testing.T) {
	root := NewCategory("root", 1.0,
		NewCategory("cat", 0.5,
			NewLeaf("x", ep("x"), 1.0, LeafResult{Failed: true}),
		),
		NewLeaf("y", ep("y"), 0.5, LeafResult{Failed: false}),
	)
	res := Evaluate(root)
	// x contributes 1.0(score) * 0.5(cat weight) * 1.0(its own weight) = 0.5
	assert.Equal(t, 0.5, res.Score)
}

func TestTruncateNotRound(t *testing.T) {
	assert.Equal(t, 0.33, truncate2(0.336))
	assert.Equal(t, 0.99, truncate2(0.999))
}

func TestErroredLeafScoresOne(t *testing.T) {
	leaf := NewLeaf("x", ep("x"), 1.0, LeafResult{Errored: true})
	assert.Equal(t, 1.0, leaf.Score)
	assert.True(t, leaf.Errored)
}

func TestRecommend(t *testing.T) {
	assert.Equal(t, RecommendPass, Recommend(0.3, 0.5))
	assert.Equal(t, RecommendInvestigate, Recommend(0.6, 0.5))
	assert.Equal(t, RecommendPass, Recommend(0.5, 0.5))
}
