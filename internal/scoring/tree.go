// Package scoring implements the weighted hierarchical aggregator (spec.md
// §3, §4.5): leaves carry a pass/fail verdict and a normalized weight;
// internal nodes combine children by weighted sum; the final score is
// truncated, not rounded, to two decimal places.
package scoring

import (
	"fmt"
	"math"

	"github.com/mitre/hipcheck-fabric/internal/wire"
)

// Node is one node of a scoring tree, shaped identically to the analysis
// tree it mirrors. Leaves (len(Children) == 0) carry Score and Errored;
// internal nodes carry only Weight and Children — their Score is computed.
type Node struct {
	Label    string
	Endpoint wire.Endpoint // zero value for internal (category) nodes
	Weight   float64
	Score    float64 // leaf-only input; ignored (and overwritten) on internal nodes
	Errored  bool     // leaf-only: true if the analysis errored rather than failed/passed
	Children []*Node
}

// LeafResult is a computed leaf verdict: Failed means the plugin's output
// did not satisfy its policy expression, distinct from Errored (spec.md
// §4.3's "errored analyses contribute 1.0 but are surfaced separately").
type LeafResult struct {
	Failed  bool
	Errored bool
}

// NewLeaf builds a leaf node from a policy verdict, per spec.md §4.5 step 1:
// score 0.0 if the expression was satisfied, 1.0 if it failed or errored.
func NewLeaf(label string, ep wire.Endpoint, weight float64, r LeafResult) *Node {
	score := 0.0
	if r.Failed || r.Errored {
		score = 1.0
	}
	return &Node{Label: label, Endpoint: ep, Weight: weight, Score: score, Errored: r.Errored}
}

// NewCategory builds an internal node; its Score field is meaningless until
// Evaluate runs.
func NewCategory(label string, weight float64, children ...*Node) *Node {
	return &Node{Label: label, Weight: weight, Children: children}
}

// LeafScore pairs a leaf with its contribution to the final score, for
// reporting.
type LeafScore struct {
	Label        string
	Endpoint     wire.Endpoint
	Score        float64
	Weight       float64 // this leaf's own normalized weight
	Contribution float64 // score * product of ancestor weights
	Errored      bool
}

// Result is the outcome of scoring a whole tree.
type Result struct {
	Score   float64 // truncated to two decimals
	Leaves  []LeafScore
}

// Evaluate performs the single post-order pass spec.md §4.5 describes: carry
// a running product of ancestor weights down the tree, and at each leaf
// accumulate score * ancestorProduct into the total. Internal node scores
// are filled in along the way (weighted sum of children) even though the
// total itself is computed leaf-first.
func Evaluate(root *Node) Result {
	var leaves []LeafScore
	total := walk(root, 1.0, &leaves)
	return Result{Score: truncate2(total), Leaves: leaves}
}

func walk(n *Node, ancestorWeight float64, leaves *[]LeafScore) float64 {
	if len(n.Children) == 0 {
		contribution := n.Score * ancestorWeight * n.Weight
		*leaves = append(*leaves, LeafScore{
			Label:        n.Label,
			Endpoint:     n.Endpoint,
			Score:        n.Score,
			Weight:       n.Weight,
			Contribution: contribution,
			Errored:      n.Errored,
		})
		return contribution
	}

	var sum float64
	var nodeScore float64
	childAncestor := ancestorWeight * n.Weight
	for _, c := range n.Children {
		sum += walk(c, childAncestor, leaves)
		nodeScore += c.Weight * c.Score
	}
	n.Score = nodeScore
	return sum
}

// truncate2 truncates (never rounds) x to two decimal places, per spec.md
// §4.5's explicit "truncated to two decimal places."
func truncate2(x float64) float64 {
	return math.Trunc(x*100) / 100
}

// Recommendation is the run's final pass/investigate verdict.
type Recommendation int

const (
	RecommendPass Recommendation = iota
	RecommendInvestigate
)

func (r Recommendation) String() string {
	if r == RecommendInvestigate {
		return "Investigate"
	}
	return "Pass"
}

// Recommend compares score against threshold: score > threshold means
// Investigate, per spec.md §4.5 step 3.
func Recommend(score, threshold float64) Recommendation {
	if score > threshold {
		return RecommendInvestigate
	}
	return RecommendPass
}

// NormalizeWeights performs the single post-order pass spec.md §3 describes:
// divide each child's weight by the sum of its siblings' weights, so that
// any node's children weights sum to 1.0. A node with no children is left
// untouched. Leaf weights passed in are the raw, un-normalized weights read
// from the policy file (spec.md §4.6's policy/analysis tree loader step).
func NormalizeWeights(n *Node) error {
	if len(n.Children) == 0 {
		return nil
	}
	var sum float64
	for _, c := range n.Children {
		if err := NormalizeWeights(c); err != nil {
			return err
		}
		sum += c.Weight
	}
	if sum == 0 {
		return fmt.Errorf("scoring: node %q has children whose weights sum to zero", n.Label)
	}
	for _, c := range n.Children {
		c.Weight /= sum
	}
	return nil
}
