package policyexpr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 2 (spec.md §8): policy evaluation over a boolean array.
func TestEvaluatePolicySimple(t *testing.T) {
	output := json.RawMessage(`[true,false,false,false,false]`)
	result, _, err := Evaluate(`(lte (divz (count (filter (eq #t) $)) (count $)) 0.05)`, output)
	require.NoError(t, err)
	assert.False(t, result)
}

// Scenario 5 (spec.md §8): arity errors surface at type-check time.
func TestTooManyArgsSurfacesAtTypeCheck(t *testing.T) {
	expr, err := Parse("(gt 1 2 3)")
	require.NoError(t, err)
	expr, err = ResolveFunctions(expr)
	require.NoError(t, err)
	FixTypes(expr)

	_, err = CheckTypes(expr)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrTooManyArgs, perr.Kind)
	assert.Equal(t, "gt", perr.Name)
	assert.Equal(t, 2, perr.Expected)
	assert.Equal(t, 3, perr.Given)
}

func TestUnaryComparisonSugarBecomesLambda(t *testing.T) {
	output := json.RawMessage(`[1,2,3,10]`)
	result, _, err := Evaluate(`(some (gt 5) $)`, output)
	require.NoError(t, err)
	assert.True(t, result)
}

func TestForeachMapsOverArray(t *testing.T) {
	output := json.RawMessage(`[1,2,3]`)
	result, expr, err := Evaluate(`(all (gte 0) (foreach (add 1) $))`, output)
	require.NoError(t, err)
	assert.True(t, result)
	assert.NotNil(t, expr)
}

func TestUnknownFunctionErrors(t *testing.T) {
	_, _, err := Evaluate(`(frobnicate 1 2)`, json.RawMessage(`null`))
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrUnknownFunction, perr.Kind)
}

func TestMixedTypeComparisonIsBadType(t *testing.T) {
	expr, err := Parse(`(gt #t 1)`)
	require.NoError(t, err)
	expr, err = ResolveFunctions(expr)
	require.NoError(t, err)
	FixTypes(expr)
	_, err = CheckTypes(expr)
	require.Error(t, err)
}

func TestExplainRendersThresholdSentence(t *testing.T) {
	expr, err := Parse(`(lte $ 0.05)`)
	require.NoError(t, err)
	assert.Contains(t, Explain(expr, false), "0.05")
}

func TestArrayLiteralRoundTripsThroughTypeFix(t *testing.T) {
	expr, err := Parse(`(eq [1 2.5 3] [1 2 3])`)
	require.NoError(t, err)
	FixTypes(expr)
	assert.Equal(t, NodeFloat, expr.Args[0].Elems[0].Kind)
}
