package policyexpr

import "fmt"

// english gives each comparison a natural-language template used by
// Explain. %s placeholders are filled with the computed side and the
// threshold side, in that order.
var english = map[string]string{
	"gt":  "expected %s to be greater than %s",
	"lt":  "expected %s to be less than %s",
	"gte": "expected %s to be at least %s",
	"lte": "expected %s to be at most %s",
	"eq":  "expected %s to equal %s",
	"neq": "expected %s to differ from %s",
}

// Explain renders a human-readable sentence describing expr against the
// value it evaluated to, per spec.md §4.4's "explanation mode": it inspects
// the top-level function, decides which argument is the constant threshold
// and which is the nested lookup, and fills in a per-function phrase.
func Explain(expr *Node, actual bool) string {
	if expr.Kind != NodeCall {
		return fmt.Sprintf("expected expression to evaluate to %v but got %v", !actual, actual)
	}
	tmpl, ok := english[expr.Fn]
	if !ok || len(expr.Args) != 2 {
		return fmt.Sprintf("expected (%s ...) to hold but got %v", expr.Fn, actual)
	}

	lhs, rhs := expr.Args[0], expr.Args[1]
	computed, threshold := lhs, rhs
	if isConstant(lhs) && !isConstant(rhs) {
		computed, threshold = rhs, lhs
	}
	return fmt.Sprintf(tmpl, describe(computed), describe(threshold))
}

// isConstant reports whether n is a literal with no dependency on the
// plugin's output — the heuristic Explain uses to pick the "threshold"
// side of a comparison.
func isConstant(n *Node) bool {
	switch n.Kind {
	case NodeBool, NodeInt, NodeFloat, NodeDateTime, NodeSpan:
		return true
	default:
		return false
	}
}

// describe renders a node (literal, json pointer, or nested call) as a
// short human-readable fragment for explanations and dbg logging.
func describe(n *Node) string {
	switch n.Kind {
	case NodeBool:
		return fmt.Sprintf("%v", n.Bool)
	case NodeInt:
		return fmt.Sprintf("%d", n.Int)
	case NodeFloat:
		return fmt.Sprintf("%g", n.Float)
	case NodeDateTime:
		return n.Time.Format("2006-01-02")
	case NodeSpan:
		return n.Span.String()
	case NodeJSONPointer:
		return n.Pointer
	case NodeArray:
		return fmt.Sprintf("array[%d]", len(n.Elems))
	case NodeCall:
		return fmt.Sprintf("(%s ...)", n.Fn)
	default:
		return "<expr>"
	}
}
