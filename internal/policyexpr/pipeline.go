package policyexpr

import "encoding/json"

// Evaluate runs the full pipeline (spec.md §4.4) against one plugin output:
// parse, resolve unary-comparison sugar, canonicalize literal forms,
// type-check, resolve JSON pointers against output, type-check again, then
// evaluate. It returns the Bool verdict plus the parsed expression (for
// Explain) so callers don't need to re-parse.
func Evaluate(src string, output json.RawMessage) (bool, *Node, error) {
	expr, err := Parse(src)
	if err != nil {
		return false, nil, err
	}
	expr, err = ResolveFunctions(expr)
	if err != nil {
		return false, nil, err
	}
	expr = FixTypes(expr)
	if _, err := CheckTypes(expr); err != nil {
		return false, nil, err
	}
	expr, err = ResolveJSONPointers(expr, output)
	if err != nil {
		return false, nil, err
	}
	if _, err := CheckTypes(expr); err != nil {
		return false, nil, err
	}
	result, err := Eval(expr)
	if err != nil {
		return false, nil, err
	}
	return result, expr, nil
}
