// Package policyexpr implements the small typed Lisp-like policy expression
// DSL (spec.md §4.4): lex, parse, resolve unary-call-to-lambda sugar,
// canonicalize literal forms, type-check, resolve JSON pointers against a
// plugin's output, and evaluate to a final Bool verdict.
package policyexpr

import "fmt"

// Kind is the policy type system's closed set of base kinds, plus the two
// higher-order kinds (Function/Lambda) and Unknown, which propagates from
// an empty array literal or an unresolved JSON pointer.
type Kind int

const (
	KindUnknown Kind = iota
	KindBool
	KindInt
	KindFloat
	KindDateTime
	KindSpan
	KindArray
	KindFunction
	KindLambda
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindDateTime:
		return "DateTime"
	case KindSpan:
		return "Span"
	case KindArray:
		return "Array"
	case KindFunction:
		return "Function"
	case KindLambda:
		return "Lambda"
	default:
		return "Unknown"
	}
}

// Type is a policy-language type: a base Kind, an element type for Array,
// or a return Kind for Function/Lambda.
type Type struct {
	Kind   Kind
	Elem   *Type // meaningful only when Kind == KindArray; nil means "unknown element type"
	Return Kind  // meaningful only when Kind == KindFunction or KindLambda
}

func (t Type) String() string {
	switch t.Kind {
	case KindArray:
		if t.Elem == nil {
			return "Array(Unknown)"
		}
		return fmt.Sprintf("Array(%s)", t.Elem)
	case KindFunction:
		return fmt.Sprintf("Function(%s)", t.Return)
	case KindLambda:
		return fmt.Sprintf("Lambda(%s)", t.Return)
	default:
		return t.Kind.String()
	}
}

func unknownType() Type { return Type{Kind: KindUnknown} }
func boolType() Type    { return Type{Kind: KindBool} }

func isNumeric(k Kind) bool { return k == KindInt || k == KindFloat }

// isOrdered reports whether k is a total ordering domain: numbers, bools,
// datetimes, spans.
func isOrdered(k Kind) bool {
	switch k {
	case KindInt, KindFloat, KindBool, KindDateTime, KindSpan:
		return true
	default:
		return false
	}
}
