package policyexpr

import "time"

// NodeKind is the tag of the small algebraic data type spec.md §3 describes
// (Primitive / Array / Function / Lambda / JsonPointer), represented here as
// one tagged struct rather than a Go interface hierarchy, since the shape
// is small, fixed, and every stage of the pipeline mutates nodes in place.
type NodeKind int

const (
	NodeBool NodeKind = iota
	NodeInt
	NodeFloat
	NodeDateTime
	NodeSpan
	NodeIdent
	NodeArray
	NodeCall
	NodeLambda
	NodeJSONPointer
)

// Node is one node of the policy expression AST.
type Node struct {
	Kind NodeKind

	// Primitive payloads (meaningful depending on Kind).
	Bool  bool
	Int   int64
	Float float64
	Time  time.Time
	Span  time.Duration
	Ident string

	// NodeArray: literal elements (each a primitive Node).
	Elems []*Node

	// NodeCall: function name and argument expressions.
	Fn   string
	Args []*Node

	// NodeLambda: the bound parameter name and the body, which
	// FunctionResolver builds as a NodeCall whose args include an
	// identifier equal to Bound.
	Bound string
	Body  *Node

	// NodeJSONPointer: the literal pointer text (e.g. "$", "$/foo/bar")
	// and, once jsonptr resolution has run, the literal value it resolved
	// to.
	Pointer  string
	Resolved *Node

	// Typ is set at construction for literal nodes and filled in by the
	// TypeChecker stage for the rest; Unknown until then.
	Typ Type
}

func litBool(b bool) *Node    { return &Node{Kind: NodeBool, Bool: b, Typ: Type{Kind: KindBool}} }
func litInt(i int64) *Node    { return &Node{Kind: NodeInt, Int: i, Typ: Type{Kind: KindInt}} }
func litFloat(f float64) *Node {
	return &Node{Kind: NodeFloat, Float: f, Typ: Type{Kind: KindFloat}}
}
