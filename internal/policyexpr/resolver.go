package policyexpr

// unarySugarFuncs is the set of binary functions spec.md §4.4 allows to be
// called with a single argument, sugar for a Lambda closing over the
// array element supplied by all/nall/some/none/filter/foreach: "(gt 1)"
// means "(lambda (x) (gt x 1))". Covers both the comparison predicates
// (the common case, feeding all/nall/some/none/filter) and the binary
// arithmetic functions (feeding foreach transforms like "(add 1)").
var unarySugarFuncs = map[string]bool{
	"gt": true, "lt": true, "gte": true, "lte": true, "eq": true, "neq": true,
	"add": true, "sub": true, "divz": true,
}

// lambdaBoundName is the synthetic parameter name substituted for unary
// comparison sugar. Policy expressions are short, host-authored predicates,
// not user-submitted code, so a fixed reserved name is an acceptable
// simplification over full alpha-renaming.
const lambdaBoundName = "__unary_arg"

// ResolveFunctions is the FunctionResolver pipeline stage (spec.md §4.4
// step 2): it rewrites every unary call to a function in unarySugarFuncs
// (comparison or arithmetic) into a Lambda wrapping the two-argument form.
func ResolveFunctions(n *Node) (*Node, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case NodeArray:
		for i, e := range n.Elems {
			resolved, err := ResolveFunctions(e)
			if err != nil {
				return nil, err
			}
			n.Elems[i] = resolved
		}
		return n, nil
	case NodeCall:
		for i, a := range n.Args {
			resolved, err := ResolveFunctions(a)
			if err != nil {
				return nil, err
			}
			n.Args[i] = resolved
		}
		if unarySugarFuncs[n.Fn] && len(n.Args) == 1 {
			body := &Node{
				Kind: NodeCall,
				Fn:   n.Fn,
				Args: []*Node{{Kind: NodeIdent, Ident: lambdaBoundName}, n.Args[0]},
			}
			return &Node{Kind: NodeLambda, Bound: lambdaBoundName, Body: body}, nil
		}
		return n, nil
	case NodeLambda:
		body, err := ResolveFunctions(n.Body)
		if err != nil {
			return nil, err
		}
		n.Body = body
		return n, nil
	default:
		return n, nil
	}
}
