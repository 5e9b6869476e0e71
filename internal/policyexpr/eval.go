package policyexpr

import (
	"log/slog"
	"sort"
)

// Eval applies pipeline stage 6 (spec.md §4.4): evaluate bottom-up. n must
// already have passed ResolveFunctions, FixTypes, CheckTypes and (if it
// contains JSON pointers) ResolveJSONPointers. The top-level expression
// must evaluate to Bool; anything else is DidNotReturnBool.
func Eval(n *Node) (bool, error) {
	result, err := evalNode(n, map[string]*Node{})
	if err != nil {
		return false, err
	}
	if result.Kind != NodeBool {
		return false, &Error{Kind: ErrDidNotReturnBool}
	}
	return result.Bool, nil
}

func evalNode(n *Node, env map[string]*Node) (*Node, error) {
	switch n.Kind {
	case NodeBool, NodeInt, NodeFloat, NodeDateTime, NodeSpan:
		return n, nil
	case NodeJSONPointer:
		if n.Resolved == nil {
			return nil, &Error{Kind: ErrInternalError, Detail: "json pointer not resolved before eval: " + n.Pointer}
		}
		return n.Resolved, nil
	case NodeIdent:
		if v, ok := env[n.Ident]; ok {
			return v, nil
		}
		return nil, &Error{Kind: ErrBadType, Detail: "unbound identifier " + n.Ident}
	case NodeArray:
		out := make([]*Node, len(n.Elems))
		for i, e := range n.Elems {
			v, err := evalNode(e, env)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return &Node{Kind: NodeArray, Elems: out, Typ: n.Typ}, nil
	case NodeLambda:
		return n, nil
	case NodeCall:
		return evalCall(n, env)
	default:
		return nil, &Error{Kind: ErrInternalError, Detail: "unreachable node kind in eval"}
	}
}

func applyLambda(lambda *Node, arg *Node, env map[string]*Node) (*Node, error) {
	child := make(map[string]*Node, len(env)+1)
	for k, v := range env {
		child[k] = v
	}
	child[lambda.Bound] = arg
	return evalNode(lambda.Body, child)
}

func asFloat(n *Node) float64 {
	if n.Kind == NodeInt {
		return float64(n.Int)
	}
	return n.Float
}

func numCompare(a, b *Node) int {
	if a.Kind == NodeInt && b.Kind == NodeInt {
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	}
	fa, fb := asFloat(a), asFloat(b)
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	default:
		return 0
	}
}

func ordCompare(a, b *Node) int {
	switch a.Kind {
	case NodeBool:
		if a.Bool == b.Bool {
			return 0
		}
		if !a.Bool {
			return -1
		}
		return 1
	case NodeDateTime:
		switch {
		case a.Time.Before(b.Time):
			return -1
		case a.Time.After(b.Time):
			return 1
		default:
			return 0
		}
	case NodeSpan:
		switch {
		case a.Span < b.Span:
			return -1
		case a.Span > b.Span:
			return 1
		default:
			return 0
		}
	default:
		return numCompare(a, b)
	}
}

func evalCall(n *Node, env map[string]*Node) (*Node, error) {
	switch n.Fn {
	case "gt", "lt", "gte", "lte", "eq", "neq":
		a, err := evalNode(n.Args[0], env)
		if err != nil {
			return nil, err
		}
		b, err := evalNode(n.Args[1], env)
		if err != nil {
			return nil, err
		}
		c := ordCompare(a, b)
		var result bool
		switch n.Fn {
		case "gt":
			result = c > 0
		case "lt":
			result = c < 0
		case "gte":
			result = c >= 0
		case "lte":
			result = c <= 0
		case "eq":
			result = c == 0
		case "neq":
			result = c != 0
		}
		return litBool(result), nil

	case "add", "sub":
		a, err := evalNode(n.Args[0], env)
		if err != nil {
			return nil, err
		}
		b, err := evalNode(n.Args[1], env)
		if err != nil {
			return nil, err
		}
		return evalAddSub(n.Fn, a, b)

	case "divz":
		a, err := evalNode(n.Args[0], env)
		if err != nil {
			return nil, err
		}
		b, err := evalNode(n.Args[1], env)
		if err != nil {
			return nil, err
		}
		if asFloat(b) == 0 {
			return litFloat(0), nil
		}
		return litFloat(asFloat(a) / asFloat(b)), nil

	case "duration":
		a, err := evalNode(n.Args[0], env)
		if err != nil {
			return nil, err
		}
		b, err := evalNode(n.Args[1], env)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NodeSpan, Span: b.Time.Sub(a.Time), Typ: Type{Kind: KindSpan}}, nil

	case "and":
		for _, arg := range n.Args {
			v, err := evalNode(arg, env)
			if err != nil {
				return nil, err
			}
			if !v.Bool {
				return litBool(false), nil
			}
		}
		return litBool(true), nil

	case "or":
		for _, arg := range n.Args {
			v, err := evalNode(arg, env)
			if err != nil {
				return nil, err
			}
			if v.Bool {
				return litBool(true), nil
			}
		}
		return litBool(false), nil

	case "not":
		v, err := evalNode(n.Args[0], env)
		if err != nil {
			return nil, err
		}
		return litBool(!v.Bool), nil

	case "max", "min":
		arr, err := evalNode(n.Args[0], env)
		if err != nil {
			return nil, err
		}
		if len(arr.Elems) == 0 {
			return nil, &Error{Kind: ErrBadArrayElt, Name: n.Fn, Detail: "empty array"}
		}
		best := arr.Elems[0]
		for _, e := range arr.Elems[1:] {
			c := ordCompare(e, best)
			if (n.Fn == "max" && c > 0) || (n.Fn == "min" && c < 0) {
				best = e
			}
		}
		return best, nil

	case "avg":
		arr, err := evalNode(n.Args[0], env)
		if err != nil {
			return nil, err
		}
		if len(arr.Elems) == 0 {
			return litFloat(0), nil
		}
		var sum float64
		for _, e := range arr.Elems {
			sum += asFloat(e)
		}
		return litFloat(sum / float64(len(arr.Elems))), nil

	case "median":
		arr, err := evalNode(n.Args[0], env)
		if err != nil {
			return nil, err
		}
		if len(arr.Elems) == 0 {
			return litFloat(0), nil
		}
		vals := make([]float64, len(arr.Elems))
		for i, e := range arr.Elems {
			vals[i] = asFloat(e)
		}
		sort.Float64s(vals)
		mid := len(vals) / 2
		if len(vals)%2 == 1 {
			return litFloat(vals[mid]), nil
		}
		return litFloat((vals[mid-1] + vals[mid]) / 2), nil

	case "count":
		arr, err := evalNode(n.Args[0], env)
		if err != nil {
			return nil, err
		}
		return litInt(int64(len(arr.Elems))), nil

	case "all", "nall", "some", "none":
		lambda := n.Args[0]
		arr, err := evalNode(n.Args[1], env)
		if err != nil {
			return nil, err
		}
		var trueCount, total int
		for _, e := range arr.Elems {
			v, err := applyLambda(lambda, e, env)
			if err != nil {
				return nil, err
			}
			total++
			if v.Bool {
				trueCount++
			}
		}
		switch n.Fn {
		case "all":
			return litBool(trueCount == total), nil
		case "nall":
			return litBool(trueCount != total), nil
		case "some":
			return litBool(trueCount > 0), nil
		default: // none
			return litBool(trueCount == 0), nil
		}

	case "filter":
		lambda := n.Args[0]
		arr, err := evalNode(n.Args[1], env)
		if err != nil {
			return nil, err
		}
		var kept []*Node
		for _, e := range arr.Elems {
			v, err := applyLambda(lambda, e, env)
			if err != nil {
				return nil, err
			}
			if v.Bool {
				kept = append(kept, e)
			}
		}
		return &Node{Kind: NodeArray, Elems: kept, Typ: arr.Typ}, nil

	case "foreach":
		lambda := n.Args[0]
		arr, err := evalNode(n.Args[1], env)
		if err != nil {
			return nil, err
		}
		out := make([]*Node, len(arr.Elems))
		for i, e := range arr.Elems {
			v, err := applyLambda(lambda, e, env)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return &Node{Kind: NodeArray, Elems: out}, nil

	case "dbg":
		v, err := evalNode(n.Args[0], env)
		if err != nil {
			return nil, err
		}
		slog.Debug("policy dbg", "value", describe(v))
		return v, nil

	default:
		return nil, &Error{Kind: ErrUnknownFunction, Name: n.Fn}
	}
}

func evalAddSub(fn string, a, b *Node) (*Node, error) {
	switch {
	case isNumeric(a.Typ.Kind) && isNumeric(b.Typ.Kind):
		if a.Kind == NodeInt && b.Kind == NodeInt {
			if fn == "add" {
				return litInt(a.Int + b.Int), nil
			}
			return litInt(a.Int - b.Int), nil
		}
		if fn == "add" {
			return litFloat(asFloat(a) + asFloat(b)), nil
		}
		return litFloat(asFloat(a) - asFloat(b)), nil
	case a.Kind == NodeDateTime && b.Kind == NodeSpan:
		if fn == "add" {
			return &Node{Kind: NodeDateTime, Time: a.Time.Add(b.Span), Typ: Type{Kind: KindDateTime}}, nil
		}
		return &Node{Kind: NodeDateTime, Time: a.Time.Add(-b.Span), Typ: Type{Kind: KindDateTime}}, nil
	case a.Kind == NodeSpan && b.Kind == NodeSpan:
		if fn == "add" {
			return &Node{Kind: NodeSpan, Span: a.Span + b.Span, Typ: Type{Kind: KindSpan}}, nil
		}
		return &Node{Kind: NodeSpan, Span: a.Span - b.Span, Typ: Type{Kind: KindSpan}}, nil
	default:
		return nil, &Error{Kind: ErrBadFuncArgType, Name: fn}
	}
}
