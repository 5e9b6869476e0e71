package policyexpr

// quantifierFuncs take (Lambda, Array) and return Bool.
var quantifierFuncs = map[string]bool{"all": true, "nall": true, "some": true, "none": true}

// CheckTypes is the TypeChecker pipeline stage (spec.md §4.4 step 4, and
// again after JSON pointer resolution per step 5): it assigns a Type to
// every node and verifies every call's argument types and arity, in the
// order the function table in spec.md §4.4 lists.
func CheckTypes(n *Node) (Type, error) {
	return checkNode(n, map[string]Type{})
}

func checkNode(n *Node, env map[string]Type) (Type, error) {
	if n == nil {
		return unknownType(), nil
	}
	switch n.Kind {
	case NodeBool, NodeInt, NodeFloat, NodeDateTime, NodeSpan:
		return n.Typ, nil
	case NodeJSONPointer:
		if n.Resolved != nil {
			return n.Resolved.Typ, nil
		}
		return unknownType(), nil
	case NodeIdent:
		if t, ok := env[n.Ident]; ok {
			n.Typ = t
			return t, nil
		}
		return unknownType(), newErr(ErrBadType, "unbound identifier %q", n.Ident)
	case NodeArray:
		t, err := checkArrayLiteral(n, env)
		if err != nil {
			return unknownType(), err
		}
		n.Typ = t
		return t, nil
	case NodeLambda:
		bodyType, err := checkNode(n.Body, env)
		if err != nil {
			return unknownType(), err
		}
		t := Type{Kind: KindLambda, Return: bodyType.Kind}
		n.Typ = t
		return t, nil
	case NodeCall:
		t, err := checkCall(n, env)
		if err != nil {
			return unknownType(), err
		}
		n.Typ = t
		return t, nil
	default:
		return unknownType(), &Error{Kind: ErrInternalError, Detail: "unreachable node kind"}
	}
}

func checkArrayLiteral(n *Node, env map[string]Type) (Type, error) {
	if len(n.Elems) == 0 {
		return Type{Kind: KindArray}, nil
	}
	var elemKind *Kind
	for _, e := range n.Elems {
		et, err := checkNode(e, env)
		if err != nil {
			return unknownType(), err
		}
		if elemKind == nil {
			k := et.Kind
			elemKind = &k
			continue
		}
		if *elemKind != et.Kind {
			return unknownType(), &Error{Kind: ErrInconsistentArrayTypes,
				Detail: et.Kind.String() + " alongside " + elemKind.String()}
		}
	}
	elemType := Type{Kind: *elemKind}
	return Type{Kind: KindArray, Elem: &elemType}, nil
}

// anyUnknown reports whether some type in ts is still Unknown: before JSON
// pointer resolution every "$..." lookup checks as Unknown, and callers
// built on top of one (divz, count, filter's array, ...) must propagate
// Unknown rather than reject it as a type mismatch. CheckTypes runs again
// after resolution, when every pointer has a concrete type, so this never
// hides a real error.
func anyUnknown(ts ...Type) bool {
	for _, t := range ts {
		if t.Kind == KindUnknown {
			return true
		}
	}
	return false
}

func arity(n *Node, min, max int) error {
	given := len(n.Args)
	if given < min {
		return &Error{Kind: ErrNotEnoughArgs, Name: n.Fn, Expected: min, Given: given}
	}
	if max >= 0 && given > max {
		return &Error{Kind: ErrTooManyArgs, Name: n.Fn, Expected: max, Given: given}
	}
	return nil
}

func checkCall(n *Node, env map[string]Type) (Type, error) {
	switch n.Fn {
	case "gt", "lt", "gte", "lte", "eq", "neq":
		if err := arity(n, 2, 2); err != nil {
			return unknownType(), err
		}
		a, err := checkNode(n.Args[0], env)
		if err != nil {
			return unknownType(), err
		}
		b, err := checkNode(n.Args[1], env)
		if err != nil {
			return unknownType(), err
		}
		if anyUnknown(a, b) {
			return boolType(), nil
		}
		if !isOrdered(a.Kind) || !isOrdered(b.Kind) {
			return unknownType(), badFuncArgType(n.Fn, a, b)
		}
		if !comparable2(a.Kind, b.Kind) {
			return unknownType(), &Error{Kind: ErrBadType, Detail: "mixed-type comparison: " + a.Kind.String() + " vs " + b.Kind.String()}
		}
		return boolType(), nil

	case "add", "sub":
		if err := arity(n, 2, 2); err != nil {
			return unknownType(), err
		}
		a, err := checkNode(n.Args[0], env)
		if err != nil {
			return unknownType(), err
		}
		b, err := checkNode(n.Args[1], env)
		if err != nil {
			return unknownType(), err
		}
		switch {
		case anyUnknown(a, b):
			return unknownType(), nil
		case isNumeric(a.Kind) && isNumeric(b.Kind):
			if a.Kind == KindFloat || b.Kind == KindFloat {
				return Type{Kind: KindFloat}, nil
			}
			return Type{Kind: KindInt}, nil
		case a.Kind == KindDateTime && b.Kind == KindSpan:
			return Type{Kind: KindDateTime}, nil
		case a.Kind == KindSpan && b.Kind == KindSpan:
			return Type{Kind: KindSpan}, nil
		default:
			return unknownType(), badFuncArgType(n.Fn, a, b)
		}

	case "divz":
		if err := arity(n, 2, 2); err != nil {
			return unknownType(), err
		}
		a, err := checkNode(n.Args[0], env)
		if err != nil {
			return unknownType(), err
		}
		b, err := checkNode(n.Args[1], env)
		if err != nil {
			return unknownType(), err
		}
		if anyUnknown(a, b) {
			return Type{Kind: KindFloat}, nil
		}
		if !isNumeric(a.Kind) || !isNumeric(b.Kind) {
			return unknownType(), badFuncArgType(n.Fn, a, b)
		}
		return Type{Kind: KindFloat}, nil

	case "duration":
		if err := arity(n, 2, 2); err != nil {
			return unknownType(), err
		}
		a, err := checkNode(n.Args[0], env)
		if err != nil {
			return unknownType(), err
		}
		b, err := checkNode(n.Args[1], env)
		if err != nil {
			return unknownType(), err
		}
		if anyUnknown(a, b) {
			return Type{Kind: KindSpan}, nil
		}
		if a.Kind != KindDateTime || b.Kind != KindDateTime {
			return unknownType(), badFuncArgType(n.Fn, a, b)
		}
		return Type{Kind: KindSpan}, nil

	case "and", "or":
		if err := arity(n, 2, -1); err != nil {
			return unknownType(), err
		}
		for _, a := range n.Args {
			t, err := checkNode(a, env)
			if err != nil {
				return unknownType(), err
			}
			if t.Kind != KindBool && t.Kind != KindUnknown {
				return unknownType(), badFuncArgType(n.Fn, t)
			}
		}
		return boolType(), nil

	case "not":
		if err := arity(n, 1, 1); err != nil {
			return unknownType(), err
		}
		t, err := checkNode(n.Args[0], env)
		if err != nil {
			return unknownType(), err
		}
		if t.Kind != KindBool && t.Kind != KindUnknown {
			return unknownType(), badFuncArgType(n.Fn, t)
		}
		return boolType(), nil

	case "max", "min":
		if err := arity(n, 1, 1); err != nil {
			return unknownType(), err
		}
		t, err := checkNode(n.Args[0], env)
		if err != nil {
			return unknownType(), err
		}
		if t.Kind == KindUnknown {
			return unknownType(), nil
		}
		if t.Kind != KindArray {
			return unknownType(), badFuncArgType(n.Fn, t)
		}
		if t.Elem == nil {
			return unknownType(), nil
		}
		return *t.Elem, nil

	case "avg", "median":
		if err := arity(n, 1, 1); err != nil {
			return unknownType(), err
		}
		t, err := checkNode(n.Args[0], env)
		if err != nil {
			return unknownType(), err
		}
		if t.Kind == KindUnknown {
			return Type{Kind: KindFloat}, nil
		}
		if t.Kind != KindArray || (t.Elem != nil && !isNumeric(t.Elem.Kind)) {
			return unknownType(), badFuncArgType(n.Fn, t)
		}
		return Type{Kind: KindFloat}, nil

	case "count":
		if err := arity(n, 1, 1); err != nil {
			return unknownType(), err
		}
		t, err := checkNode(n.Args[0], env)
		if err != nil {
			return unknownType(), err
		}
		if t.Kind == KindUnknown {
			return Type{Kind: KindInt}, nil
		}
		if t.Kind != KindArray {
			return unknownType(), badFuncArgType(n.Fn, t)
		}
		return Type{Kind: KindInt}, nil

	case "all", "nall", "some", "none", "filter", "foreach":
		return checkLambdaArrayCall(n, env)

	case "dbg":
		if err := arity(n, 1, 1); err != nil {
			return unknownType(), err
		}
		return checkNode(n.Args[0], env)

	default:
		return unknownType(), &Error{Kind: ErrUnknownFunction, Name: n.Fn}
	}
}

// checkLambdaArrayCall handles all/nall/some/none/filter/foreach, every one
// of which takes (Lambda, Array[T]) and must thread T into the lambda's
// bound variable before checking the lambda body.
func checkLambdaArrayCall(n *Node, env map[string]Type) (Type, error) {
	if err := arity(n, 2, 2); err != nil {
		return unknownType(), err
	}
	lambda := n.Args[0]
	if lambda.Kind != NodeLambda {
		return unknownType(), &Error{Kind: ErrBadFuncArgType, Name: n.Fn, Detail: "first argument must be a predicate"}
	}
	arrType, err := checkNode(n.Args[1], env)
	if err != nil {
		return unknownType(), err
	}
	if arrType.Kind != KindArray && arrType.Kind != KindUnknown {
		return unknownType(), badFuncArgType(n.Fn, arrType)
	}

	childEnv := make(map[string]Type, len(env)+1)
	for k, v := range env {
		childEnv[k] = v
	}
	if arrType.Elem != nil {
		childEnv[lambda.Bound] = *arrType.Elem
	} else {
		childEnv[lambda.Bound] = unknownType()
	}
	bodyType, err := checkNode(lambda.Body, childEnv)
	if err != nil {
		return unknownType(), err
	}
	lambda.Typ = Type{Kind: KindLambda, Return: bodyType.Kind}

	if quantifierFuncs[n.Fn] || n.Fn == "filter" {
		if bodyType.Kind != KindBool {
			return unknownType(), &Error{Kind: ErrDidNotReturnBool, Name: n.Fn}
		}
	}
	switch n.Fn {
	case "filter":
		return arrType, nil
	case "foreach":
		ret := bodyType
		return Type{Kind: KindArray, Elem: &ret}, nil
	default:
		return boolType(), nil
	}
}

func comparable2(a, b Kind) bool {
	if a == b {
		return true
	}
	return isNumeric(a) && isNumeric(b)
}

func badFuncArgType(name string, types ...Type) error {
	detail := name + "("
	for i, t := range types {
		if i > 0 {
			detail += ", "
		}
		detail += t.String()
	}
	detail += ")"
	return &Error{Kind: ErrBadFuncArgType, Name: name, Detail: detail}
}
