package policyexpr

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ResolveJSONPointers is pipeline stage 5 (spec.md §4.4): given the
// plugin's raw JSON output, replace every JsonPointer node with the
// pointed-to subtree converted to an expression node. "$" names the whole
// output; "$/a/b" is an RFC-6901 pointer into it.
func ResolveJSONPointers(n *Node, output json.RawMessage) (*Node, error) {
	var root any
	dec := json.NewDecoder(strings.NewReader(string(output)))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil, newErr(ErrInternalError, "decoding plugin output: %v", err)
	}
	return resolveNode(n, root)
}

func resolveNode(n *Node, root any) (*Node, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case NodeJSONPointer:
		v, err := lookupPointer(root, n.Pointer)
		if err != nil {
			return nil, err
		}
		resolved, err := jsonToNode(v)
		if err != nil {
			return nil, err
		}
		n.Resolved = resolved
		n.Typ = resolved.Typ
		return n, nil
	case NodeArray:
		for i, e := range n.Elems {
			r, err := resolveNode(e, root)
			if err != nil {
				return nil, err
			}
			n.Elems[i] = r
		}
		return n, nil
	case NodeCall:
		for i, a := range n.Args {
			r, err := resolveNode(a, root)
			if err != nil {
				return nil, err
			}
			n.Args[i] = r
		}
		return n, nil
	case NodeLambda:
		body, err := resolveNode(n.Body, root)
		if err != nil {
			return nil, err
		}
		n.Body = body
		return n, nil
	default:
		return n, nil
	}
}

// lookupPointer implements the subset of RFC 6901 spec.md's grammar uses:
// "$" is the whole document, "$/a/b" walks object keys and array indices.
func lookupPointer(root any, pointer string) (any, error) {
	if pointer == "$" || pointer == "" {
		return root, nil
	}
	segments := strings.Split(strings.TrimPrefix(pointer, "$/"), "/")
	cur := root
	for _, seg := range segments {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, newErr(ErrBadType, "json pointer %q: no such key %q", pointer, seg)
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, newErr(ErrBadType, "json pointer %q: bad array index %q", pointer, seg)
			}
			cur = node[idx]
		default:
			return nil, newErr(ErrBadType, "json pointer %q: cannot index into a scalar", pointer)
		}
	}
	return cur, nil
}

// jsonToNode converts a decoded JSON value into a literal expression node.
// The policy type system (spec.md §3) only names Bool/Int/Float/
// DateTime/Span/Array — no string or object kind — so a bare JSON string or
// object reaching here is a BadType, unless the string parses as an
// RFC-3339 datetime.
func jsonToNode(v any) (*Node, error) {
	switch t := v.(type) {
	case bool:
		return litBool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return litInt(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, newErr(ErrBadType, "json number %q is not a valid number", t.String())
		}
		return litFloat(f), nil
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return &Node{Kind: NodeDateTime, Time: ts, Typ: Type{Kind: KindDateTime}}, nil
		}
		return nil, newErr(ErrBadType, "json string %q has no representation in the policy type system", t)
	case []any:
		elems := make([]*Node, len(t))
		var elemKind *Kind
		for i, e := range t {
			en, err := jsonToNode(e)
			if err != nil {
				return nil, err
			}
			elems[i] = en
			if elemKind == nil {
				k := en.Typ.Kind
				elemKind = &k
			} else if *elemKind != en.Typ.Kind {
				return nil, newErr(ErrInconsistentArrayTypes, "array mixes %s and %s", *elemKind, en.Typ.Kind)
			}
		}
		arr := &Node{Kind: NodeArray, Elems: elems}
		if elemKind == nil {
			arr.Typ = Type{Kind: KindArray}
		} else {
			et := Type{Kind: *elemKind}
			arr.Typ = Type{Kind: KindArray, Elem: &et}
		}
		return arr, nil
	case nil:
		return nil, newErr(ErrBadType, "json null has no representation in the policy type system")
	default:
		return nil, newErr(ErrBadType, "unsupported json value %v (%T)", v, v)
	}
}
