package policyfile

// rawNode is the generic parse tree for one KDL-subset node, before it's
// interpreted against the plugins/patch/analyze grammar in document.go.
type rawNode struct {
	Name     string
	Args     []string
	Props    map[string]string
	Children []*rawNode
}

func (n *rawNode) prop(key string) (string, bool) {
	v, ok := n.Props[key]
	return v, ok
}

type kdlParser struct {
	toks []tok
	pos  int
}

func parseKDL(src string) ([]*rawNode, error) {
	toks, err := lexKDL(src)
	if err != nil {
		return nil, err
	}
	p := &kdlParser{toks: toks}
	return p.parseNodes(true)
}

func (p *kdlParser) cur() tok { return p.toks[p.pos] }

func (p *kdlParser) advance() tok {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *kdlParser) skipSeparators() {
	for p.cur().kind == ktNewline || p.cur().kind == ktSemicolon {
		p.advance()
	}
}

// parseNodes reads sibling nodes until a closing brace (or EOF at the top
// level, when topLevel is true).
func (p *kdlParser) parseNodes(topLevel bool) ([]*rawNode, error) {
	var nodes []*rawNode
	p.skipSeparators()
	for {
		switch p.cur().kind {
		case ktEOF:
			if !topLevel {
				return nil, newParseErr("unterminated block, expected '}'")
			}
			return nodes, nil
		case ktRBrace:
			if topLevel {
				return nil, newParseErr("unexpected '}' at top level")
			}
			return nodes, nil
		case ktIdent:
			n, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
			p.skipSeparators()
		default:
			return nil, newParseErr("expected node name, found %q", p.cur().text)
		}
	}
}

func (p *kdlParser) parseNode() (*rawNode, error) {
	n := &rawNode{Name: p.advance().text, Props: map[string]string{}}
	for {
		switch p.cur().kind {
		case ktString, ktNumber:
			n.Args = append(n.Args, p.advance().text)
		case ktIdent:
			// Could be "key=value" or a bare keyword argument; KDL props
			// are always key=value, so peek for '='.
			if p.pos+1 < len(p.toks) && p.toks[p.pos+1].kind == ktEquals {
				key := p.advance().text
				p.advance() // '='
				if p.cur().kind != ktString && p.cur().kind != ktNumber && p.cur().kind != ktIdent {
					return nil, newParseErr("expected value for property %q", key)
				}
				n.Props[key] = p.advance().text
				continue
			}
			n.Args = append(n.Args, p.advance().text)
		case ktLBrace:
			p.advance()
			children, err := p.parseNodes(false)
			if err != nil {
				return nil, err
			}
			if p.cur().kind != ktRBrace {
				return nil, newParseErr("expected '}' to close %q", n.Name)
			}
			p.advance()
			n.Children = children
			return n, nil
		case ktNewline, ktSemicolon, ktEOF, ktRBrace:
			return n, nil
		default:
			return nil, newParseErr("unexpected token %q in node %q", p.cur().text, n.Name)
		}
	}
}
