package policyfile

import (
	"strconv"
	"strings"
	"unicode"
)

// This lexer covers the subset of KDL (https://kdl.dev) spec.md §6 actually
// uses: bare node names, one or more positional string arguments,
// key=value properties, and brace-delimited children. Full KDL (slashdash
// comments, multiline strings, type annotations) is out of scope — the
// policy file format only needs what §6 names.

type tokKind int

const (
	ktEOF tokKind = iota
	ktIdent
	ktString
	ktNumber
	ktEquals
	ktLBrace
	ktRBrace
	ktSemicolon
	ktNewline
)

type tok struct {
	kind tokKind
	text string
}

func lexKDL(src string) ([]tok, error) {
	var toks []tok
	runes := []rune(src)
	n := len(runes)
	i := 0
	for i < n {
		c := runes[i]
		switch {
		case c == '\n':
			toks = append(toks, tok{ktNewline, "\n"})
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == ';':
			toks = append(toks, tok{ktSemicolon, ";"})
			i++
		case c == '/' && i+1 < n && runes[i+1] == '/':
			for i < n && runes[i] != '\n' {
				i++
			}
		case c == '{':
			toks = append(toks, tok{ktLBrace, "{"})
			i++
		case c == '}':
			toks = append(toks, tok{ktRBrace, "}"})
			i++
		case c == '=':
			toks = append(toks, tok{ktEquals, "="})
			i++
		case c == '"':
			j := i + 1
			var sb strings.Builder
			for j < n && runes[j] != '"' {
				if runes[j] == '\\' && j+1 < n {
					j++
					switch runes[j] {
					case 'n':
						sb.WriteRune('\n')
					case 't':
						sb.WriteRune('\t')
					default:
						sb.WriteRune(runes[j])
					}
					j++
					continue
				}
				sb.WriteRune(runes[j])
				j++
			}
			if j >= n {
				return nil, newParseErr("unterminated string literal")
			}
			toks = append(toks, tok{ktString, sb.String()})
			i = j + 1
		case isKDLIdentStart(c) || c == '-' || unicode.IsDigit(c):
			j := i
			for j < n && isKDLIdentRune(runes[j]) {
				j++
			}
			text := string(runes[i:j])
			if _, err := strconv.ParseFloat(text, 64); err == nil {
				toks = append(toks, tok{ktNumber, text})
			} else {
				toks = append(toks, tok{ktIdent, text})
			}
			i = j
		default:
			return nil, newParseErr("unexpected character %q in policy file", string(c))
		}
	}
	toks = append(toks, tok{ktEOF, ""})
	return toks, nil
}

func isKDLIdentStart(c rune) bool {
	return unicode.IsLetter(c) || c == '_'
}

func isKDLIdentRune(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '-' || c == '.'
}
