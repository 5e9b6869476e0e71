package policyexpr

import (
	"strings"
	"unicode"
)

// tokenKind enumerates the lexer's output alphabet (spec.md §4.4's EBNF
// sketch, plus structural punctuation).
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokTrue
	tokFalse
	tokInt
	tokFloat
	tokDateTime
	tokSpan
	tokJSONPointer
	tokIdent
)

type token struct {
	kind tokenKind
	text string
}

// lex splits src into tokens. It is a small hand-written scanner in the
// style of a recursive-descent front end: no external lexer-generator
// dependency exists in the retrieved example corpus for a DSL this size.
func lex(src string) ([]token, error) {
	var toks []token
	runes := []rune(src)
	i := 0
	n := len(runes)

	peekIs := func(j int, want rune) bool { return j < n && runes[j] == want }

	for i < n {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '[':
			toks = append(toks, token{tokLBracket, "["})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]"})
			i++
		case c == '#' && peekIs(i+1, 't'):
			toks = append(toks, token{tokTrue, "#t"})
			i += 2
		case c == '#' && peekIs(i+1, 'f'):
			toks = append(toks, token{tokFalse, "#f"})
			i += 2
		case c == '$':
			j := i + 1
			for j < n && (runes[j] == '/' || isIdentRune(runes[j])) {
				j++
			}
			toks = append(toks, token{tokJSONPointer, string(runes[i:j])})
			i = j
		case c == 'P' && i+1 < n && unicode.IsDigit(runes[i+1]):
			j := i + 1
			for j < n && (unicode.IsDigit(runes[j]) || isIdentRune(runes[j])) {
				j++
			}
			toks = append(toks, token{tokSpan, string(runes[i:j])})
			i = j
		case unicode.IsDigit(c) || (c == '-' && i+1 < n && unicode.IsDigit(runes[i+1])):
			j := i + 1
			for j < n && (unicode.IsDigit(runes[j]) || runes[j] == '.' || runes[j] == ':' || runes[j] == '-' || runes[j] == 'T' || runes[j] == 'Z' || runes[j] == '+') {
				j++
			}
			text := string(runes[i:j])
			toks = append(toks, token{classifyNumberOrDate(text), text})
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < n && isIdentRune(runes[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, string(runes[i:j])})
			i = j
		default:
			return nil, newErr(ErrParse, "unexpected character %q at offset %d", c, i)
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

func isIdentStart(c rune) bool {
	return unicode.IsLetter(c) || c == '_'
}

func isIdentRune(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '-'
}

// classifyNumberOrDate distinguishes Int, Float, and DateTime literals once
// the scanner has already grabbed a maximal run of number/date-ish runes.
func classifyNumberOrDate(text string) tokenKind {
	if strings.Contains(text, "T") || strings.Count(text, "-") >= 2 {
		return tokDateTime
	}
	if strings.Contains(text, ".") {
		return tokFloat
	}
	return tokInt
}
