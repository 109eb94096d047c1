package calc

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokStarStar
	tokSlash
	tokSlashSlash
	tokPercent
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

// lex tokenizes src into the small fixed token set this sub-language
// supports: identifiers, numeric literals, + - * / // % **, parens, comma.
// Anything else (indexing, attribute access, comparisons, strings) is
// rejected here, before a parse tree is ever built.
func lex(src string) ([]token, error) {
	var toks []token
	r := []rune(src)
	i := 0
	for i < len(r) {
		c := r[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '+':
			toks = append(toks, token{kind: tokPlus, text: "+"})
			i++
		case c == '-':
			toks = append(toks, token{kind: tokMinus, text: "-"})
			i++
		case c == '*':
			if i+1 < len(r) && r[i+1] == '*' {
				toks = append(toks, token{kind: tokStarStar, text: "**"})
				i += 2
			} else {
				toks = append(toks, token{kind: tokStar, text: "*"})
				i++
			}
		case c == '/':
			if i+1 < len(r) && r[i+1] == '/' {
				toks = append(toks, token{kind: tokSlashSlash, text: "//"})
				i += 2
			} else {
				toks = append(toks, token{kind: tokSlash, text: "/"})
				i++
			}
		case c == '%':
			toks = append(toks, token{kind: tokPercent, text: "%"})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ","})
			i++
		case isDigit(c):
			start := i
			for i < len(r) && (isDigit(r[i]) || r[i] == '.') {
				i++
			}
			text := string(r[start:i])
			n, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid number literal %q", ErrCalcInvalid, text)
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: n})
		case isIdentStart(c):
			start := i
			for i < len(r) && isIdentPart(r[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: string(r[start:i])})
		default:
			return nil, fmt.Errorf("%w: unexpected character %q", ErrCalcInvalid, c)
		}
	}
	toks = append(toks, token{kind: tokEOF})
	return toks, nil
}

func isDigit(c rune) bool { return c >= '0' && c <= '9' }
func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentPart(c rune) bool { return isIdentStart(c) || isDigit(c) }

func joinTokenTexts(toks []token) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = t.text
	}
	return strings.Join(parts, " ")
}
