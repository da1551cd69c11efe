package query

import (
	"strings"
	"unicode"

	"github.com/vanban-cloud/docdex/internal/domain"
)

type tokenType int

const (
	tEOF tokenType = iota
	tWord
	tQuoted
	tLParen
	tRParen
	tColon
	tAnd
	tOr
	tNot
)

type token struct {
	typ tokenType
	val string // raw text for words and quoted strings
	pos int    // rune offset in the raw query
}

// lex scans a boolean-mode query into tokens. Keywords are recognized
// case-insensitively. An unterminated quote is a syntax error.
func lex(raw string) ([]token, error) {
	var tokens []token
	runes := []rune(raw)
	i := 0

	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{typ: tLParen, val: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{typ: tRParen, val: ")", pos: i})
			i++
		case r == ':':
			tokens = append(tokens, token{typ: tColon, val: ":", pos: i})
			i++
		case r == '"':
			start := i
			i++
			from := i
			for i < len(runes) && runes[i] != '"' {
				i++
			}
			if i >= len(runes) {
				return nil, domain.NewParseError(start, "\"", "unterminated quote")
			}
			tokens = append(tokens, token{typ: tQuoted, val: string(runes[from:i]), pos: start})
			i++
		case isTermRune(r):
			start := i
			for i < len(runes) && isTermRune(runes[i]) {
				i++
			}
			word := string(runes[start:i])
			tokens = append(tokens, token{typ: keywordType(word), val: word, pos: start})
		default:
			return nil, domain.NewParseError(i, string(r), "unexpected character")
		}
	}

	tokens = append(tokens, token{typ: tEOF, pos: len(runes)})
	return tokens, nil
}

func keywordType(word string) tokenType {
	switch strings.ToUpper(word) {
	case "AND":
		return tAnd
	case "OR":
		return tOr
	case "NOT":
		return tNot
	}
	return tWord
}

// isTermRune accepts word runes plus '.' so metadata subfields like
// metadata.subject lex as a single word before a colon.
func isTermRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}
