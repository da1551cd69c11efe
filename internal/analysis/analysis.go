// Package analysis tokenizes and normalizes Vietnamese legal text.
//
// Tokens are NFC-normalized and lowercased, so "Thuế" and "thuế" index to the
// same term while diacritics are preserved. Fold strips diacritics for the
// looser comparisons used by wildcard and fuzzy expansion, where users often
// type unaccented queries.
package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Token is a single normalized token with its token position and the byte
// span of the original text it came from.
type Token struct {
	Term      string
	Position  int
	StartByte int
	EndByte   int
}

// Tokenize splits text on Unicode word boundaries and normalizes each token.
func Tokenize(text string) []Token {
	var tokens []Token
	pos := 0
	i := 0

	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isWordRune(r) {
			i += size
			continue
		}

		start := i
		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if !isWordRune(r) {
				break
			}
			i += size
		}

		term := NormalizeTerm(text[start:i])
		if term != "" {
			tokens = append(tokens, Token{
				Term:      term,
				Position:  pos,
				StartByte: start,
				EndByte:   i,
			})
			pos++
		}
	}

	return tokens
}

// Terms returns just the normalized terms of the text, in order.
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

// NormalizeTerm NFC-normalizes and lowercases a single token.
func NormalizeTerm(term string) string {
	return strings.ToLower(norm.NFC.String(term))
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold strips combining diacritical marks from an already normalized term:
// "thuế" folds to "thue". Vietnamese "đ" is a base letter, not a mark, and
// is mapped to "d" explicitly.
func Fold(term string) string {
	folded, _, err := transform.String(foldTransformer, term)
	if err != nil {
		return term
	}
	folded = strings.ReplaceAll(folded, "đ", "d")
	return strings.ReplaceAll(folded, "Đ", "D")
}

// NormalizeContent canonicalizes document content for fingerprinting:
// NFC, lowercase, runs of whitespace collapsed to single spaces. Semantically
// identical re-uploads produce identical normalized content.
func NormalizeContent(content string) string {
	lowered := strings.ToLower(norm.NFC.String(content))
	return strings.Join(strings.Fields(lowered), " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
