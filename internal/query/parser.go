package query

import (
	"strconv"
	"strings"

	"github.com/vanban-cloud/docdex/internal/analysis"
	"github.com/vanban-cloud/docdex/internal/domain"
	"github.com/vanban-cloud/docdex/internal/domain/search/mode"
)

// Fuzzy edit distance bounds. Parsed distances are clamped into [0,2];
// larger distances expand too many index terms to rank usefully.
const (
	DefaultFuzzyEdits = 2
	MaxFuzzyEdits     = 2
)

// filterableFields are the fields addressable by `field:term` syntax.
var filterableFields = map[string]bool{
	domain.FieldTitle:   true,
	domain.FieldSummary: true,
	domain.FieldContent: true,
	domain.FieldSubject: true,
}

// Parse converts a raw query string into an AST per the mode's grammar.
// A nil Node with nil error means the query carried no text terms (a valid
// empty candidate set); every malformed input yields a *domain.ParseError.
func Parse(raw string, m mode.Mode) (Node, error) {
	switch m {
	case mode.FullText:
		return parseFullText(raw), nil
	case mode.Boolean:
		return parseBoolean(raw)
	case mode.Phrase:
		return parsePhrase(raw)
	case mode.Proximity:
		return parseProximity(raw)
	case mode.Wildcard:
		return parseWildcard(raw)
	case mode.Fuzzy:
		return parseFuzzy(raw)
	default:
		return nil, domain.NewParseError(0, string(m), "mode has no query grammar")
	}
}

// parseFullText OR-combines the free-text tokens.
func parseFullText(raw string) Node {
	terms := analysis.Terms(raw)
	if len(terms) == 0 {
		return nil
	}
	if len(terms) == 1 {
		return &Term{Term: terms[0]}
	}
	children := make([]Node, len(terms))
	for i, t := range terms {
		children[i] = &Term{Term: t}
	}
	return &Or{Children: children}
}

// parsePhrase parses an optionally quoted ordered term sequence.
func parsePhrase(raw string) (Node, error) {
	text := strings.TrimSpace(raw)
	text = strings.Trim(text, `"`)
	terms := analysis.Terms(text)
	if len(terms) == 0 {
		return nil, domain.NewParseError(0, "", "phrase is empty")
	}
	if len(terms) == 1 {
		return &Term{Term: terms[0]}, nil
	}
	return &Phrase{Terms: terms}, nil
}

// parseProximity parses `term1 NEAR/n term2`. Either side may hold several
// words; all of them become required terms of one Proximity node.
func parseProximity(raw string) (Node, error) {
	words := strings.Fields(raw)
	nearAt := -1
	for i, w := range words {
		if strings.HasPrefix(strings.ToUpper(w), "NEAR/") || strings.EqualFold(w, "NEAR") {
			if nearAt >= 0 {
				return nil, domain.NewParseError(runePos(raw, w), w, "only one NEAR operator is allowed")
			}
			nearAt = i
		}
	}
	if nearAt < 0 {
		return nil, domain.NewParseError(0, "", `expected "term1 NEAR/n term2"`)
	}

	op := words[nearAt]
	slash := strings.IndexByte(op, '/')
	if slash < 0 {
		return nil, domain.NewParseError(runePos(raw, op), op, "NEAR requires a distance, e.g. NEAR/3")
	}
	n, err := strconv.Atoi(op[slash+1:])
	if err != nil || n <= 0 {
		return nil, domain.NewParseError(runePos(raw, op), op, "NEAR distance must be a positive integer")
	}

	left := analysis.Terms(strings.Join(words[:nearAt], " "))
	right := analysis.Terms(strings.Join(words[nearAt+1:], " "))
	if len(left) == 0 {
		return nil, domain.NewParseError(0, "", "expected a term before NEAR")
	}
	if len(right) == 0 {
		return nil, domain.NewParseError(runePos(raw, op), op, "expected a term after NEAR")
	}

	return &Proximity{Terms: append(left, right...), MaxDistance: n}, nil
}

// parseWildcard parses a single */? glob token. A pattern without wildcard
// characters degrades to an exact Term.
func parseWildcard(raw string) (Node, error) {
	words := strings.Fields(raw)
	if len(words) == 0 {
		return nil, domain.NewParseError(0, "", "pattern is empty")
	}
	if len(words) > 1 {
		return nil, domain.NewParseError(runePos(raw, words[1]), words[1], "wildcard mode takes a single token")
	}

	pattern := analysis.NormalizeTerm(words[0])
	if !strings.ContainsAny(pattern, "*?") {
		return &Term{Term: pattern}, nil
	}
	if strings.Trim(pattern, "*?") == "" {
		return nil, domain.NewParseError(0, pattern, "pattern needs at least one literal character")
	}
	leading := pattern[0] == '*' || pattern[0] == '?'
	return &Wildcard{Pattern: pattern, Leading: leading}, nil
}

// parseFuzzy parses `term~k`; k defaults to 2 when omitted and is clamped
// into [0,2].
func parseFuzzy(raw string) (Node, error) {
	words := strings.Fields(raw)
	if len(words) == 0 {
		return nil, domain.NewParseError(0, "", "term is empty")
	}
	if len(words) > 1 {
		return nil, domain.NewParseError(runePos(raw, words[1]), words[1], "fuzzy mode takes a single term")
	}

	word := words[0]
	edits := DefaultFuzzyEdits
	if tilde := strings.IndexByte(word, '~'); tilde >= 0 {
		if strings.Count(word, "~") > 1 {
			return nil, domain.NewParseError(runePos(raw, word), word, "only one ~ is allowed")
		}
		suffix := word[tilde+1:]
		word = word[:tilde]
		if suffix != "" {
			k, err := strconv.Atoi(suffix)
			if err != nil || k < 0 {
				return nil, domain.NewParseError(runePos(raw, words[0]), words[0],
					"edit distance must be a non-negative integer")
			}
			edits = k
		}
	}
	if edits > MaxFuzzyEdits {
		edits = MaxFuzzyEdits
	}

	term := analysis.NormalizeTerm(word)
	if term == "" {
		return nil, domain.NewParseError(0, words[0], "term is empty")
	}
	if edits == 0 {
		return &Term{Term: term}, nil
	}
	return &Fuzzy{Term: term, MaxEdits: edits}, nil
}

// parseBoolean parses the boolean grammar with precedence NOT > AND > OR.
// Adjacent operands imply AND.
func parseBoolean(raw string) (Node, error) {
	tokens, err := lex(raw)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	if p.cur().typ == tEOF {
		return nil, domain.NewParseError(0, "", "query is empty")
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.cur(); tok.typ != tEOF {
		return nil, domain.NewParseError(tok.pos, tok.val, "unexpected token; expected AND, OR, or end of query")
	}
	return node, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) cur() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.typ != tEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []Node{left}
	for p.cur().typ == tOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return &Or{Children: children}, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	children := []Node{left}
	for {
		tok := p.cur()
		if tok.typ == tAnd {
			p.next()
			right, err := p.parseNot()
			if err != nil {
				return nil, err
			}
			children = append(children, right)
			continue
		}
		// Implicit AND between adjacent operands.
		if tok.typ == tWord || tok.typ == tQuoted || tok.typ == tLParen || tok.typ == tNot {
			right, err := p.parseNot()
			if err != nil {
				return nil, err
			}
			children = append(children, right)
			continue
		}
		break
	}
	if len(children) == 1 {
		return left, nil
	}
	return &And{Children: children}, nil
}

func (p *parser) parseNot() (Node, error) {
	if p.cur().typ == tNot {
		p.next()
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{Child: child}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.cur()
	switch tok.typ {
	case tLParen:
		p.next()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.cur(); closing.typ != tRParen {
			return nil, domain.NewParseError(closing.pos, closing.val, "expected closing parenthesis")
		}
		p.next()
		return node, nil

	case tWord:
		p.next()
		if p.cur().typ == tColon {
			return p.parseFieldFilter(tok)
		}
		return termNode(tok)

	case tQuoted:
		p.next()
		return termNode(tok)

	case tAnd, tOr:
		return nil, domain.NewParseError(tok.pos, tok.val, "operator needs an operand on each side")

	case tRParen:
		return nil, domain.NewParseError(tok.pos, tok.val, "unmatched closing parenthesis")

	default: // tEOF
		return nil, domain.NewParseError(tok.pos, "", "expected a term or opening parenthesis")
	}
}

// parseFieldFilter consumes `: value` after a field word.
func (p *parser) parseFieldFilter(field token) (Node, error) {
	p.next() // the colon
	if !filterableFields[field.val] {
		return nil, domain.NewParseError(field.pos, field.val,
			"unknown field; searchable fields are title, summary, content, metadata.subject")
	}
	value := p.cur()
	if value.typ != tWord && value.typ != tQuoted {
		return nil, domain.NewParseError(value.pos, value.val, "expected a term after the colon")
	}
	p.next()
	terms := analysis.Terms(value.val)
	if len(terms) != 1 {
		return nil, domain.NewParseError(value.pos, value.val, "field filter takes a single term")
	}
	return &FieldFilter{Field: field.val, Op: OpContains, Value: terms[0]}, nil
}

// termNode turns a word or quoted token into a Term or Phrase node.
func termNode(tok token) (Node, error) {
	terms := analysis.Terms(tok.val)
	switch len(terms) {
	case 0:
		return nil, domain.NewParseError(tok.pos, tok.val, "term is empty after normalization")
	case 1:
		return &Term{Term: terms[0]}, nil
	default:
		return &Phrase{Terms: terms}, nil
	}
}

// runePos finds the rune offset of the first occurrence of word in raw.
func runePos(raw, word string) int {
	idx := strings.Index(raw, word)
	if idx < 0 {
		return 0
	}
	return len([]rune(raw[:idx]))
}
